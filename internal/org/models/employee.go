// Package models holds the personnel replica entities: employees, groups,
// and the membership join between them.
package models

import (
	"time"

	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

// Provenance records whether a record originated from the directory sync or
// a manual local action. Manual records are exempt from directory-driven
// removal detection.
type Provenance string

const (
	ProvenanceDirectory Provenance = "directory"
	ProvenanceManual    Provenance = "manual"
)

// ValidationStatus tracks the review state of an employee record.
type ValidationStatus string

const (
	ValidationStatusNew      ValidationStatus = "new"
	ValidationStatusInReview ValidationStatus = "in_review"
	ValidationStatusApproved ValidationStatus = "approved"
	ValidationStatusRejected ValidationStatus = "rejected"
)

// Employee is a person record in the local replica.
//
// Invariants:
//   - A directory-sourced employee's DirectoryID is unique and immutable once set
//   - Employees are never hard-deleted, only soft-deactivated
//   - Directory-detected deactivation is gated through the validation workflow;
//     only an approved request flips Active to false
type Employee struct {
	ID                  id.EmployeeID    `json:"id"`
	DirectoryID         *string          `json:"directory_id,omitempty"`
	DisplayName         string           `json:"display_name"`
	Email               string           `json:"email"`
	Active              bool             `json:"active"`
	Provenance          Provenance       `json:"provenance"`
	ValidationStatus    ValidationStatus `json:"validation_status"`
	PrimaryDepartmentID *id.GroupID      `json:"primary_department_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// NewDirectoryEmployee creates an employee from a directory snapshot record.
// Directory-sourced records arrive pre-approved: the directory is the
// authoritative source for who exists.
func NewDirectoryEmployee(employeeID id.EmployeeID, directoryID, displayName, email string, now time.Time) (*Employee, error) {
	if directoryID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "directory id is required")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "display name is required")
	}
	return &Employee{
		ID:               employeeID,
		DirectoryID:      &directoryID,
		DisplayName:      displayName,
		Email:            email,
		Active:           true,
		Provenance:       ProvenanceDirectory,
		ValidationStatus: ValidationStatusApproved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewManualEmployee creates a manually-entered employee. Manual entries start
// in review state New until an approver signs them off.
func NewManualEmployee(employeeID id.EmployeeID, displayName, email string, now time.Time) (*Employee, error) {
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "display name is required")
	}
	return &Employee{
		ID:               employeeID,
		DisplayName:      displayName,
		Email:            email,
		Active:           true,
		Provenance:       ProvenanceManual,
		ValidationStatus: ValidationStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsActive reports whether the employee is currently active.
func (e *Employee) IsActive() bool { return e.Active }

// IsDirectorySourced reports whether the record is still coupled to the
// directory. RestoreManually resolutions flip this off.
func (e *Employee) IsDirectorySourced() bool { return e.Provenance == ProvenanceDirectory }

// CanDeactivate checks the deactivation transition.
// Use with ApplyDeactivation in Execute callbacks.
func (e *Employee) CanDeactivate() error {
	if !e.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "employee is already inactive")
	}
	return nil
}

// ApplyDeactivation soft-deactivates the employee. Call CanDeactivate first.
func (e *Employee) ApplyDeactivation(now time.Time) {
	e.Active = false
	e.UpdatedAt = now
}

// ApplyManualProvenance decouples the employee from directory-driven removal:
// the record is kept active and future deactivation events for it are no
// longer raised by the diff engine.
func (e *Employee) ApplyManualProvenance(now time.Time) {
	e.Provenance = ProvenanceManual
	e.UpdatedAt = now
}

// RefreshDirectoryAttributes updates display attributes from a snapshot.
// Returns true when anything changed.
func (e *Employee) RefreshDirectoryAttributes(displayName, email string, now time.Time) bool {
	if e.DisplayName == displayName && e.Email == email {
		return false
	}
	e.DisplayName = displayName
	e.Email = email
	e.UpdatedAt = now
	return true
}
