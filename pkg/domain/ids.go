// Package domain provides typed identifiers shared across modules.
//
// Every entity gets its own UUID-backed ID type so the compiler rejects
// cross-entity assignment (passing a GroupID where an EmployeeID is expected
// is a compile error, not a runtime bug).
package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"

	dErrors "hive/pkg/domain-errors"
)

// Typed identifiers. Zero value is the nil UUID and is never valid.
type (
	EmployeeID   uuid.UUID
	GroupID      uuid.UUID
	MembershipID uuid.UUID
	SyncRunID    uuid.UUID
	RequestID    uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return parsed, nil
}

// ParseEmployeeID validates and returns an EmployeeID.
func ParseEmployeeID(s string) (EmployeeID, error) {
	parsed, err := parseUUID("employee", s)
	return EmployeeID(parsed), err
}

// ParseGroupID validates and returns a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	parsed, err := parseUUID("group", s)
	return GroupID(parsed), err
}

// ParseMembershipID validates and returns a MembershipID.
func ParseMembershipID(s string) (MembershipID, error) {
	parsed, err := parseUUID("membership", s)
	return MembershipID(parsed), err
}

// ParseSyncRunID validates and returns a SyncRunID.
func ParseSyncRunID(s string) (SyncRunID, error) {
	parsed, err := parseUUID("sync run", s)
	return SyncRunID(parsed), err
}

// ParseRequestID validates and returns a validation RequestID.
func ParseRequestID(s string) (RequestID, error) {
	parsed, err := parseUUID("validation request", s)
	return RequestID(parsed), err
}

func (id EmployeeID) String() string   { return uuid.UUID(id).String() }
func (id GroupID) String() string      { return uuid.UUID(id).String() }
func (id MembershipID) String() string { return uuid.UUID(id).String() }
func (id SyncRunID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string    { return uuid.UUID(id).String() }

func (id EmployeeID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id MembershipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SyncRunID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewEmployeeID returns a fresh random EmployeeID.
func NewEmployeeID() EmployeeID { return EmployeeID(uuid.New()) }

// NewGroupID returns a fresh random GroupID.
func NewGroupID() GroupID { return GroupID(uuid.New()) }

// NewMembershipID returns a fresh random MembershipID.
func NewMembershipID() MembershipID { return MembershipID(uuid.New()) }

// NewSyncRunID returns a fresh random SyncRunID.
func NewSyncRunID() SyncRunID { return SyncRunID(uuid.New()) }

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// Defined types do not inherit uuid.UUID's methods, so database and JSON
// plumbing is delegated explicitly.

func (id EmployeeID) Value() (driver.Value, error)   { return uuid.UUID(id).Value() }
func (id GroupID) Value() (driver.Value, error)      { return uuid.UUID(id).Value() }
func (id MembershipID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id SyncRunID) Value() (driver.Value, error)    { return uuid.UUID(id).Value() }
func (id RequestID) Value() (driver.Value, error)    { return uuid.UUID(id).Value() }

func (id *EmployeeID) Scan(src any) error   { return (*uuid.UUID)(id).Scan(src) }
func (id *GroupID) Scan(src any) error      { return (*uuid.UUID)(id).Scan(src) }
func (id *MembershipID) Scan(src any) error { return (*uuid.UUID)(id).Scan(src) }
func (id *SyncRunID) Scan(src any) error    { return (*uuid.UUID)(id).Scan(src) }
func (id *RequestID) Scan(src any) error    { return (*uuid.UUID)(id).Scan(src) }

func (id EmployeeID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id GroupID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id MembershipID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SyncRunID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id RequestID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *EmployeeID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *GroupID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MembershipID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SyncRunID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RequestID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
