package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"hive/internal/directory"
	"hive/internal/dirsync/models"
	orgmodels "hive/internal/org/models"
	orgstore "hive/internal/org/store"
	id "hive/pkg/domain"
	"hive/pkg/platform/sentinel"
)

// Differ compares a full directory snapshot against the local replica and
// classifies every divergence. It reads local state only; all writes happen
// downstream in the router.
//
// Classification rules:
//   - Presence in the snapshot but not locally is additive.
//   - Absence from the snapshot of a directory-sourced local record is
//     destructive and becomes a validation request.
//   - Manual-provenance records are exempt from directory-driven removal;
//     attribute disagreement on them is a data conflict, not an update.
//   - An employee slated for deactivation produces no individual membership
//     removals: deactivation supersedes them.
type Differ struct {
	employees   orgstore.EmployeeStore
	groups      orgstore.GroupStore
	memberships orgstore.MembershipStore
	logger      *slog.Logger
}

func NewDiffer(employees orgstore.EmployeeStore, groups orgstore.GroupStore, memberships orgstore.MembershipStore, logger *slog.Logger) *Differ {
	return &Differ{employees: employees, groups: groups, memberships: memberships, logger: logger}
}

// Diff produces the ordered change set for one snapshot. Group additions
// come first and group removals last, so the router can always resolve
// membership targets.
func (d *Differ) Diff(ctx context.Context, snapshot *Snapshot) (*models.ChangeSet, error) {
	cs := &models.ChangeSet{}

	localGroups, err := d.groups.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local groups: %w", err)
	}
	localGroupByDirID := make(map[string]*orgmodels.Group)
	for _, g := range localGroups {
		if g.DirectoryID != "" {
			localGroupByDirID[g.DirectoryID] = g
		}
	}

	snapshotGroupIDs := make(map[string]bool, len(snapshot.Groups))
	for _, g := range snapshot.Groups {
		snapshotGroupIDs[g.ID] = true
		if _, ok := localGroupByDirID[g.ID]; !ok {
			group := g
			cs.Add(models.Change{Kind: models.ChangeGroupAdded, DirectoryGroup: &group})
		}
	}

	directoryEmployees, err := d.employees.ListDirectorySourced(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local employees: %w", err)
	}
	localByDirID := make(map[string]*orgmodels.Employee)
	for _, e := range directoryEmployees {
		if e.DirectoryID != nil {
			localByDirID[*e.DirectoryID] = e
		}
	}

	activeMembers := snapshot.ActiveMembers()
	deactivating := make(map[id.EmployeeID]bool)

	if err := d.diffEmployees(ctx, activeMembers, localByDirID, cs); err != nil {
		return nil, err
	}

	// Directory-sourced active employees that vanished from the directory
	// (or went inactive there) become deactivation requests.
	for _, e := range directoryEmployees {
		if !e.Active || e.DirectoryID == nil {
			continue
		}
		if _, present := activeMembers[*e.DirectoryID]; present {
			continue
		}
		employeeID := e.ID
		deactivating[employeeID] = true
		cs.Add(models.Change{
			Kind:       models.ChangeEmployeeDeactivated,
			EmployeeID: &employeeID,
			Reason:     fmt.Sprintf("account %s is no longer active in the directory", *e.DirectoryID),
		})
	}

	if err := d.diffMemberships(ctx, snapshot, localGroupByDirID, localByDirID, deactivating, cs); err != nil {
		return nil, err
	}

	// Removals last: a directory-bound local group that disappeared from the
	// snapshot needs approval before it is soft-removed.
	removedDirIDs := make([]string, 0)
	for dirID := range localGroupByDirID {
		if !snapshotGroupIDs[dirID] {
			removedDirIDs = append(removedDirIDs, dirID)
		}
	}
	sort.Strings(removedDirIDs)
	for _, dirID := range removedDirIDs {
		g := localGroupByDirID[dirID]
		groupID := g.ID
		cs.Add(models.Change{
			Kind:    models.ChangeGroupRemoved,
			GroupID: &groupID,
			Reason:  fmt.Sprintf("group %s (%s) no longer exists in the directory", g.DisplayName, dirID),
		})
	}

	return cs, nil
}

// diffEmployees classifies each active directory member against the local
// replica: unknown members are additions, attribute drift on
// directory-sourced records is an update, and drift on manual-provenance
// records is a data conflict for a human to settle.
func (d *Differ) diffEmployees(ctx context.Context, activeMembers map[string]directory.Member, localByDirID map[string]*orgmodels.Employee, cs *models.ChangeSet) error {
	userIDs := make([]string, 0, len(activeMembers))
	for userID := range activeMembers {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	for _, userID := range userIDs {
		m := activeMembers[userID]
		local, ok := localByDirID[userID]
		if !ok {
			// Not among directory-sourced records; it may still exist as a
			// manual record that was decoupled by a restore resolution.
			manual, err := d.employees.FindByDirectoryID(ctx, userID)
			if errors.Is(err, sentinel.ErrNotFound) {
				member := m
				cs.Add(models.Change{Kind: models.ChangeEmployeeAdded, DirectoryMember: &member})
				continue
			}
			if err != nil {
				return fmt.Errorf("find employee by directory id: %w", err)
			}
			if manual.DisplayName != m.DisplayName || manual.Email != m.Email {
				member := m
				employeeID := manual.ID
				cs.Add(models.Change{
					Kind:            models.ChangeDataConflict,
					EmployeeID:      &employeeID,
					DirectoryMember: &member,
					Reason:          "directory attributes disagree with the manually maintained record",
				})
			}
			continue
		}
		if local.DisplayName != m.DisplayName || local.Email != m.Email {
			member := m
			employeeID := local.ID
			cs.Add(models.Change{Kind: models.ChangeEmployeeUpdated, EmployeeID: &employeeID, DirectoryMember: &member})
		}
	}
	return nil
}

// diffMemberships walks each snapshot group that exists locally. Pair
// presence in the snapshot but not locally is an addition; local current
// directory-provenance pairs missing from the snapshot become removal
// requests unless the employee is already being deactivated.
func (d *Differ) diffMemberships(
	ctx context.Context,
	snapshot *Snapshot,
	localGroupByDirID map[string]*orgmodels.Group,
	localByDirID map[string]*orgmodels.Employee,
	deactivating map[id.EmployeeID]bool,
	cs *models.ChangeSet,
) error {
	for _, g := range snapshot.Groups {
		group := g
		memberSet := make(map[string]bool)
		for _, m := range snapshot.MembersByGroup[g.ID] {
			if !m.Active {
				continue
			}
			memberSet[m.UserID] = true
		}

		localGroup := localGroupByDirID[g.ID]
		var current []*orgmodels.Membership
		currentByEmployee := make(map[id.EmployeeID]*orgmodels.Membership)
		if localGroup != nil {
			var err error
			current, err = d.memberships.ListCurrentByGroup(ctx, localGroup.ID)
			if err != nil {
				return fmt.Errorf("list memberships of group %s: %w", localGroup.ID, err)
			}
			for _, mb := range current {
				currentByEmployee[mb.EmployeeID] = mb
			}
		}

		for _, m := range snapshot.MembersByGroup[g.ID] {
			if !m.Active {
				continue
			}
			if local, ok := localByDirID[m.UserID]; ok && localGroup != nil {
				if _, joined := currentByEmployee[local.ID]; joined {
					continue
				}
			}
			member := m
			cs.Add(models.Change{Kind: models.ChangeMembershipAdded, DirectoryGroup: &group, DirectoryMember: &member})
		}

		for _, mb := range current {
			if mb.Provenance == orgmodels.ProvenanceManual {
				continue
			}
			if deactivating[mb.EmployeeID] {
				continue
			}
			dirID, err := d.directoryIDOf(ctx, mb.EmployeeID, localByDirID)
			if err != nil {
				return err
			}
			if dirID == "" || memberSet[dirID] {
				continue
			}
			employeeID := mb.EmployeeID
			groupID := mb.GroupID
			cs.Add(models.Change{
				Kind:       models.ChangeMembershipRemoved,
				EmployeeID: &employeeID,
				GroupID:    &groupID,
				Reason:     fmt.Sprintf("account %s is no longer a member of %s in the directory", dirID, g.DisplayName),
			})
		}
	}
	return nil
}

func (d *Differ) directoryIDOf(ctx context.Context, employeeID id.EmployeeID, localByDirID map[string]*orgmodels.Employee) (string, error) {
	for dirID, e := range localByDirID {
		if e.ID == employeeID {
			return dirID, nil
		}
	}
	e, err := d.employees.FindByID(ctx, employeeID)
	if err != nil {
		return "", fmt.Errorf("find employee %s: %w", employeeID, err)
	}
	if e.DirectoryID == nil {
		return "", nil
	}
	return *e.DirectoryID, nil
}
