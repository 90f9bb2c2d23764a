package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "hive/pkg/domain"
	dErrors "hive/pkg/domain-errors"
)

type ModelsSuite struct {
	suite.Suite
	now time.Time
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ModelsSuite) TestNewDirectoryEmployee() {
	s.Run("directory employees arrive approved and active", func() {
		employee, err := NewDirectoryEmployee(id.NewEmployeeID(), "dir-1", "Ada Lovelace", "ada@example.com", s.now)
		s.Require().NoError(err)
		s.True(employee.Active)
		s.Equal(ProvenanceDirectory, employee.Provenance)
		s.Equal(ValidationStatusApproved, employee.ValidationStatus)
		s.Require().NotNil(employee.DirectoryID)
		s.Equal("dir-1", *employee.DirectoryID)
	})

	s.Run("requires a directory id", func() {
		_, err := NewDirectoryEmployee(id.NewEmployeeID(), "", "Ada", "ada@example.com", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("requires a display name", func() {
		_, err := NewDirectoryEmployee(id.NewEmployeeID(), "dir-1", "", "ada@example.com", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ModelsSuite) TestNewManualEmployee() {
	employee, err := NewManualEmployee(id.NewEmployeeID(), "Grace Hopper", "grace@example.com", s.now)
	s.Require().NoError(err)
	s.True(employee.Active)
	s.Equal(ProvenanceManual, employee.Provenance)
	s.Equal(ValidationStatusNew, employee.ValidationStatus)
	s.Nil(employee.DirectoryID)
}

func (s *ModelsSuite) TestEmployeeDeactivation() {
	employee, err := NewDirectoryEmployee(id.NewEmployeeID(), "dir-1", "Ada", "ada@example.com", s.now)
	s.Require().NoError(err)

	s.Run("active employee can deactivate", func() {
		s.NoError(employee.CanDeactivate())
		employee.ApplyDeactivation(s.now.Add(time.Hour))
		s.False(employee.Active)
	})

	s.Run("deactivation is not repeatable", func() {
		err := employee.CanDeactivate()
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ModelsSuite) TestEmployeeManualProvenance() {
	employee, err := NewDirectoryEmployee(id.NewEmployeeID(), "dir-1", "Ada", "ada@example.com", s.now)
	s.Require().NoError(err)

	employee.ApplyManualProvenance(s.now.Add(time.Hour))

	s.Equal(ProvenanceManual, employee.Provenance)
	s.False(employee.IsDirectorySourced())
	s.True(employee.Active, "restore keeps the record active")
	s.Require().NotNil(employee.DirectoryID, "directory id stays for correlation")
}

func (s *ModelsSuite) TestRefreshDirectoryAttributes() {
	employee, err := NewDirectoryEmployee(id.NewEmployeeID(), "dir-1", "Ada", "ada@old.example.com", s.now)
	s.Require().NoError(err)

	s.Run("reports change when attributes differ", func() {
		changed := employee.RefreshDirectoryAttributes("Ada", "ada@example.com", s.now.Add(time.Hour))
		s.True(changed)
		s.Equal("ada@example.com", employee.Email)
	})

	s.Run("no-op when attributes match", func() {
		changed := employee.RefreshDirectoryAttributes("Ada", "ada@example.com", s.now.Add(2*time.Hour))
		s.False(changed)
	})
}

func (s *ModelsSuite) TestGroupHierarchy() {
	sector, err := NewGroup(id.NewGroupID(), "dir-sector", "org-Engineering", LevelSector, s.now)
	s.Require().NoError(err)
	department, err := NewGroup(id.NewGroupID(), "dir-dept", "org-Platform", LevelDepartment, s.now)
	s.Require().NoError(err)

	s.Run("department attaches under a sector", func() {
		s.Require().NoError(department.SetParent(sector, s.now))
		s.Require().NotNil(department.ParentID)
		s.Equal(sector.ID, *department.ParentID)
	})

	s.Run("sector cannot have a parent", func() {
		other, err := NewGroup(id.NewGroupID(), "dir-other", "org-Ops", LevelSector, s.now)
		s.Require().NoError(err)
		err = other.SetParent(sector, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("department cannot parent another department", func() {
		child, err := NewGroup(id.NewGroupID(), "dir-child", "org-Tools", LevelDepartment, s.now)
		s.Require().NoError(err)
		err = child.SetParent(department, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ModelsSuite) TestGroupRemoval() {
	group, err := NewGroup(id.NewGroupID(), "dir-1", "org-Engineering", LevelSector, s.now)
	s.Require().NoError(err)

	s.Run("removal is soft", func() {
		s.NoError(group.CanRemove())
		group.ApplyRemoval(s.now.Add(time.Hour))
		s.True(group.IsRemoved())
		s.NotNil(group.RemovedAt)
	})

	s.Run("removal is not repeatable", func() {
		s.True(dErrors.HasCode(group.CanRemove(), dErrors.CodeInvariantViolation))
	})
}

func (s *ModelsSuite) TestGroupLocalOnly() {
	group, err := NewGroup(id.NewGroupID(), "dir-1", "org-Engineering", LevelSector, s.now)
	s.Require().NoError(err)

	group.ApplyLocalOnly(s.now.Add(time.Hour))
	s.Empty(group.DirectoryID)
	s.False(group.IsRemoved())
}

func (s *ModelsSuite) TestMembershipLifecycle() {
	membership := NewMembership(id.NewMembershipID(), id.NewEmployeeID(), id.NewGroupID(), ProvenanceDirectory, s.now)

	s.Run("starts current", func() {
		s.True(membership.IsCurrent())
	})

	s.Run("removal keeps the row", func() {
		s.NoError(membership.CanRemove())
		membership.ApplyRemoval(s.now.Add(time.Hour))
		s.False(membership.IsCurrent())
		s.NotNil(membership.RemovedAt)
		s.True(dErrors.HasCode(membership.CanRemove(), dErrors.CodeInvariantViolation))
	})

	s.Run("reactivation restores the same row with new provenance", func() {
		membership.Reactivate(ProvenanceDirectory)
		s.True(membership.IsCurrent())
		s.Nil(membership.RemovedAt)
		s.Equal(s.now, membership.JoinedAt, "original join date is preserved")
	})

	s.Run("manual provenance exempts from directory removal", func() {
		membership.ApplyManualProvenance()
		s.Equal(ProvenanceManual, membership.Provenance)
	})
}
