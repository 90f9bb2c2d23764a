package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hive/internal/directory"
	"hive/internal/dirsync/models"
	orgmodels "hive/internal/org/models"
	employeestore "hive/internal/org/store/employee"
	groupstore "hive/internal/org/store/group"
	membershipstore "hive/internal/org/store/membership"
	id "hive/pkg/domain"
)

type DiffSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	employees   *employeestore.InMemory
	groups      *groupstore.InMemory
	memberships *membershipstore.InMemory
	differ      *Differ
}

func TestDiffSuite(t *testing.T) {
	suite.Run(t, new(DiffSuite))
}

func (s *DiffSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.reset()
}

// reset gives a subtest a clean replica.
func (s *DiffSuite) reset() {
	s.employees = employeestore.NewInMemory()
	s.groups = groupstore.NewInMemory()
	s.memberships = membershipstore.NewInMemory()
	s.differ = NewDiffer(s.employees, s.groups, s.memberships, slog.Default())
}

func (s *DiffSuite) snapshot(groups []directory.Group, members map[string][]directory.Member) *Snapshot {
	if members == nil {
		members = make(map[string][]directory.Member)
	}
	return &Snapshot{Groups: groups, MembersByGroup: members}
}

func (s *DiffSuite) seedGroup(dirID, name string, level orgmodels.GroupLevel) *orgmodels.Group {
	group, err := orgmodels.NewGroup(id.NewGroupID(), dirID, name, level, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.groups.Create(s.ctx, group))
	return group
}

func (s *DiffSuite) seedDirectoryEmployee(dirID, name, email string) *orgmodels.Employee {
	employee, err := orgmodels.NewDirectoryEmployee(id.NewEmployeeID(), dirID, name, email, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.employees.Create(s.ctx, employee))
	return employee
}

func (s *DiffSuite) seedMembership(employeeID id.EmployeeID, groupID id.GroupID, provenance orgmodels.Provenance) *orgmodels.Membership {
	membership := orgmodels.NewMembership(id.NewMembershipID(), employeeID, groupID, provenance, s.now)
	s.Require().NoError(s.memberships.Create(s.ctx, membership))
	return membership
}

func kinds(cs *models.ChangeSet) []models.ChangeKind {
	out := make([]models.ChangeKind, 0, len(cs.Changes))
	for _, c := range cs.Changes {
		out = append(out, c.Kind)
	}
	return out
}

func (s *DiffSuite) TestAdditiveClassification() {
	s.Run("unknown group and member are additions", func() {
		s.reset()
		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				"g1": {{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: true}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.ElementsMatch(
			[]models.ChangeKind{models.ChangeGroupAdded, models.ChangeEmployeeAdded, models.ChangeMembershipAdded},
			kinds(cs),
		)
	})

	s.Run("attribute drift on a directory-sourced record is an update", func() {
		s.reset()
		s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@old.example.com")
		group, err := s.groups.FindByDirectoryID(s.ctx, "g1")
		s.Require().NoError(err)
		s.seedMembership(employee.ID, group.ID, orgmodels.ProvenanceDirectory)

		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				"g1": {{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: true}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Equal([]models.ChangeKind{models.ChangeEmployeeUpdated}, kinds(cs))
		s.Equal(employee.ID, *cs.Changes[0].EmployeeID)
	})

	s.Run("matching state yields an empty change set", func() {
		s.reset()
		s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")
		group, err := s.groups.FindByDirectoryID(s.ctx, "g1")
		s.Require().NoError(err)
		s.seedMembership(employee.ID, group.ID, orgmodels.ProvenanceDirectory)

		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				"g1": {{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: true}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Empty(cs.Changes)
	})
}

func (s *DiffSuite) TestDestructiveClassification() {
	s.Run("vanished member becomes a deactivation, not a delete", func() {
		s.reset()
		s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")

		snap := s.snapshot([]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}}, nil)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Equal([]models.ChangeKind{models.ChangeEmployeeDeactivated}, kinds(cs))
		s.Equal(employee.ID, *cs.Changes[0].EmployeeID)
	})

	s.Run("member inactive in the directory also drives deactivation", func() {
		s.reset()
		s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")

		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				"g1": {{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: false}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Contains(kinds(cs), models.ChangeEmployeeDeactivated)
	})

	s.Run("vanished group becomes a removal request", func() {
		s.reset()
		group := s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)

		cs, err := s.differ.Diff(s.ctx, s.snapshot(nil, nil))
		s.Require().NoError(err)
		s.Equal([]models.ChangeKind{models.ChangeGroupRemoved}, kinds(cs))
		s.Equal(group.ID, *cs.Changes[0].GroupID)
	})

	s.Run("member gone from one group only is a membership removal", func() {
		s.reset()
		g1 := s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		g2 := s.seedGroup("g2", "org-Operations", orgmodels.LevelSector)
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")
		s.seedMembership(employee.ID, g1.ID, orgmodels.ProvenanceDirectory)
		s.seedMembership(employee.ID, g2.ID, orgmodels.ProvenanceDirectory)

		// Still present in g2, dropped from g1.
		snap := s.snapshot(
			[]directory.Group{
				{ID: "g1", DisplayName: "org-Engineering"},
				{ID: "g2", DisplayName: "org-Operations"},
			},
			map[string][]directory.Member{
				"g2": {{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: true}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Equal([]models.ChangeKind{models.ChangeMembershipRemoved}, kinds(cs))
		s.Equal(g1.ID, *cs.Changes[0].GroupID)
		s.Equal(employee.ID, *cs.Changes[0].EmployeeID)
	})
}

func (s *DiffSuite) TestDeactivationSupersedesMembershipRemoval() {
	g1 := s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
	g2 := s.seedGroup("g2", "org-Operations", orgmodels.LevelSector)
	employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")
	s.seedMembership(employee.ID, g1.ID, orgmodels.ProvenanceDirectory)
	s.seedMembership(employee.ID, g2.ID, orgmodels.ProvenanceDirectory)

	// Gone from the directory entirely: one deactivation, zero membership
	// removals.
	snap := s.snapshot(
		[]directory.Group{
			{ID: "g1", DisplayName: "org-Engineering"},
			{ID: "g2", DisplayName: "org-Operations"},
		},
		nil,
	)
	cs, err := s.differ.Diff(s.ctx, snap)
	s.Require().NoError(err)
	s.Equal([]models.ChangeKind{models.ChangeEmployeeDeactivated}, kinds(cs))
}

func (s *DiffSuite) TestManualProvenanceExemption() {
	s.Run("manual membership is never removed by the directory", func() {
		s.reset()
		g1 := s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")
		s.seedMembership(employee.ID, g1.ID, orgmodels.ProvenanceManual)

		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				// Present elsewhere so no deactivation fires either.
				"g1": {},
			},
		)
		// Keep the employee visible in the directory via a second group.
		snap.Groups = append(snap.Groups, directory.Group{ID: "g2", DisplayName: "org-Operations"})
		snap.MembersByGroup["g2"] = []directory.Member{
			{UserID: "u1", DisplayName: "Ada", Email: "ada@example.com", Active: true},
		}
		s.seedGroup("g2", "org-Operations", orgmodels.LevelSector)
		group2, err := s.groups.FindByDirectoryID(s.ctx, "g2")
		s.Require().NoError(err)
		s.seedMembership(employee.ID, group2.ID, orgmodels.ProvenanceDirectory)

		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.NotContains(kinds(cs), models.ChangeMembershipRemoved)
	})

	s.Run("manual employee absent from the directory is left alone", func() {
		s.reset()
		manual, err := orgmodels.NewManualEmployee(id.NewEmployeeID(), "Grace", "grace@example.com", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.employees.Create(s.ctx, manual))

		cs, err := s.differ.Diff(s.ctx, s.snapshot(nil, nil))
		s.Require().NoError(err)
		s.Empty(cs.Changes)
	})

	s.Run("drift against a manual record with a directory id is a data conflict", func() {
		s.reset()
		employee := s.seedDirectoryEmployee("u1", "Ada", "ada@example.com")
		_, err := s.employees.Execute(s.ctx, employee.ID,
			func(e *orgmodels.Employee) error { return nil },
			func(e *orgmodels.Employee) { e.ApplyManualProvenance(s.now) },
		)
		s.Require().NoError(err)
		s.seedGroup("g1", "org-Engineering", orgmodels.LevelSector)

		snap := s.snapshot(
			[]directory.Group{{ID: "g1", DisplayName: "org-Engineering"}},
			map[string][]directory.Member{
				"g1": {{UserID: "u1", DisplayName: "Ada Lovelace", Email: "ada@example.com", Active: true}},
			},
		)
		cs, err := s.differ.Diff(s.ctx, snap)
		s.Require().NoError(err)
		s.Contains(kinds(cs), models.ChangeDataConflict)
		s.NotContains(kinds(cs), models.ChangeEmployeeUpdated)
	})
}
