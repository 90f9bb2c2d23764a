package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"hive/internal/directory"
)

// Snapshot is a complete picture of the managed directory namespace at one
// point in time. The diff step only ever runs against a full snapshot: a
// partial fetch aborts the run rather than risk misreading absent data as
// deletions.
type Snapshot struct {
	Groups         []directory.Group
	MembersByGroup map[string][]directory.Member
	// Skipped counts malformed records dropped during fetch.
	Skipped int
}

// ActiveMembers returns the union of active members across all groups,
// keyed by directory user id.
func (s *Snapshot) ActiveMembers() map[string]directory.Member {
	members := make(map[string]directory.Member)
	for _, groupMembers := range s.MembersByGroup {
		for _, m := range groupMembers {
			if m.Active {
				members[m.UserID] = m
			}
		}
	}
	return members
}

// Fetcher pulls a full snapshot from the directory provider, fanning member
// listings out across a bounded number of workers.
type Fetcher struct {
	client      directory.Client
	concurrency int
	logger      *slog.Logger
}

// NewFetcher creates a snapshot fetcher. Concurrency below 1 is coerced to 1.
func NewFetcher(client directory.Client, concurrency int, logger *slog.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{client: client, concurrency: concurrency, logger: logger}
}

// Fetch retrieves all managed groups and their members. Any provider error
// fails the whole fetch; the caller never sees a partial snapshot.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	groups, err := f.client.ListManagedGroups(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{MembersByGroup: make(map[string][]directory.Member)}
	for _, g := range groups {
		if g.ID == "" {
			f.logger.Warn("skipping directory group without id", slog.String("display_name", g.DisplayName))
			snapshot.Skipped++
			continue
		}
		snapshot.Groups = append(snapshot.Groups, g)
	}
	// Deterministic order keeps diffs and their audit trails stable.
	sort.Slice(snapshot.Groups, func(i, j int) bool {
		return snapshot.Groups[i].ID < snapshot.Groups[j].ID
	})

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.concurrency)
	for _, g := range snapshot.Groups {
		eg.Go(func() error {
			members, err := f.client.ListGroupMembers(egCtx, g.ID)
			if err != nil {
				return err
			}
			kept := make([]directory.Member, 0, len(members))
			skipped := 0
			for _, m := range members {
				if m.UserID == "" {
					skipped++
					continue
				}
				kept = append(kept, m)
			}
			mu.Lock()
			snapshot.MembersByGroup[g.ID] = kept
			snapshot.Skipped += skipped
			mu.Unlock()
			if skipped > 0 {
				f.logger.Warn("skipped malformed directory members",
					slog.String("group_id", g.ID), slog.Int("count", skipped))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
