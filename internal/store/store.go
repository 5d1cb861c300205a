// Package store holds the authoritative board snapshot and merges it with
// the drag controller's optimistic overlay.
package store

import (
	"context"
	"math"
	"sync"

	"github.com/trakly/trakboard/internal/board"
	"github.com/trakly/trakboard/internal/logger"
	"github.com/trakly/trakboard/internal/tracker"
)

// Loader reads an authoritative snapshot.
type Loader interface {
	LoadBoard(ctx context.Context) (tracker.Snapshot, error)
}

// Store caches the last authoritative snapshot.
type Store struct {
	mu     sync.RWMutex
	loader Loader
	snap   tracker.Snapshot
	loaded bool
}

// New returns an empty store reading from loader.
func New(loader Loader) *Store {
	return &Store{loader: loader}
}

// Snapshot returns the last authoritative snapshot.
func (s *Store) Snapshot() tracker.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Loaded reports whether a snapshot has been stored.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Replace stores snap as the authoritative state.
func (s *Store) Replace(snap tracker.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.loaded = true
	s.mu.Unlock()
}

// Issue looks up an issue in the authoritative snapshot.
func (s *Store) Issue(id string) (board.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, is := range s.snap.Issues {
		if is.ID == id {
			return is, true
		}
	}
	return board.Issue{}, false
}

// Result is the outcome of a refresh.
type Result struct {
	Snapshot tracker.Snapshot
	// Stale lists issues whose settled optimistic column the server did
	// not confirm.
	Stale []string
}

// Refresh loads a fresh snapshot and reconciles ctrl's overlay against it.
// Only entries that settled before the load started are resolved; the
// snapshot may predate the rest. ctrl may be nil.
func (s *Store) Refresh(ctx context.Context, ctrl *board.Controller) (Result, error) {
	var mark uint64
	if ctrl != nil {
		mark = ctrl.SettleMark()
	}
	snap, err := s.loader.LoadBoard(ctx)
	if err != nil {
		return Result{}, err
	}
	s.Replace(snap)

	res := Result{Snapshot: snap}
	if ctrl == nil {
		return res, nil
	}
	authoritative := columnsByIssue(snap.Issues)
	ctrl.Retain(func(issueID string, e board.OverlayEntry) bool {
		keep, stale := decide(authoritative, issueID, e, mark)
		if stale {
			res.Stale = append(res.Stale, issueID)
		}
		return keep
	})
	if len(res.Stale) > 0 {
		logger.Board("refresh discarded %d unconfirmed moves", len(res.Stale))
	}
	return res, nil
}

// Revert drops the optimistic entry for an issue so the authoritative
// column shows again.
func (s *Store) Revert(ctrl *board.Controller, issueID string) {
	ctrl.Forget(issueID)
	if is, ok := s.Issue(issueID); ok {
		col := "<none>"
		if is.ColumnID != nil {
			col = *is.ColumnID
		}
		logger.Board("reverted %s to %s", is.Key, col)
	}
}

// Reconcile merges an authoritative issue list with an overlay, taking the
// list to be newer than every settled entry. Entries still waiting on their
// remote call stay applied. Settled entries are dropped and the server's
// column wins; those the server disagrees with are reported as stale.
func Reconcile(authoritative []board.Issue, ov board.Overlay) (merged []board.Issue, kept board.Overlay, stale []string) {
	byIssue := columnsByIssue(authoritative)
	kept = make(board.Overlay, len(ov))
	for id, e := range ov {
		keep, isStale := decide(byIssue, id, e, math.MaxUint64)
		if keep {
			kept[id] = e
		}
		if isStale {
			stale = append(stale, id)
		}
	}
	return kept.Apply(authoritative), kept, stale
}

// decide resolves one overlay entry against a snapshot read after mark
// settles had happened.
func decide(byIssue map[string]*string, issueID string, e board.OverlayEntry, mark uint64) (keep, stale bool) {
	if e.Pending() || e.SettleMark > mark {
		return true, false
	}
	col, exists := byIssue[issueID]
	if !exists {
		return false, false
	}
	confirmed := col != nil && *col == e.ColumnID
	return false, !confirmed
}

func columnsByIssue(issues []board.Issue) map[string]*string {
	m := make(map[string]*string, len(issues))
	for _, is := range issues {
		m[is.ID] = is.ColumnID
	}
	return m
}
