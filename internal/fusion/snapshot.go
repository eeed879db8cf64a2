package fusion

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Publisher makes a complete set of views visible. Implementations must swap
// the whole set or nothing: readers see either the previous run's views or
// the new ones.
type Publisher interface {
	Publish(ctx context.Context, runID uuid.UUID, views []View) error
}

type viewSet struct {
	runID uuid.UUID
	views []View
	index map[int64]int
}

// Snapshot is an in-memory Publisher. Readers never block and always see one
// whole published set.
type Snapshot struct {
	current atomic.Pointer[viewSet]
}

// Publish replaces the visible set.
func (s *Snapshot) Publish(ctx context.Context, runID uuid.UUID, views []View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	set := &viewSet{
		runID: runID,
		views: append([]View(nil), views...),
		index: make(map[int64]int, len(views)),
	}
	for i, v := range set.views {
		set.index[v.PlayerID] = i
	}
	s.current.Store(set)
	return nil
}

// RunID returns the run that produced the visible set.
func (s *Snapshot) RunID() uuid.UUID {
	if set := s.current.Load(); set != nil {
		return set.runID
	}
	return uuid.Nil
}

// All returns the visible views ordered by player id.
func (s *Snapshot) All() []View {
	set := s.current.Load()
	if set == nil {
		return nil
	}
	return set.views
}

// Get returns one player's visible view.
func (s *Snapshot) Get(playerID int64) (View, bool) {
	set := s.current.Load()
	if set == nil {
		return View{}, false
	}
	i, ok := set.index[playerID]
	if !ok {
		return View{}, false
	}
	return set.views[i], true
}

// Len returns the number of visible views.
func (s *Snapshot) Len() int {
	if set := s.current.Load(); set != nil {
		return len(set.views)
	}
	return 0
}
