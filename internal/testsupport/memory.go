// Package testsupport holds in-memory stand-ins for the Postgres store.
package testsupport

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// MemoryStore implements pipeline.Store in memory. Saved identities, links
// and candidates replace what was there, the way the Postgres store does.
type MemoryStore struct {
	mu sync.Mutex

	Records  map[source.Source][]source.Record
	Manual   []source.ManualPair
	Seasons  []fusion.SeasonTotals
	Physical []fusion.PhysicalSample

	// SaveErr and PublishErr, when set, are returned by the next call.
	SaveErr    error
	PublishErr error

	Fused fusion.Snapshot
	Saves int

	identities map[int64]registry.Identity
	links      []registry.Link
	candidates []review.Candidate
}

var _ pipeline.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Records:    make(map[source.Source][]source.Record),
		identities: make(map[int64]registry.Identity),
	}
}

// AddRecords appends raw records for src.
func (m *MemoryStore) AddRecords(src source.Source, recs ...source.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.Source = src
		m.Records[src] = append(m.Records[src], r)
	}
}

func (m *MemoryStore) LoadRecords(ctx context.Context) (map[source.Source][]source.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[source.Source][]source.Record, len(m.Records))
	for src, recs := range m.Records {
		out[src] = append([]source.Record(nil), recs...)
	}
	return out, ctx.Err()
}

func (m *MemoryStore) LoadManualPairs(ctx context.Context) ([]source.ManualPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]source.ManualPair(nil), m.Manual...), ctx.Err()
}

func (m *MemoryStore) LoadIdentities(ctx context.Context) ([]registry.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]registry.Identity, 0, len(m.identities))
	for _, id := range m.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, ctx.Err()
}

func (m *MemoryStore) LoadLinks(ctx context.Context) ([]registry.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registry.Link(nil), m.links...), ctx.Err()
}

func (m *MemoryStore) LoadSeasonTotals(ctx context.Context) ([]fusion.SeasonTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fusion.SeasonTotals(nil), m.Seasons...), ctx.Err()
}

func (m *MemoryStore) LoadPhysical(ctx context.Context) ([]fusion.PhysicalSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fusion.PhysicalSample(nil), m.Physical...), ctx.Err()
}

func (m *MemoryStore) SaveResolution(ctx context.Context, res pipeline.Resolution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		err := m.SaveErr
		m.SaveErr = nil
		return err
	}
	for _, id := range res.Identities {
		m.identities[id.PlayerID] = id
	}
	m.links = append([]registry.Link(nil), res.Links...)
	m.candidates = append([]review.Candidate(nil), res.Candidates...)
	m.Saves++
	return nil
}

func (m *MemoryStore) Publish(ctx context.Context, runID uuid.UUID, views []fusion.View) error {
	m.mu.Lock()
	err := m.PublishErr
	m.PublishErr = nil
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Fused.Publish(ctx, runID, views)
}

// Links returns the last saved links.
func (m *MemoryStore) Links() []registry.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registry.Link(nil), m.links...)
}

// Candidates returns the last saved review candidates.
func (m *MemoryStore) Candidates() []review.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]review.Candidate(nil), m.candidates...)
}

// Identity returns a saved identity.
func (m *MemoryStore) Identity(playerID int64) (registry.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[playerID]
	return id, ok
}
