// Package review turns a run's leftovers into work for human curators:
// unresolved pairs close to a threshold, links the arbiter demoted, merge
// conflicts, and identities still missing a source id. It reads the registry
// and never writes to it.
package review

import (
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/resolve"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Candidate kinds, in review priority order.
const (
	KindMergeConflict  = "merge_conflict"
	KindSourceIDTaken  = "source_id_taken"
	KindRejected       = "rejected"
	KindBelowThreshold = "below_threshold"
)

func priority(kind string) int {
	switch kind {
	case KindMergeConflict:
		return 0
	case KindSourceIDTaken, KindRejected:
		return 1
	}
	return 2
}

// Candidate is one pair a curator should confirm or reject, typically by
// adding a manual pair.
type Candidate struct {
	RunID       uuid.UUID  `json:"run_id"`
	Priority    int        `json:"priority"`
	Kind        string     `json:"kind"`
	Pair        string     `json:"pair"`
	X           source.Ref `json:"x"`
	Y           source.Ref `json:"y"`
	XName       string     `json:"x_name"`
	YName       string     `json:"y_name"`
	XNormalized string     `json:"x_normalized"`
	YNormalized string     `json:"y_normalized"`
	Method      string     `json:"method,omitempty"`
	Score       float64    `json:"score"`
	Threshold   float64    `json:"threshold"`
	PlayerIDs   []int64    `json:"player_ids,omitempty"`
}

// Missing is an active identity lacking one source's id.
type Missing struct {
	Source      source.Source `json:"source"`
	PlayerID    int64         `json:"player_id"`
	DisplayName string        `json:"display_name"`
	Held        []source.Ref  `json:"held"`
}

// Report is everything exported for one run.
type Report struct {
	RunID      uuid.UUID
	Candidates []Candidate
	Missing    map[source.Source][]Missing
	Malformed  []resolve.Malformed
}

// Exporter builds review reports.
type Exporter struct {
	policy resolve.Policy
	logger *slog.Logger
}

// NewExporter creates an exporter for the run's policy.
func NewExporter(policy resolve.Policy, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{policy: policy, logger: logger}
}

// Export assembles the report from the resolver's output, the arbiter's
// demotions and the registry after the run.
func (e *Exporter) Export(runID uuid.UUID, reg *registry.Registry, res *resolve.Result, arb resolve.ArbiterResult) *Report {
	rep := &Report{
		RunID:     runID,
		Missing:   make(map[source.Source][]Missing, len(source.All)),
		Malformed: append([]resolve.Malformed(nil), res.Malformed...),
	}

	for _, u := range res.Unresolved() {
		if u.Best.IsZero() || u.Score < e.policy.ReviewLowerBound-1e-9 {
			continue
		}
		rep.Candidates = append(rep.Candidates, Candidate{
			RunID:     runID,
			Priority:  priority(KindBelowThreshold),
			Kind:      KindBelowThreshold,
			Pair:      u.Pair.String(),
			X:         u.Record,
			Y:         u.Best,
			XName:     u.RawName,
			YName:     u.BestName,
			Score:     u.Score,
			Threshold: u.Pair.Threshold,
		}.normalized())
	}

	for _, d := range arb.Demoted {
		kind := d.Reason
		if kind != KindMergeConflict && kind != KindSourceIDTaken {
			kind = KindRejected
		}
		threshold, _ := e.policy.Threshold(d.X.Source, d.Y.Source)
		rep.Candidates = append(rep.Candidates, Candidate{
			RunID:     runID,
			Priority:  priority(kind),
			Kind:      kind,
			Pair:      d.X.Source.Short() + "->" + d.Y.Source.Short(),
			X:         d.X,
			Y:         d.Y,
			XName:     d.XName,
			YName:     d.YName,
			Method:    string(d.Method),
			Score:     d.Score,
			Threshold: threshold,
			PlayerIDs: d.PlayerIDs,
		}.normalized())
	}
	SortCandidates(rep.Candidates)

	for _, id := range reg.Active() {
		for _, src := range source.All {
			if _, has := id.ID(src); has {
				continue
			}
			rep.Missing[src] = append(rep.Missing[src], Missing{
				Source:      src,
				PlayerID:    id.PlayerID,
				DisplayName: id.DisplayName,
				Held:        id.Refs(),
			})
		}
	}

	e.logger.Info("review report built",
		"candidates", len(rep.Candidates),
		"merge_conflicts", rep.Count(KindMergeConflict),
		"malformed", len(rep.Malformed),
	)
	return rep
}

func (c Candidate) normalized() Candidate {
	c.XNormalized = match.Normalize(c.XName).String()
	c.YNormalized = match.Normalize(c.YName).String()
	return c
}

// Count returns the number of candidates of one kind.
func (r *Report) Count(kind string) int {
	n := 0
	for _, c := range r.Candidates {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// SortCandidates orders candidates by priority, then score descending, then
// ids.
func SortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if math.Abs(a.Score-b.Score) > 1e-9 {
			return a.Score > b.Score
		}
		if c := a.X.Compare(b.X); c != 0 {
			return c < 0
		}
		return a.Y.Compare(b.Y) < 0
	})
}
