// Package resolve decides which source records denote the same player.
//
// Resolution runs per configured source pair. Every record of the pair's X
// side is matched against the Y side through a fixed tier order (manual,
// exact, family, fuzzy); the first tier with a candidate wins. Scoring is
// sharded across workers, selection is not: tie-breaks run centrally once all
// scores are in, so the worker count never changes an outcome.
//
// The Arbiter then ranks every proposal of the run globally and applies them
// to the registry one at a time.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// epsilon absorbs float noise when comparing scores against thresholds and
// against each other.
const epsilon = 1e-9

// PairPolicy configures one resolution pass: records of X are matched against
// records of Y.
type PairPolicy struct {
	X         source.Source
	Y         source.Source
	Threshold float64
}

func (p PairPolicy) String() string {
	return p.X.Short() + "->" + p.Y.Short()
}

// Covers reports whether the pass compares sources a and b, in either
// orientation.
func (p PairPolicy) Covers(a, b source.Source) bool {
	return (p.X == a && p.Y == b) || (p.X == b && p.Y == a)
}

// Policy holds every tunable of the match rules.
type Policy struct {
	Pairs            []PairPolicy
	ManualConfidence float64
	ExactConfidence  float64
	FamilyConfidence float64
	// ReviewLowerBound opens the band [ReviewLowerBound, threshold) in which
	// unresolved pairs are exported as review candidates.
	ReviewLowerBound float64
	Scorer           match.Scorer
}

// DefaultPolicy: SkillCorner and Transfermarkt ids are both resolved against
// StatsBomb, the most complete roster.
func DefaultPolicy() Policy {
	return Policy{
		Pairs: []PairPolicy{
			{X: source.StatsBomb, Y: source.SkillCorner, Threshold: 0.60},
			{X: source.Transfermarkt, Y: source.StatsBomb, Threshold: 0.65},
		},
		ManualConfidence: 1.0,
		ExactConfidence:  1.0,
		FamilyConfidence: 0.8,
		ReviewLowerBound: 0.45,
		Scorer:           match.DefaultScorer,
	}
}

// Validate rejects policies the resolver cannot run.
func (p Policy) Validate() error {
	seen := make(map[[2]source.Source]bool)
	for _, pair := range p.Pairs {
		if !pair.X.Valid() || !pair.Y.Valid() || pair.X == pair.Y {
			return fmt.Errorf("pair %s: need two distinct known sources", pair)
		}
		key := [2]source.Source{pair.X, pair.Y}
		if pair.Y.Rank() < pair.X.Rank() {
			key = [2]source.Source{pair.Y, pair.X}
		}
		if seen[key] {
			return fmt.Errorf("pair %s configured twice", pair)
		}
		seen[key] = true
		if err := unit("threshold "+pair.String(), pair.Threshold); err != nil {
			return err
		}
		if p.ReviewLowerBound > pair.Threshold {
			return fmt.Errorf("review lower bound %.2f above %s threshold %.2f", p.ReviewLowerBound, pair, pair.Threshold)
		}
	}
	for name, v := range map[string]float64{
		"manual confidence":  p.ManualConfidence,
		"exact confidence":   p.ExactConfidence,
		"family confidence":  p.FamilyConfidence,
		"review lower bound": p.ReviewLowerBound,
	} {
		if err := unit(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Threshold returns the fuzzy threshold for a pass over a and b.
func (p Policy) Threshold(a, b source.Source) (float64, bool) {
	for _, pair := range p.Pairs {
		if pair.Covers(a, b) {
			return pair.Threshold, true
		}
	}
	return 0, false
}

func (p Policy) confidence(m registry.Method, score float64) float64 {
	switch m {
	case registry.MethodManual:
		return p.ManualConfidence
	case registry.MethodExact:
		return p.ExactConfidence
	case registry.MethodFamily:
		return p.FamilyConfidence
	}
	return score
}

func unit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s %.4f outside [0,1]", name, v)
	}
	return nil
}

// Run carries the per-run state every stage reads: the run id stamped on
// links and candidates, the policy and the manual pairs. Nothing in it
// changes once the run starts.
type Run struct {
	ID      uuid.UUID
	Policy  Policy
	Manual  *source.ManualSet
	Workers int
	Logger  *slog.Logger
}

// NewRun builds a Run with a fresh id.
func NewRun(policy Policy, manual *source.ManualSet, workers int, logger *slog.Logger) *Run {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Run{
		ID:      uuid.New(),
		Policy:  policy,
		Manual:  manual,
		Workers: workers,
		Logger:  logger,
	}
}
