package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Proposal links one record of X to one record of Y.
type Proposal struct {
	X          source.Ref      `json:"x"`
	Y          source.Ref      `json:"y"`
	XName      string          `json:"x_name"`
	YName      string          `json:"y_name"`
	Method     registry.Method `json:"method"`
	Confidence float64         `json:"confidence"`
	// Score is the full-name similarity, kept for every method.
	Score float64 `json:"score"`
}

// Claim converts the proposal for the registry.
func (p Proposal) Claim() registry.Claim {
	return registry.Claim{A: p.X, B: p.Y, Method: p.Method, Confidence: p.Confidence}
}

// Unresolved is a record of X no tier placed.
type Unresolved struct {
	Pair    PairPolicy
	Record  source.Ref
	RawName string
	// Best is the highest-scoring Y record, zero when Y had no usable name.
	Best      source.Ref
	BestName  string
	Score     float64
	Malformed bool
}

// Malformed is a record the resolver could not use by name.
type Malformed struct {
	Record  source.Ref
	RawName string
	Reason  string
}

// PairInput is one resolution pass.
type PairInput struct {
	Pair PairPolicy
	X    []source.Record
	Y    []source.Record
}

// PairResult holds a pass's output ordered by X source id.
type PairResult struct {
	Pair       PairPolicy
	Proposals  []Proposal
	Unresolved []Unresolved
}

// Result is the resolver's output for a whole run.
type Result struct {
	Pairs []*PairResult
	// Manual holds proposals for manual pairs between sources no configured
	// pass compares.
	Manual    []Proposal
	Malformed []Malformed
	Faults    []*DuplicateIDError
	Skipped   []PairPolicy
}

// Proposals returns every proposal of the run in pass order.
func (r *Result) Proposals() []Proposal {
	var out []Proposal
	for _, pr := range r.Pairs {
		out = append(out, pr.Proposals...)
	}
	return append(out, r.Manual...)
}

// Unresolved returns every unresolved record of the run in pass order.
func (r *Result) Unresolved() []Unresolved {
	var out []Unresolved
	for _, pr := range r.Pairs {
		out = append(out, pr.Unresolved...)
	}
	return out
}

// Faulted reports whether src was halted by an integrity fault.
func (r *Result) Faulted(src source.Source) bool {
	for _, f := range r.Faults {
		if f.Source == src {
			return true
		}
	}
	return false
}

// DuplicateIDError is the integrity fault raised when one source delivers the
// same id twice. Resolution for that source halts until the upstream data is
// corrected.
type DuplicateIDError struct {
	Source source.Source
	IDs    []string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: duplicate source ids [%s]; resolution halted for this source",
		e.Source, strings.Join(e.IDs, " "))
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver proposes cross-source links for one run.
type Resolver struct {
	run *Run
}

// New creates a resolver bound to run.
func New(run *Run) *Resolver {
	return &Resolver{run: run}
}

// Resolve runs every configured pass over records, keyed by source.
// Integrity faults are returned inside the Result; the error is reserved for
// cancellation.
func (r *Resolver) Resolve(ctx context.Context, records map[source.Source][]source.Record) (*Result, error) {
	logger := r.run.Logger
	result := &Result{}
	prepared := make(map[source.Source][]source.Record, len(source.All))

	for _, src := range source.All {
		recs, malformed, fault := prepare(src, records[src])
		result.Malformed = append(result.Malformed, malformed...)
		if fault != nil {
			logger.Error("integrity fault", "source", src, "duplicates", len(fault.IDs), "error", fault)
			result.Faults = append(result.Faults, fault)
			continue
		}
		prepared[src] = recs
	}

	for _, pair := range r.run.Policy.Pairs {
		if result.Faulted(pair.X) || result.Faulted(pair.Y) {
			logger.Warn("skipping pair", "pair", pair.String(), "reason", "integrity fault")
			result.Skipped = append(result.Skipped, pair)
			continue
		}
		pr, err := r.ResolvePair(ctx, PairInput{Pair: pair, X: prepared[pair.X], Y: prepared[pair.Y]})
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", pair, err)
		}
		logger.Info("pair resolved",
			"pair", pair.String(),
			"proposals", len(pr.Proposals),
			"unresolved", len(pr.Unresolved),
		)
		result.Pairs = append(result.Pairs, pr)
	}

	result.Manual = r.unpairedManual(prepared, result)
	result.Malformed = append(result.Malformed, r.unnamed(prepared, result)...)
	for _, m := range result.Malformed {
		logger.Warn("malformed record", "ref", m.Record.String(), "reason", m.Reason)
	}
	return result, nil
}

// ResolvePair matches every record of in.X against in.Y. The inputs must be
// free of duplicate ids; Resolve checks that before calling.
func (r *Resolver) ResolvePair(ctx context.Context, in PairInput) (*PairResult, error) {
	xs, ys := sortRecords(in.X), sortRecords(in.Y)
	yNames := make([]match.Name, len(ys))
	for i, y := range ys {
		yNames[i] = match.Normalize(y.RawName)
	}

	evals, err := r.score(ctx, in.Pair, xs, ys, yNames)
	if err != nil {
		return nil, err
	}

	out := &PairResult{Pair: in.Pair}
	for i, x := range xs {
		ev := evals[i]
		if chosen, ok := selectCandidate(ev.candidates); ok {
			y := ys[chosen.y]
			out.Proposals = append(out.Proposals, Proposal{
				X:          x.Ref(),
				Y:          y.Ref(),
				XName:      x.RawName,
				YName:      y.RawName,
				Method:     chosen.tier,
				Confidence: r.run.Policy.confidence(chosen.tier, chosen.score),
				Score:      chosen.score,
			})
			continue
		}
		u := Unresolved{
			Pair:      in.Pair,
			Record:    x.Ref(),
			RawName:   x.RawName,
			Malformed: ev.malformed,
		}
		if ev.best.y >= 0 {
			u.Best = ys[ev.best.y].Ref()
			u.BestName = ys[ev.best.y].RawName
			u.Score = ev.best.score
		}
		out.Unresolved = append(out.Unresolved, u)
	}
	return out, nil
}

// tier classifies one (x, y) comparison. ok is false when no tier accepts it.
func (r *Resolver) tier(pair PairPolicy, manual bool, xn, yn match.Name, score float64) (registry.Method, bool) {
	if manual {
		return registry.MethodManual, true
	}
	if xn.Empty() || yn.Empty() {
		return "", false
	}
	if xn.Equal(yn) {
		return registry.MethodExact, true
	}
	if restX, restY, ok := match.SharedSurname(xn, yn); ok && r.run.Policy.Scorer.Score(restX, restY) > 0 {
		return registry.MethodFamily, true
	}
	if score >= pair.Threshold-epsilon {
		return registry.MethodFuzzy, true
	}
	return "", false
}

// selectCandidate applies the tie-break within the winning tier: highest
// score, then lowest Y id. Candidates arrive in ascending Y id order, so a
// later candidate only wins with a strictly higher score.
func selectCandidate(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{y: -1}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score+epsilon {
			best = c
		}
	}
	return best, true
}

// unpairedManual emits manual pairs between sources that no configured pass
// compares, provided both records were delivered this run.
func (r *Resolver) unpairedManual(prepared map[source.Source][]source.Record, result *Result) []Proposal {
	present := make(map[source.Ref]source.Record)
	for _, recs := range prepared {
		for _, rec := range recs {
			present[rec.Ref()] = rec
		}
	}
	var out []Proposal
	for _, p := range r.run.Manual.Pairs() {
		if _, covered := r.run.Policy.Threshold(p.A.Source, p.B.Source); covered {
			continue
		}
		if result.Faulted(p.A.Source) || result.Faulted(p.B.Source) {
			continue
		}
		a, okA := present[p.A]
		b, okB := present[p.B]
		if !okA || !okB {
			continue
		}
		if b.Source.Rank() < a.Source.Rank() {
			a, b = b, a
		}
		out = append(out, Proposal{
			X:          a.Ref(),
			Y:          b.Ref(),
			XName:      a.RawName,
			YName:      b.RawName,
			Method:     registry.MethodManual,
			Confidence: r.run.Policy.ManualConfidence,
			Score:      r.run.Policy.Scorer.Score(match.Normalize(a.RawName), match.Normalize(b.RawName)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].X.Compare(out[j].X); c != 0 {
			return c < 0
		}
		return out[i].Y.Compare(out[j].Y) < 0
	})
	return out
}

// unnamed lists records whose name normalizes to nothing. Records a manual
// pair names are left out: they can still be linked.
func (r *Resolver) unnamed(prepared map[source.Source][]source.Record, result *Result) []Malformed {
	var out []Malformed
	for _, src := range source.All {
		if result.Faulted(src) {
			continue
		}
		for _, rec := range prepared[src] {
			if !match.Normalize(rec.RawName).Empty() || r.run.Manual.Pinned(rec.Ref()) {
				continue
			}
			out = append(out, Malformed{Record: rec.Ref(), RawName: rec.RawName, Reason: "empty name"})
		}
	}
	return out
}

// prepare sorts one source's records by id, drops records without an id and
// raises the integrity fault on duplicates.
func prepare(src source.Source, recs []source.Record) ([]source.Record, []Malformed, *DuplicateIDError) {
	var malformed []Malformed
	kept := make([]source.Record, 0, len(recs))
	for _, rec := range recs {
		rec.Source = src
		if strings.TrimSpace(rec.ID) == "" {
			malformed = append(malformed, Malformed{Record: rec.Ref(), RawName: rec.RawName, Reason: "empty source id"})
			continue
		}
		kept = append(kept, rec)
	}
	kept = sortRecords(kept)

	var dups []string
	seen := make(map[string]int, len(kept))
	for _, rec := range kept {
		seen[rec.ID]++
		if seen[rec.ID] == 2 {
			dups = append(dups, rec.ID)
		}
	}
	if len(dups) > 0 {
		return nil, malformed, &DuplicateIDError{Source: src, IDs: dups}
	}
	return kept, malformed, nil
}

func sortRecords(recs []source.Record) []source.Record {
	out := make([]source.Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return source.CompareIDs(out[i].ID, out[j].ID) < 0
	})
	return out
}
