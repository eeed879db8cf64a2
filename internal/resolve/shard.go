package resolve

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// candidate is one Y record that some tier accepts for an X record.
type candidate struct {
	y     int
	tier  registry.Method
	score float64
}

// evaluation is everything a worker learned about one X record: the
// candidates of the best tier reached, in ascending Y order, and the
// best-scoring Y overall for review export.
type evaluation struct {
	candidates []candidate
	best       candidate
	malformed  bool
}

// score fills one evaluation per X record. X is cut into contiguous shards,
// one per worker; each worker writes only its own slots, so no locking is
// needed and the result does not depend on scheduling.
func (r *Resolver) score(ctx context.Context, pair PairPolicy, xs, ys []source.Record, yNames []match.Name) ([]evaluation, error) {
	evals := make([]evaluation, len(xs))
	if len(xs) == 0 {
		return evals, nil
	}

	workers := min(max(r.run.Workers, 1), len(xs))
	size := (len(xs) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(xs); lo += size {
		hi := min(lo+size, len(xs))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				evals[i] = r.evaluate(pair, xs[i], ys, yNames)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

// evaluate compares one X record against every Y record.
func (r *Resolver) evaluate(pair PairPolicy, x source.Record, ys []source.Record, yNames []match.Name) evaluation {
	xn := match.Normalize(x.RawName)
	ev := evaluation{best: candidate{y: -1}, malformed: xn.Empty()}

	manual := make(map[string]bool)
	for _, ref := range r.run.Manual.Partners(x.Ref(), pair.Y) {
		manual[ref.ID] = true
	}

	bestTier := registry.MethodOrigin.Priority()
	for j, y := range ys {
		s := r.run.Policy.Scorer.Score(xn, yNames[j])
		if !yNames[j].Empty() && !xn.Empty() && (ev.best.y < 0 || s > ev.best.score+epsilon) {
			ev.best = candidate{y: j, score: s}
		}

		tier, ok := r.tier(pair, manual[y.ID], xn, yNames[j], s)
		if !ok {
			continue
		}
		switch p := tier.Priority(); {
		case p < bestTier:
			bestTier = p
			ev.candidates = append(ev.candidates[:0], candidate{y: j, tier: tier, score: s})
		case p == bestTier:
			ev.candidates = append(ev.candidates, candidate{y: j, tier: tier, score: s})
		}
	}
	return ev
}
