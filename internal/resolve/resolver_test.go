package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-fusion/internal/match"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(src source.Source, id, name string) source.Record {
	return source.Record{Source: src, ID: id, RawName: name}
}

func newRun(t *testing.T, policy Policy, pairs ...source.ManualPair) *Run {
	t.Helper()
	manual, errs := source.NewManualSet(pairs)
	require.Empty(t, errs)
	return NewRun(policy, manual, 2, quietLogger())
}

func sbSC(t *testing.T, xs, ys []source.Record, pairs ...source.ManualPair) *PairResult {
	t.Helper()
	run := newRun(t, DefaultPolicy(), pairs...)
	pr, err := New(run).ResolvePair(context.Background(), PairInput{
		Pair: run.Policy.Pairs[0],
		X:    xs,
		Y:    ys,
	})
	require.NoError(t, err)
	return pr
}

// constScorer scores every pair of distinct names with the same value.
func constScorer(v float64) match.Scorer {
	return match.Scorer{Combine: func(_, _ float64) float64 { return v }}
}

func TestFamilyTierSurnameFirst(t *testing.T) {
	pr := sbSC(t,
		[]source.Record{rec(source.StatsBomb, "1", "Jean Dupont")},
		[]source.Record{rec(source.SkillCorner, "9", "Dupont J.")},
	)
	require.Len(t, pr.Proposals, 1)
	p := pr.Proposals[0]
	assert.Equal(t, registry.MethodFamily, p.Method)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.Equal(t, source.Ref{Source: source.SkillCorner, ID: "9"}, p.Y)
	assert.Empty(t, pr.Unresolved)
}

func TestFamilyTierRejectsFirstNameAsSurname(t *testing.T) {
	pr := sbSC(t,
		[]source.Record{rec(source.StatsBomb, "1", "Martin Braithwaite")},
		[]source.Record{rec(source.SkillCorner, "9", "Thomas Martin")},
	)
	assert.Empty(t, pr.Proposals)
	require.Len(t, pr.Unresolved, 1)
	assert.Equal(t, "9", pr.Unresolved[0].Best.ID)
	assert.Less(t, pr.Unresolved[0].Score, 0.60)
}

func TestExactTierIgnoresDiacritics(t *testing.T) {
	run := newRun(t, DefaultPolicy())
	pr, err := New(run).ResolvePair(context.Background(), PairInput{
		Pair: run.Policy.Pairs[1],
		X:    []source.Record{rec(source.Transfermarkt, "traore-karim", "Karim Traore")},
		Y:    []source.Record{rec(source.StatsBomb, "2", "Karim Traoré")},
	})
	require.NoError(t, err)
	require.Len(t, pr.Proposals, 1)
	assert.Equal(t, registry.MethodExact, pr.Proposals[0].Method)
	assert.InDelta(t, 1.0, pr.Proposals[0].Confidence, 1e-9)
	assert.Equal(t, "2", pr.Proposals[0].Y.ID)
}

func TestManualPrecedence(t *testing.T) {
	sb := source.Ref{Source: source.StatsBomb, ID: "123"}
	sc := source.Ref{Source: source.SkillCorner, ID: "abc"}

	t.Run("dissimilar names", func(t *testing.T) {
		pr := sbSC(t,
			[]source.Record{rec(source.StatsBomb, "123", "Lionel Messi")},
			[]source.Record{rec(source.SkillCorner, "abc", "Qwx Zyv")},
			source.ManualPair{A: sc, B: sb},
		)
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, registry.MethodManual, pr.Proposals[0].Method)
		assert.InDelta(t, 1.0, pr.Proposals[0].Confidence, 1e-9)
		assert.Equal(t, sc, pr.Proposals[0].Y)
	})

	t.Run("beats an exact candidate", func(t *testing.T) {
		pr := sbSC(t,
			[]source.Record{rec(source.StatsBomb, "123", "Harry Kane")},
			[]source.Record{
				rec(source.SkillCorner, "10", "Harry Kane"),
				rec(source.SkillCorner, "abc", "H. Kane"),
			},
			source.ManualPair{A: sb, B: sc},
		)
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, registry.MethodManual, pr.Proposals[0].Method)
		assert.Equal(t, sc, pr.Proposals[0].Y)
	})

	t.Run("empty name", func(t *testing.T) {
		pr := sbSC(t,
			[]source.Record{rec(source.StatsBomb, "123", " ")},
			[]source.Record{rec(source.SkillCorner, "abc", "Someone")},
			source.ManualPair{A: sb, B: sc},
		)
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, registry.MethodManual, pr.Proposals[0].Method)
	})
}

func TestThresholdBoundary(t *testing.T) {
	xs := []source.Record{rec(source.StatsBomb, "1", "Alpha Beta")}
	ys := []source.Record{rec(source.SkillCorner, "2", "Gamma Delta")}

	resolve := func(score float64) *PairResult {
		policy := DefaultPolicy()
		policy.Scorer = constScorer(score)
		run := newRun(t, policy)
		pr, err := New(run).ResolvePair(context.Background(), PairInput{Pair: policy.Pairs[0], X: xs, Y: ys})
		require.NoError(t, err)
		return pr
	}

	at := resolve(0.60)
	require.Len(t, at.Proposals, 1)
	assert.Equal(t, registry.MethodFuzzy, at.Proposals[0].Method)
	assert.InDelta(t, 0.60, at.Proposals[0].Confidence, 1e-9)

	below := resolve(0.599999)
	assert.Empty(t, below.Proposals)
	require.Len(t, below.Unresolved, 1)
	u := below.Unresolved[0]
	assert.Equal(t, "2", u.Best.ID)
	assert.InDelta(t, 0.599999, u.Score, 1e-12)
	assert.False(t, u.Malformed)
}

func TestTieBreak(t *testing.T) {
	x := []source.Record{rec(source.StatsBomb, "1", "Jean Dupont")}

	t.Run("lowest id on equal score", func(t *testing.T) {
		pr := sbSC(t, x, []source.Record{
			rec(source.SkillCorner, "20", "Jean Dupond"),
			rec(source.SkillCorner, "7", "Jean Dupond"),
		})
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, registry.MethodFuzzy, pr.Proposals[0].Method)
		assert.Equal(t, "7", pr.Proposals[0].Y.ID, "ids compare numerically")
	})

	t.Run("higher score before lower id", func(t *testing.T) {
		pr := sbSC(t, x, []source.Record{
			rec(source.SkillCorner, "5", "Jon Dupond"),
			rec(source.SkillCorner, "8", "Jean Dupond"),
		})
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, "8", pr.Proposals[0].Y.ID)
	})

	t.Run("earlier tier before higher score", func(t *testing.T) {
		pr := sbSC(t, x, []source.Record{
			rec(source.SkillCorner, "1", "Jean Dupond"),
			rec(source.SkillCorner, "2", "Jeanne-Marie Dupont"),
		})
		require.Len(t, pr.Proposals, 1)
		assert.Equal(t, registry.MethodFamily, pr.Proposals[0].Method)
		assert.Equal(t, "2", pr.Proposals[0].Y.ID)
		assert.Less(t, pr.Proposals[0].Score, 0.9)
	})
}

func TestResolveDuplicateIDFault(t *testing.T) {
	run := newRun(t, DefaultPolicy())
	res, err := New(run).Resolve(context.Background(), map[source.Source][]source.Record{
		source.StatsBomb: {
			rec(source.StatsBomb, "1", "Jean Dupont"),
			rec(source.StatsBomb, "1", "Jean Dupond"),
			rec(source.StatsBomb, "2", "Other Player"),
		},
		source.SkillCorner:   {rec(source.SkillCorner, "9", "Dupont J.")},
		source.Transfermarkt: {rec(source.Transfermarkt, "jd", "Jean Dupont")},
	})
	require.NoError(t, err)

	require.Len(t, res.Faults, 1)
	assert.Equal(t, source.StatsBomb, res.Faults[0].Source)
	assert.Equal(t, []string{"1"}, res.Faults[0].IDs)
	assert.Contains(t, res.Faults[0].Error(), "duplicate source ids")
	assert.True(t, res.Faulted(source.StatsBomb))
	assert.False(t, res.Faulted(source.SkillCorner))
	assert.Empty(t, res.Pairs, "both configured pairs involve StatsBomb")
	assert.Len(t, res.Skipped, 2)
	assert.Empty(t, res.Proposals())
}

func TestResolveMalformedRecords(t *testing.T) {
	run := newRun(t, DefaultPolicy())
	res, err := New(run).Resolve(context.Background(), map[source.Source][]source.Record{
		source.StatsBomb: {
			rec(source.StatsBomb, "1", "..."),
			rec(source.StatsBomb, "", "No Id"),
			rec(source.StatsBomb, "2", "Jean Dupont"),
		},
		source.SkillCorner: {rec(source.SkillCorner, "9", "Jean Dupont")},
	})
	require.NoError(t, err)

	require.Len(t, res.Malformed, 2)
	assert.Equal(t, "empty source id", res.Malformed[0].Reason)
	assert.Equal(t, "empty name", res.Malformed[1].Reason)
	assert.Equal(t, "1", res.Malformed[1].Record.ID)

	unresolved := res.Unresolved()
	require.Len(t, unresolved, 1)
	assert.True(t, unresolved[0].Malformed)
	assert.True(t, unresolved[0].Best.IsZero())

	require.Len(t, res.Proposals(), 1)
	assert.Equal(t, registry.MethodExact, res.Proposals()[0].Method)
}

func TestResolveUnpairedManual(t *testing.T) {
	sc := source.Ref{Source: source.SkillCorner, ID: "9"}
	tm := source.Ref{Source: source.Transfermarkt, ID: "kane"}
	run := newRun(t, DefaultPolicy(),
		source.ManualPair{A: tm, B: sc},
		source.ManualPair{A: tm, B: source.Ref{Source: source.SkillCorner, ID: "404"}},
	)
	res, err := New(run).Resolve(context.Background(), map[source.Source][]source.Record{
		source.SkillCorner:   {rec(source.SkillCorner, "9", "H. Kane")},
		source.Transfermarkt: {rec(source.Transfermarkt, "kane", "Harry Kane")},
	})
	require.NoError(t, err)

	require.Len(t, res.Manual, 1)
	p := res.Manual[0]
	assert.Equal(t, sc, p.X, "oriented by source order")
	assert.Equal(t, tm, p.Y)
	assert.Equal(t, registry.MethodManual, p.Method)
}

func TestResolveDeterministicAcrossWorkers(t *testing.T) {
	first := []string{"Jean", "Marc", "Luis", "Ana", "Karim", "Jon", "J."}
	last := []string{"Dupont", "Dupond", "Traoré", "Traore", "Silva", "Sylva", "Kane"}
	var sbRecs, scRecs, tmRecs []source.Record
	n := 0
	for _, f := range first {
		for _, l := range last {
			n++
			sbRecs = append(sbRecs, rec(source.StatsBomb, fmt.Sprint(n), f+" "+l))
			if n%2 == 0 {
				scRecs = append(scRecs, rec(source.SkillCorner, fmt.Sprint(1000-n), l+" "+f))
			}
			if n%3 == 0 {
				tmRecs = append(tmRecs, rec(source.Transfermarkt, fmt.Sprintf("p-%d", n), f+"-"+l))
			}
		}
	}
	records := map[source.Source][]source.Record{
		source.StatsBomb:     sbRecs,
		source.SkillCorner:   scRecs,
		source.Transfermarkt: tmRecs,
	}

	var baseline *Result
	for _, workers := range []int{1, 3, 8, 64} {
		run := NewRun(DefaultPolicy(), nil, workers, quietLogger())
		res, err := New(run).Resolve(context.Background(), records)
		require.NoError(t, err)
		if baseline == nil {
			baseline = res
			require.NotEmpty(t, res.Proposals())
			continue
		}
		assert.Equal(t, baseline.Proposals(), res.Proposals(), "workers=%d", workers)
		assert.Equal(t, baseline.Unresolved(), res.Unresolved(), "workers=%d", workers)
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := newRun(t, DefaultPolicy())
	_, err := New(run).Resolve(ctx, map[source.Source][]source.Record{
		source.StatsBomb:   {rec(source.StatsBomb, "1", "A B")},
		source.SkillCorner: {rec(source.SkillCorner, "1", "A B")},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Pairs = append(p.Pairs, PairPolicy{X: source.SkillCorner, Y: source.StatsBomb, Threshold: 0.7})
	assert.Error(t, p.Validate(), "pair configured twice in reverse")

	p = DefaultPolicy()
	p.Pairs[0].Threshold = 1.2
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ReviewLowerBound = 0.62
	assert.Error(t, p.Validate(), "band above the SB->SC threshold")

	p = DefaultPolicy()
	p.FamilyConfidence = -0.1
	assert.Error(t, p.Validate())

	th, ok := DefaultPolicy().Threshold(source.StatsBomb, source.Transfermarkt)
	assert.True(t, ok)
	assert.InDelta(t, 0.65, th, 1e-9)
	_, ok = DefaultPolicy().Threshold(source.SkillCorner, source.Transfermarkt)
	assert.False(t, ok)
}
