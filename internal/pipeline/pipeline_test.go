package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/resolve"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
	"github.com/albapepper/scoracle-fusion/internal/testsupport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

// seeded builds a store with one player in all three sources, one in two,
// and a near miss that lands in the review band.
func seeded() *testsupport.MemoryStore {
	st := testsupport.NewMemoryStore()
	st.AddRecords(source.StatsBomb,
		source.Record{ID: "1", RawName: "Jean Dupont", Attributes: map[string]interface{}{
			"date_of_birth": "1998-03-02",
			"nationality":   "France",
			"height":        183,
		}},
		source.Record{ID: "2", RawName: "Ola Solbakken"},
		source.Record{ID: "3", RawName: "Alexander Sorloth"},
	)
	st.AddRecords(source.SkillCorner,
		source.Record{ID: "9", RawName: "Jean Dupont", Attributes: map[string]interface{}{"height": 182}},
		source.Record{ID: "60", RawName: "Ola Solbakken"},
		source.Record{ID: "11", RawName: "Aleks Sorlott"},
	)
	st.AddRecords(source.Transfermarkt,
		source.Record{ID: "a", RawName: "Jean Dupont", Attributes: map[string]interface{}{
			"market_value":    "25,00 M €",
			"contract_expiry": "2027-06-30",
			"club":            "Stade Rennais",
		}},
	)
	st.Seasons = []fusion.SeasonTotals{
		{StatsBombID: "1", SeasonID: 281, Minutes: 900, Totals: map[fusion.Metric]float64{fusion.Goals: 5}},
		{StatsBombID: "1", SeasonID: 235, Minutes: 1800, Totals: map[fusion.Metric]float64{fusion.Goals: 1}},
	}
	st.Physical = []fusion.PhysicalSample{
		{SkillCornerID: "9", MatchID: "m1", Metrics: map[fusion.Tracking]*float64{fusion.TotalDistance: f64(10000)}},
		{SkillCornerID: "9", MatchID: "m2", Metrics: map[fusion.Tracking]*float64{fusion.TotalDistance: f64(11000)}},
	}
	return st
}

func newPipeline(st pipeline.Store, dir string) *pipeline.Pipeline {
	return pipeline.New(st, pipeline.Options{
		Policy:    resolve.DefaultPolicy(),
		Workers:   4,
		ExportDir: dir,
		LockFile:  filepath.Join(dir, "fusion.lock"),
	}, quietLogger())
}

func holderOf(t *testing.T, links []registry.Link, src source.Source, id string) int64 {
	t.Helper()
	for _, l := range links {
		if l.Source == src && l.SourceID == id {
			return l.PlayerID
		}
	}
	t.Fatalf("no link for %s:%s", src, id)
	return 0
}

func TestRunEndToEnd(t *testing.T) {
	st := seeded()
	result, err := newPipeline(st, t.TempDir()).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Failed(), result.Errors)
	assert.Equal(t, 7, result.RecordsLoaded)
	assert.Equal(t, 1, result.Candidates)

	links := st.Links()
	dupont := holderOf(t, links, source.StatsBomb, "1")
	assert.Equal(t, dupont, holderOf(t, links, source.SkillCorner, "9"))
	assert.Equal(t, dupont, holderOf(t, links, source.Transfermarkt, "a"))
	assert.NotEqual(t, dupont, holderOf(t, links, source.StatsBomb, "2"))
	for _, l := range links {
		assert.Equal(t, result.RunID, l.RunID)
	}

	// The near miss stays apart, each side on its own provisional identity.
	assert.NotEqual(t,
		holderOf(t, links, source.StatsBomb, "3"),
		holderOf(t, links, source.SkillCorner, "11"))

	id, ok := st.Identity(dupont)
	require.True(t, ok)
	assert.Equal(t, "183", id.Attr(registry.FieldHeightCM))
	assert.Equal(t, "25000000", id.Attr(registry.FieldMarketValueEUR))

	view, ok := st.Fused.Get(dupont)
	require.True(t, ok)
	assert.Equal(t, result.RunID, st.Fused.RunID())
	require.NotNil(t, view.SeasonID)
	assert.Equal(t, int64(281), *view.SeasonID)
	require.NotNil(t, view.Per90[fusion.Goals])
	assert.InDelta(t, 0.5, *view.Per90[fusion.Goals], 1e-9)
	assert.Equal(t, 2, view.MatchesTracked)
	require.NotNil(t, view.Tracking[fusion.TotalDistance])
	assert.InDelta(t, 10500, *view.Tracking[fusion.TotalDistance], 1e-9)
	require.NotNil(t, view.MarketValueEUR)
	assert.InDelta(t, 25e6, *view.MarketValueEUR, 1e-6)
	assert.Equal(t, 3, view.SourcesLinked)
	assert.True(t, view.HasEventData && view.HasTrackingData && view.HasContextData)

	solbakken, ok := st.Fused.Get(holderOf(t, links, source.StatsBomb, "2"))
	require.True(t, ok)
	assert.Nil(t, solbakken.Minutes)
	assert.Nil(t, solbakken.MarketValueEUR)
	assert.False(t, solbakken.HasContextData)
}

func TestRunIsIdempotent(t *testing.T) {
	st := seeded()
	p := newPipeline(st, t.TempDir())

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	firstLinks := st.Links()

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	secondLinks := st.Links()

	assert.Zero(t, second.IdentitiesWritten)
	require.Len(t, secondLinks, len(firstLinks))
	for i := range firstLinks {
		a, b := firstLinks[i], secondLinks[i]
		assert.Equal(t, first.RunID, a.RunID)
		assert.Equal(t, second.RunID, b.RunID)
		a.RunID, b.RunID = uuid.Nil, uuid.Nil
		assert.Equal(t, a, b)
	}
}

func TestRunExportIsDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	_, err := newPipeline(seeded(), dirA).Run(context.Background())
	require.NoError(t, err)

	st := seeded()
	p := pipeline.New(st, pipeline.Options{
		Policy:    resolve.DefaultPolicy(),
		Workers:   1,
		ExportDir: dirB,
	}, quietLogger())
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{review.CandidatesFile, review.MalformedFile} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}
}

func TestResolveDryRunPersistsNothing(t *testing.T) {
	st := seeded()
	dir := t.TempDir()
	result, err := newPipeline(st, dir).Resolve(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Positive(t, result.Accepted)
	assert.Zero(t, st.Saves)
	assert.Empty(t, st.Links())
	assert.Zero(t, st.Fused.Len())
	assert.FileExists(t, filepath.Join(dir, review.CandidatesFile))
}

func TestDuplicateSourceIDFaultsTheSource(t *testing.T) {
	st := seeded()
	st.AddRecords(source.SkillCorner, source.Record{ID: "60", RawName: "Someone Else"})

	result, err := newPipeline(st, t.TempDir()).Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Failed())
	require.Len(t, result.Faults, 1)
	assert.Contains(t, result.Faults[0], "60")

	for _, l := range st.Links() {
		assert.NotEqual(t, source.SkillCorner, l.Source)
	}
	// The untouched pair still resolves.
	links := st.Links()
	assert.Equal(t,
		holderOf(t, links, source.StatsBomb, "1"),
		holderOf(t, links, source.Transfermarkt, "a"))
}

func TestRunRefusesWhileLocked(t *testing.T) {
	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, "fusion.lock"))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = newPipeline(seeded(), dir).Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrRunInProgress)
}

func TestFailedSaveKeepsPreviousViews(t *testing.T) {
	st := seeded()
	p := newPipeline(st, t.TempDir())
	first, err := p.Run(context.Background())
	require.NoError(t, err)

	st.SaveErr = errors.New("connection reset")
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, first.RunID, st.Fused.RunID())
	assert.Equal(t, first.ViewsPublished, st.Fused.Len())
}

func TestFailedPublishKeepsPreviousViews(t *testing.T) {
	st := seeded()
	p := newPipeline(st, t.TempDir())
	first, err := p.Run(context.Background())
	require.NoError(t, err)

	st.PublishErr = errors.New("disk full")
	_, err = p.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, first.RunID, st.Fused.RunID())
}

func TestRunCancelled(t *testing.T) {
	st := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(st, t.TempDir()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, st.Saves)
	assert.Zero(t, st.Fused.Len())
}

func TestRebuildReadsPersistedIdentities(t *testing.T) {
	st := seeded()
	p := newPipeline(st, t.TempDir())
	_, err := p.Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, st.Fused.Len())

	result, err := p.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.ViewsPublished, st.Fused.Len())
	assert.Equal(t, result.RunID, st.Fused.RunID())
}

func TestRunResultSummary(t *testing.T) {
	r := &pipeline.RunResult{RecordsLoaded: 3}
	assert.False(t, r.Failed())
	r.AddErrorf("manual pair %d", 7)
	assert.True(t, r.Failed())
	assert.Contains(t, r.Summary(), "records=3")
	assert.Contains(t, r.Summary(), "errors=1")
}

func TestLinkProvenanceSurvivesMissingEvidence(t *testing.T) {
	st := testsupport.NewMemoryStore()
	st.AddRecords(source.StatsBomb, source.Record{ID: "1", RawName: "Mohamed Salah"})
	st.AddRecords(source.SkillCorner, source.Record{ID: "9", RawName: "Mohamed Sala"})
	dir := t.TempDir()

	first, err := newPipeline(st, dir).Resolve(context.Background(), false)
	require.NoError(t, err)
	linkFor := func(src source.Source, id string) registry.Link {
		for _, l := range st.Links() {
			if l.Source == src && l.SourceID == id {
				return l
			}
		}
		t.Fatalf("no link for %s:%s", src, id)
		return registry.Link{}
	}
	before := linkFor(source.SkillCorner, "9")
	require.Equal(t, registry.MethodFuzzy, before.Method)
	assert.InDelta(t, 12.0/13.0, before.Confidence, 1e-9)
	assert.Equal(t, first.RunID, before.RunID)

	// The SkillCorner feed drops the player; the identity keeps the id.
	st.Records[source.SkillCorner] = nil
	second, err := newPipeline(st, dir).Resolve(context.Background(), false)
	require.NoError(t, err)

	after := linkFor(source.SkillCorner, "9")
	assert.Equal(t, registry.MethodFuzzy, after.Method)
	assert.InDelta(t, before.Confidence, after.Confidence, 1e-9)
	assert.Equal(t, before.PlayerID, after.PlayerID)
	assert.Equal(t, second.RunID, after.RunID)
}
