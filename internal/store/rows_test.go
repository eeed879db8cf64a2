package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

func TestCanonicalPair(t *testing.T) {
	sb := source.Ref{Source: source.StatsBomb, ID: "1"}
	tm := source.Ref{Source: source.Transfermarkt, ID: "a"}

	a := canonicalPair(source.ManualPair{A: tm, B: sb, Notes: "x"})
	b := canonicalPair(source.ManualPair{A: sb, B: tm, Notes: "x"})
	assert.Equal(t, a, b)
	assert.Equal(t, sb, a.A)
}

func TestRowsMatchColumns(t *testing.T) {
	assert.Len(t, linkRow(registry.Link{}), len(linkColumns))
	assert.Len(t, candidateRow(uuid.Nil, review.Candidate{}), len(candidateColumns))
	assert.Len(t, fusedRow(fusion.View{}), len(fusedColumns))
	assert.Len(t, identityArgs(registry.Identity{}), 8)
}

func TestRowsNeverCarryNilCollections(t *testing.T) {
	row := fusedRow(fusion.View{PlayerID: 3})
	assert.NotNil(t, row[7])
	assert.NotNil(t, row[9])
	assert.Equal(t, []string{}, row[18])

	cand := candidateRow(uuid.New(), review.Candidate{})
	assert.Equal(t, []int64{}, cand[15])

	args := identityArgs(registry.Identity{PlayerID: 1})
	require.Len(t, args, 8)
	assert.Equal(t, map[registry.Field]string{}, args[5])
}

func TestLoadMigrations(t *testing.T) {
	ms, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, "0001_init", ms[0].version)
	for _, table := range []string{"players", "player_identity_links", "player_fused", "review_candidates", "player_manual_mapping"} {
		assert.Contains(t, ms[0].sql, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	require.Len(t, ms, 2)
	assert.Equal(t, "0002_candidate_normalized_names", ms[1].version)
}

func TestCandidateRowCarriesNormalizedNames(t *testing.T) {
	row := candidateRow(uuid.Nil, review.Candidate{
		XName: "Alexander Sørloth", XNormalized: "alexander sorloth",
		YName: "Aleks Sorlott", YNormalized: "aleks sorlott",
	})
	assert.Equal(t, "alexander sorloth", row[7])
	assert.Equal(t, "aleks sorlott", row[11])
}
