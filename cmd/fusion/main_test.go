package main

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

func TestParsePair(t *testing.T) {
	p, err := parsePair("statsbomb:5503", "transfermarkt:28003", "checked")
	require.NoError(t, err)
	assert.Equal(t, source.Ref{Source: source.StatsBomb, ID: "5503"}, p.A)
	assert.Equal(t, "checked", p.Notes)

	_, err = parsePair("statsbomb:1", "statsbomb:2", "")
	assert.Error(t, err)
	_, err = parsePair("opta:1", "statsbomb:2", "")
	assert.Error(t, err)
}

func TestRenderRunResultPlain(t *testing.T) {
	var buf bytes.Buffer
	out := renderRunResult(&pipeline.RunResult{RunID: uuid.Nil, DryRun: true, Accepted: 12}, &buf)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "12")
	assert.NotContains(t, out, "╭")
}

func TestRenderCoverage(t *testing.T) {
	var buf bytes.Buffer
	out := renderCoverage(registry.Coverage{
		Players:   4,
		PerSource: map[source.Source]int{source.StatsBomb: 4},
		Pairs:     map[string]int{registry.PairKey(source.StatsBomb, source.SkillCorner): 2},
		AllThree:  1,
	}, &buf)
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "25.0%")
}
