package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

func TestSummarize(t *testing.T) {
	one := int64(1)
	c := Summarize([]Identity{
		{PlayerID: 1, StatsBombID: strp("1"), SkillCornerID: strp("9"), TransfermarktID: strp("a")},
		{PlayerID: 2, StatsBombID: strp("2"), SkillCornerID: strp("60")},
		{PlayerID: 3, TransfermarktID: strp("b")},
		{PlayerID: 4, MergedInto: &one},
		{PlayerID: 5},
	})

	assert.Equal(t, 3, c.Players)
	assert.Equal(t, 1, c.Merged)
	assert.Equal(t, 2, c.PerSource[source.StatsBomb])
	assert.Equal(t, 2, c.PerSource[source.Transfermarkt])
	assert.Equal(t, 2, c.Pairs[PairKey(source.StatsBomb, source.SkillCorner)])
	assert.Equal(t, 1, c.Pairs[PairKey(source.Transfermarkt, source.StatsBomb)])
	assert.Equal(t, 1, c.Pairs[PairKey(source.SkillCorner, source.Transfermarkt)])
	assert.Equal(t, 1, c.AllThree)
}

func TestPairKeyIsOrderFree(t *testing.T) {
	assert.Equal(t, "statsbomb+transfermarkt", PairKey(source.Transfermarkt, source.StatsBomb))
	assert.Equal(t, PairKey(source.SkillCorner, source.StatsBomb), PairKey(source.StatsBomb, source.SkillCorner))
}
