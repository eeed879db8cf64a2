package source

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for in, want := range map[string]Source{
		"sb":            StatsBomb,
		"StatsBomb":     StatsBomb,
		" SC ":          SkillCorner,
		"transfermarkt": Transfermarkt,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := Parse("opta")
	assert.Error(t, err)
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("tm:traore-karim")
	require.NoError(t, err)
	assert.Equal(t, Ref{Source: Transfermarkt, ID: "traore-karim"}, ref)
	assert.Equal(t, "transfermarkt:traore-karim", ref.String())

	for _, bad := range []string{"", "sb", "sb:", "xx:1"} {
		_, err := ParseRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestCompareIDs(t *testing.T) {
	ids := []string{"20", "b", "7", "100", "a", "3"}
	sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
	assert.Equal(t, []string{"3", "7", "20", "100", "a", "b"}, ids)
	assert.Equal(t, 0, CompareIDs("7", "7"))
	assert.Equal(t, 1, CompareIDs("7", "07"), "distinct strings never compare equal")
}

func TestRefCompare(t *testing.T) {
	sb := Ref{Source: StatsBomb, ID: "9"}
	sc := Ref{Source: SkillCorner, ID: "1"}
	assert.Equal(t, -1, sb.Compare(sc))
	assert.Equal(t, 1, sc.Compare(sb))
	assert.True(t, Ref{}.IsZero())
}

func TestManualSet(t *testing.T) {
	sb := Ref{Source: StatsBomb, ID: "123"}
	sc := Ref{Source: SkillCorner, ID: "abc"}
	sc2 := Ref{Source: SkillCorner, ID: "10"}
	tm := Ref{Source: Transfermarkt, ID: "x"}

	set, errs := NewManualSet([]ManualPair{
		{A: sb, B: sc},
		{A: sc, B: sb, Notes: "duplicate in reverse"},
		{A: sb, B: sc2},
		{A: sb, B: Ref{Source: StatsBomb, ID: "1"}},
		{A: tm, B: Ref{Source: SkillCorner}},
	})
	assert.Len(t, errs, 2)
	assert.Equal(t, 2, set.Len())

	assert.True(t, set.Names(sb, sc))
	assert.True(t, set.Names(sc, sb))
	assert.False(t, set.Names(sc, sc2))
	assert.Equal(t, []Ref{sc2, sc}, set.Partners(sb, SkillCorner))
	assert.Empty(t, set.Partners(sb, Transfermarkt))
	assert.True(t, set.Pinned(sc))
	assert.False(t, set.Pinned(tm))

	var empty *ManualSet
	assert.False(t, empty.Names(sb, sc))
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.Partners(sb, SkillCorner))
}

func TestParseMarketValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"25,00 M €", 25e6, true},
		{"€25.00m", 25e6, true},
		{"500 K €", 5e5, true},
		{"500 Tsd. €", 5e5, true},
		{"1,2 Mrd. €", 1.2e9, true},
		{"1.20bn", 1.2e9, true},
		{"750000", 750000, true},
		{"-", 0, false},
		{"", 0, false},
		{"?", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseMarketValue(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.InDelta(t, tc.want, got, 1e-6, tc.in)
	}
}

func TestExtractValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{int64(3), 3, true},
		{" 4.25 ", 4.25, true},
		{map[string]interface{}{"p90": 1.0, "total": 40.0}, 40, true},
		{map[string]interface{}{"all": map[string]interface{}{"count": 2}}, 2, true},
		{map[string]interface{}{"p90": 1.0}, 0, false},
		{"n/a", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractValue(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestFirstValue(t *testing.T) {
	attrs := map[string]interface{}{"a": nil, "b": "x", "c": 2.0}
	v, ok := FirstValue(attrs, "a", "b", "c")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	f, ok := FirstFloat(attrs, "missing", "c")
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	_, ok = FirstValue(nil, "a")
	assert.False(t, ok)
	assert.Equal(t, "", ExtractString(nil))
	assert.Equal(t, "188", ExtractString(188.0))
	assert.Equal(t, "12", ExtractString(12))
}
