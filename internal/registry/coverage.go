package registry

import "github.com/albapepper/scoracle-fusion/internal/source"

// Coverage counts how much of the registry each source and source pair
// reaches. Only active identities count.
type Coverage struct {
	Players   int                   `json:"players"`
	PerSource map[source.Source]int `json:"per_source"`
	Pairs     map[string]int        `json:"pairs"`
	AllThree  int                   `json:"all_three"`
	Merged    int                   `json:"merged"`
}

// PairKey names a source pair in Coverage.Pairs, in source order.
func PairKey(a, b source.Source) string {
	if b.Rank() < a.Rank() {
		a, b = b, a
	}
	return string(a) + "+" + string(b)
}

// Summarize computes coverage over identities.
func Summarize(identities []Identity) Coverage {
	c := Coverage{
		PerSource: make(map[source.Source]int, len(source.All)),
		Pairs:     make(map[string]int),
	}
	for i := range source.All {
		for _, b := range source.All[i+1:] {
			c.Pairs[PairKey(source.All[i], b)] = 0
		}
	}
	for i := range identities {
		id := &identities[i]
		if id.MergedInto != nil {
			c.Merged++
			continue
		}
		if !id.Active() {
			continue
		}
		c.Players++
		var held []source.Source
		for _, src := range source.All {
			if _, ok := id.ID(src); ok {
				c.PerSource[src]++
				held = append(held, src)
			}
		}
		for i := range held {
			for _, b := range held[i+1:] {
				c.Pairs[PairKey(held[i], b)]++
			}
		}
		if len(held) == len(source.All) {
			c.AllThree++
		}
	}
	return c
}
