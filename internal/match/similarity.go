package match

import (
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Combiner folds the Jaccard and edit signals into one score in [0,1].
type Combiner func(jaccard, edit float64) float64

// CombineMax keeps the stronger signal. It is the default.
func CombineMax(jaccard, edit float64) float64 {
	return max(jaccard, edit)
}

// CombineMean averages both signals. Stricter than CombineMax for names that
// only agree on one axis.
func CombineMean(jaccard, edit float64) float64 {
	return (jaccard + edit) / 2
}

// CombinerByName resolves a policy-file combiner name.
func CombinerByName(name string) (Combiner, error) {
	switch name {
	case "", "max":
		return CombineMax, nil
	case "mean":
		return CombineMean, nil
	}
	return nil, fmt.Errorf("unknown similarity combiner %q", name)
}

// Scorer computes bounded similarity between normalized names.
type Scorer struct {
	Combine Combiner
}

// DefaultScorer uses CombineMax.
var DefaultScorer = Scorer{Combine: CombineMax}

// Score returns DefaultScorer.Score(a, b).
func Score(a, b Name) float64 {
	return DefaultScorer.Score(a, b)
}

// Score is 1 for identical names, 0 when either is empty, and commutative.
func (s Scorer) Score(a, b Name) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	if a.Equal(b) {
		return 1
	}
	combine := s.Combine
	if combine == nil {
		combine = CombineMax
	}
	score := combine(Jaccard(a, b), EditSimilarity(a, b))
	return min(max(score, 0), 1)
}

// Jaccard is |A∩B| / |A∪B| over the token sets.
func Jaccard(a, b Name) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	setA := make(map[string]struct{}, len(a.Tokens))
	for _, t := range a.Tokens {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b.Tokens))
	for _, t := range b.Tokens {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// EditSimilarity is 1 - levenshtein/maxLen over the space-joined forms,
// measured in runes.
func EditSimilarity(a, b Name) float64 {
	sa, sb := a.String(), b.String()
	longest := max(utf8.RuneCountInString(sa), utf8.RuneCountInString(sb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(Levenshtein(sa, sb))/float64(longest)
}

// Levenshtein returns the edit distance between a and b in runes.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// SharedSurname reports whether a and b agree on the surname token and, if
// so, returns what is left of each name once it is removed. The surname is
// the last token. The surname-first form ("Dupont J." against "Jean Dupont")
// is accepted only when the surname-first side has nothing but initials
// left, so a first name equal to the other's surname does not count.
func SharedSurname(a, b Name) (restA, restB Name, ok bool) {
	if a.Empty() || b.Empty() {
		return Name{}, Name{}, false
	}
	lastA, lastB := len(a.Tokens)-1, len(b.Tokens)-1
	switch {
	case a.Last() == b.Last():
		return a.without(lastA), b.without(lastB), true
	case len(b.Tokens) > 1 && a.Last() == b.First() && b.without(0).initials():
		return a.without(lastA), b.without(0), true
	case len(a.Tokens) > 1 && b.Last() == a.First() && a.without(0).initials():
		return a.without(0), b.without(lastB), true
	}
	return Name{}, Name{}, false
}

// initials reports whether every token is a single letter.
func (n Name) initials() bool {
	if n.Empty() {
		return false
	}
	for _, t := range n.Tokens {
		if utf8.RuneCountInString(t) != 1 {
			return false
		}
	}
	return true
}
