package source

import (
	"fmt"
	"sort"
)

// ManualPair is a human-validated cross-source identity pair. It always wins
// over any automatically computed link between the same two ids.
type ManualPair struct {
	A     Ref    `json:"a"`
	B     Ref    `json:"b"`
	Notes string `json:"notes,omitempty"`
}

// Validate rejects pairs that cannot describe two records of one person.
func (p ManualPair) Validate() error {
	if !p.A.Source.Valid() || !p.B.Source.Valid() {
		return fmt.Errorf("manual pair %s <-> %s: unknown source", p.A, p.B)
	}
	if p.A.ID == "" || p.B.ID == "" {
		return fmt.Errorf("manual pair %s <-> %s: empty id", p.A, p.B)
	}
	if p.A.Source == p.B.Source {
		return fmt.Errorf("manual pair %s <-> %s: both ids from %s", p.A, p.B, p.A.Source)
	}
	return nil
}

// ManualSet indexes the manual pairs loaded for one resolution pass. It is
// read-only once built.
type ManualSet struct {
	pairs    []ManualPair
	partners map[Ref][]Ref
}

// NewManualSet indexes pairs in both orientations. Invalid pairs are returned
// separately so the caller can log them; they never enter the set.
func NewManualSet(pairs []ManualPair) (*ManualSet, []error) {
	s := &ManualSet{partners: make(map[Ref][]Ref)}
	var errs []error
	seen := make(map[[2]Ref]bool)
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := [2]Ref{p.A, p.B}
		if p.B.Compare(p.A) < 0 {
			key = [2]Ref{p.B, p.A}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		s.pairs = append(s.pairs, p)
		s.partners[p.A] = append(s.partners[p.A], p.B)
		s.partners[p.B] = append(s.partners[p.B], p.A)
	}
	for ref := range s.partners {
		partners := s.partners[ref]
		sort.Slice(partners, func(i, j int) bool { return partners[i].Compare(partners[j]) < 0 })
	}
	return s, errs
}

// Len returns the number of distinct pairs.
func (s *ManualSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}

// Pairs returns the distinct pairs in load order.
func (s *ManualSet) Pairs() []ManualPair {
	if s == nil {
		return nil
	}
	return s.pairs
}

// Names reports whether a manual pair joins a and b, in either orientation.
func (s *ManualSet) Names(a, b Ref) bool {
	if s == nil {
		return false
	}
	for _, p := range s.partners[a] {
		if p == b {
			return true
		}
	}
	return false
}

// Partners returns the ids of source other paired with ref, lowest first.
func (s *ManualSet) Partners(ref Ref, other Source) []Ref {
	if s == nil {
		return nil
	}
	var out []Ref
	for _, p := range s.partners[ref] {
		if p.Source == other {
			out = append(out, p)
		}
	}
	return out
}

// Pinned reports whether ref takes part in any manual pair.
func (s *ManualSet) Pinned(ref Ref) bool {
	if s == nil {
		return false
	}
	return len(s.partners[ref]) > 0
}
