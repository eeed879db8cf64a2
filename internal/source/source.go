// Package source defines the per-provider record shapes the engine consumes.
// Connectors write these rows into staging tables; the resolver, registry and
// fusion builder only ever read them.
//
// Adding a provider means adding a Source constant and teaching the store to
// load its rows. Nothing downstream switches on provider-specific schema.
package source

import (
	"fmt"
	"strconv"
	"strings"
)

// Source identifies one of the independent data providers.
type Source string

const (
	StatsBomb     Source = "statsbomb"
	SkillCorner   Source = "skillcorner"
	Transfermarkt Source = "transfermarkt"
)

// All lists every source in canonical processing order.
var All = []Source{StatsBomb, SkillCorner, Transfermarkt}

// Parse accepts a full source name or its two-letter abbreviation.
func Parse(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "statsbomb", "sb":
		return StatsBomb, nil
	case "skillcorner", "sc":
		return SkillCorner, nil
	case "transfermarkt", "tm":
		return Transfermarkt, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the position of s in All, or -1.
func (s Source) Rank() int {
	for i, src := range All {
		if src == s {
			return i
		}
	}
	return -1
}

// Short returns the abbreviation used in logs and candidate files.
func (s Source) Short() string {
	switch s {
	case StatsBomb:
		return "SB"
	case SkillCorner:
		return "SC"
	case Transfermarkt:
		return "TM"
	}
	return strings.ToUpper(string(s))
}

// Ref points at one record of one source.
type Ref struct {
	Source Source `json:"source"`
	ID     string `json:"source_id"`
}

func (r Ref) String() string {
	return string(r.Source) + ":" + r.ID
}

// IsZero reports whether r is unset.
func (r Ref) IsZero() bool {
	return r.Source == "" && r.ID == ""
}

// Compare orders refs by source rank, then by CompareIDs.
func (r Ref) Compare(o Ref) int {
	if r.Source != o.Source {
		if r.Source.Rank() < o.Source.Rank() {
			return -1
		}
		return 1
	}
	return CompareIDs(r.ID, o.ID)
}

// ParseRef parses "source:id", e.g. "sb:5503" or "transfermarkt:traore-karim".
func ParseRef(s string) (Ref, error) {
	name, id, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(id) == "" {
		return Ref{}, fmt.Errorf("invalid reference %q (want source:id)", s)
	}
	src, err := Parse(name)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Source: src, ID: strings.TrimSpace(id)}, nil
}

// CompareIDs orders source ids. StatsBomb and SkillCorner ids are integers
// stored as text and compare numerically; they sort before any non-integer
// id, and non-integer ids compare lexically.
func CompareIDs(a, b string) int {
	if a == b {
		return 0
	}
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// Record is one raw per-source player record as delivered by a connector.
// Only ID and RawName are interpreted by the resolver; Attributes feed the
// registry's attribute merge.
type Record struct {
	Source     Source                 `json:"source"`
	ID         string                 `json:"source_id"`
	RawName    string                 `json:"raw_name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Ref returns the record's reference.
func (r Record) Ref() Ref {
	return Ref{Source: r.Source, ID: r.ID}
}
