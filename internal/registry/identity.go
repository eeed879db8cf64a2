// Package registry holds the canonical player identities accumulated across
// resolution runs. Source ids attach here; the registry is the only state
// mutated by more than one stage, so every mutation goes through Upsert,
// Ensure and Merge on a single goroutine.
package registry

import (
	"sort"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Method records how a source id came to be attached to an identity.
type Method string

const (
	MethodManual Method = "manual"
	MethodExact  Method = "exact"
	MethodFamily Method = "family"
	MethodFuzzy  Method = "fuzzy"
	// MethodOrigin marks a held id that no proposal of the current run backs:
	// the record that created a provisional identity, or an attachment made
	// by an earlier run.
	MethodOrigin Method = "origin"
)

// Priority orders methods for conflict tie-breaks; lower wins.
func (m Method) Priority() int {
	switch m {
	case MethodManual:
		return 0
	case MethodExact:
		return 1
	case MethodFamily:
		return 2
	case MethodFuzzy:
		return 3
	}
	return 4
}

// Identity is one canonical player.
type Identity struct {
	PlayerID        int64
	DisplayName     string
	StatsBombID     *string
	SkillCornerID   *string
	TransfermarktID *string
	Attributes      map[Field]string
	FieldSources    map[Field]source.Source
	// MergedInto is set when a provisional identity was absorbed. The row is
	// kept and holds no source ids.
	MergedInto *int64
}

// ID returns the id this identity holds for src.
func (i *Identity) ID(src source.Source) (string, bool) {
	p := i.idField(src)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Refs lists the held source ids in source order.
func (i *Identity) Refs() []source.Ref {
	var refs []source.Ref
	for _, src := range source.All {
		if id, ok := i.ID(src); ok {
			refs = append(refs, source.Ref{Source: src, ID: id})
		}
	}
	return refs
}

// SourcesLinked counts non-null source ids.
func (i *Identity) SourcesLinked() int {
	return len(i.Refs())
}

// Active reports whether the identity still represents a player.
func (i *Identity) Active() bool {
	return i.MergedInto == nil && i.SourcesLinked() > 0
}

// Attr returns an attribute value, "" when unset.
func (i *Identity) Attr(f Field) string {
	if f == FieldDisplayName {
		return i.DisplayName
	}
	return i.Attributes[f]
}

func (i *Identity) idField(src source.Source) **string {
	switch src {
	case source.StatsBomb:
		return &i.StatsBombID
	case source.SkillCorner:
		return &i.SkillCornerID
	case source.Transfermarkt:
		return &i.TransfermarktID
	}
	return nil
}

func (i *Identity) setID(src source.Source, id string) {
	if p := i.idField(src); p != nil {
		v := id
		*p = &v
	}
}

func (i *Identity) clearID(src source.Source) {
	if p := i.idField(src); p != nil {
		*p = nil
	}
}

func (i *Identity) setAttr(f Field, value string, src source.Source) {
	if f == FieldDisplayName {
		i.DisplayName = value
	} else {
		if i.Attributes == nil {
			i.Attributes = make(map[Field]string)
		}
		i.Attributes[f] = value
	}
	if i.FieldSources == nil {
		i.FieldSources = make(map[Field]source.Source)
	}
	i.FieldSources[f] = src
}

func (i Identity) clone() Identity {
	out := i
	out.StatsBombID = clonePtr(i.StatsBombID)
	out.SkillCornerID = clonePtr(i.SkillCornerID)
	out.TransfermarktID = clonePtr(i.TransfermarktID)
	if i.MergedInto != nil {
		v := *i.MergedInto
		out.MergedInto = &v
	}
	if i.Attributes != nil {
		out.Attributes = make(map[Field]string, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = v
		}
	}
	if i.FieldSources != nil {
		out.FieldSources = make(map[Field]source.Source, len(i.FieldSources))
		for k, v := range i.FieldSources {
			out.FieldSources[k] = v
		}
	}
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Link is the derived provenance of one source id on one identity. Links are
// recomputed every run and replaced wholesale.
type Link struct {
	PlayerID   int64         `json:"player_id"`
	Source     source.Source `json:"source"`
	SourceID   string        `json:"source_id"`
	Method     Method        `json:"method"`
	Confidence float64       `json:"confidence"`
	RunID      uuid.UUID     `json:"run_id"`
}

// SortLinks orders links by player id, then source order.
func SortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].PlayerID != links[j].PlayerID {
			return links[i].PlayerID < links[j].PlayerID
		}
		return links[i].Source.Rank() < links[j].Source.Rank()
	})
}
