package registry

import (
	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Evidence is one accepted claim seen from one of its endpoints.
type Evidence struct {
	Ref        source.Ref
	PlayerID   int64
	Method     Method
	Confidence float64
}

// EvidenceFor splits an accepted claim into its two endpoints.
func EvidenceFor(c Claim, playerID int64) []Evidence {
	return []Evidence{
		{Ref: c.A, PlayerID: playerID, Method: c.Method, Confidence: c.Confidence},
		{Ref: c.B, PlayerID: playerID, Method: c.Method, Confidence: c.Confidence},
	}
}

// Links derives one link per held source id of every active identity. The
// strongest evidence for the id wins. An id with no evidence from this run
// keeps its previous link's method and confidence while the same identity
// still holds it, and falls back to origin otherwise.
func (r *Registry) Links(runID uuid.UUID, evidence []Evidence, previous []Link) []Link {
	best := make(map[source.Ref]Evidence)
	for _, ev := range evidence {
		if r.holders[ev.Ref] != ev.PlayerID {
			continue
		}
		cur, seen := best[ev.Ref]
		if !seen || stronger(ev, cur) {
			best[ev.Ref] = ev
		}
	}
	for _, l := range previous {
		ref := source.Ref{Source: l.Source, ID: l.SourceID}
		if _, seen := best[ref]; seen || l.Method == MethodOrigin || r.holders[ref] != l.PlayerID {
			continue
		}
		best[ref] = Evidence{Ref: ref, PlayerID: l.PlayerID, Method: l.Method, Confidence: l.Confidence}
	}

	var links []Link
	for _, id := range r.Active() {
		for _, ref := range id.Refs() {
			link := Link{
				PlayerID:   id.PlayerID,
				Source:     ref.Source,
				SourceID:   ref.ID,
				Method:     MethodOrigin,
				Confidence: 1,
				RunID:      runID,
			}
			if ev, ok := best[ref]; ok {
				link.Method = ev.Method
				link.Confidence = ev.Confidence
			}
			links = append(links, link)
		}
	}
	SortLinks(links)
	return links
}

func stronger(a, b Evidence) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Method.Priority() < b.Method.Priority()
}
