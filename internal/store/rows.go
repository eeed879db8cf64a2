package store

import (
	"github.com/google/uuid"

	"github.com/albapepper/scoracle-fusion/internal/fusion"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

var linkColumns = []string{"player_id", "source", "source_id", "method", "confidence", "run_id"}

var candidateColumns = []string{
	"run_id", "priority", "kind", "pair",
	"x_source", "x_id", "x_name", "x_normalized",
	"y_source", "y_id", "y_name", "y_normalized",
	"method", "score", "threshold", "player_ids",
}

var fusedColumns = []string{
	"player_id", "display_name", "statsbomb_id", "skillcorner_id", "transfermarkt_id",
	"season_id", "minutes_played", "per90", "matches_tracked", "tracking",
	"market_value", "market_value_eur", "contract_expiry", "current_club",
	"has_event_data", "has_tracking_data", "has_context_data",
	"sources_linked", "quality_flags", "run_id",
}

// identityArgs matches the upsert_player parameter order.
func identityArgs(id registry.Identity) []any {
	attrs := id.Attributes
	if attrs == nil {
		attrs = map[registry.Field]string{}
	}
	sources := id.FieldSources
	if sources == nil {
		sources = map[registry.Field]source.Source{}
	}
	return []any{
		id.PlayerID, id.DisplayName,
		id.StatsBombID, id.SkillCornerID, id.TransfermarktID,
		attrs, sources, id.MergedInto,
	}
}

func linkRow(l registry.Link) []any {
	return []any{l.PlayerID, string(l.Source), l.SourceID, string(l.Method), l.Confidence, l.RunID}
}

func candidateRow(runID uuid.UUID, c review.Candidate) []any {
	ids := c.PlayerIDs
	if ids == nil {
		ids = []int64{}
	}
	return []any{
		runID, c.Priority, c.Kind, c.Pair,
		string(c.X.Source), c.X.ID, c.XName, c.XNormalized,
		string(c.Y.Source), c.Y.ID, c.YName, c.YNormalized,
		c.Method, c.Score, c.Threshold, ids,
	}
}

func fusedRow(v fusion.View) []any {
	per90 := v.Per90
	if per90 == nil {
		per90 = map[fusion.Metric]*float64{}
	}
	tracking := v.Tracking
	if tracking == nil {
		tracking = map[fusion.Tracking]*float64{}
	}
	flags := v.QualityFlags
	if flags == nil {
		flags = []string{}
	}
	return []any{
		v.PlayerID, v.DisplayName, v.StatsBombID, v.SkillCornerID, v.TransfermarktID,
		v.SeasonID, v.Minutes, per90, v.MatchesTracked, tracking,
		v.MarketValue, v.MarketValueEUR, v.ContractExpiry, v.CurrentClub,
		v.HasEventData, v.HasTrackingData, v.HasContextData,
		v.SourcesLinked, flags, v.RunID,
	}
}

// canonicalPair orients a pair by source order so both orientations hit the
// same unique key.
func canonicalPair(p source.ManualPair) source.ManualPair {
	if p.B.Source.Rank() < p.A.Source.Rank() {
		p.A, p.B = p.B, p.A
	}
	return p
}
