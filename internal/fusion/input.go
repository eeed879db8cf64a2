// Package fusion rebuilds the per-player aggregate view from the identity
// registry and the raw per-source statistics. The view is derived state: it
// is recomputed from scratch every run and swapped in as a whole.
package fusion

import (
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// Metric names a season counting stat that is reported per 90 minutes.
type Metric string

const (
	Goals     Metric = "goals"
	Assists   Metric = "assists"
	NpXG      Metric = "np_xg"
	Shots     Metric = "shots"
	Passes    Metric = "passes"
	Tackles   Metric = "tackles"
	Pressures Metric = "pressures"
	OBV       Metric = "obv"
)

// RateMetrics lists the per-90 metrics in output order.
var RateMetrics = []Metric{Goals, Assists, NpXG, Shots, Passes, Tackles, Pressures, OBV}

// seasonKeys are the raw StatsBomb spellings of each season total.
var seasonKeys = map[Metric][]string{
	Goals:     {"goals", "player_season_goals"},
	Assists:   {"assists", "player_season_assists"},
	NpXG:      {"np_xg", "player_season_np_xg"},
	Shots:     {"shots", "player_season_shots"},
	Passes:    {"passes", "player_season_passes", "passes_completed"},
	Tackles:   {"tackles", "player_season_tackles"},
	Pressures: {"pressures", "player_season_pressures"},
	OBV:       {"obv", "obv_total_net", "player_season_obv"},
}

// SeasonTotals are one player's StatsBomb counting stats for one season.
type SeasonTotals struct {
	StatsBombID string
	SeasonID    int64
	Minutes     float64
	Totals      map[Metric]float64
}

// TotalsFromStats reads a raw season stats document. Metrics the document
// does not carry are left out of Totals.
func TotalsFromStats(sbID string, seasonID int64, stats map[string]interface{}) SeasonTotals {
	st := SeasonTotals{StatsBombID: sbID, SeasonID: seasonID, Totals: make(map[Metric]float64)}
	if v, ok := source.FirstFloat(stats, "minutes", "minutes_played", "player_season_minutes"); ok {
		st.Minutes = v
	}
	for _, m := range RateMetrics {
		if v, ok := source.FirstFloat(stats, seasonKeys[m]...); ok {
			st.Totals[m] = v
		}
	}
	return st
}

// Tracking names a physical metric averaged over tracked matches.
type Tracking string

const (
	TotalDistance  Tracking = "total_distance_m"
	SprintDistance Tracking = "sprinting_distance_m"
	MaxSpeed       Tracking = "max_speed_kmh"
	Sprints        Tracking = "num_sprints"
	HighSpeedRuns  Tracking = "num_high_speed_runs"
)

// TrackingMetrics lists the tracking averages in output order.
var TrackingMetrics = []Tracking{TotalDistance, SprintDistance, MaxSpeed, Sprints, HighSpeedRuns}

// trackingKeys: SkillCorner 2024+ suffixes aggregates with "_full_all".
var trackingKeys = map[Tracking][]string{
	TotalDistance:  {"total_distance_full_all", "total_distance", "distance_total", "total_distance_m"},
	SprintDistance: {"sprint_distance_full_all", "sprinting_distance", "distance_sprinting", "sprint_distance", "sprinting_distance_m"},
	MaxSpeed:       {"psv99_full_all", "top_speed", "max_speed", "peak_speed", "max_speed_kmh"},
	Sprints:        {"sprint_count_full_all", "sprint_count", "num_sprints", "sprints"},
	HighSpeedRuns:  {"hsr_count_full_all", "high_speed_run_count", "num_high_speed_runs"},
}

// PhysicalSample is one player's tracking output for one match. A nil entry
// means the provider did not measure that metric.
type PhysicalSample struct {
	SkillCornerID string
	MatchID       string
	Metrics       map[Tracking]*float64
}

// Tracked reports whether the sample carries at least one metric.
func (s PhysicalSample) Tracked() bool {
	for _, v := range s.Metrics {
		if v != nil {
			return true
		}
	}
	return false
}

// SampleFromMetrics reads a raw SkillCorner physical document.
func SampleFromMetrics(scID, matchID string, metrics map[string]interface{}) PhysicalSample {
	s := PhysicalSample{SkillCornerID: scID, MatchID: matchID, Metrics: make(map[Tracking]*float64)}
	for _, t := range TrackingMetrics {
		if v, ok := source.FirstFloat(metrics, trackingKeys[t]...); ok {
			s.Metrics[t] = &v
		}
	}
	return s
}
