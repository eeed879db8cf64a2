package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/scoracle-fusion/internal/registry"
)

// View is the fused per-player aggregate. Nil means unknown; zero is only
// ever a measured zero.
type View struct {
	PlayerID        int64   `json:"player_id"`
	DisplayName     string  `json:"display_name"`
	StatsBombID     *string `json:"statsbomb_id"`
	SkillCornerID   *string `json:"skillcorner_id"`
	TransfermarktID *string `json:"transfermarkt_id"`

	SeasonID *int64              `json:"season_id"`
	Minutes  *float64            `json:"minutes_played"`
	Per90    map[Metric]*float64 `json:"per90"`

	MatchesTracked int                   `json:"matches_tracked"`
	Tracking       map[Tracking]*float64 `json:"tracking"`

	MarketValue    *string  `json:"market_value"`
	MarketValueEUR *float64 `json:"market_value_eur"`
	ContractExpiry *string  `json:"contract_expiry"`
	CurrentClub    *string  `json:"current_club"`

	HasEventData    bool      `json:"has_event_data"`
	HasTrackingData bool      `json:"has_tracking_data"`
	HasContextData  bool      `json:"has_context_data"`
	SourcesLinked   int       `json:"sources_linked"`
	QualityFlags    []string  `json:"quality_flags"`
	RunID           uuid.UUID `json:"run_id"`
}

// Input is everything a rebuild reads.
type Input struct {
	RunID      uuid.UUID
	Identities []registry.Identity
	Seasons    []SeasonTotals
	Physical   []PhysicalSample
}

// Builder computes views. Each player's view depends only on its own slice
// of the input, so players are built in parallel.
type Builder struct {
	workers int
	logger  *slog.Logger
}

// NewBuilder creates a builder using up to workers goroutines.
func NewBuilder(workers int, logger *slog.Logger) *Builder {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{workers: workers, logger: logger}
}

// Rebuild returns one view per active identity, ordered by player id. It
// has no side effects; a cancelled rebuild returns the context error and no
// views.
func (b *Builder) Rebuild(ctx context.Context, in Input) ([]View, error) {
	seasons := latestSeasons(in.Seasons)
	samples := make(map[string][]PhysicalSample)
	for _, s := range in.Physical {
		samples[s.SkillCornerID] = append(samples[s.SkillCornerID], s)
	}

	var active []registry.Identity
	for _, id := range in.Identities {
		if id.Active() {
			active = append(active, id)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].PlayerID < active[j].PlayerID })

	views := make([]View, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range active {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			views[i] = build(in.RunID, active[i], seasons, samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rebuild fused views: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild fused views: %w", err)
	}

	flagged := 0
	for _, v := range views {
		if len(v.QualityFlags) > 0 {
			flagged++
		}
	}
	b.logger.Info("fused views built", "players", len(views), "flagged", flagged)
	return views, nil
}

// latestSeasons keeps the highest season id per StatsBomb player.
func latestSeasons(all []SeasonTotals) map[string]SeasonTotals {
	out := make(map[string]SeasonTotals)
	for _, st := range all {
		cur, ok := out[st.StatsBombID]
		if !ok || st.SeasonID > cur.SeasonID {
			out[st.StatsBombID] = st
		}
	}
	return out
}

func build(runID uuid.UUID, id registry.Identity, seasons map[string]SeasonTotals, samples map[string][]PhysicalSample) View {
	v := View{
		PlayerID:        id.PlayerID,
		DisplayName:     id.DisplayName,
		StatsBombID:     id.StatsBombID,
		SkillCornerID:   id.SkillCornerID,
		TransfermarktID: id.TransfermarktID,
		Per90:           make(map[Metric]*float64, len(RateMetrics)),
		Tracking:        make(map[Tracking]*float64, len(TrackingMetrics)),
		SourcesLinked:   id.SourcesLinked(),
		QualityFlags:    []string{},
		RunID:           runID,
	}
	for _, m := range RateMetrics {
		v.Per90[m] = nil
	}
	for _, t := range TrackingMetrics {
		v.Tracking[t] = nil
	}

	if id.StatsBombID != nil {
		if st, ok := seasons[*id.StatsBombID]; ok {
			v.HasEventData = true
			v.applySeason(st)
		}
	}
	if id.SkillCornerID != nil {
		v.applyTracking(samples[*id.SkillCornerID])
	}
	v.applyContext(id)
	sort.Strings(v.QualityFlags)
	return v
}

// ---------------------------------------------------------------------------
// Per-90 rates
// ---------------------------------------------------------------------------

func (v *View) applySeason(st SeasonTotals) {
	season := st.SeasonID
	v.SeasonID = &season

	if st.Minutes < 0 {
		v.flag("negative_minutes")
		return
	}
	minutes := st.Minutes
	v.Minutes = &minutes
	if minutes == 0 {
		return
	}
	for _, m := range RateMetrics {
		total, ok := st.Totals[m]
		if !ok {
			continue
		}
		// OBV is a net value and may legitimately be negative.
		if total < 0 && m != OBV {
			v.flag("negative_" + string(m))
			continue
		}
		rate := total / minutes * 90
		v.Per90[m] = &rate
	}
}

// ---------------------------------------------------------------------------
// Tracking averages
// ---------------------------------------------------------------------------

func (v *View) applyTracking(samples []PhysicalSample) {
	sums := make(map[Tracking]float64)
	counts := make(map[Tracking]int)
	for _, s := range samples {
		if !s.Tracked() {
			continue
		}
		v.MatchesTracked++
		for _, t := range TrackingMetrics {
			val := s.Metrics[t]
			if val == nil {
				continue
			}
			if *val < 0 {
				v.flag("negative_" + string(t))
				continue
			}
			sums[t] += *val
			counts[t]++
		}
	}
	v.HasTrackingData = v.MatchesTracked > 0
	for _, t := range TrackingMetrics {
		if counts[t] == 0 {
			continue
		}
		avg := sums[t] / float64(counts[t])
		v.Tracking[t] = &avg
	}
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

func (v *View) applyContext(id registry.Identity) {
	v.MarketValue = optional(id.Attr(registry.FieldMarketValue))
	v.ContractExpiry = optional(id.Attr(registry.FieldContractExpiry))
	v.CurrentClub = optional(id.Attr(registry.FieldCurrentClub))
	if raw := id.Attr(registry.FieldMarketValueEUR); raw != "" {
		eur, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			v.flag("invalid_market_value_eur")
		case eur < 0:
			v.flag("negative_market_value_eur")
		default:
			v.MarketValueEUR = &eur
		}
	}
	v.HasContextData = v.MarketValue != nil || v.MarketValueEUR != nil ||
		v.ContractExpiry != nil || v.CurrentClub != nil
}

func (v *View) flag(name string) {
	for _, f := range v.QualityFlags {
		if f == name {
			return
		}
	}
	v.QualityFlags = append(v.QualityFlags, name)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
