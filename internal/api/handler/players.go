package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/scoracle-fusion/internal/api/respond"
	"github.com/albapepper/scoracle-fusion/internal/cache"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// ListPlayers returns a page of fused views ordered by player id.
// @Summary List fused players
// @Description Returns fused per-player views ordered by player_id, starting after the given id. Response is raw JSON from player_fused.
// @Tags players
// @Produce json
// @Param after query int false "Return players with player_id greater than this" default(0)
// @Param limit query int false "Page size (max 500)" default(100)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /players [get]
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after", 0)
	if err != nil || after < 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_AFTER", "after must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}

	key := fmt.Sprintf("%slist:%d:%d", cache.PrefixFused, after, limit)
	h.passthrough(w, r, key, cache.TTLFused, "No players", "api_fused_list", after, limit)
}

// GetPlayer returns one fused view.
// @Summary Get fused player
// @Description Returns the fused view for one player: per-90 rates, tracking averages, market context, coverage flags and quality flags. Null fields are unknown, never zero.
// @Tags players
// @Produce json
// @Param playerID path int true "Player ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /players/{playerID} [get]
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("%s%d", cache.PrefixFused, id)
	h.passthrough(w, r, key, cache.TTLFused, fmt.Sprintf("Player %d not found", id), "api_fused_player", id)
}

// GetPlayerLinks returns the identity links behind a player.
// @Summary Get player identity links
// @Description Returns every source id linked to the player with the method and confidence of the link and the run that produced it.
// @Tags players
// @Produce json
// @Param playerID path int true "Player ID"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /players/{playerID}/links [get]
func (h *Handler) GetPlayerLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}
	key := fmt.Sprintf("%s%d", cache.PrefixLinks, id)
	h.passthrough(w, r, key, cache.TTLReview, fmt.Sprintf("No links for player %d", id), "api_player_links", id)
}

func playerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil || id < 1 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "Player ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
