package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/scoracle-fusion/internal/api/respond"
	"github.com/albapepper/scoracle-fusion/internal/cache"
	"github.com/albapepper/scoracle-fusion/internal/review"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

var candidateKinds = map[string]bool{
	"":                        true,
	review.KindMergeConflict:  true,
	review.KindSourceIDTaken:  true,
	review.KindRejected:       true,
	review.KindBelowThreshold: true,
}

// GetReviewCandidates returns the last run's review candidates.
// @Summary List review candidates
// @Description Returns pairs a curator should look at, most urgent first: merge conflicts, then id collisions, then near misses just below the acceptance threshold.
// @Tags review
// @Produce json
// @Param kind query string false "Filter by kind" Enums(merge_conflict, source_id_taken, rejected, below_threshold)
// @Param limit query int false "Max rows (max 500)" default(100)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /review/candidates [get]
func (h *Handler) GetReviewCandidates(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if !candidateKinds[kind] {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_KIND", "Unknown candidate kind "+kind)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LIMIT", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}
	key := fmt.Sprintf("%scandidates:%s:%d", cache.PrefixReview, kind, limit)
	h.passthrough(w, r, key, cache.TTLReview, "No candidates", "api_review_candidates", kind, limit)
}

// GetMissing lists active players with no id from one source.
// @Summary List players missing a source
// @Description Returns active identities that hold at least one source id but none from the given source.
// @Tags review
// @Produce json
// @Param source path string true "Source" Enums(statsbomb, skillcorner, transfermarkt)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /review/missing/{source} [get]
func (h *Handler) GetMissing(w http.ResponseWriter, r *http.Request) {
	src, err := source.Parse(chi.URLParam(r, "source"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SOURCE", err.Error())
		return
	}
	key := fmt.Sprintf("%smissing:%s", cache.PrefixReview, src)
	h.passthrough(w, r, key, cache.TTLReview, "No players", "api_review_missing", string(src))
}

// GetCoverage returns link coverage over the published fused views.
// @Summary Get coverage summary
// @Description Returns player counts per source, per source pair and across all three sources, plus the run that produced them.
// @Tags review
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /coverage [get]
func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, cache.PrefixCoverage, cache.TTLCoverage, "No coverage", "api_coverage")
}
