// Package status serves the polling view of a party: its state, its
// results once complete, and the manual repair entry point for parties
// that completed without results.
package status

import (
	"errors"
	"net/http"

	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/httpjson"
	"github.com/dalemusser/moviematch/internal/app/system/metrics"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the dependencies for the status endpoints.
type Handler struct {
	coordinator *completion.Coordinator
	log         *zap.Logger
}

// NewHandler constructs a status Handler.
func NewHandler(coordinator *completion.Coordinator, logger *zap.Logger) *Handler {
	return &Handler{coordinator: coordinator, log: logger}
}

// Status handles GET /parties/{code}/status. Clients poll this while
// waiting for the push channel, so it stays cheap: one party read.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.log, "party status")
	defer cancel()

	code := chi.URLParam(r, "code")
	info, err := h.coordinator.Status(ctx, code)
	if err != nil {
		h.writeError(w, code, err, "could not load status")
		return
	}
	httpjson.Write(w, http.StatusOK, info)
}

// Results handles GET /parties/{code}/results. Results exist only for
// complete parties; a degraded party answers with its empty result set
// and the degraded flag rather than an error.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.log, "party results")
	defer cancel()

	code := chi.URLParam(r, "code")
	info, err := h.coordinator.Status(ctx, code)
	if err != nil {
		h.writeError(w, code, err, "could not load results")
		return
	}
	if info.Status != models.PartyComplete {
		httpjson.Error(w, http.StatusConflict, "results are not ready")
		return
	}

	metrics.RecommendationsServed.Inc()
	httpjson.Write(w, http.StatusOK, info)
}

// Repair handles POST /parties/{code}/repair: re-runs the recommendation
// pipeline for a party stuck complete-without-results. Nothing calls this
// automatically.
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.log, "party repair")
	defer cancel()

	code := chi.URLParam(r, "code")
	results, err := h.coordinator.Repair(ctx, code)
	var upstream *completion.UpstreamError
	switch {
	case err == nil:
	case errors.Is(err, completion.ErrNotDegraded):
		httpjson.Error(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, completion.ErrPartyNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
		return
	case errors.As(err, &upstream):
		h.log.Error("repair failed upstream",
			zap.String("party_code", code),
			zap.String("stage", upstream.Stage),
			zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "repair failed: "+upstream.Stage)
		return
	default:
		h.log.Error("repair failed",
			zap.String("party_code", code),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not repair party")
		return
	}

	h.log.Info("party repaired",
		zap.String("party_code", code),
		zap.Int("results", len(results)))
	httpjson.Write(w, http.StatusOK, map[string]any{
		"code":    code,
		"status":  models.PartyComplete,
		"results": results,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, code string, err error, fallback string) {
	if errors.Is(err, completion.ErrPartyNotFound) {
		httpjson.Error(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error(fallback, zap.String("party_code", code), zap.Error(err))
	httpjson.Error(w, http.StatusInternalServerError, fallback)
}
