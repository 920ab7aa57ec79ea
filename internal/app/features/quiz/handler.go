// Package quiz handles answer submission, the write that can tip a party
// over the completion barrier.
package quiz

import (
	"errors"
	"net/http"

	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/httpjson"
	"github.com/dalemusser/moviematch/internal/app/system/sanitize"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the dependencies for the quiz endpoints.
type Handler struct {
	coordinator *completion.Coordinator
	log         *zap.Logger
}

// NewHandler constructs a quiz Handler.
func NewHandler(coordinator *completion.Coordinator, logger *zap.Logger) *Handler {
	return &Handler{coordinator: coordinator, log: logger}
}

type answerPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type submitRequest struct {
	ParticipantID string          `json:"participant_id"`
	Answers       []answerPayload `json:"answers"`
}

// Submit handles POST /parties/{code}/answers. When this submission is the
// last one outstanding, the response carries the completed party's
// results; the pipeline may take several seconds, so the timeout here is
// the long one.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ParticipantID == "" {
		httpjson.Error(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	answers := make([]models.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		q := sanitize.Text(a.Question)
		ans := sanitize.Text(a.Answer)
		if q == "" || ans == "" {
			httpjson.Error(w, http.StatusBadRequest, "each answer needs a question and an answer")
			return
		}
		answers = append(answers, models.Answer{Question: q, Answer: ans})
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.log, "submit answers")
	defer cancel()

	code := chi.URLParam(r, "code")
	result, err := h.coordinator.SubmitAnswers(ctx, code, req.ParticipantID, answers)
	switch {
	case err == nil:
	case errors.Is(err, completion.ErrAnswersRequired):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, completion.ErrPartyNotFound),
		errors.Is(err, completion.ErrParticipantNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, completion.ErrQuizNotStarted):
		httpjson.Error(w, http.StatusConflict, err.Error())
		return
	default:
		h.log.Error("submit answers failed",
			zap.String("party_code", code),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not record answers")
		return
	}

	httpjson.Write(w, http.StatusOK, result)
}
