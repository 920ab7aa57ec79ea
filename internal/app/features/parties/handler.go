// Package parties owns the party lifecycle: create, join, start, and the
// roster view. Completion and results live in the quiz and status
// features.
package parties

import (
	"context"
	"errors"
	"net/http"

	participantstore "github.com/dalemusser/moviematch/internal/app/store/participants"
	partystore "github.com/dalemusser/moviematch/internal/app/store/parties"
	"github.com/dalemusser/moviematch/internal/app/system/httpjson"
	"github.com/dalemusser/moviematch/internal/app/system/notify"
	"github.com/dalemusser/moviematch/internal/app/system/partycode"
	"github.com/dalemusser/moviematch/internal/app/system/sanitize"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// LateJoinPolicy decides what happens when someone joins after the quiz
// has started.
type LateJoinPolicy string

const (
	// LateJoinReject turns late joiners away.
	LateJoinReject LateJoinPolicy = "reject"

	// LateJoinSpectator admits late joiners as spectators: they can watch
	// and see results but do not answer and never block completion.
	LateJoinSpectator LateJoinPolicy = "spectator"
)

// Handler holds the dependencies for the party lifecycle endpoints.
type Handler struct {
	parties      *partystore.Store
	participants *participantstore.Store
	hub          *notify.Hub
	lateJoin     LateJoinPolicy
	log          *zap.Logger
}

// NewHandler constructs a parties Handler.
func NewHandler(db *mongo.Database, hub *notify.Hub, lateJoin LateJoinPolicy, logger *zap.Logger) *Handler {
	if lateJoin != LateJoinSpectator {
		lateJoin = LateJoinReject
	}
	return &Handler{
		parties:      partystore.New(db),
		participants: participantstore.New(db),
		hub:          hub,
		lateJoin:     lateJoin,
		log:          logger,
	}
}

type createRequest struct {
	Name     string `json:"name"`
	HostName string `json:"host_name"`
}

type participantView struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	IsDone        bool   `json:"is_done"`
}

type partyView struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type createResponse struct {
	partyView
	ParticipantID string `json:"participant_id"`
}

// Create handles POST /parties. The host is created as the party's first
// participant; the returned participant_id is the host's credential for
// starting the party and submitting answers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := sanitize.Text(req.Name)
	hostName := sanitize.Text(req.HostName)
	if name == "" || hostName == "" {
		httpjson.Error(w, http.StatusBadRequest, "name and host_name are required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.log, "create party")
	defer cancel()

	// The party document is created first so a failure partway through
	// never leaves a participant bound to nothing. The host's ID is issued
	// up front so the party can reference it before the participant exists.
	hostID := uuid.NewString()
	party, err := h.parties.Create(ctx, models.Party{Name: name, HostID: hostID})
	if err != nil {
		h.log.Error("create party failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not create party")
		return
	}

	host, err := h.participants.Create(ctx, models.Participant{ID: hostID, PartyID: party.ID, Name: hostName})
	if err != nil {
		// Remove the hostless party so its code is never joinable.
		if _, derr := h.parties.Delete(ctx, party.ID); derr != nil {
			h.log.Error("cleanup of hostless party failed",
				zap.String("party_code", party.Code),
				zap.Error(derr))
		}
		h.log.Error("create host participant failed", zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not create party")
		return
	}

	h.log.Info("party created",
		zap.String("party_code", party.Code),
		zap.String("host_id", host.ID))

	httpjson.Write(w, http.StatusCreated, createResponse{
		partyView:     partyView{Code: party.Code, Name: party.Name, Status: party.Status},
		ParticipantID: host.ID,
	})
}

type joinRequest struct {
	Name string `json:"name"`
}

type joinResponse struct {
	partyView
	ParticipantID string `json:"participant_id"`
	Spectator     bool   `json:"spectator,omitempty"`
}

// Join handles POST /parties/{code}/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := sanitize.Text(req.Name)
	if name == "" {
		httpjson.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.log, "join party")
	defer cancel()

	party, ok := h.loadParty(ctx, w, r)
	if !ok {
		return
	}

	spectator := false
	if party.Status != models.PartyWaiting {
		if h.lateJoin == LateJoinReject {
			httpjson.Error(w, http.StatusConflict, "party has already started")
			return
		}
		spectator = true
	}

	created, err := h.participants.Create(ctx, models.Participant{PartyID: party.ID, Name: name})
	if err != nil {
		h.log.Error("join party failed",
			zap.String("party_code", party.Code),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not join party")
		return
	}
	if spectator {
		// Spectators never block completion.
		if err := h.participants.MarkSpectator(ctx, created.ID); err != nil {
			h.log.Error("mark spectator failed", zap.Error(err))
			httpjson.Error(w, http.StatusInternalServerError, "could not join party")
			return
		}
	}

	httpjson.Write(w, http.StatusCreated, joinResponse{
		partyView:     partyView{Code: party.Code, Name: party.Name, Status: party.Status},
		ParticipantID: created.ID,
		Spectator:     spectator,
	})
}

type startRequest struct {
	ParticipantID string `json:"participant_id"`
}

// Start handles POST /parties/{code}/start. Only the host may start, and
// only from the waiting state.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ParticipantID == "" {
		httpjson.Error(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.log, "start party")
	defer cancel()

	party, ok := h.loadParty(ctx, w, r)
	if !ok {
		return
	}

	switch err := h.parties.Start(ctx, party.ID, req.ParticipantID); {
	case err == nil:
	case errors.Is(err, partystore.ErrNotHost):
		httpjson.Error(w, http.StatusForbidden, "only the host can start the party")
		return
	case errors.Is(err, partystore.ErrNotWaiting):
		httpjson.Error(w, http.StatusConflict, "party has already started")
		return
	default:
		h.log.Error("start party failed",
			zap.String("party_code", party.Code),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not start party")
		return
	}

	h.hub.Publish(party.Code, models.PartyInProgress)
	h.log.Info("party started", zap.String("party_code", party.Code))

	httpjson.Write(w, http.StatusOK, partyView{
		Code:   party.Code,
		Name:   party.Name,
		Status: models.PartyInProgress,
	})
}

type getResponse struct {
	partyView
	Participants []participantView `json:"participants"`
}

// Get handles GET /parties/{code}: party info and the roster, results
// excluded.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.log, "get party")
	defer cancel()

	party, ok := h.loadParty(ctx, w, r)
	if !ok {
		return
	}

	roster, err := h.participants.ListByParty(ctx, party.ID)
	if err != nil {
		h.log.Error("list participants failed",
			zap.String("party_code", party.Code),
			zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load party")
		return
	}

	resp := getResponse{
		partyView:    partyView{Code: party.Code, Name: party.Name, Status: party.Status},
		Participants: make([]participantView, 0, len(roster)),
	}
	for _, p := range roster {
		resp.Participants = append(resp.Participants, participantView{
			ParticipantID: p.ID,
			Name:          p.Name,
			IsDone:        p.IsDone,
		})
	}
	httpjson.Write(w, http.StatusOK, resp)
}

// loadParty resolves the {code} URL parameter. On failure the error
// response has already been written and ok is false.
func (h *Handler) loadParty(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Party, bool) {
	code := partycode.Normalize(chi.URLParam(r, "code"))
	if !partycode.Valid(code) {
		httpjson.Error(w, http.StatusBadRequest, "invalid party code")
		return models.Party{}, false
	}

	party, err := h.parties.GetByCode(ctx, code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, http.StatusNotFound, "party not found")
		return models.Party{}, false
	}
	if err != nil {
		h.log.Error("load party failed", zap.String("party_code", code), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "could not load party")
		return models.Party{}, false
	}
	return party, true
}
