// Package completion owns the party state machine around the answer
// barrier: it records submissions, detects the "everyone is done"
// transition, and runs the recommendation pipeline exactly once per party.
//
// Submissions race freely; the only mutual exclusion is the conditional
// in_progress → complete status update in the party store. Every concurrent
// submitter that sees the barrier satisfied attempts that update, exactly
// one wins, and the losers report completion without re-running anything.
// The guarantee deliberately lives in storage, not process memory, so it
// holds across horizontally scaled instances.
package completion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dalemusser/moviematch/internal/app/system/metrics"
	"github.com/dalemusser/moviematch/internal/app/system/recommend"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Sentinel errors for input problems; handlers map these to 4xx responses.
var (
	ErrPartyNotFound       = errors.New("party not found")
	ErrParticipantNotFound = errors.New("participant not found in this party")
	ErrAnswersRequired     = errors.New("at least one answer is required")
	ErrQuizNotStarted      = errors.New("quiz has not been started")
	ErrNotDegraded         = errors.New("party is not in the degraded complete-without-results state")
)

// UpstreamError marks a pipeline stage failure against an external
// dependency (embedding, search, generation, persistence).
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// PartyStore is the slice of the party store the coordinator needs.
// BeginCompletion and StoreResults are single-document conditional updates:
// they report whether this caller's update matched, which is what makes the
// barrier fire at most once across concurrent submitters.
type PartyStore interface {
	GetByCode(ctx context.Context, code string) (models.Party, error)
	BeginCompletion(ctx context.Context, id primitive.ObjectID) (bool, error)
	StoreResults(ctx context.Context, id primitive.ObjectID, results []models.Recommendation) (bool, error)
}

// ParticipantStore is the slice of the participant store the coordinator
// needs.
type ParticipantStore interface {
	Get(ctx context.Context, id string) (models.Participant, error)
	SubmitAnswers(ctx context.Context, partyID primitive.ObjectID, participantID string, answers []models.Answer) error
	ListByParty(ctx context.Context, partyID primitive.ObjectID) ([]models.Participant, error)
}

// Recommender runs the aggregate → rank → explain pipeline.
type Recommender interface {
	Recommend(ctx context.Context, members []recommend.MemberPreferences) ([]models.Recommendation, error)
}

// Publisher pushes a status change to waiting clients.
type Publisher interface {
	Publish(code, status string)
}

// Coordinator wires the stores, the pipeline, and the notifier.
type Coordinator struct {
	parties      PartyStore
	participants ParticipantStore
	recommender  Recommender
	publisher    Publisher
	log          *zap.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(parties PartyStore, participants ParticipantStore, rec Recommender, pub Publisher, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		parties:      parties,
		participants: participants,
		recommender:  rec,
		publisher:    pub,
		log:          logger,
	}
}

// SubmitResult is the outcome of one answers submission.
type SubmitResult struct {
	Accepted bool                    `json:"accepted"`
	AllDone  bool                    `json:"all_done"`
	Status   string                  `json:"status"`
	Degraded bool                    `json:"degraded,omitempty"`
	Results  []models.Recommendation `json:"results,omitempty"`
}

// SubmitAnswers records a participant's answers and, when this submission
// completes the barrier, drives the party to completion.
//
// Resubmission overwrites the stored answers and never double-counts the
// participant. Submitting against an already complete party is an
// idempotent no-op that returns the stored results.
func (c *Coordinator) SubmitAnswers(ctx context.Context, code, participantID string, answers []models.Answer) (SubmitResult, error) {
	if len(answers) == 0 {
		return SubmitResult{}, ErrAnswersRequired
	}

	party, err := c.getParty(ctx, code)
	if err != nil {
		return SubmitResult{}, err
	}

	switch party.Status {
	case models.PartyComplete:
		// Already finished: report the stored outcome, run nothing.
		return SubmitResult{
			Accepted: true,
			AllDone:  true,
			Status:   models.PartyComplete,
			Degraded: party.Degraded(),
			Results:  party.Results,
		}, nil
	case models.PartyWaiting:
		return SubmitResult{}, ErrQuizNotStarted
	}

	p, err := c.participants.Get(ctx, participantID)
	if err != nil || p.PartyID != party.ID {
		return SubmitResult{}, ErrParticipantNotFound
	}

	// Atomic per-participant write: answers and is_done land together.
	if err := c.participants.SubmitAnswers(ctx, party.ID, participantID, answers); err != nil {
		return SubmitResult{}, fmt.Errorf("store answers: %w", err)
	}

	// Re-read the whole roster and evaluate the barrier over it.
	roster, err := c.participants.ListByParty(ctx, party.ID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("list participants: %w", err)
	}
	for _, member := range roster {
		if !member.IsDone {
			return SubmitResult{Accepted: true, AllDone: false, Status: party.Status}, nil
		}
	}

	// Barrier satisfied. Exactly one concurrent submitter wins the
	// conditional status flip; everyone else treats the party as handled.
	won, err := c.parties.BeginCompletion(ctx, party.ID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("status transition: %w", err)
	}
	if !won {
		metrics.CompletionTransitions.WithLabelValues("lost").Inc()
		return c.reportCompleted(ctx, code)
	}
	metrics.CompletionTransitions.WithLabelValues("won").Inc()

	results, degraded := c.runPipeline(ctx, party, roster)
	c.publisher.Publish(party.Code, models.PartyComplete)

	return SubmitResult{
		Accepted: true,
		AllDone:  true,
		Status:   models.PartyComplete,
		Degraded: degraded,
		Results:  results,
	}, nil
}

// runPipeline executes aggregate → rank → explain for the winner of the
// status flip and persists the results. The status has already flipped, so
// failures here leave the party complete without results — the degraded
// terminal state, which only the explicit Repair operation may retry.
func (c *Coordinator) runPipeline(ctx context.Context, party models.Party, roster []models.Participant) (results []models.Recommendation, degraded bool) {
	results, err := c.recommender.Recommend(ctx, membersOf(roster))
	if err != nil {
		metrics.PipelineFailures.WithLabelValues(stageOf(err)).Inc()
		metrics.DegradedCompletions.Inc()
		c.log.Error("recommendation pipeline failed after status flip",
			zap.String("party_code", party.Code),
			zap.String("stage", stageOf(err)),
			zap.Error(err))
		return nil, true
	}
	if len(results) == 0 {
		// Nothing above threshold: a valid terminal outcome, but the party
		// ends complete without results and is flagged as degraded.
		metrics.DegradedCompletions.Inc()
		c.log.Warn("no corpus items above similarity threshold",
			zap.String("party_code", party.Code))
		return nil, true
	}

	if _, err := c.parties.StoreResults(ctx, party.ID, results); err != nil {
		metrics.PipelineFailures.WithLabelValues("persist").Inc()
		metrics.DegradedCompletions.Inc()
		c.log.Error("failed to persist results",
			zap.String("party_code", party.Code),
			zap.Error(err))
		return nil, true
	}
	return results, false
}

// reportCompleted is the race-loser path: read back whatever the winner has
// (or will have) persisted and report completion.
func (c *Coordinator) reportCompleted(ctx context.Context, code string) (SubmitResult, error) {
	party, err := c.getParty(ctx, code)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		Accepted: true,
		AllDone:  true,
		Status:   models.PartyComplete,
		Degraded: party.Degraded(),
		Results:  party.Results,
	}, nil
}

// StatusInfo is the polling view of a party.
type StatusInfo struct {
	Code     string                  `json:"code"`
	Status   string                  `json:"status"`
	Ready    bool                    `json:"ready"`
	Degraded bool                    `json:"degraded,omitempty"`
	Results  []models.Recommendation `json:"results,omitempty"`
}

// Status returns the party's status, distinguishing "complete with results"
// from the degraded "complete without".
func (c *Coordinator) Status(ctx context.Context, code string) (StatusInfo, error) {
	party, err := c.getParty(ctx, code)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		Code:     party.Code,
		Status:   party.Status,
		Ready:    party.Status == models.PartyComplete && len(party.Results) > 0,
		Degraded: party.Degraded(),
		Results:  party.Results,
	}, nil
}

// Repair re-runs the recommendation pipeline for a party stuck in the
// degraded complete-without-results state. It is the explicit entry point
// for that condition; nothing retries it automatically. The results write
// is conditional on results still being absent, so concurrent repairs
// persist once.
func (c *Coordinator) Repair(ctx context.Context, code string) ([]models.Recommendation, error) {
	party, err := c.getParty(ctx, code)
	if err != nil {
		return nil, err
	}
	if !party.Degraded() {
		return nil, ErrNotDegraded
	}

	roster, err := c.participants.ListByParty(ctx, party.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	results, err := c.recommender.Recommend(ctx, membersOf(roster))
	if err != nil {
		return nil, &UpstreamError{Stage: stageOf(err), Err: err}
	}
	if len(results) == 0 {
		return []models.Recommendation{}, nil
	}

	stored, err := c.parties.StoreResults(ctx, party.ID, results)
	if err != nil {
		return nil, &UpstreamError{Stage: "persist", Err: err}
	}
	if !stored {
		// A concurrent repair got there first; serve what it wrote.
		return c.storedResults(ctx, code)
	}
	c.publisher.Publish(party.Code, models.PartyComplete)
	return results, nil
}

func (c *Coordinator) storedResults(ctx context.Context, code string) ([]models.Recommendation, error) {
	party, err := c.getParty(ctx, code)
	if err != nil {
		return nil, err
	}
	return party.Results, nil
}

func (c *Coordinator) getParty(ctx context.Context, code string) (models.Party, error) {
	party, err := c.parties.GetByCode(ctx, code)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Party{}, ErrPartyNotFound
	}
	if err != nil {
		return models.Party{}, fmt.Errorf("load party: %w", err)
	}
	return party, nil
}

// membersOf converts the roster into pipeline input, ordered by join time
// so the aggregated prompt is deterministic for a fixed roster. Spectators
// (done without answers) do not contribute preferences.
func membersOf(roster []models.Participant) []recommend.MemberPreferences {
	sorted := make([]models.Participant, len(roster))
	copy(sorted, roster)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	members := make([]recommend.MemberPreferences, 0, len(sorted))
	for _, p := range sorted {
		if len(p.Answers) == 0 {
			continue
		}
		members = append(members, recommend.MemberPreferences{
			Name:    p.Name,
			Answers: p.Answers,
		})
	}
	return members
}

// stageOf extracts the failing pipeline stage from a wrapped error.
func stageOf(err error) string {
	msg := err.Error()
	for _, stage := range []string{"aggregate", "rank", "explain"} {
		if strings.HasPrefix(msg, stage) {
			return stage
		}
	}
	return "pipeline"
}
