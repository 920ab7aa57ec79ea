package completion_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/recommend"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// memParties is an in-memory PartyStore with the same conditional-update
// semantics as the Mongo implementation.
type memParties struct {
	mu          sync.Mutex
	party       models.Party
	transitions int32 // successful in_progress -> complete flips
}

func (s *memParties) GetByCode(_ context.Context, code string) (models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code != s.party.Code {
		return models.Party{}, mongo.ErrNoDocuments
	}
	return s.party, nil
}

func (s *memParties) BeginCompletion(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.party.ID != id || s.party.Status != models.PartyInProgress {
		return false, nil
	}
	s.party.Status = models.PartyComplete
	atomic.AddInt32(&s.transitions, 1)
	return true, nil
}

func (s *memParties) StoreResults(_ context.Context, id primitive.ObjectID, results []models.Recommendation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.party.ID != id || s.party.Status != models.PartyComplete || len(s.party.Results) > 0 {
		return false, nil
	}
	s.party.Results = results
	return true, nil
}

// memParticipants is an in-memory ParticipantStore.
type memParticipants struct {
	mu   sync.Mutex
	byID map[string]models.Participant
}

func (s *memParticipants) Get(_ context.Context, id string) (models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Participant{}, mongo.ErrNoDocuments
	}
	return p, nil
}

func (s *memParticipants) SubmitAnswers(_ context.Context, partyID primitive.ObjectID, id string, answers []models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.PartyID != partyID {
		return mongo.ErrNoDocuments
	}
	p.Answers = answers
	p.IsDone = true
	s.byID[id] = p
	return nil
}

func (s *memParticipants) ListByParty(_ context.Context, partyID primitive.ObjectID) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, p := range s.byID {
		if p.PartyID == partyID {
			out = append(out, p)
		}
	}
	return out, nil
}

// countingRecommender counts pipeline executions — the instrumented
// transition counter for the exactly-once property.
type countingRecommender struct {
	calls int32
	recs  []models.Recommendation
	err   error
}

func (r *countingRecommender) Recommend(_ context.Context, _ []recommend.MemberPreferences) ([]models.Recommendation, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return nil, r.err
	}
	return r.recs, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(code, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, code+":"+status)
}

func sampleResults() []models.Recommendation {
	return []models.Recommendation{
		{MovieID: 2, Title: "The Sea Beast", Description: "monster hunting", Similarity: 0.91, Explanation: "Adventure for everyone."},
		{MovieID: 5, Title: "Enola Holmes", Description: "detective adventure", Similarity: 0.84},
		{MovieID: 9, Title: "Red Notice", Description: "heist caper", Similarity: 0.77},
	}
}

// newFixture builds a coordinator over an in_progress party with n
// participants, none done yet.
func newFixture(n int, rec *countingRecommender) (*completion.Coordinator, *memParties, *memParticipants, *recordingPublisher) {
	partyID := primitive.NewObjectID()
	parties := &memParties{party: models.Party{
		ID:     partyID,
		Code:   "AB12CD",
		Name:   "Friday Night",
		Status: models.PartyInProgress,
	}}
	participants := &memParticipants{byID: make(map[string]models.Participant)}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		participants.byID[id] = models.Participant{
			ID:       id,
			PartyID:  partyID,
			Name:     fmt.Sprintf("Member %d", i),
			JoinedAt: time.Unix(int64(1000+i), 0),
		}
	}
	pub := &recordingPublisher{}
	coord := completion.NewCoordinator(parties, participants, rec, pub, zap.NewNop())
	return coord, parties, participants, pub
}

func answers() []models.Answer {
	return []models.Answer{
		{Question: "What's your mood for tonight?", Answer: "Light & uplifting"},
		{Question: "What's your ideal movie length?", Answer: "Under 90 minutes"},
	}
}

func TestSubmitAnswers_TwoParticipantScenario(t *testing.T) {
	rec := &countingRecommender{recs: sampleResults()}
	coord, parties, _, pub := newFixture(2, rec)
	ctx := context.Background()

	res, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers())
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if !res.Accepted || res.AllDone {
		t.Errorf("first submit: got %+v, want accepted and not all done", res)
	}

	res, err = coord.SubmitAnswers(ctx, "AB12CD", "p1", answers())
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if !res.Accepted || !res.AllDone || res.Status != models.PartyComplete {
		t.Fatalf("second submit: got %+v", res)
	}
	if len(res.Results) == 0 || len(res.Results) > 3 {
		t.Fatalf("results length: got %d, want 1..3", len(res.Results))
	}
	if res.Results[0].Explanation == "" {
		t.Error("top result must carry a non-empty explanation")
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Similarity > res.Results[i-1].Similarity {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	if got := atomic.LoadInt32(&parties.transitions); got != 1 {
		t.Errorf("transitions: got %d, want 1", got)
	}
	if got := atomic.LoadInt32(&rec.calls); got != 1 {
		t.Errorf("pipeline executions: got %d, want 1", got)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 || pub.events[0] != "AB12CD:complete" {
		t.Errorf("published events: got %v", pub.events)
	}
}

func TestSubmitAnswers_BarrierFiresExactlyOnceUnderRace(t *testing.T) {
	const k = 8
	rec := &countingRecommender{recs: sampleResults()}
	coord, parties, _, _ := newFixture(k, rec)

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			res, err := coord.SubmitAnswers(context.Background(), "AB12CD", id, answers())
			if err != nil {
				errs <- err
				return
			}
			if !res.Accepted {
				errs <- fmt.Errorf("submission by %s not accepted", id)
			}
		}(fmt.Sprintf("p%d", i))
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent submit: %v", err)
	}

	if got := atomic.LoadInt32(&parties.transitions); got != 1 {
		t.Errorf("transitions: got %d, want exactly 1", got)
	}
	if got := atomic.LoadInt32(&rec.calls); got != 1 {
		t.Errorf("pipeline executions: got %d, want exactly 1", got)
	}
	if parties.party.Status != models.PartyComplete {
		t.Errorf("final status: got %q", parties.party.Status)
	}
	if len(parties.party.Results) != 3 {
		t.Errorf("persisted results: got %d, want 3", len(parties.party.Results))
	}
}

func TestSubmitAnswers_ResubmissionOverwrites(t *testing.T) {
	rec := &countingRecommender{recs: sampleResults()}
	coord, _, participants, _ := newFixture(2, rec)
	ctx := context.Background()

	first := []models.Answer{{Question: "mood?", Answer: "dark"}}
	second := []models.Answer{{Question: "mood?", Answer: "uplifting"}}

	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", first); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	res, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", second)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if res.AllDone {
		t.Error("resubmission must not double-count the participant in the barrier")
	}

	p, _ := participants.Get(ctx, "p0")
	if len(p.Answers) != 1 || p.Answers[0].Answer != "uplifting" {
		t.Errorf("stored answers: got %+v, want the most recent submission", p.Answers)
	}
}

func TestSubmitAnswers_IdempotentOnCompleteParty(t *testing.T) {
	rec := &countingRecommender{recs: sampleResults()}
	coord, _, _, _ := newFixture(1, rec)
	ctx := context.Background()

	res, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers())
	if err != nil || res.Status != models.PartyComplete {
		t.Fatalf("completing submit: res=%+v err=%v", res, err)
	}

	again, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers())
	if err != nil {
		t.Fatalf("repeat submit failed: %v", err)
	}
	if !again.AllDone || len(again.Results) != 3 {
		t.Errorf("repeat submit: got %+v, want stored results", again)
	}
	if got := atomic.LoadInt32(&rec.calls); got != 1 {
		t.Errorf("pipeline executions after repeat: got %d, want 1", got)
	}
}

func TestSubmitAnswers_Validation(t *testing.T) {
	rec := &countingRecommender{recs: sampleResults()}
	coord, parties, participants, _ := newFixture(2, rec)
	ctx := context.Background()

	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", nil); !errors.Is(err, completion.ErrAnswersRequired) {
		t.Errorf("empty answers: got %v", err)
	}
	if _, err := coord.SubmitAnswers(ctx, "ZZ99ZZ", "p0", answers()); !errors.Is(err, completion.ErrPartyNotFound) {
		t.Errorf("unknown party: got %v", err)
	}
	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "ghost", answers()); !errors.Is(err, completion.ErrParticipantNotFound) {
		t.Errorf("unknown participant: got %v", err)
	}

	// Participant belonging to another party is rejected.
	participants.mu.Lock()
	participants.byID["stranger"] = models.Participant{ID: "stranger", PartyID: primitive.NewObjectID()}
	participants.mu.Unlock()
	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "stranger", answers()); !errors.Is(err, completion.ErrParticipantNotFound) {
		t.Errorf("foreign participant: got %v", err)
	}

	parties.mu.Lock()
	parties.party.Status = models.PartyWaiting
	parties.mu.Unlock()
	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers()); !errors.Is(err, completion.ErrQuizNotStarted) {
		t.Errorf("waiting party: got %v", err)
	}
}

func TestSubmitAnswers_PipelineFailureLeavesDegradedComplete(t *testing.T) {
	rec := &countingRecommender{err: errors.New("aggregate: embeddings unavailable")}
	coord, parties, _, _ := newFixture(1, rec)
	ctx := context.Background()

	res, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Status != models.PartyComplete || !res.Degraded {
		t.Fatalf("expected degraded complete, got %+v", res)
	}
	if parties.party.Status != models.PartyComplete || len(parties.party.Results) != 0 {
		t.Errorf("store state: status=%q results=%d", parties.party.Status, len(parties.party.Results))
	}

	info, err := coord.Status(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if info.Ready || !info.Degraded {
		t.Errorf("Status: got %+v, want degraded and not ready", info)
	}
}

func TestSubmitAnswers_EmptyRankingIsDegradedTerminal(t *testing.T) {
	rec := &countingRecommender{recs: nil} // nothing above threshold
	coord, parties, _, _ := newFixture(1, rec)

	res, err := coord.SubmitAnswers(context.Background(), "AB12CD", "p0", answers())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Status != models.PartyComplete || !res.Degraded || len(res.Results) != 0 {
		t.Fatalf("expected complete with empty results, got %+v", res)
	}
	if got := atomic.LoadInt32(&parties.transitions); got != 1 {
		t.Errorf("transitions: got %d, want 1", got)
	}
}

func TestRepair_RecoversDegradedParty(t *testing.T) {
	rec := &countingRecommender{err: errors.New("rank: vector store down")}
	coord, parties, _, pub := newFixture(1, rec)
	ctx := context.Background()

	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Upstream recovers; the explicit repair runs the pipeline again.
	rec.err = nil
	rec.recs = sampleResults()

	results, err := coord.Repair(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("repaired results: got %d, want 3", len(results))
	}
	if len(parties.party.Results) != 3 {
		t.Errorf("persisted results after repair: got %d", len(parties.party.Results))
	}

	info, _ := coord.Status(ctx, "AB12CD")
	if !info.Ready || info.Degraded {
		t.Errorf("Status after repair: got %+v", info)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) == 0 || pub.events[len(pub.events)-1] != "AB12CD:complete" {
		t.Errorf("repair must publish completion, got %v", pub.events)
	}
}

func TestRepair_RejectsHealthyParty(t *testing.T) {
	rec := &countingRecommender{recs: sampleResults()}
	coord, _, _, _ := newFixture(1, rec)
	ctx := context.Background()

	if _, err := coord.Repair(ctx, "AB12CD"); !errors.Is(err, completion.ErrNotDegraded) {
		t.Errorf("repair of in_progress party: got %v", err)
	}

	if _, err := coord.SubmitAnswers(ctx, "AB12CD", "p0", answers()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := coord.Repair(ctx, "AB12CD"); !errors.Is(err, completion.ErrNotDegraded) {
		t.Errorf("repair of healthy complete party: got %v", err)
	}
}
