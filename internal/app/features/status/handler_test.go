package status_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/dalemusser/moviematch/internal/app/features/status"
	participantstore "github.com/dalemusser/moviematch/internal/app/store/participants"
	partystore "github.com/dalemusser/moviematch/internal/app/store/parties"
	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/notify"
	"github.com/dalemusser/moviematch/internal/app/system/recommend"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/dalemusser/moviematch/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type stubRecommender struct {
	recs []models.Recommendation
	err  error
}

func (s *stubRecommender) Recommend(_ context.Context, _ []recommend.MemberPreferences) ([]models.Recommendation, error) {
	return s.recs, s.err
}

func newRouter(t *testing.T, db *mongo.Database, rec *stubRecommender) chi.Router {
	t.Helper()
	coord := completion.NewCoordinator(
		partystore.New(db),
		participantstore.New(db),
		rec,
		notify.NewHub(zap.NewNop()),
		zap.NewNop(),
	)
	r := chi.NewRouter()
	status.Register(r, status.NewHandler(coord, zap.NewNop()))
	return r
}

type statusResponse struct {
	Code     string `json:"code"`
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Degraded bool   `json:"degraded"`
	Results  []struct {
		MovieID int64  `json:"movie_id"`
		Title   string `json:"title"`
	} `json:"results"`
}

func get(t *testing.T, r chi.Router, target string) (int, statusResponse) {
	t.Helper()
	req := testutil.NewRequest("GET", target)
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	var resp statusResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec.Code, resp
}

func TestStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	r := newRouter(t, db, &stubRecommender{})

	code, resp := get(t, r, "/AB12CD/status")
	if code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if resp.Status != "in_progress" || resp.Ready {
		t.Errorf("response: got %+v", resp)
	}

	code, _ = get(t, r, "/ZZ99XX/status")
	if code != http.StatusNotFound {
		t.Errorf("unknown party: got %d, want 404", code)
	}
}

func TestResults_NotReadyConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	r := newRouter(t, db, &stubRecommender{})

	code, _ := get(t, r, "/AB12CD/results")
	if code != http.StatusConflict {
		t.Errorf("results before completion: got %d, want 409", code)
	}
}

func TestResults_CompleteParty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	stores := partystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	party := fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	if _, err := stores.BeginCompletion(ctx, party.ID); err != nil {
		t.Fatalf("BeginCompletion failed: %v", err)
	}
	if _, err := stores.StoreResults(ctx, party.ID, []models.Recommendation{
		{MovieID: 2, Title: "The Sea Beast", Similarity: 0.9},
	}); err != nil {
		t.Fatalf("StoreResults failed: %v", err)
	}

	r := newRouter(t, db, &stubRecommender{})
	code, resp := get(t, r, "/AB12CD/results")
	if code != http.StatusOK {
		t.Fatalf("results: got %d", code)
	}
	if !resp.Ready || len(resp.Results) != 1 || resp.Results[0].Title != "The Sea Beast" {
		t.Errorf("response: got %+v", resp)
	}
}

func TestResults_DegradedParty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	stores := partystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	party := fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	if _, err := stores.BeginCompletion(ctx, party.ID); err != nil {
		t.Fatalf("BeginCompletion failed: %v", err)
	}

	r := newRouter(t, db, &stubRecommender{})
	code, resp := get(t, r, "/AB12CD/results")
	if code != http.StatusOK {
		t.Fatalf("degraded results: got %d", code)
	}
	if resp.Ready || !resp.Degraded || len(resp.Results) != 0 {
		t.Errorf("degraded response: got %+v", resp)
	}
}

func TestRepair(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	stores := partystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	party := fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	fixtures.CreateParticipant(ctx, party.ID, "Ava", []models.Answer{{Question: "mood?", Answer: "fun"}})
	if _, err := stores.BeginCompletion(ctx, party.ID); err != nil {
		t.Fatalf("BeginCompletion failed: %v", err)
	}

	r := newRouter(t, db, &stubRecommender{recs: []models.Recommendation{
		{MovieID: 2, Title: "The Sea Beast", Similarity: 0.9},
	}})

	req := testutil.NewRequest("POST", "/AB12CD/repair")
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "The Sea Beast")

	// After repair the party is healthy; a second repair conflicts.
	req = testutil.NewRequest("POST", "/AB12CD/repair")
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusConflict)
}

func TestRepair_UpstreamFailureIsBadGateway(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	stores := partystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	party := fixtures.CreateParty(ctx, "AB12CD", "Movie Night", models.PartyInProgress)
	fixtures.CreateParticipant(ctx, party.ID, "Ava", []models.Answer{{Question: "mood?", Answer: "fun"}})
	if _, err := stores.BeginCompletion(ctx, party.ID); err != nil {
		t.Fatalf("BeginCompletion failed: %v", err)
	}

	r := newRouter(t, db, &stubRecommender{err: errors.New("rank: vector store down")})

	req := testutil.NewRequest("POST", "/AB12CD/repair")
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadGateway)
}
