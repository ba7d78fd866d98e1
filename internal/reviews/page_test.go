package reviews

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"avisio/api/internal/annotate"
	"avisio/api/internal/gateway"
)

type fakeSource struct {
	mu          sync.Mutex
	reviews     []gateway.RatedReview
	reviewsErr  error
	votes       []int64
	votesErr    error
	submitErr   error
	fetchCalls  int
	votesCalls  int
	submitCalls int
	submitGate  chan struct{}
	fetchGate   chan struct{} // blocks the first fetch only
}

func (f *fakeSource) FetchReviews(ctx context.Context, _ Scope, _ Viewer) ([]gateway.RatedReview, error) {
	f.mu.Lock()
	f.fetchCalls++
	call := f.fetchCalls
	gate := f.fetchGate
	if f.reviewsErr != nil {
		f.mu.Unlock()
		return nil, f.reviewsErr
	}
	out := make([]gateway.RatedReview, len(f.reviews))
	copy(out, f.reviews)
	f.mu.Unlock()

	if gate != nil && call == 1 {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeSource) FetchVotes(context.Context, Viewer) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votesCalls++
	if f.votesErr != nil {
		return nil, f.votesErr
	}
	return f.votes, nil
}

func (f *fakeSource) SubmitVote(ctx context.Context, _ Viewer, _ int64, _ bool) error {
	f.mu.Lock()
	f.submitCalls++
	gate := f.submitGate
	err := f.submitErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func ratedReview(id, userID int64, votes int) gateway.RatedReview {
	return gateway.RatedReview{
		Review: gateway.Review{
			ReviewID:   id,
			UserID:     userID,
			BusinessID: 7,
			Rating:     4,
			ReviewText: "text",
			CreatedAt:  time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		VotesCount: votes,
	}
}

func viewerA() Viewer {
	return Viewer{UserID: 1, Username: "a", Role: "user", Token: "tok-a"}
}

func TestLoadMergesVoteOwnership(t *testing.T) {
	src := &fakeSource{
		reviews: []gateway.RatedReview{ratedReview(1, 1, 2), ratedReview(2, 2, 0)},
		votes:   []int64{2},
	}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := page.Snapshot()
	if len(snap.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(snap.Reviews))
	}
	if snap.Reviews[0].ViewerHasVoted {
		t.Error("viewer should not own a vote on review 1")
	}
	if !snap.Reviews[1].ViewerHasVoted {
		t.Error("viewer should own a vote on review 2")
	}
}

func TestLoadAnonymousSkipsVoteHistory(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(1, 1, 2)}}
	page := NewPage(BusinessScope(7), Viewer{}, src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if src.votesCalls != 0 {
		t.Errorf("anonymous load should not fetch vote history, got %d calls", src.votesCalls)
	}
	if page.Snapshot().Reviews[0].ViewerHasVoted {
		t.Error("anonymous viewer can never own a vote")
	}
}

func TestLoadDegradesWhenVoteHistoryFails(t *testing.T) {
	src := &fakeSource{
		reviews:  []gateway.RatedReview{ratedReview(1, 2, 5)},
		votesErr: errors.New("votes endpoint down"),
	}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() should not fail when only vote history fails, got %v", err)
	}
	snap := page.Snapshot()
	if len(snap.Reviews) != 1 || snap.Reviews[0].ViewerHasVoted {
		t.Errorf("expected unannotated review list, got %+v", snap.Reviews)
	}
}

func TestLoadFetchFailure(t *testing.T) {
	src := &fakeSource{reviewsErr: errors.New("connection refused")}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	err := page.Load(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Message != "Failed to fetch reviews." {
		t.Errorf("unexpected user-facing message: %q", fetchErr.Message)
	}
}

func TestConcurrentLoadsKeepNewestBaseline(t *testing.T) {
	src := &fakeSource{
		reviews:   []gateway.RatedReview{ratedReview(1, 2, 5)},
		fetchGate: make(chan struct{}),
	}
	page := NewPage(BusinessScope(7), Viewer{}, src, nil)
	defer page.Close()

	// First load stalls inside the fetch.
	done := make(chan error, 1)
	go func() { done <- page.Load(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for {
		src.mu.Lock()
		started := src.fetchCalls == 1
		src.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	// A second load completes against newer backend state.
	src.mu.Lock()
	src.reviews = []gateway.RatedReview{ratedReview(1, 2, 9)}
	src.mu.Unlock()
	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	close(src.fetchGate)
	if err := <-done; err != nil {
		t.Fatalf("stalled Load() error = %v", err)
	}

	snap := page.Snapshot()
	if snap.Reviews[0].VotesCount != 9 {
		t.Fatalf("stale load overwrote the newer baseline: votes = %d", snap.Reviews[0].VotesCount)
	}
}

func TestVoteOptimisticThenConfirmed(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(2, 2, 3)}}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(2, DirectionAdd); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}

	// Optimistic state is visible before the network round trip completes.
	snap := page.Snapshot()
	if snap.Reviews[0].VotesCount != 4 || !snap.Reviews[0].ViewerHasVoted {
		t.Errorf("expected optimistic count 4 with ownership, got %+v", snap.Reviews[0])
	}

	page.Flush()
	snap = page.Snapshot()
	if snap.Reviews[0].VotesCount != 4 {
		t.Errorf("confirmed vote should keep optimistic count, got %d", snap.Reviews[0].VotesCount)
	}
	if src.fetchCalls != 1 {
		t.Errorf("confirmed vote must not trigger a reload, fetch calls = %d", src.fetchCalls)
	}
	if len(snap.Notices) != 0 {
		t.Errorf("confirmed vote should not queue notices: %+v", snap.Notices)
	}
}

func TestVoteRollbackOnFailure(t *testing.T) {
	src := &fakeSource{
		reviews:   []gateway.RatedReview{ratedReview(2, 2, 3)},
		submitErr: errors.New("backend rejected vote"),
	}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(2, DirectionAdd); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}

	snap := page.Snapshot()
	if snap.Reviews[0].VotesCount != 4 {
		t.Fatalf("expected optimistic count 4, got %d", snap.Reviews[0].VotesCount)
	}

	page.Flush()
	snap = page.Snapshot()
	// The reload re-established the server-confirmed baseline.
	if snap.Reviews[0].VotesCount != 3 || snap.Reviews[0].ViewerHasVoted {
		t.Errorf("expected rollback to count 3 without ownership, got %+v", snap.Reviews[0])
	}
	if len(snap.Notices) == 0 {
		t.Error("failed vote should surface a notice")
	}
	if src.fetchCalls != 2 {
		t.Errorf("failed vote should reload exactly once, fetch calls = %d", src.fetchCalls)
	}
}

func TestVoteRemoveClampsAtZero(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(2, 2, 0)}}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(2, DirectionRemove); err != nil {
		t.Fatalf("Vote() error = %v", err)
	}
	page.Flush()

	if got := page.Snapshot().Reviews[0].VotesCount; got != 0 {
		t.Errorf("vote count must never go negative, got %d", got)
	}
}

func TestVoteRejectsSelfVote(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(1, 1, 3)}}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, direction := range []Direction{DirectionAdd, DirectionRemove} {
		if err := page.Vote(1, direction); !errors.Is(err, ErrSelfVote) {
			t.Errorf("Vote(own review, %s) = %v, want ErrSelfVote", direction, err)
		}
	}
	if src.submitCalls != 0 {
		t.Errorf("self-vote must be rejected before any network call, submits = %d", src.submitCalls)
	}
}

func TestVoteRejectsAnonymous(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(2, 2, 3)}}
	page := NewPage(BusinessScope(7), Viewer{}, src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(2, DirectionAdd); !errors.Is(err, ErrAuthMissing) {
		t.Errorf("anonymous Vote() = %v, want ErrAuthMissing", err)
	}
}

func TestVoteRejectsUnknownReview(t *testing.T) {
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(2, 2, 3)}}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(99, DirectionAdd); !errors.Is(err, ErrUnknownReview) {
		t.Errorf("Vote(unknown) = %v, want ErrUnknownReview", err)
	}
}

func TestVoteRejectsWhileInFlight(t *testing.T) {
	src := &fakeSource{
		reviews:    []gateway.RatedReview{ratedReview(2, 2, 3)},
		submitGate: make(chan struct{}),
	}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := page.Vote(2, DirectionAdd); err != nil {
		t.Fatalf("first Vote() error = %v", err)
	}
	if err := page.Vote(2, DirectionRemove); !errors.Is(err, ErrVoteInFlight) {
		t.Errorf("second Vote() = %v, want ErrVoteInFlight", err)
	}
	close(src.submitGate)
	page.Flush()

	// Once settled, further votes are accepted again.
	if err := page.Vote(2, DirectionRemove); err != nil {
		t.Errorf("Vote() after settle = %v", err)
	}
	page.Flush()
}

func TestSnapshotMergesAnnotationLabels(t *testing.T) {
	rude := ratedReview(1, 2, 0)
	rude.Review.ReviewText = "rude"
	polite := ratedReview(2, 3, 0)
	polite.Review.ReviewText = "polite"
	src := &fakeSource{reviews: []gateway.RatedReview{rude, polite}}
	classifier := stubClassifier{answers: map[string]string{"rude": "Offensive", "polite": "Not Offensive"}}
	ann := annotate.New(annotate.Moderation, classifier, time.Second)
	page := NewPage(AdminScope(), viewerA(), src, ann)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	page.Flush()

	snap := page.Snapshot()
	if snap.Reviews[0].Label != "offensive" || snap.Reviews[1].Label != "not offensive" {
		t.Errorf("unexpected labels: %q, %q", snap.Reviews[0].Label, snap.Reviews[1].Label)
	}
	for _, v := range snap.Reviews {
		if v.IsAnnotating {
			t.Errorf("review %d should be settled", v.Review.ReviewID)
		}
	}
}

// stubClassifier answers by review text.
type stubClassifier struct {
	answers map[string]string
}

func (s stubClassifier) Classify(_ context.Context, _, text string) (string, error) {
	answer, ok := s.answers[text]
	if !ok {
		return "", errors.New("no canned answer for " + text)
	}
	return answer, nil
}

func TestEndToEndBusinessScenario(t *testing.T) {
	// Business 7 has r1 by user A and r2 by user B; the viewer is user A.
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(1, 1, 0), ratedReview(2, 2, 2)}}
	page := NewPage(BusinessScope(7), viewerA(), src, nil)
	defer page.Close()

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snap := page.Snapshot()
	if len(snap.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(snap.Reviews))
	}
	if snap.Reviews[1].ViewerHasVoted {
		t.Fatal("viewer has not voted on r2 yet")
	}

	if err := page.Vote(1, DirectionAdd); !errors.Is(err, ErrSelfVote) {
		t.Fatalf("self-vote on r1 = %v, want ErrSelfVote", err)
	}

	if err := page.Vote(2, DirectionAdd); err != nil {
		t.Fatalf("Vote(r2) error = %v", err)
	}
	page.Flush()

	snap = page.Snapshot()
	if snap.Reviews[1].VotesCount != 3 || !snap.Reviews[1].ViewerHasVoted {
		t.Errorf("expected confirmed optimistic state on r2, got %+v", snap.Reviews[1])
	}
}

func TestParseDirection(t *testing.T) {
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for invalid direction")
	}
	if d, err := ParseDirection("add"); err != nil || d != DirectionAdd {
		t.Errorf("ParseDirection(add) = %v, %v", d, err)
	}
	if d, err := ParseDirection("remove"); err != nil || d != DirectionRemove {
		t.Errorf("ParseDirection(remove) = %v, %v", d, err)
	}
}

func TestRegistryReusesAndDropsPages(t *testing.T) {
	registry := NewRegistry(time.Minute)
	src := &fakeSource{reviews: []gateway.RatedReview{ratedReview(1, 2, 0)}}

	build := func() *Page { return NewPage(BusinessScope(7), viewerA(), src, nil) }
	first := registry.Get("sess-1", BusinessScope(7), build)
	second := registry.Get("sess-1", BusinessScope(7), build)
	if first != second {
		t.Error("same session and scope should reuse the page")
	}

	other := registry.Get("sess-2", BusinessScope(7), build)
	if other == first {
		t.Error("different sessions must not share pages")
	}

	registry.Drop("sess-1", BusinessScope(7))
	rebuilt := registry.Get("sess-1", BusinessScope(7), build)
	if rebuilt == first {
		t.Error("dropped page should be rebuilt")
	}
}
