package reviews

import (
	"context"
	"log"
	"sync"

	"avisio/api/internal/annotate"
	"avisio/api/internal/gateway"
)

type item struct {
	review         gateway.Review
	reply          *gateway.Reply
	votesCount     int
	viewerHasVoted bool
}

// Page is the state one page view owns: the review list, the viewer's vote
// ownership, outstanding vote submissions, and (on moderation/feedback pages)
// the annotator. A single mutex serializes all writers; background work is
// bound to the page's lifetime context and dies with it on Close.
type Page struct {
	scope  Scope
	viewer Viewer
	source Source
	ann    *annotate.Annotator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	items        []item
	loaded       bool
	loadSeq      int
	voteInFlight map[int64]bool
	notices      []Notice
}

// NewPage builds a page. The annotator may be nil; the public business page
// shows no AI labels.
func NewPage(scope Scope, viewer Viewer, source Source, ann *annotate.Annotator) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		scope:        scope,
		viewer:       viewer,
		source:       source,
		ann:          ann,
		ctx:          ctx,
		cancel:       cancel,
		voteInFlight: make(map[int64]bool),
	}
}

func (p *Page) Scope() Scope   { return p.scope }
func (p *Page) Viewer() Viewer { return p.viewer }

// Load fetches the scope's reviews and replaces the list wholesale. The
// viewer's vote history is merged in when available; its failure degrades to
// an unannotated list rather than failing the load. A 404 from the primary
// fetch was already normalized to an empty list by the source. Concurrent
// loads are sequenced: a load that was overtaken by a newer one discards its
// result instead of overwriting the newer baseline.
func (p *Page) Load(ctx context.Context) error {
	p.mu.Lock()
	p.loadSeq++
	seq := p.loadSeq
	p.mu.Unlock()

	fetched, err := p.source.FetchReviews(ctx, p.scope, p.viewer)
	if err != nil {
		return &FetchError{Message: "Failed to fetch reviews.", Err: err}
	}

	voted := make(map[int64]bool)
	if p.viewer.Authenticated() {
		ids, err := p.source.FetchVotes(ctx, p.viewer)
		if err != nil {
			log.Printf("vote history unavailable for user %d: %v", p.viewer.UserID, err)
		}
		for _, id := range ids {
			voted[id] = true
		}
	}

	items := make([]item, 0, len(fetched))
	for _, r := range fetched {
		items = append(items, item{
			review:         r.Review,
			reply:          r.Reply,
			votesCount:     r.VotesCount,
			viewerHasVoted: voted[r.Review.ReviewID],
		})
	}

	p.mu.Lock()
	if seq != p.loadSeq {
		p.mu.Unlock()
		return nil
	}
	p.items = items
	p.loaded = true
	p.mu.Unlock()

	if p.ann != nil {
		p.ann.Process(p.ctx, annotateItems(items))
	}
	return nil
}

// Loaded reports whether the page has completed at least one Load.
func (p *Page) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func annotateItems(items []item) []annotate.Item {
	out := make([]annotate.Item, 0, len(items))
	for _, it := range items {
		out = append(out, annotate.Item{
			ID:    it.review.ReviewID,
			Title: it.review.ReviewTitle,
			Text:  it.review.ReviewText,
		})
	}
	return out
}

// Vote applies the optimistic mutation and hands the submission to a
// background goroutine. Pre-flight rejections (no auth, self-vote, unknown
// review, vote already outstanding) happen before any network call.
func (p *Page) Vote(reviewID int64, direction Direction) error {
	if !p.viewer.Authenticated() {
		return ErrAuthMissing
	}

	p.mu.Lock()
	idx := -1
	for i := range p.items {
		if p.items[i].review.ReviewID == reviewID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return ErrUnknownReview
	}
	if p.items[idx].review.UserID == p.viewer.UserID {
		p.mu.Unlock()
		return ErrSelfVote
	}
	if p.voteInFlight[reviewID] {
		p.mu.Unlock()
		return ErrVoteInFlight
	}

	if direction == DirectionAdd {
		p.items[idx].votesCount++
	} else if p.items[idx].votesCount > 0 {
		p.items[idx].votesCount--
	}
	p.items[idx].viewerHasVoted = direction == DirectionAdd
	p.voteInFlight[reviewID] = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.reconcileVote(reviewID, direction)
	return nil
}

// reconcileVote submits the vote. Success leaves the optimistic state as the
// truth; failure discards it by reloading the whole scope, since the server
// state after a failed mutation is unknown.
func (p *Page) reconcileVote(reviewID int64, direction Direction) {
	defer p.wg.Done()

	err := p.source.SubmitVote(p.ctx, p.viewer, reviewID, direction == DirectionAdd)

	p.mu.Lock()
	delete(p.voteInFlight, reviewID)
	p.mu.Unlock()

	if err == nil {
		return
	}

	log.Printf("vote submit failed for review %d: %v", reviewID, err)
	p.pushNotice("error", "Your vote could not be saved and was rolled back.")
	if loadErr := p.Load(p.ctx); loadErr != nil {
		p.pushNotice("error", "Reviews could not be refreshed; displayed counts may be stale.")
	}
}

func (p *Page) pushNotice(level, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, Notice{Level: level, Message: message})
}

// Snapshot renders the current list, merging annotator results, and drains
// queued notices. Refreshing is set while vote reconciliations are pending.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	views := make([]View, 0, len(p.items))
	for _, it := range p.items {
		view := View{
			Review:         it.review,
			Reply:          it.reply,
			VotesCount:     it.votesCount,
			ViewerHasVoted: it.viewerHasVoted,
		}
		if p.ann != nil {
			view.Label, view.IsAnnotating = displayLabel(p.ann, it.review.ReviewID)
		}
		views = append(views, view)
	}

	notices := p.notices
	p.notices = nil

	return Snapshot{
		Reviews:    views,
		Refreshing: len(p.voteInFlight) > 0,
		Notices:    notices,
	}
}

func displayLabel(ann *annotate.Annotator, reviewID int64) (string, bool) {
	label, state := ann.Lookup(reviewID)
	switch state {
	case annotate.StateProcessing:
		return "pending", true
	case annotate.StateLabeled, annotate.StateFailed:
		return label, false
	default:
		return "pending", false
	}
}

// Invalidate drops the annotation for a review whose text changed. The next
// Load reclassifies it.
func (p *Page) Invalidate(reviewID int64) {
	if p.ann != nil {
		p.ann.Forget(reviewID)
	}
}

// Flush waits for outstanding vote reconciliations and annotations. Used by
// tests and Close.
func (p *Page) Flush() {
	p.wg.Wait()
	if p.ann != nil {
		p.ann.Wait()
	}
}

// Close cancels the page's background work and waits for it to drain.
func (p *Page) Close() {
	p.cancel()
	p.Flush()
}
