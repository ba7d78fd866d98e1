// Package annotate drives the per-review AI labeling pipeline.
//
// Each page view owns one Annotator. A review id moves through
// Unprocessed -> Processing -> Labeled | Failed, and both Labeled and Failed
// are terminal for the lifetime of the annotator: once an id has an entry it
// is never dispatched again, which keeps re-renders and list reloads from
// multiplying classification calls.
package annotate

import (
	"context"
	"sync"
	"time"
)

type State int

const (
	StateUnprocessed State = iota
	StateProcessing
	StateLabeled
	StateFailed
)

// LabelUnknown is the terminal label for items whose classification failed.
const LabelUnknown = "unknown"

// Classifier produces a free-text label for one review. Implementations are
// expected to answer with one of the ruleset's two labels, but callers must
// normalize whatever comes back.
type Classifier interface {
	Classify(ctx context.Context, title, text string) (string, error)
}

// Item is the part of a review the classifier sees.
type Item struct {
	ID    int64
	Title string
	Text  string
}

type entry struct {
	state State
	label string
}

type Annotator struct {
	rules    Ruleset
	classify Classifier
	timeout  time.Duration

	mu      sync.Mutex
	entries map[int64]*entry
	wg      sync.WaitGroup
}

func New(rules Ruleset, classifier Classifier, timeout time.Duration) *Annotator {
	return &Annotator{
		rules:    rules,
		classify: classifier,
		timeout:  timeout,
		entries:  make(map[int64]*entry),
	}
}

// Process dispatches a classification for every item that has no entry yet.
// Eligible items run concurrently and resolve independently; items already
// processing, labeled, or failed are skipped. The calls are bound to ctx, so
// cancelling it (page eviction) abandons whatever is still in flight.
func (a *Annotator) Process(ctx context.Context, items []Item) {
	for _, item := range items {
		a.mu.Lock()
		if _, seen := a.entries[item.ID]; seen {
			a.mu.Unlock()
			continue
		}
		e := &entry{state: StateProcessing}
		a.entries[item.ID] = e
		a.mu.Unlock()

		a.wg.Add(1)
		go a.run(ctx, item, e)
	}
}

func (a *Annotator) run(ctx context.Context, item Item, e *entry) {
	defer a.wg.Done()

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.classify.Classify(callCtx, item.Title, item.Text)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entries[item.ID] != e {
		// Forgotten (and possibly re-dispatched for edited text) while this
		// call was in flight. The result belongs to stale text; drop it.
		return
	}
	if err != nil {
		e.state = StateFailed
		e.label = LabelUnknown
		return
	}
	e.state = StateLabeled
	e.label = a.rules.Decide(Normalize(raw))
}

// Lookup returns the resolved label and state for a review id. An id with no
// entry is Unprocessed (rendered as pending).
func (a *Annotator) Lookup(id int64) (string, State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return "", StateUnprocessed
	}
	return e.label, e.state
}

// Forget drops the entry for an id so the next Process pass classifies it
// again. Used when the underlying review text changes; a classification
// still in flight for the old text resolves into nothing.
func (a *Annotator) Forget(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, id)
}

// Wait blocks until every dispatched classification has resolved.
func (a *Annotator) Wait() {
	a.wg.Wait()
}
