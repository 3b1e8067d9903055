package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-kiosk-service/internal/catalog"
	"quiz-kiosk-service/internal/domain"
)

// Engine owns the quiz session state machine. All transitions are serialized
// behind one mutex; every completed transition broadcasts a snapshot to all
// subscribers (last-value-wins). Invalid intents are silent no-ops, never
// errors.
type Engine struct {
	loader catalog.Loader
	prefs  *PreferenceKeeper
	rnd    *rand.Rand

	mu          sync.RWMutex
	all         []domain.Question
	categories  []string
	state       domain.SessionState
	subscribers map[chan domain.SessionState]struct{}
	loadOnce    sync.Once
}

func NewEngine(loader catalog.Loader, prefs *PreferenceKeeper) *Engine {
	return &Engine{
		loader:      loader,
		prefs:       prefs,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		state:       domain.SessionState{IsLoading: true},
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
}

// Start kicks off the one-time catalog load in the background. The engine
// stays in its loading state until the load completes; a failed load leaves
// an empty catalog and therefore an empty category list.
func (e *Engine) Start(ctx context.Context) {
	e.loadOnce.Do(func() {
		go func() {
			questions := catalog.LoadBestEffort(ctx, e.loader)

			e.mu.Lock()
			e.all = questions
			e.categories = catalog.Categories(questions)
			e.state.IsLoading = false
			e.broadcastLocked()
			e.mu.Unlock()
		}()
	})
}

// State returns a snapshot of the current session.
func (e *Engine) State() domain.SessionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Categories returns the distinct category labels of the loaded catalog in
// first-occurrence order.
func (e *Engine) Categories() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.categories))
	copy(out, e.categories)
	return out
}

// BeginSession starts a fresh session for the given category: the matching
// questions are shuffled and the whole session state is replaced. Callable
// from any state; an unknown category yields an empty (never finished)
// session, which category lists derived from the catalog cannot produce.
func (e *Engine) BeginSession(category string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	questions := e.shuffled(catalog.FilterByCategory(e.all, category))
	e.state = domain.SessionState{
		Questions:        questions,
		CurrentIndex:     0,
		Score:            0,
		SelectedCategory: &category,
		IsLoading:        e.state.IsLoading,
	}
	e.broadcastLocked()
}

// SubmitAnswer records the answer for the current question. The first answer
// wins: repeated calls while feedback is showing are ignored. A correct
// answer increments the score by one; the running score is then persisted as
// a high-score candidate without blocking the transition.
func (e *Engine) SubmitAnswer(option string) {
	e.mu.Lock()

	if e.state.SelectedAnswer != nil {
		e.mu.Unlock()
		return
	}
	question := e.state.CurrentQuestion()
	if e.state.SelectedCategory == nil || question == nil {
		e.mu.Unlock()
		return
	}

	correct := option == question.Correct
	if correct {
		e.state.Score++
	}
	e.state.SelectedAnswer = &option
	e.state.IsAnswerCorrect = &correct
	e.state.ShowFeedback = true
	score := e.state.Score
	e.broadcastLocked()
	e.mu.Unlock()

	// Fire-and-forget: the store keeps the max, so a write landing after the
	// session moved on can never regress the persisted high score. Errors are
	// logged inside the keeper and not surfaced here.
	go func() {
		_ = e.prefs.SetHighScore(context.Background(), score)
	}()
}

// Advance moves to the next question, clearing the per-question feedback.
// Calling it before an answer was submitted simply skips the question (the
// auto-advance-on-timeout path). From a finished session it returns to the
// category list.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.SelectedCategory == nil {
		return
	}
	if e.state.Finished() {
		e.state.SelectedCategory = nil
		e.broadcastLocked()
		return
	}
	e.state.CurrentIndex++
	e.state.SelectedAnswer = nil
	e.state.IsAnswerCorrect = nil
	e.state.ShowFeedback = false
	e.broadcastLocked()
}

// ReturnToCategories abandons the active session, keeping its final score
// visible in the snapshot until the next BeginSession or Reset.
func (e *Engine) ReturnToCategories() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.SelectedCategory == nil {
		return
	}
	e.state.SelectedCategory = nil
	e.broadcastLocked()
}

// Reset forces the engine back to the empty no-session state. Used both for
// "play again" and, combined with clearing the user name, for logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = domain.SessionState{IsLoading: e.state.IsLoading}
	e.broadcastLocked()
}

// Subscribe returns a channel receiving session snapshots, starting with the
// current one. The caller must invoke cancel to avoid leaks.
func (e *Engine) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	initial := e.state
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked() {
	snap := e.state
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its stale snapshot so the newest wins.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// shuffled returns a Fisher-Yates permutation of a copy, leaving the catalog
// order untouched.
func (e *Engine) shuffled(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := len(out) - 1; i > 0; i-- {
		j := e.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
