package app

import (
	"context"
	"log"
	"sync"

	"quiz-kiosk-service/internal/domain"
)

// PreferenceStore abstracts durable storage for the three user scalars
// (in-memory, Redis, Postgres). Reads return the documented defaults when
// nothing has been written: "" / 0 / false. SetHighScore is monotonic-max:
// values lower than or equal to the persisted one are silently ignored.
type PreferenceStore interface {
	UserName(ctx context.Context) (string, error)
	SetUserName(ctx context.Context, name string) error
	HighScore(ctx context.Context) (int, error)
	SetHighScore(ctx context.Context, score int) error
	DarkTheme(ctx context.Context) (bool, error)
	SetDarkTheme(ctx context.Context, dark bool) error
}

// PreferenceKeeper layers observability over a PreferenceStore: every
// successful write broadcasts a fresh snapshot to all subscribers, and a new
// subscriber immediately receives the current snapshot. Delivery is
// at-least-once, last-value-wins.
type PreferenceKeeper struct {
	store PreferenceStore

	mu          sync.Mutex
	last        domain.Preferences
	subscribers map[chan domain.Preferences]struct{}
}

func NewPreferenceKeeper(ctx context.Context, store PreferenceStore) *PreferenceKeeper {
	k := &PreferenceKeeper{
		store:       store,
		subscribers: make(map[chan domain.Preferences]struct{}),
	}
	if snap, err := k.load(ctx); err == nil {
		k.last = snap
	} else {
		log.Printf("preferences initial read failed, starting from defaults: %v", err)
	}
	return k
}

// Snapshot returns the last known preference values.
func (k *PreferenceKeeper) Snapshot() domain.Preferences {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last
}

// SetUserName overwrites the stored display name unconditionally. An empty
// name logs the user out.
func (k *PreferenceKeeper) SetUserName(ctx context.Context, name string) error {
	if err := k.store.SetUserName(ctx, name); err != nil {
		log.Printf("persist user name failed: %v", err)
		return err
	}
	k.refresh(ctx)
	return nil
}

// SetHighScore asks the store to persist the score; the store keeps the max.
func (k *PreferenceKeeper) SetHighScore(ctx context.Context, score int) error {
	if err := k.store.SetHighScore(ctx, score); err != nil {
		log.Printf("persist high score failed: %v", err)
		return err
	}
	k.refresh(ctx)
	return nil
}

// SetDarkTheme overwrites the theme flag unconditionally.
func (k *PreferenceKeeper) SetDarkTheme(ctx context.Context, dark bool) error {
	if err := k.store.SetDarkTheme(ctx, dark); err != nil {
		log.Printf("persist theme failed: %v", err)
		return err
	}
	k.refresh(ctx)
	return nil
}

// Subscribe returns a channel that receives preference snapshots, starting
// with the current one. The caller must invoke cancel to avoid leaks.
func (k *PreferenceKeeper) Subscribe() (<-chan domain.Preferences, func()) {
	ch := make(chan domain.Preferences, 8)

	k.mu.Lock()
	k.subscribers[ch] = struct{}{}
	initial := k.last
	k.mu.Unlock()

	ch <- initial

	cancel := func() {
		k.mu.Lock()
		if _, ok := k.subscribers[ch]; ok {
			delete(k.subscribers, ch)
			close(ch)
		}
		k.mu.Unlock()
	}
	return ch, cancel
}

func (k *PreferenceKeeper) load(ctx context.Context) (domain.Preferences, error) {
	name, err := k.store.UserName(ctx)
	if err != nil {
		return domain.Preferences{}, err
	}
	score, err := k.store.HighScore(ctx)
	if err != nil {
		return domain.Preferences{}, err
	}
	dark, err := k.store.DarkTheme(ctx)
	if err != nil {
		return domain.Preferences{}, err
	}
	return domain.Preferences{UserName: name, HighScore: score, DarkTheme: dark}, nil
}

// refresh re-reads the store and broadcasts. On read failure subscribers keep
// the last known snapshot.
func (k *PreferenceKeeper) refresh(ctx context.Context) {
	snap, err := k.load(ctx)
	if err != nil {
		log.Printf("preferences re-read failed, keeping last snapshot: %v", err)
		return
	}

	k.mu.Lock()
	k.last = snap
	for ch := range k.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its stale value so the newest wins.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	k.mu.Unlock()
}
