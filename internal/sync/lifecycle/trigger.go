// Package lifecycle bridges application lifecycle signals to the sync
// engine. A foreground transition (or regained connectivity) asks the
// engine to drain if anything is pending; the engine never polls.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// Handler receives lifecycle transitions. *sync.Engine implements it.
type Handler interface {
	HandleLifecycleEvent(ctx context.Context, foregrounded bool) (*syncpkg.Result, error)
}

// Event is a lifecycle transition.
type Event string

const (
	Foreground Event = "foreground"
	Background Event = "background"
	// Online means connectivity came back; it is handled like Foreground.
	Online Event = "online"
)

// Config holds trigger configuration.
type Config struct {
	// PassTimeout bounds a drain pass started by an event (default: 5 minutes).
	PassTimeout time.Duration
	// Buffer is how many events may wait while a pass runs (default: 4).
	Buffer int
}

// DefaultConfig returns default trigger configuration.
func DefaultConfig() Config {
	return Config{
		PassTimeout: 5 * time.Minute,
		Buffer:      4,
	}
}

// Trigger delivers events to a Handler from a single goroutine, so
// transitions are handled one at a time and in arrival order.
type Trigger struct {
	handler Handler
	timeout time.Duration
	events  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	isOnline  bool
}

// NewTrigger creates a Trigger. Call Start to begin delivering events.
func NewTrigger(h Handler, cfg Config) *Trigger {
	def := DefaultConfig()
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = def.PassTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	return &Trigger{
		handler:  h,
		timeout:  cfg.PassTimeout,
		events:   make(chan Event, cfg.Buffer),
		stopCh:   make(chan struct{}),
		isOnline: true,
	}
}

// Start launches the delivery loop. It returns immediately.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(ctx)
	logging.Info("Lifecycle trigger started")
}

// Stop ends the delivery loop and waits for an in-flight event to finish.
// A stopped Trigger cannot be restarted.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.mu.Unlock()

	close(t.stopCh)
	t.wg.Wait()
	logging.Info("Lifecycle trigger stopped")
}

// Send queues an event. It reports false when the buffer is full; the
// dropped event is redundant with those already waiting.
func (t *Trigger) Send(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	default:
		logging.Debug("Lifecycle event dropped, buffer full", map[string]interface{}{"event": string(ev)})
		return false
	}
}

// SetOnline records a connectivity change. Going from offline to online
// sends an Online event.
func (t *Trigger) SetOnline(online bool) {
	t.mu.Lock()
	was := t.isOnline
	t.isOnline = online
	t.mu.Unlock()

	if was == online {
		return
	}
	logging.Info("Online status changed", map[string]interface{}{
		"was_online": was,
		"is_online":  online,
	})
	if online {
		t.Send(Online)
	}
}

// IsOnline reports the last connectivity hint.
func (t *Trigger) IsOnline() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isOnline
}

// Notify handles an event synchronously on the caller's goroutine.
func (t *Trigger) Notify(ctx context.Context, ev Event) (*syncpkg.Result, error) {
	foregrounded := ev != Background
	if foregrounded && !t.IsOnline() {
		logging.Debug("Skipping lifecycle sync while offline", map[string]interface{}{"event": string(ev)})
		return nil, nil
	}

	passCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.handler.HandleLifecycleEvent(passCtx, foregrounded)
	switch {
	case apperrors.Is(err, apperrors.ErrSyncInProgress):
		logging.Debug("Sync already in progress, skipping", map[string]interface{}{"event": string(ev)})
	case err != nil:
		logging.ErrorWithCode("Lifecycle sync failed", apperrors.ErrSyncFailed, err,
			map[string]interface{}{"event": string(ev)})
	}
	return res, err
}

func (t *Trigger) loop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case ev := <-t.events:
			t.Notify(ctx, ev)
		}
	}
}

// BindSignals sends Foreground on fg and Background on bg until the
// returned func is called.
func (t *Trigger) BindSignals(fg, bg os.Signal) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, fg, bg)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if sig == fg {
					t.Send(Foreground)
				} else {
					t.Send(Background)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
