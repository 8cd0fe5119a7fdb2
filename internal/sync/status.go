package sync

import (
	"sync"
	"time"
)

// State summarizes a Status for indicators.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StatePending State = "pending"
	StateError   State = "error"
)

// Status is the observable sync health.
type Status struct {
	IsSyncing     bool       `json:"is_syncing"`
	LastSyncTime  *time.Time `json:"last_sync_time"`
	UnsyncedCount int        `json:"unsynced_count"`
	Error         string     `json:"error,omitempty"`
}

// State reports the indicator state. An error outranks pending entries.
func (s Status) State() State {
	switch {
	case s.IsSyncing:
		return StateSyncing
	case s.Error != "":
		return StateError
	case s.UnsyncedCount > 0:
		return StatePending
	default:
		return StateIdle
	}
}

func (s Status) clone() Status {
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		s.LastSyncTime = &t
	}
	return s
}

// Listener receives every status mutation.
type Listener func(Status)

type subscription struct {
	id uint64
	fn Listener
}

// Broadcaster holds the current Status and fans every change out to its
// subscribers synchronously, before Update returns. There is no replay:
// a new subscriber hears about the next change, and can call Status for
// the current value.
//
// Listeners run one update at a time in subscription order. They may call
// Status, Subscribe or an unsubscribe func, but must not call Update.
type Broadcaster struct {
	notifyMu sync.Mutex

	mu        sync.RWMutex
	status    Status
	listeners []subscription
	nextID    uint64
}

// NewBroadcaster creates an idle Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Status returns a copy of the current status.
func (b *Broadcaster) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status.clone()
}

// Subscribe registers fn and returns the func that removes it. Calling the
// returned func more than once is harmless.
func (b *Broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.listeners {
		if s.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Update applies mutate to the status and notifies every subscriber with
// the result.
func (b *Broadcaster) Update(mutate func(*Status)) Status {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	mutate(&b.status)
	snapshot := b.status.clone()
	listeners := make([]subscription, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, s := range listeners {
		s.fn(snapshot.clone())
	}
	return snapshot
}
