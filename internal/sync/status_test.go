package sync

import (
	"sync"
	"testing"
	"time"
)

func TestBroadcaster_notifiesInOrder(t *testing.T) {
	b := NewBroadcaster()

	var order []string
	b.Subscribe(func(s Status) { order = append(order, "first") })
	b.Subscribe(func(s Status) { order = append(order, "second") })

	b.Update(func(s *Status) { s.UnsyncedCount = 3 })

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestBroadcaster_noReplayOnSubscribe(t *testing.T) {
	b := NewBroadcaster()
	b.Update(func(s *Status) { s.UnsyncedCount = 4 })

	calls := 0
	b.Subscribe(func(Status) { calls++ })
	if calls != 0 {
		t.Errorf("late subscriber called %d times before any change", calls)
	}
	if got := b.Status().UnsyncedCount; got != 4 {
		t.Errorf("Status().UnsyncedCount = %d, want 4", got)
	}

	b.Update(func(s *Status) { s.UnsyncedCount = 5 })
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBroadcaster_unsubscribe(t *testing.T) {
	b := NewBroadcaster()

	var got []int
	unsubscribe := b.Subscribe(func(s Status) { got = append(got, s.UnsyncedCount) })
	keep := 0
	b.Subscribe(func(Status) { keep++ })

	b.Update(func(s *Status) { s.UnsyncedCount = 1 })
	unsubscribe()
	unsubscribe()
	b.Update(func(s *Status) { s.UnsyncedCount = 2 })

	if len(got) != 1 || got[0] != 1 {
		t.Errorf("removed listener saw %v, want [1]", got)
	}
	if keep != 2 {
		t.Errorf("remaining listener calls = %d, want 2", keep)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBroadcaster_unsubscribeFromListener(t *testing.T) {
	b := NewBroadcaster()

	calls := 0
	var unsubscribe func()
	unsubscribe = b.Subscribe(func(Status) {
		calls++
		unsubscribe()
	})

	b.Update(func(s *Status) { s.IsSyncing = true })
	b.Update(func(s *Status) { s.IsSyncing = false })
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBroadcaster_statusIsACopy(t *testing.T) {
	b := NewBroadcaster()
	now := time.Now()
	b.Update(func(s *Status) { s.LastSyncTime = &now })

	st := b.Status()
	*st.LastSyncTime = now.Add(time.Hour)
	if !b.Status().LastSyncTime.Equal(now) {
		t.Error("mutating a returned Status changed the broadcaster's state")
	}
}

// TestBroadcaster_concurrentUpdates verifies every listener observes the
// same sequence even when updates race.
func TestBroadcaster_concurrentUpdates(t *testing.T) {
	b := NewBroadcaster()

	var a, c []int
	b.Subscribe(func(s Status) { a = append(a, s.UnsyncedCount) })
	b.Subscribe(func(s Status) { c = append(c, s.UnsyncedCount) })

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Update(func(s *Status) { s.UnsyncedCount = n })
		}(i)
	}
	wg.Wait()

	if len(a) != 50 || len(c) != 50 {
		t.Fatalf("notifications = %d, %d, want 50 each", len(a), len(c))
	}
	for i := range a {
		if a[i] != c[i] {
			t.Fatalf("listeners diverged at %d: %d vs %d", i, a[i], c[i])
		}
	}
	if last := b.Status().UnsyncedCount; last != a[len(a)-1] {
		t.Errorf("final status %d differs from last notification %d", last, a[len(a)-1])
	}
}

func TestStatus_State(t *testing.T) {
	tests := []struct {
		status Status
		want   State
	}{
		{Status{}, StateIdle},
		{Status{UnsyncedCount: 2}, StatePending},
		{Status{UnsyncedCount: 2, Error: "boom"}, StateError},
		{Status{IsSyncing: true, Error: "old"}, StateSyncing},
	}
	for _, tt := range tests {
		if got := tt.status.State(); got != tt.want {
			t.Errorf("%+v.State() = %s, want %s", tt.status, got, tt.want)
		}
	}
}
