package sync

import "context"

// SyncEngine is what host surfaces need from the engine.
// It allows for mocking in tests.
type SyncEngine interface {
	// SyncAll runs one drain pass and reports what it did.
	SyncAll(ctx context.Context) (*Result, error)

	// ForceSync runs a drain pass and reports success.
	ForceSync(ctx context.Context) bool

	// HandleLifecycleEvent drains on foreground if entries are pending.
	HandleLifecycleEvent(ctx context.Context, foregrounded bool) (*Result, error)

	// CheckUnsyncedCount recomputes and publishes the pending count.
	CheckUnsyncedCount(ctx context.Context) (int, error)

	Status() Status
	Subscribe(fn Listener) func()
}

var _ SyncEngine = (*Engine)(nil)
