// Package sync drains the mutation queue to the remote service and
// publishes sync health to subscribers.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	"github.com/kimhsiao/lifelog/backend/internal/telemetry"
)

// DefaultDispatchTimeout bounds a single remote call.
const DefaultDispatchTimeout = 10 * time.Second

// Queue is the part of the mutation queue the engine drives.
// *queue.Queue implements it.
type Queue interface {
	ListUnsynced(ctx context.Context) ([]models.MutationEntry, error)
	CountUnsynced(ctx context.Context) (int, error)
	MarkSynced(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, cause error) error
	SweepSynced(ctx context.Context) (int64, error)
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// DispatchTimeout bounds each remote call; a timeout counts as a
	// dispatch failure. Defaults to DefaultDispatchTimeout.
	DispatchTimeout time.Duration

	// Policies defaults to DefaultPolicies().
	Policies Policies

	// Acknowledger, when set, is told about every successful dispatch.
	Acknowledger Acknowledger

	// SyncOnStart makes Initialize drain when entries are pending.
	SyncOnStart bool

	Broadcaster *Broadcaster
	Telemetry   *telemetry.Telemetry
	Now         func() time.Time
}

// Result summarizes one drain pass.
type Result struct {
	Dispatched int           `json:"dispatched"`
	Discarded  int           `json:"discarded"`
	Failed     int           `json:"failed"`
	Swept      int64         `json:"swept"`
	Remaining  int           `json:"remaining"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Engine replays queued mutations against a Remote. At most one drain pass
// runs at a time; a second caller is turned away rather than queued.
type Engine struct {
	queue    Queue
	remote   Remote
	ack      Acknowledger
	policies Policies
	timeout  time.Duration
	onStart  bool
	status   *Broadcaster
	tel      *telemetry.Telemetry
	now      func() time.Time

	running atomic.Bool
}

// NewEngine creates an Engine.
func NewEngine(q Queue, r Remote, opts Options) *Engine {
	e := &Engine{
		queue:    q,
		remote:   r,
		ack:      opts.Acknowledger,
		policies: opts.Policies,
		timeout:  opts.DispatchTimeout,
		onStart:  opts.SyncOnStart,
		status:   opts.Broadcaster,
		tel:      opts.Telemetry,
		now:      opts.Now,
	}
	if e.policies == nil {
		e.policies = DefaultPolicies()
	}
	if e.timeout <= 0 {
		e.timeout = DefaultDispatchTimeout
	}
	if e.status == nil {
		e.status = NewBroadcaster()
	}
	if e.tel == nil {
		e.tel = telemetry.Noop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	return e.status.Status()
}

// Subscribe registers a status listener and returns its unsubscribe func.
func (e *Engine) Subscribe(fn Listener) func() {
	return e.status.Subscribe(fn)
}

// Broadcaster exposes the engine's status broadcaster.
func (e *Engine) Broadcaster() *Broadcaster {
	return e.status
}

// IsSyncing reports whether a drain pass is in flight.
func (e *Engine) IsSyncing() bool {
	return e.running.Load()
}

// ForceSync runs a drain pass now. It returns false if the pass failed or
// another pass was already running.
func (e *Engine) ForceSync(ctx context.Context) bool {
	logging.Info("Force sync triggered")
	_, err := e.SyncAll(ctx)
	return err == nil
}

// CheckUnsyncedCount recomputes the pending count and publishes it without
// draining.
func (e *Engine) CheckUnsyncedCount(ctx context.Context) (int, error) {
	count, err := e.queue.CountUnsynced(ctx)
	if err != nil {
		logging.ErrorWithCode("Failed to count unsynced entries", apperrors.ErrQueue, err)
		return e.status.Status().UnsyncedCount, err
	}
	e.status.Update(func(s *Status) {
		s.UnsyncedCount = count
	})
	return count, nil
}

// Initialize publishes the pending count at startup and, when configured
// with SyncOnStart, drains if anything is pending.
func (e *Engine) Initialize(ctx context.Context) (*Result, error) {
	count, err := e.CheckUnsyncedCount(ctx)
	if err != nil {
		return nil, err
	}
	logging.Info("Sync engine initialized", map[string]interface{}{
		"unsynced": count,
	})
	if !e.onStart || count == 0 {
		return nil, nil
	}
	return e.SyncAll(ctx)
}

// HandleLifecycleEvent reacts to the app moving to the foreground by
// draining if anything is pending. Background transitions are ignored.
// It returns the pass result, or nil if no pass ran.
func (e *Engine) HandleLifecycleEvent(ctx context.Context, foregrounded bool) (*Result, error) {
	if !foregrounded {
		return nil, nil
	}
	count, err := e.CheckUnsyncedCount(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	logging.Info("Foregrounded with unsynced entries, starting sync", map[string]interface{}{
		"unsynced": count,
	})
	return e.SyncAll(ctx)
}

// SyncAll runs one drain pass. It returns an ErrSyncInProgress error
// without side effects if a pass is already running, and an ErrSyncFailed
// error if any table group stopped on a failed dispatch. The Result is
// returned in both the success and failure cases.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		logging.Debug("Sync already in progress, skipping")
		return nil, apperrors.New(apperrors.ErrSyncInProgress, "a sync pass is already running")
	}
	defer e.running.Store(false)

	start := e.now()
	ctx, span := e.tel.StartDrain(ctx)

	e.status.Update(func(s *Status) {
		s.IsSyncing = true
		s.Error = ""
	})

	res := &Result{}
	passErr := e.drain(ctx, res)

	// bookkeeping must survive a cancelled caller
	bctx := context.WithoutCancel(ctx)
	remaining, countErr := e.queue.CountUnsynced(bctx)
	if countErr != nil {
		logging.ErrorWithCode("Failed to count unsynced entries", apperrors.ErrQueue, countErr)
		remaining = e.status.Status().UnsyncedCount
	}
	res.Remaining = remaining
	res.Duration = e.now().Sub(start)
	if passErr != nil {
		res.Error = passErr.Error()
	}

	finished := e.now()
	e.status.Update(func(s *Status) {
		s.IsSyncing = false
		s.UnsyncedCount = remaining
		if passErr == nil {
			s.LastSyncTime = &finished
			s.Error = ""
		} else {
			s.Error = passErr.Error()
		}
	})

	e.tel.RecordDrain(bctx, passErr == nil, res.Duration, remaining)
	telemetry.EndSpan(span, passErr)

	if passErr != nil {
		logging.ErrorWithCode("Sync pass failed", apperrors.ErrSyncFailed, passErr, map[string]interface{}{
			"dispatched": res.Dispatched,
			"discarded":  res.Discarded,
			"failed":     res.Failed,
			"remaining":  remaining,
		})
		return res, passErr
	}
	logging.Info("Sync pass completed", map[string]interface{}{
		"dispatched":  res.Dispatched,
		"discarded":   res.Discarded,
		"swept":       res.Swept,
		"remaining":   remaining,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

// group is one table's entries in FIFO order.
type group struct {
	table   models.Table
	entries []models.MutationEntry
}

// groupByTable splits a FIFO listing into per-table groups, ordered by
// each table's first appearance.
func groupByTable(entries []models.MutationEntry) []group {
	var groups []group
	index := make(map[models.Table]int)
	for _, entry := range entries {
		i, ok := index[entry.TableName]
		if !ok {
			i = len(groups)
			index[entry.TableName] = i
			groups = append(groups, group{table: entry.TableName})
		}
		groups[i].entries = append(groups[i].entries, entry)
	}
	return groups
}

func (e *Engine) drain(ctx context.Context, res *Result) error {
	entries, err := e.queue.ListUnsynced(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrQueue, "list unsynced entries", err)
	}
	if len(entries) == 0 {
		logging.Debug("Nothing to sync")
		return nil
	}

	logging.Info("Sync pass started", map[string]interface{}{
		"entries": len(entries),
	})

	var failures []string
	for _, g := range groupByTable(entries) {
		if err := e.drainGroup(ctx, g, res); err != nil {
			failures = append(failures, err.Error())
		}
		if ctx.Err() != nil {
			failures = append(failures, "sync cancelled: "+ctx.Err().Error())
			break
		}
	}

	// only rows already flagged synced are removed
	swept, err := e.queue.SweepSynced(context.WithoutCancel(ctx))
	if err != nil {
		logging.ErrorWithCode("Failed to sweep synced entries", apperrors.ErrQueue, err)
		failures = append(failures, "sweep: "+err.Error())
	}
	res.Swept = swept

	if len(failures) > 0 {
		return apperrors.New(apperrors.ErrSyncFailed, strings.Join(failures, "; "))
	}
	return nil
}

// drainGroup processes a table's entries in order and stops at the first
// propagated failure.
func (e *Engine) drainGroup(ctx context.Context, g group, res *Result) error {
	policy, known := e.policies[g.table]
	for _, entry := range g.entries {
		if ctx.Err() != nil {
			return nil
		}
		if err := e.process(ctx, entry, policy, known, res); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) process(ctx context.Context, entry models.MutationEntry, policy TablePolicy, known bool, res *Result) error {
	bctx := context.WithoutCancel(ctx)
	fields := map[string]interface{}{
		"queue_id":  entry.ID,
		"table":     string(entry.TableName),
		"operation": string(entry.Operation),
		"record_id": entry.RecordID,
	}

	payload, err := decodeEntry(entry, policy, known)
	if err != nil {
		logging.Warn("Discarding invalid queue entry", merge(fields, map[string]interface{}{"reason": err.Error()}))
		if err := e.queue.MarkSynced(bctx, entry.ID); err != nil {
			return apperrors.Wrap(apperrors.ErrQueue, fmt.Sprintf("discard entry %d", entry.ID), err)
		}
		res.Discarded++
		e.tel.RecordEntry(bctx, string(entry.TableName), telemetry.OutcomeDiscarded)
		return nil
	}

	remoteID, err := e.send(ctx, entry, payload)
	if err != nil {
		if ctx.Err() != nil {
			// the caller went away; the entry stays queued as is
			return err
		}
		if policy.OnFailure == Discard {
			logging.ErrorWithCode("Dispatch failed, discarding entry", apperrors.CodeOf(err), err, fields)
			if err := e.queue.MarkSynced(bctx, entry.ID); err != nil {
				return apperrors.Wrap(apperrors.ErrQueue, fmt.Sprintf("discard entry %d", entry.ID), err)
			}
			res.Discarded++
			e.tel.RecordEntry(bctx, string(entry.TableName), telemetry.OutcomeDiscarded)
			return nil
		}

		if rfErr := e.queue.RecordFailure(bctx, entry.ID, err); rfErr != nil {
			logging.Warn("Failed to record dispatch failure", merge(fields, map[string]interface{}{"error": rfErr.Error()}))
		}
		res.Failed++
		e.tel.RecordEntry(bctx, string(entry.TableName), telemetry.OutcomeFailed)
		logging.ErrorWithCode("Dispatch failed", apperrors.CodeOf(err), err, fields)
		return fmt.Errorf("%s %s %s: %w", entry.TableName, entry.Operation, entry.RecordID, err)
	}

	if err := e.queue.MarkSynced(bctx, entry.ID); err != nil {
		// the remote has the change; it will be sent again next pass
		return apperrors.Wrap(apperrors.ErrQueue, fmt.Sprintf("mark entry %d synced", entry.ID), err)
	}
	res.Dispatched++
	e.tel.RecordEntry(bctx, string(entry.TableName), telemetry.OutcomeSynced)

	if e.ack != nil {
		if err := e.ack.Acknowledge(bctx, entry.TableName, entry.Operation, entry.RecordID, remoteID); err != nil {
			logging.Warn("Failed to acknowledge synced record", merge(fields, map[string]interface{}{"error": err.Error()}))
		}
	}
	logging.Debug("Entry synced", fields)
	return nil
}

type dispatchResult struct {
	remoteID string
	err      error
}

// send dispatches under the per-call timeout. The timeout holds even if
// the remote ignores its context.
func (e *Engine) send(ctx context.Context, entry models.MutationEntry, payload models.Payload) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	dctx, span := e.tel.StartDispatch(dctx, string(entry.TableName), string(entry.Operation), entry.RecordID)

	done := make(chan dispatchResult, 1)
	go func() {
		id, err := dispatch(dctx, e.remote, entry.Operation, payload)
		done <- dispatchResult{remoteID: id, err: err}
	}()

	var r dispatchResult
	select {
	case r = <-done:
	case <-dctx.Done():
		r.err = dctx.Err()
	}

	if r.err != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		r.err = apperrors.Wrap(apperrors.ErrSyncTimeout,
			fmt.Sprintf("no response within %s", e.timeout), r.err)
	}
	telemetry.EndSpan(span, r.err)
	return r.remoteID, r.err
}

// decodeEntry turns a queue entry into a validated payload. Any error
// means the entry can never be delivered.
func decodeEntry(entry models.MutationEntry, policy TablePolicy, known bool) (models.Payload, error) {
	if !known {
		return nil, invalid("unknown table %q", entry.TableName)
	}
	if entry.RecordID == "" {
		return nil, invalid("entry %d has no record id", entry.ID)
	}
	op, err := models.ParseOperation(string(entry.Operation))
	if err != nil {
		return nil, invalid("entry %d: %v", entry.ID, err)
	}

	var payload models.Payload
	if op == models.OpDelete {
		// a delete only needs the local id
		payload = deletePayload(entry.TableName, entry.RecordID)
		if payload == nil {
			return nil, invalid("unknown table %q", entry.TableName)
		}
	} else {
		payload, err = entry.Decode()
		if err != nil {
			return nil, invalid("entry %d: %v", entry.ID, err)
		}
		if payload.RecordID() != entry.RecordID {
			return nil, invalid("entry %d snapshot belongs to %q, not %q", entry.ID, payload.RecordID(), entry.RecordID)
		}
	}

	if policy.Validate != nil {
		if err := policy.Validate(op, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func deletePayload(table models.Table, localID string) models.Payload {
	switch table {
	case models.TableWorkouts:
		return &models.Workout{LocalID: localID}
	case models.TableNutrition:
		return &models.NutritionLog{LocalID: localID}
	case models.TableBodyStats:
		return &models.BodyStat{LocalID: localID}
	}
	return nil
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
