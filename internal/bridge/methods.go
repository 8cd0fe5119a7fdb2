package bridge

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	"github.com/kimhsiao/lifelog/backend/internal/store"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
	"github.com/kimhsiao/lifelog/backend/internal/sync/lifecycle"
	"github.com/kimhsiao/lifelog/backend/internal/uuid"
)

type idRequest struct {
	LocalID string `json:"local_id"`
}

type listRequest struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
	Limit  int    `json:"limit"`
}

type lifecycleRequest struct {
	Foregrounded *bool `json:"foregrounded"`
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

// statusView is the sync indicator as the UI shell sees it.
type statusView struct {
	State  syncpkg.State `json:"state"`
	Online bool          `json:"online"`
	syncpkg.Status
}

func decode[T any](payload []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "invalid payload", err)
	}
	return v, nil
}

func localID(payload []byte) (string, error) {
	req, err := decode[idRequest](payload)
	if err != nil {
		return "", err
	}
	if req.LocalID == "" {
		return "", apperrors.New(apperrors.ErrValidation, "local_id is required")
	}
	if !uuid.IsLocalID(req.LocalID) {
		return "", apperrors.Newf(apperrors.ErrValidation, "malformed local_id %q", req.LocalID)
	}
	return req.LocalID, nil
}

func listArgs(a *app.App, payload []byte) (int64, store.ListOptions, error) {
	req, err := decode[listRequest](payload)
	if err != nil {
		return 0, store.ListOptions{}, err
	}
	return userOr(a, req.UserID), store.ListOptions{Date: req.Date, Limit: req.Limit}, nil
}

func userOr(a *app.App, id int64) int64 {
	if id == 0 {
		return a.Config.UserID
	}
	return id
}

func deleted(id string) map[string]string {
	return map[string]string{"local_id": id}
}

func currentStatus(ctx context.Context, a *app.App) (statusView, error) {
	if _, err := a.Engine.CheckUnsyncedCount(ctx); err != nil {
		return statusView{}, err
	}
	s := a.Engine.Status()
	return statusView{State: s.State(), Online: a.Trigger.IsOnline(), Status: s}, nil
}

func methods() map[string]handler {
	m := map[string]handler{}

	// =====================================================
	// Workouts
	// =====================================================

	m["workouts.save"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		w, err := decode[models.Workout](p)
		if err != nil {
			return nil, err
		}
		w.UserID = userOr(a, w.UserID)
		id, err := a.Store.SaveWorkout(ctx, w)
		if err != nil {
			return nil, err
		}
		return a.Store.GetWorkout(ctx, id)
	}
	m["workouts.update"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		w, err := decode[models.Workout](p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.UpdateWorkout(ctx, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	m["workouts.delete"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.DeleteWorkout(ctx, id); err != nil {
			return nil, err
		}
		return deleted(id), nil
	}
	m["workouts.get"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		return a.Store.GetWorkout(ctx, id)
	}
	m["workouts.list"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		userID, opts, err := listArgs(a, p)
		if err != nil {
			return nil, err
		}
		items, err := a.Store.GetWorkouts(ctx, userID, opts)
		return nonNil(items), err
	}
	m["exercises.add"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		e, err := decode[models.Exercise](p)
		if err != nil {
			return nil, err
		}
		if e.WorkoutID == "" {
			return nil, apperrors.New(apperrors.ErrValidation, "workout_id is required")
		}
		if _, err := a.Store.AddExercise(ctx, e.WorkoutID, e); err != nil {
			return nil, err
		}
		return e, nil
	}
	m["exercises.list"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		if _, err := a.Store.GetWorkout(ctx, id); err != nil {
			return nil, err
		}
		items, err := a.Store.GetExercises(ctx, id)
		return nonNil(items), err
	}

	// =====================================================
	// Nutrition
	// =====================================================

	m["nutrition.save"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		n, err := decode[models.NutritionLog](p)
		if err != nil {
			return nil, err
		}
		n.UserID = userOr(a, n.UserID)
		id, err := a.Store.SaveNutritionLog(ctx, n)
		if err != nil {
			return nil, err
		}
		return a.Store.GetNutritionLog(ctx, id)
	}
	m["nutrition.update"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		n, err := decode[models.NutritionLog](p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.UpdateNutritionLog(ctx, n); err != nil {
			return nil, err
		}
		return n, nil
	}
	m["nutrition.delete"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.DeleteNutritionLog(ctx, id); err != nil {
			return nil, err
		}
		return deleted(id), nil
	}
	m["nutrition.get"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		return a.Store.GetNutritionLog(ctx, id)
	}
	m["nutrition.list"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		userID, opts, err := listArgs(a, p)
		if err != nil {
			return nil, err
		}
		items, err := a.Store.GetNutritionLogs(ctx, userID, opts)
		return nonNil(items), err
	}

	// =====================================================
	// Body stats
	// =====================================================

	m["body_stats.save"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		b, err := decode[models.BodyStat](p)
		if err != nil {
			return nil, err
		}
		b.UserID = userOr(a, b.UserID)
		id, err := a.Store.SaveBodyStat(ctx, b)
		if err != nil {
			return nil, err
		}
		return a.Store.GetBodyStat(ctx, id)
	}
	m["body_stats.update"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		b, err := decode[models.BodyStat](p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.UpdateBodyStat(ctx, b); err != nil {
			return nil, err
		}
		return b, nil
	}
	m["body_stats.delete"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		if err := a.Store.DeleteBodyStat(ctx, id); err != nil {
			return nil, err
		}
		return deleted(id), nil
	}
	m["body_stats.get"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		id, err := localID(p)
		if err != nil {
			return nil, err
		}
		return a.Store.GetBodyStat(ctx, id)
	}
	m["body_stats.list"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		userID, opts, err := listArgs(a, p)
		if err != nil {
			return nil, err
		}
		items, err := a.Store.GetBodyStats(ctx, userID, opts)
		return nonNil(items), err
	}

	// =====================================================
	// Sync
	// =====================================================

	m["sync.all"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		res, err := a.Engine.SyncAll(ctx)
		if res == nil {
			return nil, err
		}
		return res, err
	}
	m["sync.force"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		return map[string]bool{"synced": a.Engine.ForceSync(ctx)}, nil
	}
	m["sync.status"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		return currentStatus(ctx, a)
	}
	m["sync.queue"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		stats, err := a.Queue.Stats(ctx)
		return nonNil(stats), err
	}

	// lifecycle events are queued on the trigger so the UI thread never
	// waits for a pass
	m["app.lifecycle"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		req, err := decode[lifecycleRequest](p)
		if err != nil {
			return nil, err
		}
		if req.Foregrounded == nil {
			return nil, apperrors.New(apperrors.ErrValidation, "foregrounded is required")
		}
		ev := lifecycle.Background
		if *req.Foregrounded {
			ev = lifecycle.Foreground
		}
		return map[string]bool{"queued": a.Trigger.Send(ev)}, nil
	}
	m["app.online"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		req, err := decode[onlineRequest](p)
		if err != nil {
			return nil, err
		}
		if req.Online == nil {
			return nil, apperrors.New(apperrors.ErrValidation, "online is required")
		}
		a.Trigger.SetOnline(*req.Online)
		return currentStatus(ctx, a)
	}
	m["data.clear"] = func(ctx context.Context, a *app.App, p []byte) (any, error) {
		if err := a.Store.ClearAllData(ctx); err != nil {
			return nil, err
		}
		return currentStatus(ctx, a)
	}
	return m
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
