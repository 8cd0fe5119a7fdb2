package sync

import (
	"context"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// Remote is the server-side API: a create/update/delete trio per syncable
// table. Create returns the server-assigned id.
type Remote interface {
	CreateWorkout(ctx context.Context, w *models.Workout) (string, error)
	UpdateWorkout(ctx context.Context, localID string, w *models.Workout) error
	DeleteWorkout(ctx context.Context, localID string) error

	CreateNutritionLog(ctx context.Context, n *models.NutritionLog) (string, error)
	UpdateNutritionLog(ctx context.Context, localID string, n *models.NutritionLog) error
	DeleteNutritionLog(ctx context.Context, localID string) error

	CreateBodyStat(ctx context.Context, b *models.BodyStat) (string, error)
	UpdateBodyStat(ctx context.Context, localID string, b *models.BodyStat) error
	DeleteBodyStat(ctx context.Context, localID string) error
}

// Acknowledger records a successful dispatch on the local entity row.
// *store.Store implements it.
type Acknowledger interface {
	Acknowledge(ctx context.Context, table models.Table, op models.Operation, localID, remoteID string) error
}

// dispatch routes a payload to the endpoint for its (table, operation).
// It returns the remote id on create.
func dispatch(ctx context.Context, r Remote, op models.Operation, p models.Payload) (string, error) {
	switch v := p.(type) {
	case *models.Workout:
		switch op {
		case models.OpInsert:
			return r.CreateWorkout(ctx, v)
		case models.OpUpdate:
			return "", r.UpdateWorkout(ctx, v.LocalID, v)
		case models.OpDelete:
			return "", r.DeleteWorkout(ctx, v.LocalID)
		}
	case *models.NutritionLog:
		switch op {
		case models.OpInsert:
			return r.CreateNutritionLog(ctx, v)
		case models.OpUpdate:
			return "", r.UpdateNutritionLog(ctx, v.LocalID, v)
		case models.OpDelete:
			return "", r.DeleteNutritionLog(ctx, v.LocalID)
		}
	case *models.BodyStat:
		switch op {
		case models.OpInsert:
			return r.CreateBodyStat(ctx, v)
		case models.OpUpdate:
			return "", r.UpdateBodyStat(ctx, v.LocalID, v)
		case models.OpDelete:
			return "", r.DeleteBodyStat(ctx, v.LocalID)
		}
	}
	return "", apperrors.Newf(apperrors.ErrSyncInvalidPayload, "no endpoint for %s %T", op, p)
}
