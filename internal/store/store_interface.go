package store

import (
	"context"

	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// WorkoutStore defines workout and exercise persistence.
type WorkoutStore interface {
	// SaveWorkout persists a workout with its exercises and returns its local id.
	SaveWorkout(ctx context.Context, w *models.Workout) (string, error)

	// AddExercise attaches an exercise to an existing workout.
	AddExercise(ctx context.Context, workoutLocalID string, e *models.Exercise) (string, error)

	UpdateWorkout(ctx context.Context, w *models.Workout) error
	DeleteWorkout(ctx context.Context, localID string) error
	GetWorkout(ctx context.Context, localID string) (*models.Workout, error)
	GetWorkouts(ctx context.Context, userID int64, opts ListOptions) ([]models.Workout, error)
	GetExercises(ctx context.Context, workoutLocalID string) ([]models.Exercise, error)
}

// NutritionStore defines nutrition log persistence.
type NutritionStore interface {
	SaveNutritionLog(ctx context.Context, n *models.NutritionLog) (string, error)
	UpdateNutritionLog(ctx context.Context, n *models.NutritionLog) error
	DeleteNutritionLog(ctx context.Context, localID string) error
	GetNutritionLog(ctx context.Context, localID string) (*models.NutritionLog, error)
	GetNutritionLogs(ctx context.Context, userID int64, opts ListOptions) ([]models.NutritionLog, error)
}

// BodyStatStore defines body stat persistence.
type BodyStatStore interface {
	SaveBodyStat(ctx context.Context, b *models.BodyStat) (string, error)
	UpdateBodyStat(ctx context.Context, b *models.BodyStat) error
	DeleteBodyStat(ctx context.Context, localID string) error
	GetBodyStat(ctx context.Context, localID string) (*models.BodyStat, error)
	GetBodyStats(ctx context.Context, userID int64, opts ListOptions) ([]models.BodyStat, error)
}

// EntityStore groups everything the host surfaces need.
type EntityStore interface {
	WorkoutStore
	NutritionStore
	BodyStatStore

	// Save dispatches on the record kind.
	Save(ctx context.Context, rec models.Payload) (string, error)

	// UnsyncedCount counts pending queue entries.
	UnsyncedCount(ctx context.Context) (int, error)

	ClearAllData(ctx context.Context) error
}

// Ensure *Store implements the interfaces at compile time.
var (
	_ WorkoutStore   = (*Store)(nil)
	_ NutritionStore = (*Store)(nil)
	_ BodyStatStore  = (*Store)(nil)
	_ EntityStore    = (*Store)(nil)
)
