// Package store tests for the local entity store.
package store

import (
	"context"
	"strings"
	"testing"

	"github.com/kimhsiao/lifelog/backend/internal/db"
	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	"github.com/kimhsiao/lifelog/backend/internal/sync/queue"
	"github.com/kimhsiao/lifelog/backend/internal/uuid"
)

func newTestStore(t *testing.T) (*Store, *queue.Queue, *db.DB) {
	t.Helper()
	database, err := db.OpenPath(":memory:")
	if err != nil {
		t.Fatalf("OpenPath() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	q := queue.New(database.DB)
	return New(database.DB, q), q, database
}

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }
func strp(v string) *string { return &v }

func sampleWorkout() *models.Workout {
	return &models.Workout{
		UserID:          7,
		Name:            "Push day",
		Date:            "2024-06-01",
		DurationMinutes: intp(60),
		Exercises: []models.Exercise{
			{Name: "Bench press", Sets: 5, Reps: 5, WeightKg: floatp(80)},
			{Name: "Dips", Sets: 3, Reps: 12},
		},
	}
}

func sampleMeal() *models.NutritionLog {
	return &models.NutritionLog{
		UserID: 7, MealType: models.MealLunch, FoodName: "Rice bowl",
		Calories: 650, ProteinG: 30, CarbsG: 90, FatG: 15, Date: "2024-06-01",
	}
}

// =====================================================
// Save Tests
// =====================================================

// TestSaveWorkout verifies the row, nested exercises and the INSERT entry
// are written together.
func TestSaveWorkout(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	w := sampleWorkout()
	localID, err := s.SaveWorkout(ctx, w)
	if err != nil {
		t.Fatalf("SaveWorkout() error = %v", err)
	}
	if !strings.HasPrefix(localID, "workout_") || !uuid.IsLocalID(localID) {
		t.Errorf("local id = %q", localID)
	}

	got, err := s.GetWorkout(ctx, localID)
	if err != nil {
		t.Fatalf("GetWorkout() error = %v", err)
	}
	if got.Name != "Push day" || *got.DurationMinutes != 60 || got.Synced {
		t.Errorf("workout = %+v", got)
	}
	if len(got.Exercises) != 2 || got.Exercises[0].Name != "Bench press" || got.Exercises[0].WorkoutID != localID {
		t.Errorf("exercises = %+v", got.Exercises)
	}

	entries, err := q.ListUnsynced(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.TableName != models.TableWorkouts || e.RecordID != localID || e.Operation != models.OpInsert {
		t.Errorf("entry = %+v", e)
	}
	p, err := e.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if snap := p.(*models.Workout); len(snap.Exercises) != 2 {
		t.Errorf("snapshot exercises = %d, want 2", len(snap.Exercises))
	}
}

// TestSaveWorkout_nullDurationAccepted verifies the store keeps workouts the
// sync engine will later discard.
func TestSaveWorkout_nullDurationAccepted(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	w := sampleWorkout()
	w.DurationMinutes = nil
	if _, err := s.SaveWorkout(ctx, w); err != nil {
		t.Fatalf("SaveWorkout() error = %v", err)
	}
	if n, _ := s.UnsyncedCount(ctx); n != 1 {
		t.Errorf("UnsyncedCount() = %d, want 1", n)
	}
}

// TestSave_atomicWithQueue verifies a failed enqueue leaves no entity row.
func TestSave_atomicWithQueue(t *testing.T) {
	ctx := context.Background()
	s, _, database := newTestStore(t)

	if _, err := database.Exec("DROP TABLE sync_queue"); err != nil {
		t.Fatal(err)
	}

	_, err := s.SaveNutritionLog(ctx, sampleMeal())
	if !apperrors.Is(err, apperrors.ErrQueue) {
		t.Fatalf("SaveNutritionLog() error = %v, want QUEUE_ERROR", err)
	}

	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM local_nutrition_logs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("nutrition rows = %d after failed enqueue, want 0", n)
	}
}

// TestSave_validation verifies required fields are enforced before any write.
func TestSave_validation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	tests := []struct {
		name string
		rec  models.Payload
	}{
		{"workout without user", &models.Workout{Name: "x", Date: "2024-01-01"}},
		{"workout without name", &models.Workout{UserID: 1, Date: "2024-01-01"}},
		{"workout bad date", &models.Workout{UserID: 1, Name: "x", Date: "01/02/2024"}},
		{"workout bad exercise", &models.Workout{UserID: 1, Name: "x", Date: "2024-01-01",
			Exercises: []models.Exercise{{Name: ""}}}},
		{"meal bad type", &models.NutritionLog{UserID: 1, MealType: "brunch", FoodName: "x", Date: "2024-01-01"}},
		{"meal without food", &models.NutritionLog{UserID: 1, MealType: models.MealSnack, Date: "2024-01-01"}},
		{"meal negative calories", &models.NutritionLog{UserID: 1, MealType: models.MealSnack, FoodName: "x", Calories: -1, Date: "2024-01-01"}},
		{"body without date", &models.BodyStat{UserID: 1}},
		{"body fat over 100", &models.BodyStat{UserID: 1, Date: "2024-01-01", BodyFatPercentage: floatp(120)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, tt.rec)
			if !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Save() error = %v, want VALIDATION_ERROR", err)
			}
		})
	}

	if n, _ := s.UnsyncedCount(ctx); n != 0 {
		t.Errorf("UnsyncedCount() = %d, want 0", n)
	}
}

// TestSave_dispatchesOnKind verifies the generic Save routes every kind.
func TestSave_dispatchesOnKind(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	recs := []models.Payload{
		sampleWorkout(),
		sampleMeal(),
		&models.BodyStat{UserID: 7, Date: "2024-06-01", WeightKg: floatp(81.5), WaterIntake: floatp(2)},
	}
	for _, r := range recs {
		if _, err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save(%T) error = %v", r, err)
		}
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Errorf("stats = %+v, want one row per table", stats)
	}
}

// =====================================================
// Query Tests
// =====================================================

// TestGetByUser_ordering verifies newest-first ordering, date filter and limit.
func TestGetByUser_ordering(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	clock := int64(1000)
	s.now = func() int64 { clock++; return clock }

	for _, d := range []string{"2024-06-01", "2024-06-03", "2024-06-02", "2024-06-03"} {
		m := sampleMeal()
		m.Date = d
		if _, err := s.SaveNutritionLog(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	other := sampleMeal()
	other.UserID = 99
	s.SaveNutritionLog(ctx, other)

	logs, err := s.GetNutritionLogs(ctx, 7, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 4 {
		t.Fatalf("got %d logs, want 4", len(logs))
	}
	wantDates := []string{"2024-06-03", "2024-06-03", "2024-06-02", "2024-06-01"}
	for i, l := range logs {
		if l.Date != wantDates[i] {
			t.Errorf("log %d date = %s, want %s", i, l.Date, wantDates[i])
		}
	}
	if logs[0].CreatedAt < logs[1].CreatedAt {
		t.Error("same-date entries should be newest first")
	}

	today, _ := s.GetNutritionLogs(ctx, 7, ListOptions{Date: "2024-06-03"})
	if len(today) != 2 {
		t.Errorf("date filter returned %d, want 2", len(today))
	}

	limited, _ := s.GetNutritionLogs(ctx, 7, ListOptions{Limit: 1})
	if len(limited) != 1 || limited[0].Date != "2024-06-03" {
		t.Errorf("limit returned %+v", limited)
	}
}

// TestGetWorkouts_includesExercises verifies list results carry children.
func TestGetWorkouts_includesExercises(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	s.SaveWorkout(ctx, sampleWorkout())
	bare := sampleWorkout()
	bare.Exercises = nil
	bare.Date = "2024-05-01"
	s.SaveWorkout(ctx, bare)

	workouts, err := s.GetWorkouts(ctx, 7, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 2 {
		t.Fatalf("got %d workouts", len(workouts))
	}
	if len(workouts[0].Exercises) != 2 || len(workouts[1].Exercises) != 0 {
		t.Errorf("exercise counts = %d, %d", len(workouts[0].Exercises), len(workouts[1].Exercises))
	}
}

// TestGetByUser_emptyBeforeSync verifies reads work on an empty store.
func TestGetByUser_emptyBeforeSync(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	if w, err := s.GetWorkouts(ctx, 1, ListOptions{}); err != nil || len(w) != 0 {
		t.Errorf("GetWorkouts() = %v, %v", w, err)
	}
	if b, err := s.GetBodyStats(ctx, 1, ListOptions{Date: "2024-01-01"}); err != nil || len(b) != 0 {
		t.Errorf("GetBodyStats() = %v, %v", b, err)
	}
}

// =====================================================
// Update / Delete Tests
// =====================================================

// TestAddExercise verifies the parent is re-enqueued with every exercise.
func TestAddExercise(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	localID, _ := s.SaveWorkout(ctx, sampleWorkout())
	exID, err := s.AddExercise(ctx, localID, &models.Exercise{Name: "Push-ups", Sets: 3, Reps: 20})
	if err != nil {
		t.Fatalf("AddExercise() error = %v", err)
	}

	exercises, _ := s.GetExercises(ctx, localID)
	if len(exercises) != 3 || exercises[2].LocalID != exID {
		t.Errorf("exercises = %+v", exercises)
	}

	entries, _ := q.ListUnsynced(ctx)
	if len(entries) != 2 || entries[1].Operation != models.OpUpdate || entries[1].RecordID != localID {
		t.Fatalf("entries = %+v", entries)
	}
	p, _ := entries[1].Decode()
	if len(p.(*models.Workout).Exercises) != 3 {
		t.Error("UPDATE snapshot should carry all three exercises")
	}

	if _, err := s.AddExercise(ctx, "workout_missing", &models.Exercise{Name: "x"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("AddExercise(missing) error = %v", err)
	}
}

// TestUpdate_enqueuesIndependentSnapshots verifies each mutation produces
// its own point-in-time entry.
func TestUpdate_enqueuesIndependentSnapshots(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	b := &models.BodyStat{UserID: 7, Date: "2024-06-01", WeightKg: floatp(80)}
	localID, _ := s.SaveBodyStat(ctx, b)

	b.WeightKg = floatp(79.2)
	if err := s.UpdateBodyStat(ctx, b); err != nil {
		t.Fatalf("UpdateBodyStat() error = %v", err)
	}
	if b.UserID != 7 || b.LocalID != localID {
		t.Errorf("refreshed record = %+v", b)
	}

	entries, _ := q.ListUnsynced(ctx)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	first, _ := entries[0].Decode()
	second, _ := entries[1].Decode()
	if *first.(*models.BodyStat).WeightKg != 80 || *second.(*models.BodyStat).WeightKg != 79.2 {
		t.Error("snapshots should hold the value at enqueue time")
	}

	if err := s.UpdateBodyStat(ctx, &models.BodyStat{LocalID: "body_missing", Date: "2024-06-01"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("UpdateBodyStat(missing) error = %v", err)
	}
}

// TestUpdateWorkout verifies editable fields change and synced resets.
func TestUpdateWorkout(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	localID, _ := s.SaveWorkout(ctx, sampleWorkout())
	upd := &models.Workout{LocalID: localID, Name: "Push day (heavy)", Date: "2024-06-02", DurationMinutes: intp(75), Notes: strp("felt strong")}
	if err := s.UpdateWorkout(ctx, upd); err != nil {
		t.Fatalf("UpdateWorkout() error = %v", err)
	}
	if upd.UserID != 7 || len(upd.Exercises) != 2 {
		t.Errorf("refreshed workout = %+v", upd)
	}
}

// TestUpdateNutritionLog verifies an UPDATE entry is written.
func TestUpdateNutritionLog(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	m := sampleMeal()
	s.SaveNutritionLog(ctx, m)
	m.Calories = 700
	m.FiberG = floatp(8)
	if err := s.UpdateNutritionLog(ctx, m); err != nil {
		t.Fatalf("UpdateNutritionLog() error = %v", err)
	}
	got, _ := s.GetNutritionLog(ctx, m.LocalID)
	if got.Calories != 700 || *got.FiberG != 8 {
		t.Errorf("nutrition log = %+v", got)
	}
	if n, _ := q.CountUnsynced(ctx); n != 2 {
		t.Errorf("CountUnsynced() = %d, want 2", n)
	}
}

// TestDelete_enqueuesSnapshot verifies deletes remove rows and queue the
// last known state.
func TestDelete_enqueuesSnapshot(t *testing.T) {
	ctx := context.Background()
	s, q, database := newTestStore(t)

	wID, _ := s.SaveWorkout(ctx, sampleWorkout())
	mID, _ := s.SaveNutritionLog(ctx, sampleMeal())
	bID, _ := s.SaveBodyStat(ctx, &models.BodyStat{UserID: 7, Date: "2024-06-01"})

	if err := s.DeleteWorkout(ctx, wID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNutritionLog(ctx, mID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBodyStat(ctx, bID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetWorkout(ctx, wID); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetWorkout() after delete error = %v", err)
	}
	var exercises int
	database.QueryRow("SELECT COUNT(*) FROM local_exercises").Scan(&exercises)
	if exercises != 0 {
		t.Errorf("exercises left = %d, want 0 (cascade)", exercises)
	}

	entries, _ := q.ListUnsynced(ctx)
	if len(entries) != 6 {
		t.Fatalf("entries = %d, want 6", len(entries))
	}
	for _, e := range entries[3:] {
		if e.Operation != models.OpDelete {
			t.Errorf("entry %d operation = %s", e.ID, e.Operation)
		}
		if _, err := e.Decode(); err != nil {
			t.Errorf("DELETE snapshot should decode: %v", err)
		}
	}

	if err := s.DeleteBodyStat(ctx, bID); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

// =====================================================
// Acknowledge / Clear Tests
// =====================================================

// TestAcknowledge verifies remote id write-back and the synced flag.
func TestAcknowledge(t *testing.T) {
	ctx := context.Background()
	s, q, _ := newTestStore(t)

	localID, _ := s.SaveWorkout(ctx, sampleWorkout())
	entries, _ := q.ListUnsynced(ctx)
	q.MarkSynced(ctx, entries[0].ID)

	if err := s.Acknowledge(ctx, models.TableWorkouts, models.OpInsert, localID, "srv-42"); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	w, _ := s.GetWorkout(ctx, localID)
	if w.RemoteID != "srv-42" || !w.Synced || !w.Exercises[0].Synced {
		t.Errorf("workout after ack = %+v", w)
	}

	// a pending later edit keeps the row unsynced
	m := sampleMeal()
	s.SaveNutritionLog(ctx, m)
	m.Calories = 1
	s.UpdateNutritionLog(ctx, m)
	entries, _ = q.ListUnsynced(ctx)
	q.MarkSynced(ctx, entries[0].ID)
	s.Acknowledge(ctx, models.TableNutrition, models.OpInsert, m.LocalID, "srv-7")

	got, _ := s.GetNutritionLog(ctx, m.LocalID)
	if got.RemoteID != "srv-7" || got.Synced {
		t.Errorf("nutrition after partial ack = %+v", got)
	}

	if err := s.Acknowledge(ctx, models.Table("steps"), models.OpInsert, "x", ""); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Acknowledge(unknown) error = %v", err)
	}
	if err := s.Acknowledge(ctx, models.TableBodyStats, models.OpDelete, "gone", ""); err != nil {
		t.Errorf("Acknowledge(delete) error = %v", err)
	}
}

// TestClearAllData verifies every table is emptied.
func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	s.SaveWorkout(ctx, sampleWorkout())
	s.SaveNutritionLog(ctx, sampleMeal())

	if err := s.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData() error = %v", err)
	}
	if n, _ := s.UnsyncedCount(ctx); n != 0 {
		t.Errorf("UnsyncedCount() = %d", n)
	}
	if w, _ := s.GetWorkouts(ctx, 7, ListOptions{}); len(w) != 0 {
		t.Errorf("workouts left = %d", len(w))
	}
}
