package remote

import (
	"context"
	"net/http"
	"strings"

	"github.com/kimhsiao/lifelog/backend/internal/models"
)

const (
	pathWorkouts  = "/fitness/"
	pathNutrition = "/nutrition/"
	pathBodyStats = "/body/"
)

// =====================================================
// Wire formats
// =====================================================

type exerciseBody struct {
	LocalID         string   `json:"local_id"`
	Name            string   `json:"name"`
	Sets            int      `json:"sets"`
	Reps            int      `json:"reps"`
	WeightKg        *float64 `json:"weight_kg,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
}

type workoutBody struct {
	LocalID         string         `json:"local_id"`
	Name            string         `json:"name"`
	Date            string         `json:"date"`
	DurationMinutes *int           `json:"duration_minutes"`
	Notes           *string        `json:"notes,omitempty"`
	Exercises       []exerciseBody `json:"exercises"`
}

// datetime widens a bare date to the midnight-UTC timestamp the backend
// expects.
func datetime(date string) string {
	if date == "" || strings.Contains(date, "T") {
		return date
	}
	return date + "T00:00:00.000Z"
}

func newWorkoutBody(w *models.Workout) workoutBody {
	body := workoutBody{
		LocalID:         w.LocalID,
		Name:            w.Name,
		Date:            datetime(w.Date),
		DurationMinutes: w.DurationMinutes,
		Notes:           w.Notes,
		Exercises:       make([]exerciseBody, 0, len(w.Exercises)),
	}
	for _, e := range w.Exercises {
		body.Exercises = append(body.Exercises, exerciseBody{
			LocalID:         e.LocalID,
			Name:            e.Name,
			Sets:            e.Sets,
			Reps:            e.Reps,
			WeightKg:        e.WeightKg,
			DurationSeconds: e.DurationSeconds,
			DistanceKm:      e.DistanceKm,
		})
	}
	return body
}

// nutritionBody renames the macro fields and reports each log as one
// serving.
type nutritionBody struct {
	LocalID  string          `json:"local_id"`
	MealType models.MealType `json:"meal_type"`
	FoodName string          `json:"food_name"`
	Quantity float64         `json:"quantity"`
	Unit     string          `json:"unit"`
	Calories int             `json:"calories"`
	Protein  float64         `json:"protein"`
	Carbs    float64         `json:"carbs"`
	Fat      float64         `json:"fat"`
	Fiber    float64         `json:"fiber"`
	Sugar    float64         `json:"sugar"`
	Sodium   float64         `json:"sodium"`
	Date     string          `json:"date"`
	Notes    *string         `json:"notes,omitempty"`
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func newNutritionBody(n *models.NutritionLog) nutritionBody {
	return nutritionBody{
		LocalID:  n.LocalID,
		MealType: n.MealType,
		FoodName: n.FoodName,
		Quantity: 1,
		Unit:     "serving",
		Calories: n.Calories,
		Protein:  n.ProteinG,
		Carbs:    n.CarbsG,
		Fat:      n.FatG,
		Fiber:    deref(n.FiberG),
		Sugar:    deref(n.SugarG),
		Sodium:   deref(n.SodiumMg),
		Date:     n.Date,
		Notes:    n.Notes,
	}
}

type bodyStatBody struct {
	LocalID           string   `json:"local_id"`
	WeightKg          *float64 `json:"weight_kg,omitempty"`
	BodyFatPercentage *float64 `json:"body_fat_percentage,omitempty"`
	MuscleMassKg      *float64 `json:"muscle_mass_kg,omitempty"`
	WaistCm           *float64 `json:"waist_cm,omitempty"`
	ChestCm           *float64 `json:"chest_cm,omitempty"`
	ArmCm             *float64 `json:"arm_cm,omitempty"`
	ThighCm           *float64 `json:"thigh_cm,omitempty"`
	WaterIntake       *float64 `json:"water_intake,omitempty"`
	Date              string   `json:"date"`
}

func newBodyStatBody(b *models.BodyStat) bodyStatBody {
	return bodyStatBody{
		LocalID:           b.LocalID,
		WeightKg:          b.WeightKg,
		BodyFatPercentage: b.BodyFatPercentage,
		MuscleMassKg:      b.MuscleMassKg,
		WaistCm:           b.WaistCm,
		ChestCm:           b.ChestCm,
		ArmCm:             b.ArmCm,
		ThighCm:           b.ThighCm,
		WaterIntake:       b.WaterIntake,
		Date:              b.Date,
	}
}

// =====================================================
// Workouts
// =====================================================

// CreateWorkout posts a workout with its exercises and returns the
// server id.
func (c *Client) CreateWorkout(ctx context.Context, w *models.Workout) (string, error) {
	data, err := c.do(ctx, http.MethodPost, pathWorkouts, userQuery(w.UserID), newWorkoutBody(w))
	if err != nil {
		return "", err
	}
	return remoteID(pathWorkouts, data), nil
}

// UpdateWorkout replaces the workout identified by its local id.
func (c *Client) UpdateWorkout(ctx context.Context, localID string, w *models.Workout) error {
	_, err := c.do(ctx, http.MethodPut, pathWorkouts+localID, nil, newWorkoutBody(w))
	return err
}

// DeleteWorkout deletes a workout. The backend scopes workout deletes to
// the configured user.
func (c *Client) DeleteWorkout(ctx context.Context, localID string) error {
	_, err := c.do(ctx, http.MethodDelete, pathWorkouts+localID, userQuery(c.userID), nil)
	return err
}

// =====================================================
// Nutrition
// =====================================================

func (c *Client) CreateNutritionLog(ctx context.Context, n *models.NutritionLog) (string, error) {
	data, err := c.do(ctx, http.MethodPost, pathNutrition, userQuery(n.UserID), newNutritionBody(n))
	if err != nil {
		return "", err
	}
	return remoteID(pathNutrition, data), nil
}

func (c *Client) UpdateNutritionLog(ctx context.Context, localID string, n *models.NutritionLog) error {
	_, err := c.do(ctx, http.MethodPut, pathNutrition+localID, nil, newNutritionBody(n))
	return err
}

func (c *Client) DeleteNutritionLog(ctx context.Context, localID string) error {
	_, err := c.do(ctx, http.MethodDelete, pathNutrition+localID, nil, nil)
	return err
}

// =====================================================
// Body stats
// =====================================================

func (c *Client) CreateBodyStat(ctx context.Context, b *models.BodyStat) (string, error) {
	data, err := c.do(ctx, http.MethodPost, pathBodyStats, userQuery(b.UserID), newBodyStatBody(b))
	if err != nil {
		return "", err
	}
	return remoteID(pathBodyStats, data), nil
}

func (c *Client) UpdateBodyStat(ctx context.Context, localID string, b *models.BodyStat) error {
	_, err := c.do(ctx, http.MethodPut, pathBodyStats+localID, nil, newBodyStatBody(b))
	return err
}

func (c *Client) DeleteBodyStat(ctx context.Context, localID string) error {
	_, err := c.do(ctx, http.MethodDelete, pathBodyStats+localID, nil, nil)
	return err
}
