package models

import "time"

// MealType classifies a nutrition log entry.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether m is one of the known meal types.
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// NutritionLog is one food item eaten at a meal.
type NutritionLog struct {
	RemoteID  string   `db:"remote_id" json:"id,omitempty"`
	LocalID   string   `db:"local_id" json:"local_id"`
	UserID    int64    `db:"user_id" json:"user_id"`
	MealType  MealType `db:"meal_type" json:"meal_type"`
	FoodName  string   `db:"food_name" json:"food_name"`
	Calories  int      `db:"calories" json:"calories"`
	ProteinG  float64  `db:"protein_g" json:"protein_g"`
	CarbsG    float64  `db:"carbs_g" json:"carbs_g"`
	FatG      float64  `db:"fat_g" json:"fat_g"`
	FiberG    *float64 `db:"fiber_g" json:"fiber_g,omitempty"`
	SugarG    *float64 `db:"sugar_g" json:"sugar_g,omitempty"`
	SodiumMg  *float64 `db:"sodium_mg" json:"sodium_mg,omitempty"`
	Notes     *string  `db:"notes" json:"notes,omitempty"`
	Date      string   `db:"date" json:"date"`
	Synced    bool     `db:"synced" json:"synced"`
	CreatedAt int64    `db:"created_at" json:"created_at"`
	UpdatedAt int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for NutritionLog.
func (NutritionLog) TableName() string {
	return "local_nutrition_logs"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (n *NutritionLog) CreatedAtTime() time.Time {
	return millisToTime(n.CreatedAt)
}
