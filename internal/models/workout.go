package models

import "time"

// Workout is a training session. Exercises are carried inline so the
// workout's queue snapshot is self-contained.
type Workout struct {
	RemoteID        string     `db:"remote_id" json:"id,omitempty"`
	LocalID         string     `db:"local_id" json:"local_id"`
	UserID          int64      `db:"user_id" json:"user_id"`
	Name            string     `db:"name" json:"name"`
	Date            string     `db:"date" json:"date"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	Synced          bool       `db:"synced" json:"synced"`
	CreatedAt       int64      `db:"created_at" json:"created_at"`
	UpdatedAt       int64      `db:"updated_at" json:"updated_at"`
	Exercises       []Exercise `db:"-" json:"exercises"`
}

// TableName returns the table name for Workout.
func (Workout) TableName() string {
	return "local_workouts"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (w *Workout) CreatedAtTime() time.Time {
	return millisToTime(w.CreatedAt)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (w *Workout) UpdatedAtTime() time.Time {
	return millisToTime(w.UpdatedAt)
}

// Exercise belongs to a workout through WorkoutID, the parent's local id.
type Exercise struct {
	RemoteID        string   `db:"remote_id" json:"id,omitempty"`
	LocalID         string   `db:"local_id" json:"local_id"`
	WorkoutID       string   `db:"workout_id" json:"workout_id"`
	UserID          int64    `db:"user_id" json:"user_id"`
	Name            string   `db:"name" json:"name"`
	Sets            int      `db:"sets" json:"sets"`
	Reps            int      `db:"reps" json:"reps"`
	WeightKg        *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	DurationSeconds *int     `db:"duration_seconds" json:"duration_seconds,omitempty"`
	DistanceKm      *float64 `db:"distance_km" json:"distance_km,omitempty"`
	Synced          bool     `db:"synced" json:"synced"`
	CreatedAt       int64    `db:"created_at" json:"created_at"`
	UpdatedAt       int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Exercise.
func (Exercise) TableName() string {
	return "local_exercises"
}
