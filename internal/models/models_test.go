// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// =====================================================
// Table / Operation Tests
// =====================================================

// TestParseTable verifies known and unknown queue table names.
func TestParseTable(t *testing.T) {
	for _, tbl := range Tables() {
		got, err := ParseTable(string(tbl))
		if err != nil || got != tbl {
			t.Errorf("ParseTable(%q) = %q, %v", tbl, got, err)
		}
	}
	if _, err := ParseTable("exercises"); err == nil {
		t.Error("ParseTable(exercises) should fail")
	}
}

// TestParseOperation verifies operation names.
func TestParseOperation(t *testing.T) {
	for _, op := range []Operation{OpInsert, OpUpdate, OpDelete} {
		if _, err := ParseOperation(string(op)); err != nil {
			t.Errorf("ParseOperation(%q) error = %v", op, err)
		}
	}
	if _, err := ParseOperation("UPSERT"); err == nil {
		t.Error("ParseOperation(UPSERT) should fail")
	}
}

// TestMealType_Valid verifies the meal type domain.
func TestMealType_Valid(t *testing.T) {
	if !MealDinner.Valid() {
		t.Error("dinner should be valid")
	}
	if MealType("brunch").Valid() {
		t.Error("brunch should be invalid")
	}
}

// =====================================================
// Payload Tests
// =====================================================

// TestPayload_tables verifies every payload kind reports its queue table.
func TestPayload_tables(t *testing.T) {
	tests := []struct {
		p    Payload
		want Table
	}{
		{&Workout{LocalID: "workout_1"}, TableWorkouts},
		{&NutritionLog{LocalID: "nutrition_1"}, TableNutrition},
		{&BodyStat{LocalID: "body_1"}, TableBodyStats},
	}
	for _, tt := range tests {
		if tt.p.QueueTable() != tt.want {
			t.Errorf("QueueTable() = %q, want %q", tt.p.QueueTable(), tt.want)
		}
		if !strings.HasSuffix(tt.p.RecordID(), "_1") {
			t.Errorf("RecordID() = %q", tt.p.RecordID())
		}
	}
}

// TestDecodePayload_workoutSnapshot verifies nested exercises and a null
// duration survive the snapshot.
func TestDecodePayload_workoutSnapshot(t *testing.T) {
	w := &Workout{
		LocalID: "workout_a",
		UserID:  3,
		Name:    "Legs",
		Date:    "2024-05-01",
		Exercises: []Exercise{
			{LocalID: "exercise_a", WorkoutID: "workout_a", Name: "Squat", Sets: 5, Reps: 5},
		},
	}
	data, err := EncodePayload(w)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	if !strings.Contains(string(data), `"duration_minutes":null`) {
		t.Errorf("snapshot should carry an explicit null duration: %s", data)
	}

	entry := MutationEntry{TableName: TableWorkouts, Data: data}
	p, err := entry.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, ok := p.(*Workout)
	if !ok {
		t.Fatalf("Decode() type = %T, want *Workout", p)
	}
	if got.DurationMinutes != nil {
		t.Errorf("DurationMinutes = %v, want nil", *got.DurationMinutes)
	}
	if len(got.Exercises) != 1 || got.Exercises[0].Name != "Squat" {
		t.Errorf("Exercises = %+v", got.Exercises)
	}
}

// TestDecodePayload_errors verifies unknown tables and malformed data fail.
func TestDecodePayload_errors(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		data  string
	}{
		{"unknown table", Table("steps"), `{}`},
		{"empty data", TableNutrition, ``},
		{"malformed json", TableBodyStats, `{"date":`},
		{"wrong shape", TableNutrition, `{"calories":"lots"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePayload(tt.table, json.RawMessage(tt.data)); err == nil {
				t.Error("DecodePayload() should fail")
			}
		})
	}
}

// TestBodyStat_HasMeasurement verifies the measurement presence check.
func TestBodyStat_HasMeasurement(t *testing.T) {
	b := &BodyStat{Date: "2024-05-01"}
	if b.HasMeasurement() {
		t.Error("empty body stat has no measurement")
	}
	water := 2.5
	b.WaterIntake = &water
	if !b.HasMeasurement() {
		t.Error("water intake counts as a measurement")
	}
}
