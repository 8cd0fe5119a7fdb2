package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// env returns the flags pointing the CLI at a private data dir and remote.
func env(t *testing.T, remoteURL string) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--data-dir", dir,
		"--remote", remoteURL,
		"--log-level", "error",
	}
}

func args(base []string, rest ...string) []string {
	return append(append([]string{}, base...), rest...)
}

func okRemote(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 1}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "lifelog")
	assert.Contains(t, out, "sync")
}

func TestLogWorkoutAndList(t *testing.T) {
	base := env(t, "http://127.0.0.1:1")

	out, err := execute(t, args(base, "log", "workout",
		"--name", "Legs", "--date", "2024-06-01", "--duration", "45",
		"--exercise", "Squat:5:5:100", "--exercise", "Lunge:3:10")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved workout workout_")

	out, err = execute(t, args(base, "--json", "list", "workouts")...)
	require.NoError(t, err)

	var workouts []models.Workout
	require.NoError(t, json.Unmarshal([]byte(out), &workouts))
	require.Len(t, workouts, 1)
	assert.Equal(t, "Legs", workouts[0].Name)
	require.NotNil(t, workouts[0].DurationMinutes)
	assert.Equal(t, 45, *workouts[0].DurationMinutes)
	assert.Len(t, workouts[0].Exercises, 2)
	assert.False(t, workouts[0].Synced)
}

func TestLogMeal_validationError(t *testing.T) {
	base := env(t, "http://127.0.0.1:1")

	_, err := execute(t, args(base, "log", "meal", "--type", "brunch", "--food", "Eggs")...)
	assert.ErrorContains(t, err, "meal_type")
}

func TestStatusAndSync(t *testing.T) {
	srv := okRemote(t)
	base := env(t, srv.URL)

	_, err := execute(t, args(base, "log", "meal", "--type", "lunch", "--food", "Soup", "--calories", "300", "--date", "2024-06-01")...)
	require.NoError(t, err)
	_, err = execute(t, args(base, "log", "body", "--weight", "70.5", "--date", "2024-06-01")...)
	require.NoError(t, err)

	out, err := execute(t, args(base, "status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Unsynced: 2")
	assert.Contains(t, out, "nutrition: 1 pending")
	assert.Contains(t, out, "body_stats: 1 pending")

	out, err = execute(t, args(base, "sync")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Dispatched 2")
	assert.Contains(t, out, "0 remaining")

	out, err = execute(t, args(base, "--json", "status")...)
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Status.UnsyncedCount)
	assert.Empty(t, report.Queue)
}

func TestSyncFailureExitsWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	base := env(t, srv.URL)

	_, err := execute(t, args(base, "log", "body", "--weight", "70", "--date", "2024-06-01")...)
	require.NoError(t, err)

	out, err := execute(t, args(base, "sync")...)
	require.Error(t, err)
	assert.Contains(t, out, "failed 1")
	assert.Contains(t, out, "1 remaining")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "--config", path, "--data-dir", dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+dir)

	_, err = execute(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIFELOG_DATA_DIR", dir)
	t.Setenv("LIFELOG_REMOTE_BASE_URL", "https://env.example.com/api")

	out, err := execute(t, "--config", filepath.Join(dir, "missing.yaml"), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "data_dir: "+dir)
	assert.Contains(t, out, "base_url: https://env.example.com/api")

	// flags win over the environment
	out, err = execute(t, "--config", filepath.Join(dir, "missing.yaml"), "--remote", "http://flag.example.com", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url: http://flag.example.com")
}

func TestParseExercise(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Exercise
		weight  float64
		wantErr bool
	}{
		{in: "Squat:5:5", want: models.Exercise{Name: "Squat", Sets: 5, Reps: 5}},
		{in: "Bench Press:3:8:62.5", want: models.Exercise{Name: "Bench Press", Sets: 3, Reps: 8}, weight: 62.5},
		{in: "Squat:5", wantErr: true},
		{in: ":3:5", wantErr: true},
		{in: "Squat:x:5", wantErr: true},
		{in: "Squat:5:y", wantErr: true},
		{in: "Squat:5:5:heavy", wantErr: true},
		{in: "a:1:2:3:4", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseExercise(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want.Name, got.Name)
		assert.Equal(t, tt.want.Sets, got.Sets)
		assert.Equal(t, tt.want.Reps, got.Reps)
		if tt.weight > 0 {
			require.NotNil(t, got.WeightKg)
			assert.Equal(t, tt.weight, *got.WeightKg)
		} else {
			assert.Nil(t, got.WeightKg)
		}
	}
}
