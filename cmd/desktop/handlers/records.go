package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/lifelog/backend/internal/models"
	"github.com/kimhsiao/lifelog/backend/internal/store"
)

// RecordHandler serves workouts, exercises, nutrition logs and body stats.
// Every write lands in the local store and its sync queue; nothing here
// talks to the backend.
type RecordHandler struct {
	store  store.EntityStore
	userID int64
}

// NewRecordHandler creates a RecordHandler. userID is used when a request
// does not name one.
func NewRecordHandler(s store.EntityStore, userID int64) *RecordHandler {
	return &RecordHandler{store: s, userID: userID}
}

func (h *RecordHandler) listOptions(w http.ResponseWriter, r *http.Request) (int64, store.ListOptions, bool) {
	userID, ok := intQuery(r, "user_id", h.userID)
	if !ok {
		badRequest(w, "user_id must be a number")
		return 0, store.ListOptions{}, false
	}
	limit, ok := intQuery(r, "limit", 0)
	if !ok {
		badRequest(w, "limit must be a number")
		return 0, store.ListOptions{}, false
	}
	return userID, store.ListOptions{Date: r.URL.Query().Get("date"), Limit: int(limit)}, true
}

func (h *RecordHandler) user(id int64) int64 {
	if id == 0 {
		return h.userID
	}
	return id
}

// =====================================================
// Workouts
// =====================================================

// ListWorkouts handles GET /api/workouts
func (h *RecordHandler) ListWorkouts(w http.ResponseWriter, r *http.Request) {
	userID, opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}
	items, err := h.store.GetWorkouts(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// CreateWorkout handles POST /api/workouts
func (h *RecordHandler) CreateWorkout(w http.ResponseWriter, r *http.Request) {
	var req models.Workout
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = h.user(req.UserID)
	id, err := h.store.SaveWorkout(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWorkout(w, r, id, http.StatusCreated)
}

// GetWorkout handles GET /api/workouts/{local_id}
func (h *RecordHandler) GetWorkout(w http.ResponseWriter, r *http.Request) {
	h.respondWorkout(w, r, chi.URLParam(r, "local_id"), http.StatusOK)
}

// UpdateWorkout handles PUT /api/workouts/{local_id}
func (h *RecordHandler) UpdateWorkout(w http.ResponseWriter, r *http.Request) {
	var req models.Workout
	if !decodeBody(w, r, &req) {
		return
	}
	req.LocalID = chi.URLParam(r, "local_id")
	if err := h.store.UpdateWorkout(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteWorkout handles DELETE /api/workouts/{local_id}
func (h *RecordHandler) DeleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteWorkout(r.Context(), chi.URLParam(r, "local_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) respondWorkout(w http.ResponseWriter, r *http.Request, localID string, status int) {
	workout, err := h.store.GetWorkout(r.Context(), localID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, workout)
}

// ListExercises handles GET /api/workouts/{local_id}/exercises
func (h *RecordHandler) ListExercises(w http.ResponseWriter, r *http.Request) {
	localID := chi.URLParam(r, "local_id")
	if _, err := h.store.GetWorkout(r.Context(), localID); err != nil {
		writeError(w, err)
		return
	}
	items, err := h.store.GetExercises(r.Context(), localID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// AddExercise handles POST /api/workouts/{local_id}/exercises
func (h *RecordHandler) AddExercise(w http.ResponseWriter, r *http.Request) {
	var req models.Exercise
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.store.AddExercise(r.Context(), chi.URLParam(r, "local_id"), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =====================================================
// Nutrition
// =====================================================

// ListNutritionLogs handles GET /api/nutrition
func (h *RecordHandler) ListNutritionLogs(w http.ResponseWriter, r *http.Request) {
	userID, opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}
	items, err := h.store.GetNutritionLogs(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// CreateNutritionLog handles POST /api/nutrition
func (h *RecordHandler) CreateNutritionLog(w http.ResponseWriter, r *http.Request) {
	var req models.NutritionLog
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = h.user(req.UserID)
	if _, err := h.store.SaveNutritionLog(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// UpdateNutritionLog handles PUT /api/nutrition/{local_id}
func (h *RecordHandler) UpdateNutritionLog(w http.ResponseWriter, r *http.Request) {
	var req models.NutritionLog
	if !decodeBody(w, r, &req) {
		return
	}
	req.LocalID = chi.URLParam(r, "local_id")
	if err := h.store.UpdateNutritionLog(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteNutritionLog handles DELETE /api/nutrition/{local_id}
func (h *RecordHandler) DeleteNutritionLog(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteNutritionLog(r.Context(), chi.URLParam(r, "local_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =====================================================
// Body stats
// =====================================================

// ListBodyStats handles GET /api/body-stats
func (h *RecordHandler) ListBodyStats(w http.ResponseWriter, r *http.Request) {
	userID, opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}
	items, err := h.store.GetBodyStats(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// CreateBodyStat handles POST /api/body-stats
func (h *RecordHandler) CreateBodyStat(w http.ResponseWriter, r *http.Request) {
	var req models.BodyStat
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = h.user(req.UserID)
	if _, err := h.store.SaveBodyStat(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// UpdateBodyStat handles PUT /api/body-stats/{local_id}
func (h *RecordHandler) UpdateBodyStat(w http.ResponseWriter, r *http.Request) {
	var req models.BodyStat
	if !decodeBody(w, r, &req) {
		return
	}
	req.LocalID = chi.URLParam(r, "local_id")
	if err := h.store.UpdateBodyStat(r.Context(), &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteBodyStat handles DELETE /api/body-stats/{local_id}
func (h *RecordHandler) DeleteBodyStat(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBodyStat(r.Context(), chi.URLParam(r, "local_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Routes mounts the record endpoints on r.
func (h *RecordHandler) Routes(r chi.Router) {
	r.Route("/workouts", func(r chi.Router) {
		r.Get("/", h.ListWorkouts)
		r.Post("/", h.CreateWorkout)
		r.Get("/{local_id}", h.GetWorkout)
		r.Put("/{local_id}", h.UpdateWorkout)
		r.Delete("/{local_id}", h.DeleteWorkout)
		r.Get("/{local_id}/exercises", h.ListExercises)
		r.Post("/{local_id}/exercises", h.AddExercise)
	})
	r.Route("/nutrition", func(r chi.Router) {
		r.Get("/", h.ListNutritionLogs)
		r.Post("/", h.CreateNutritionLog)
		r.Put("/{local_id}", h.UpdateNutritionLog)
		r.Delete("/{local_id}", h.DeleteNutritionLog)
	})
	r.Route("/body-stats", func(r chi.Router) {
		r.Get("/", h.ListBodyStats)
		r.Post("/", h.CreateBodyStat)
		r.Put("/{local_id}", h.UpdateBodyStat)
		r.Delete("/{local_id}", h.DeleteBodyStat)
	})
}
