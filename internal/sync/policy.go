package sync

import (
	"fmt"
	"strings"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// FailurePolicy decides what happens to an entry whose dispatch failed.
type FailurePolicy int

const (
	// Propagate leaves the entry queued, stops its table group and fails
	// the pass.
	Propagate FailurePolicy = iota
	// Discard marks the entry synced so it can never block the group.
	Discard
)

func (p FailurePolicy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Discard:
		return "discard"
	}
	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// Validator inspects a decoded payload before it is sent. An error means
// the entry can never succeed and is discarded.
type Validator func(op models.Operation, p models.Payload) error

// TablePolicy is the per-table behavior of the drain loop.
type TablePolicy struct {
	Validate  Validator
	OnFailure FailurePolicy
}

// Policies maps each table to its policy. Tables without an entry are
// treated as unknown and their entries discarded.
type Policies map[models.Table]TablePolicy

// DefaultPolicies propagates failures on every table, except those listed
// in discardOnFailure.
func DefaultPolicies(discardOnFailure ...models.Table) Policies {
	p := Policies{
		models.TableWorkouts:  {Validate: validateWorkout},
		models.TableNutrition: {Validate: validateNutritionLog},
		models.TableBodyStats: {Validate: validateBodyStat},
	}
	for _, t := range discardOnFailure {
		if tp, ok := p[t]; ok {
			tp.OnFailure = Discard
			p[t] = tp
		}
	}
	return p
}

func invalid(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrSyncInvalidPayload, format, args...)
}

func validateWorkout(op models.Operation, p models.Payload) error {
	w, ok := p.(*models.Workout)
	if !ok {
		return invalid("workouts entry carries %T", p)
	}
	if op == models.OpDelete {
		return nil
	}
	if strings.TrimSpace(w.Name) == "" {
		return invalid("workout %s has no name", w.LocalID)
	}
	if w.Date == "" {
		return invalid("workout %s has no date", w.LocalID)
	}
	if w.DurationMinutes == nil || *w.DurationMinutes <= 0 {
		return invalid("workout %s has no duration", w.LocalID)
	}
	return nil
}

func validateNutritionLog(op models.Operation, p models.Payload) error {
	n, ok := p.(*models.NutritionLog)
	if !ok {
		return invalid("nutrition entry carries %T", p)
	}
	if op == models.OpDelete {
		return nil
	}
	if strings.TrimSpace(n.FoodName) == "" {
		return invalid("nutrition log %s has no food name", n.LocalID)
	}
	if !n.MealType.Valid() {
		return invalid("nutrition log %s has meal type %q", n.LocalID, n.MealType)
	}
	if n.Calories < 0 {
		return invalid("nutrition log %s has negative calories", n.LocalID)
	}
	return nil
}

func validateBodyStat(op models.Operation, p models.Payload) error {
	b, ok := p.(*models.BodyStat)
	if !ok {
		return invalid("body_stats entry carries %T", p)
	}
	if op == models.OpDelete {
		return nil
	}
	if b.Date == "" {
		return invalid("body stat %s has no date", b.LocalID)
	}
	return nil
}
