package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

func newLogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a workout, meal or body measurement",
	}
	cmd.AddCommand(newLogWorkoutCmd(c), newLogMealCmd(c), newLogBodyCmd(c))
	return cmd
}

func newLogWorkoutCmd(c *cli) *cobra.Command {
	var (
		name      string
		date      string
		duration  int
		notes     string
		exercises []string
	)
	cmd := &cobra.Command{
		Use:   "workout",
		Short: "Record a workout",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &models.Workout{
				UserID: c.cfg.UserID,
				Name:   name,
				Date:   dateOrToday(date),
				Notes:  optionalString(notes),
			}
			if cmd.Flags().Changed("duration") {
				w.DurationMinutes = &duration
			}
			for _, raw := range exercises {
				e, err := parseExercise(raw)
				if err != nil {
					return err
				}
				w.Exercises = append(w.Exercises, e)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Store.SaveWorkout(ctx, w)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved workout %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Workout name")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Duration in minutes")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringArrayVar(&exercises, "exercise", nil, "Exercise as name:sets:reps[:weight_kg] (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLogMealCmd(c *cli) *cobra.Command {
	var (
		mealType string
		food     string
		calories int
		protein  float64
		carbs    float64
		fat      float64
		fiber    float64
		sugar    float64
		sodium   float64
		date     string
		notes    string
	)
	cmd := &cobra.Command{
		Use:   "meal",
		Short: "Record a nutrition log entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := &models.NutritionLog{
				UserID:   c.cfg.UserID,
				MealType: models.MealType(strings.ToLower(mealType)),
				FoodName: food,
				Calories: calories,
				ProteinG: protein,
				CarbsG:   carbs,
				FatG:     fat,
				FiberG:   optionalFloat(cmd, "fiber", fiber),
				SugarG:   optionalFloat(cmd, "sugar", sugar),
				SodiumMg: optionalFloat(cmd, "sodium", sodium),
				Date:     dateOrToday(date),
				Notes:    optionalString(notes),
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Store.SaveNutritionLog(ctx, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved meal %s\n", id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&mealType, "type", "", "Meal type: breakfast, lunch, dinner, snack")
	f.StringVar(&food, "food", "", "Food name")
	f.IntVar(&calories, "calories", 0, "Calories")
	f.Float64Var(&protein, "protein", 0, "Protein (g)")
	f.Float64Var(&carbs, "carbs", 0, "Carbohydrates (g)")
	f.Float64Var(&fat, "fat", 0, "Fat (g)")
	f.Float64Var(&fiber, "fiber", 0, "Fiber (g)")
	f.Float64Var(&sugar, "sugar", 0, "Sugar (g)")
	f.Float64Var(&sodium, "sodium", 0, "Sodium (mg)")
	f.StringVar(&date, "date", "", "Date (YYYY-MM-DD, default today)")
	f.StringVar(&notes, "notes", "", "Notes")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("food")
	return cmd
}

func newLogBodyCmd(c *cli) *cobra.Command {
	var (
		date                     string
		weight, bodyFat, muscle  float64
		waist, chest, arm, thigh float64
		water                    float64
	)
	cmd := &cobra.Command{
		Use:   "body",
		Short: "Record body measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &models.BodyStat{
				UserID:            c.cfg.UserID,
				Date:              dateOrToday(date),
				WeightKg:          optionalFloat(cmd, "weight", weight),
				BodyFatPercentage: optionalFloat(cmd, "body-fat", bodyFat),
				MuscleMassKg:      optionalFloat(cmd, "muscle", muscle),
				WaistCm:           optionalFloat(cmd, "waist", waist),
				ChestCm:           optionalFloat(cmd, "chest", chest),
				ArmCm:             optionalFloat(cmd, "arm", arm),
				ThighCm:           optionalFloat(cmd, "thigh", thigh),
				WaterIntake:       optionalFloat(cmd, "water", water),
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := a.Store.SaveBodyStat(ctx, b)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved body stats %s\n", id)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "Date (YYYY-MM-DD, default today)")
	f.Float64Var(&weight, "weight", 0, "Weight (kg)")
	f.Float64Var(&bodyFat, "body-fat", 0, "Body fat (%)")
	f.Float64Var(&muscle, "muscle", 0, "Muscle mass (kg)")
	f.Float64Var(&waist, "waist", 0, "Waist (cm)")
	f.Float64Var(&chest, "chest", 0, "Chest (cm)")
	f.Float64Var(&arm, "arm", 0, "Arm (cm)")
	f.Float64Var(&thigh, "thigh", 0, "Thigh (cm)")
	f.Float64Var(&water, "water", 0, "Water intake (l)")
	return cmd
}

// parseExercise reads "name:sets:reps[:weight_kg]".
func parseExercise(raw string) (models.Exercise, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return models.Exercise{}, fmt.Errorf("invalid --exercise %q (expected name:sets:reps[:weight_kg])", raw)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return models.Exercise{}, fmt.Errorf("invalid --exercise %q: name is empty", raw)
	}
	sets, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Exercise{}, fmt.Errorf("invalid --exercise %q: sets must be a number", raw)
	}
	reps, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return models.Exercise{}, fmt.Errorf("invalid --exercise %q: reps must be a number", raw)
	}
	e := models.Exercise{Name: name, Sets: sets, Reps: reps}
	if len(parts) == 4 {
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return models.Exercise{}, fmt.Errorf("invalid --exercise %q: weight must be a number", raw)
		}
		e.WeightKg = &weight
	}
	return e, nil
}

func dateOrToday(date string) string {
	if date = strings.TrimSpace(date); date != "" {
		return date
	}
	return time.Now().Format(models.DateLayout)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optionalFloat returns nil unless the flag was given.
func optionalFloat(cmd *cobra.Command, flag string, v float64) *float64 {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}
