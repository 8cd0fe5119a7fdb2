package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/store"
)

func newListCmd(c *cli) *cobra.Command {
	var opts store.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded entries",
	}
	cmd.PersistentFlags().StringVar(&opts.Date, "date", "", "Only entries on this date (YYYY-MM-DD)")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", store.DefaultLimit, "Maximum entries to show")

	workouts := &cobra.Command{
		Use:   "workouts",
		Short: "List workouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Store.GetWorkouts(ctx, c.cfg.UserID, opts)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd, items)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tNAME\tMINUTES\tEXERCISES\tSYNCED")
				for _, w := range items {
					minutes := "-"
					if w.DurationMinutes != nil {
						minutes = fmt.Sprint(*w.DurationMinutes)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n", w.LocalID, w.Date, w.Name, minutes, len(w.Exercises), w.Synced)
				}
				return tw.Flush()
			})
		},
	}

	meals := &cobra.Command{
		Use:     "meals",
		Aliases: []string{"nutrition"},
		Short:   "List nutrition logs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Store.GetNutritionLogs(ctx, c.cfg.UserID, opts)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd, items)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tMEAL\tFOOD\tKCAL\tP/C/F\tSYNCED")
				for _, n := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.0f/%.0f/%.0f\t%t\n",
						n.LocalID, n.Date, n.MealType, n.FoodName, n.Calories, n.ProteinG, n.CarbsG, n.FatG, n.Synced)
				}
				return tw.Flush()
			})
		},
	}

	body := &cobra.Command{
		Use:   "body",
		Short: "List body measurements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				items, err := a.Store.GetBodyStats(ctx, c.cfg.UserID, opts)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd, items)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tWEIGHT_KG\tBODY_FAT%\tSYNCED")
				for _, b := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", b.LocalID, b.Date, formatFloat(b.WeightKg), formatFloat(b.BodyFatPercentage), b.Synced)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(workouts, meals, body)
	return cmd
}

func formatFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *p)
}
