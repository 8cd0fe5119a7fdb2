package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
	"github.com/kimhsiao/lifelog/backend/internal/sync/queue"
)

type statusReport struct {
	State  syncpkg.State      `json:"state"`
	Status syncpkg.Status     `json:"status"`
	Queue  []queue.TableStats `json:"queue"`
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status and queue health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Engine.CheckUnsyncedCount(ctx); err != nil {
					return err
				}
				stats, err := a.Queue.Stats(ctx)
				if err != nil {
					return err
				}
				status := a.Engine.Status()
				if c.jsonOutput {
					return c.printJSON(cmd, statusReport{State: status.State(), Status: status, Queue: stats})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "State:    %s\n", status.State())
				fmt.Fprintf(out, "Unsynced: %d\n", status.UnsyncedCount)
				fmt.Fprintln(out, queue.Summary(stats))
				return nil
			})
		},
	}
}

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued changes to the backend now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.SyncAll(ctx)
				if res != nil {
					if c.jsonOutput {
						if jsonErr := c.printJSON(cmd, res); jsonErr != nil {
							return jsonErr
						}
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %d, discarded %d, failed %d, %d remaining (%s)\n",
							res.Dispatched, res.Discarded, res.Failed, res.Remaining, res.Duration.Round(time.Millisecond))
					}
				}
				return err
			})
		},
	}
}

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent until interrupted",
		Long: `Run keeps the sync core open and drains the queue on lifecycle events.
SIGUSR1 marks the app foregrounded and SIGUSR2 backgrounded. SIGINT or
SIGTERM stop the agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				unsubscribe := a.Engine.Subscribe(func(s syncpkg.Status) {
					logging.Info("Sync status", map[string]interface{}{
						"state":    string(s.State()),
						"unsynced": s.UnsyncedCount,
						"error":    s.Error,
					})
				})
				defer unsubscribe()

				if err := a.Start(ctx); err != nil {
					return err
				}
				unbind := bindLifecycleSignals(a)
				defer unbind()

				fmt.Fprintln(cmd.OutOrStdout(), "lifelog agent running; send SIGUSR1 to sync")
				<-ctx.Done()
				fmt.Fprintln(cmd.OutOrStdout(), "lifelog agent stopping")
				return nil
			})
		},
	}
}
