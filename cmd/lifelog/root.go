package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/config"
)

// cli carries the resolved configuration between the root command and its
// subcommands.
type cli struct {
	configPath string
	jsonOutput bool

	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:          "lifelog",
		Short:        "lifelog records fitness and nutrition entries offline and syncs them",
		Long:         "lifelog keeps workouts, meals and body stats in a local SQLite database and replays them to the LifeLog backend when it is reachable.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to config file (default ~/.lifelog/config.yaml)")
	flags.String("data-dir", "", "Directory holding the database and token file")
	flags.String("remote", "", "Backend base URL")
	flags.Int64("user", 0, "User id records are saved for")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&c.jsonOutput, "json", false, "Print JSON instead of text")

	_ = c.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = c.v.BindPFlag("remote.base_url", flags.Lookup("remote"))
	_ = c.v.BindPFlag("user_id", flags.Lookup("user"))
	_ = c.v.BindPFlag("logging.level", flags.Lookup("log-level"))

	c.v.SetEnvPrefix("LIFELOG")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		newLogCmd(c),
		newListCmd(c),
		newStatusCmd(c),
		newSyncCmd(c),
		newRunCmd(c),
		newConfigCmd(c),
	)
	return root
}

// loadConfig reads the config file, then applies LIFELOG_* environment
// variables and flags on top.
func (c *cli) loadConfig() error {
	loader, err := config.NewLoader("")
	if err != nil {
		return err
	}
	cfg, err := loader.Load(c.configPath)
	if err != nil {
		return err
	}

	v := c.v
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("user_id") {
		cfg.UserID = v.GetInt64("user_id")
	}
	if v.IsSet("remote.base_url") {
		cfg.Remote.BaseURL = v.GetString("remote.base_url")
	}
	if v.IsSet("remote.token_file") {
		cfg.Remote.TokenFile = v.GetString("remote.token_file")
	}
	if v.IsSet("sync.sync_on_start") {
		cfg.Sync.SyncOnStart = v.GetBool("sync.sync_on_start")
	}
	if v.IsSet("sync.dispatch_timeout") {
		cfg.Sync.DispatchTimeout = v.GetDuration("sync.dispatch_timeout")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("telemetry.enabled") {
		cfg.Telemetry.Enabled = v.GetBool("telemetry.enabled")
	}
	if v.IsSet("telemetry.exporter") {
		cfg.Telemetry.Exporter = v.GetString("telemetry.exporter")
	}

	c.cfg = cfg
	return nil
}

// withApp opens the core for the duration of run.
func (c *cli) withApp(cmd *cobra.Command, run func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, c.cfg, app.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return run(ctx, a)
}

// printJSON writes v as indented JSON.
func (c *cli) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
