package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/AliciaSchep/posdash/pkg/config"
	"github.com/AliciaSchep/posdash/pkg/dashboard"
	"github.com/AliciaSchep/posdash/pkg/db"
	"github.com/AliciaSchep/posdash/pkg/display"
	usererrors "github.com/AliciaSchep/posdash/pkg/errors"
	"github.com/AliciaSchep/posdash/pkg/server"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	errDashboardUnavailable = errors.New("dashboard unavailable")
	errUnhealthy            = errors.New("database unhealthy")
	errBootstrapFailed      = errors.New("schema bootstrap failed")
)

func getVersionString() string {
	if commit != "unknown" && buildDate != "unknown" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return version
}

// app holds the state shared by every subcommand
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "posdash",
		Short: "Point-of-sale dashboard backed by PostgreSQL",
		Long: `posdash summarizes a shop's sales, purchases, profit and stock levels.

The database connection string is read from --database-url or, in order, from
DATABASE_URL, POSTGRES_URL, NEON_DATABASE_URL, POSTGRES_PRISMA_URL and
POSTGRES_URL_NON_POOLING. With none of them set every query returns no rows.

Examples:
  posdash summary --user 42 --device 1
  posdash summary --user 42 --device 1 --strict --json
  posdash health
  posdash serve --addr :8080`,
		Version:           getVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML config file")
	flags.String("database-url", "", "PostgreSQL connection string (overrides environment)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	mustBind(a.v, "database.url", flags.Lookup("database-url"))
	mustBind(a.v, "log.level", flags.Lookup("log-level"))
	mustBind(a.v, "log.format", flags.Lookup("log-format"))

	root.AddCommand(
		a.newSummaryCmd(),
		a.newHealthCmd(),
		a.newBootstrapCmd(),
		a.newServeCmd(),
	)
	return root
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := setupLogging(logrus.StandardLogger(), cfg.Log); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func setupLogging(log *logrus.Logger, cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q (must be: text, json)", cfg.Format)
	}
	log.SetOutput(os.Stderr)
	return nil
}

func (a *app) openDatabase(ctx context.Context) (*db.Database, error) {
	return db.Open(ctx, a.cfg.Database.URL, db.OptionsFromConfig(a.cfg))
}

func (a *app) newSummaryCmd() *cobra.Command {
	var (
		userID, deviceID int64
		strict, asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard summary for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 || deviceID <= 0 {
				return fmt.Errorf("%w: --user and --device must be positive integers", dashboard.ErrMissingParameter)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			database, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			agg := dashboard.NewAggregator(database)
			var summary *dashboard.Summary
			if strict {
				summary, err = agg.SummarizeStrict(ctx, userID, deviceID)
			} else {
				summary, err = agg.Summarize(ctx, userID, deviceID)
			}
			if err != nil {
				usererrors.DatabaseError(cmd.ErrOrStderr(), "dashboard summary", err)
				return errDashboardUnavailable
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			} else if err := display.RenderSummary(out, summary, display.TerminalWidth(out)); err != nil {
				return err
			}

			if !summary.Success {
				return errDashboardUnavailable
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id (required)")
	cmd.Flags().Int64Var(&deviceID, "device", 0, "Device id (required)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Propagate database errors after retrying instead of showing partial data")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func (a *app) newHealthCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			status := database.Health(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(out).Encode(status); err != nil {
					return err
				}
			} else {
				switch {
				case status.IsHealthy:
					usererrors.UserInfo(out, "%s: %s", database.Target(), status.Message)
				case status.MockMode:
					usererrors.UserWarning(out, "%s", usererrors.UserMessage(db.ErrMockMode))
				default:
					usererrors.UserError(out, "%s: %s", database.Target(), status.Message)
				}
			}

			if !status.IsHealthy {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func (a *app) newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create any missing point-of-sale tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			if database.State.MockMode() {
				return errors.New(usererrors.UserMessage(db.ErrMockMode))
			}

			if err := db.Bootstrap(cmd.Context(), database.Executor); err != nil {
				logrus.WithError(err).Error("schema bootstrap failed")
				usererrors.DatabaseError(cmd.ErrOrStderr(), "bootstrap", err)
				return errBootstrapFailed
			}

			missing, err := db.MissingTables(cmd.Context(), database.Executor)
			if err != nil {
				usererrors.DatabaseError(cmd.ErrOrStderr(), "table check", err)
				return errBootstrapFailed
			}
			if len(missing) > 0 {
				return fmt.Errorf("tables still missing after bootstrap: %s", strings.Join(missing, ", "))
			}
			usererrors.UserInfo(cmd.OutOrStdout(), "Schema ready: %d tables present on %s", len(db.Tables), database.Target())
			return nil
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, health check and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := logrus.StandardLogger()
			database, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if !database.State.MockMode() {
				if err := db.Bootstrap(ctx, database.Executor); err != nil {
					log.WithError(err).Error("schema bootstrap failed, reads against missing tables will return no rows")
				}
			}

			agg := dashboard.NewAggregator(database, dashboard.WithLogger(log))
			router := server.NewRouter(server.NewHandlers(agg, database, log), log)
			prober := db.NewProber(database, a.cfg.Server.ProbeInterval)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return prober.Run(gctx)
			})
			g.Go(func() error {
				return server.Run(gctx, a.cfg.Server.Addr, router, log)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	mustBind(a.v, "server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		usererrors.UserError(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}
}
