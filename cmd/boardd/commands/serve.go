package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ashmit2704/taskboard/internal/activity"
	"github.com/ashmit2704/taskboard/internal/board"
	"github.com/ashmit2704/taskboard/internal/config"
	"github.com/ashmit2704/taskboard/internal/db"
	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/lock"
	"github.com/ashmit2704/taskboard/internal/logging"
	"github.com/ashmit2704/taskboard/internal/printer"
	"github.com/ashmit2704/taskboard/internal/server"
	versionguard "github.com/ashmit2704/taskboard/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task board server",
	Long: `Start the task board server.

Opens (and migrates) the sqlite database under the configured data
directory, then serves the REST API and the websocket event stream until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (overrides config)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), []string{
			"Check " + config.ConfigFile(),
			"Check TASKBOARD_* environment variables",
		})
	}

	logging.Init(os.Stderr, cfg.Logging.Level)

	database, err := db.Open(cfg.Paths.ResolveDataDir())
	if err != nil {
		return printer.Error("Cannot open database", err.Error(), []string{
			"Check that " + cfg.Paths.ResolveDataDir() + " is writable",
		})
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		return printer.Error("Migration failed", err.Error(), nil)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	bus := events.NewBus()
	recorder := activity.NewRecorder(repo, bus)
	svc := board.NewService(repo,
		versionguard.NewGuard(repo),
		lock.NewManager(repo, bus).WithTTL(cfg.Locks.LockTTL()),
		recorder,
		bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Info("boardd listening on %s (data: %s)\n", cfg.Server.Listen, cfg.Paths.ResolveDataDir())
	return server.New(cfg, svc, recorder, bus).Run(ctx)
}
