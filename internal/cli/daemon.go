package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/ppiankov/postbot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

const defaultSchedule = "@every 90m"

var (
	daemonSchedule string
	daemonDryRun   bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run posting passes on a cron schedule",
	Long: "daemon keeps running and triggers a posting pass on every tick of the schedule. " +
		"A tick that arrives while a pass is still running is skipped.",
	RunE: daemonAction,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonSchedule, "schedule", defaultSchedule, "cron expression or descriptor such as @every 90m")
	daemonCmd.Flags().BoolVar(&daemonDryRun, "dry-run", false, "log posts instead of publishing and do not record them")
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

func daemonAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	backend, err := openStore(cfg, configDir, func(err error) {
		logger.Warn("storage was corrupt, continuing with fresh state", "err", err)
	})
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	runner, err := buildRunner(cfg, backend, logger, runSettings{dryRun: daemonDryRun})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err = c.AddFunc(daemonSchedule, func() {
		if _, err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("run failed, stopping daemon", "err", err)
			cancel(err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", daemonSchedule, err)
	}

	logger.Info("daemon started", "schedule", daemonSchedule, "timezone", cfg.Location().String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("daemon stopped")

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
