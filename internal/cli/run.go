package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/postbot/internal/bot"
	"github.com/ppiankov/postbot/internal/config"
	"github.com/spf13/cobra"
)

var (
	runDryRun  bool
	runNoDelay bool
	runFormat  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one posting pass",
	Long: "run checks the daily quota, picks one piece of content that has not been posted, " +
		"publishes it and records it. Every outcome exits 0; configuration errors exit 1.",
	RunE: runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log posts instead of publishing and do not record them")
	runCmd.Flags().BoolVar(&runNoDelay, "no-delay", false, "skip the start delay and the pauses between thread segments")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "report format: text or json")
}

func runAction(cmd *cobra.Command, _ []string) error {
	if runFormat != "text" && runFormat != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", runFormat)
	}

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

	runner, err := buildRunner(cfg, backend, logger, runSettings{dryRun: runDryRun, noDelay: runNoDelay})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted")
			return nil
		}
		return err
	}
	return printReport(rep)
}

func printReport(rep bot.Report) error {
	if runFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	switch rep.Outcome {
	case bot.Posted:
		fmt.Printf("Posted %s (%s) as %s, %d posts today.\n", rep.ContentID, rep.Category, rep.RootID, rep.Count)
	case bot.SkippedQuota:
		fmt.Printf("Daily limit reached (%d posts today), nothing posted.\n", rep.Count)
	case bot.SkippedNoContent:
		fmt.Println("Nothing new to post.")
	case bot.FailedPublish:
		fmt.Printf("Publishing %s failed, nothing recorded.\n", rep.ContentID)
	}
	return nil
}
