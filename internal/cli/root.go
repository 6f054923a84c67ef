// Package cli provides the command-line interface for postbot.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/logging"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string
	logFormat string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "postbot",
	Short: "Post news, facts and threads on a schedule",
	Long: "postbot picks one piece of content per run (a feed headline, a topic excerpt or a generated thread), " +
		"publishes it to X and keeps a daily quota and a history of everything already posted.",
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("postbot %s (%s)\n", Version, Commit)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", config.DefaultConfigDir, "directory holding config.yaml, .env and state files")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", logging.FormatText, "log format: text, json, logfmt")
	pf.StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(importCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadEnv(_ *cobra.Command, _ []string) error {
	if _, err := config.LoadEnv(configDir); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}

// newLogger builds the logger from the persistent flags. The returned
// closer releases the log file, if any.
func newLogger() (*log.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if logFile != "" {
		f, err := logging.OpenFile(logFile)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = func() { _ = f.Close() }
	}
	logger, err := logging.New(w, logLevel, logFormat)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return logger, closer, nil
}
