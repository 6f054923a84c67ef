package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/platform"
	"github.com/ppiankov/postbot/internal/source"
	"github.com/spf13/cobra"
)

const doctorTimeout = 20 * time.Second

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and state files",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "also verify credentials against the API and fetch every feed")
}

// Overridable in tests.
var newFeedFetcher = func() source.FeedFetcher {
	return source.NewGofeedFetcher()
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// .env
	envPath := filepath.Join(configDir, config.DefaultEnvFile)
	if _, err := os.Stat(envPath); err == nil {
		printCheck(true, "env file %s", envPath)
	} else {
		printInfo("no env file at %s, using process environment", envPath)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return errors.New("some checks failed")
	}
	feeds, topics := 0, 0
	for _, c := range cfg.Categories {
		feeds += len(c.Feeds)
		topics += len(c.Topics)
	}
	printCheck(true, "config.yaml (%d categories, %d feeds, %d topics)", len(cfg.Categories), feeds, topics)

	// Credentials
	var creds config.Credentials
	if cfg.DryRun() {
		printInfo("platform.kind is dryrun, credentials not required")
	} else if creds, err = cfg.Platform.Credentials(); err != nil {
		printCheck(false, "platform credentials: %v", err)
		ok = false
	} else {
		printCheck(true, "platform credentials (%s, %s, %s, %s)",
			cfg.Platform.APIKeyEnv, cfg.Platform.APISecretEnv, cfg.Platform.AccessTokenEnv, cfg.Platform.AccessSecretEnv)
	}

	// Generator key
	if hasKind(cfg, config.KindGenerate) {
		switch {
		case cfg.Generate.APIKey != "":
			printCheck(true, "generate api key (%s)", cfg.Generate.APIKeyEnv)
		case cfg.Generate.Provider == "openai" && cfg.Generate.Endpoint != "":
			printInfo("generate api key not set, assuming %s needs none", cfg.Generate.Endpoint)
		default:
			printCheck(false, "generate api key: set generate.api_key_env for provider %s", cfg.Generate.Provider)
			ok = false
		}
	}

	// State
	ctx := cmd.Context()
	backend, err := openStore(cfg, configDir, func(err error) {
		printCheck(false, "storage (%s): %v", cfg.Storage.Backend, err)
		ok = false
	})
	if err != nil {
		printCheck(false, "storage: %v", err)
		ok = false
	} else {
		defer func() { _ = backend.Close() }()
		ids, herr := backend.History.List(ctx)
		q, qerr := backend.Quota.Read(ctx)
		if herr != nil || qerr != nil {
			printCheck(false, "storage (%s): %v", cfg.Storage.Backend, errors.Join(herr, qerr))
			ok = false
		} else {
			printCheck(true, "storage (%s): %d posted ids, %d/%d today", cfg.Storage.Backend, len(ids), q.Count, cfg.Quota.DailyLimit)
		}
	}

	if doctorOnline {
		if !checkOnline(ctx, cfg, creds) {
			ok = false
		}
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkOnline(ctx context.Context, cfg *config.Config, creds config.Credentials) bool {
	ok := true
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	if !cfg.DryRun() && creds.APIKey != "" {
		if x, isX := newXClient(creds).(*platform.X); isX {
			if name, err := x.Me(ctx); err != nil {
				printCheck(false, "x api: %v", err)
				ok = false
			} else {
				printCheck(true, "x api as @%s", name)
			}
		}
	}

	fetcher := newFeedFetcher()
	for _, c := range cfg.Categories {
		for _, feed := range c.Feeds {
			entries, err := fetcher.Fetch(ctx, feed)
			if err != nil {
				printCheck(false, "feed %s: %v", feed, err)
				ok = false
				continue
			}
			printCheck(true, "feed %s (%d entries)", feed, len(entries))
		}
	}
	return ok
}

func hasKind(cfg *config.Config, kind string) bool {
	for _, c := range cfg.Categories {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
