package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ppiankov/postbot/internal/bot"
	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/generate"
	"github.com/ppiankov/postbot/internal/media"
	"github.com/ppiankov/postbot/internal/platform"
	"github.com/ppiankov/postbot/internal/publish"
	"github.com/ppiankov/postbot/internal/render"
	"github.com/ppiankov/postbot/internal/sanitize"
	"github.com/ppiankov/postbot/internal/source"
	"github.com/ppiankov/postbot/internal/store"
)

// Overridable in tests.
var (
	newXClient = func(creds config.Credentials) platform.Client {
		return platform.NewX(creds)
	}
	newGenerator    = generate.New
	newEncyclopedia = func() source.Encyclopedia {
		return source.NewWikipedia()
	}
	newRand = func() *rand.Rand {
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, now>>1))
	}
)

// runSettings are the per-invocation switches of run and daemon.
type runSettings struct {
	dryRun  bool
	noDelay bool
}

// resolvePath anchors relative state paths at the config dir.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// openStore opens the configured backend. Corrupt state that the store set
// aside is reported through warn and the fresh backend is returned.
func openStore(cfg *config.Config, dir string, warn func(error)) (*store.Backend, error) {
	backend, err := store.Open(store.Options{
		Backend:     cfg.Storage.Backend,
		HistoryPath: resolvePath(dir, cfg.Storage.HistoryPath),
		QuotaPath:   resolvePath(dir, cfg.Storage.QuotaPath),
		DBPath:      resolvePath(dir, cfg.Storage.Path),
		Clock:       store.ClockIn(cfg.Location()),
	})
	if errors.Is(err, store.ErrCorrupt) && backend != nil {
		warn(err)
		return backend, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return backend, nil
}

// buildSelector creates one source per category.
func buildSelector(cfg *config.Config, cleaner *sanitize.Cleaner, rnd *rand.Rand) (*source.Selector, error) {
	var fetcher source.FeedFetcher
	var wiki source.Encyclopedia
	var gen generate.Generator

	pools := make([]source.Pool, 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		var src source.Source
		var err error
		switch cat.Kind {
		case config.KindFeed:
			if fetcher == nil {
				fetcher = source.NewGofeedFetcher()
			}
			src, err = source.NewFeed(source.FeedOptions{
				Category: cat.Name,
				Feeds:    cat.Feeds,
				TopK:     cfg.Run.FeedTopK,
				Prefix:   cat.Prefix,
				Tags:     cat.Tags,
				Fetcher:  fetcher,
				Cleaner:  cleaner,
			})
		case config.KindTopics:
			if wiki == nil && usesWiki(cat.Topics) {
				wiki = newEncyclopedia()
			}
			src, err = source.NewTopics(source.TopicOptions{
				Category: cat.Name,
				Topics:   cat.Topics,
				Prefix:   cat.Prefix,
				Tags:     cat.Tags,
				Wiki:     wiki,
				Cleaner:  cleaner,
				Rand:     rnd,
			})
		case config.KindGenerate:
			if gen == nil {
				if gen, err = newGenerator(cfg.Generate); err != nil {
					return nil, err
				}
			}
			src, err = source.NewGenerative(source.GenerateOptions{
				Category:  cat.Name,
				Topics:    cat.Topics,
				Style:     cat.Style,
				Segments:  cat.Segments,
				Tone:      cat.Tone,
				IDFrom:    cat.IDFrom,
				Prefix:    cat.Prefix,
				Tags:      cat.Tags,
				MaxChars:  cfg.Platform.MaxChars,
				Separator: cfg.Generate.Separator,
				Attempts:  cfg.Run.GenerateAttempts,
				Generator: gen,
				Rand:      rnd,
			})
		default:
			err = fmt.Errorf("unknown kind %q", cat.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}
		pools = append(pools, source.Pool{Weight: cat.Weight, Source: src})
	}
	return source.NewSelector(pools, rnd)
}

func usesWiki(topics []config.Topic) bool {
	for _, t := range topics {
		if t.Wiki != "" {
			return true
		}
	}
	return false
}

// connector returns the Authenticate step: the dry-run client, or an X
// client once all four credentials are present.
func connector(cfg *config.Config, logger *log.Logger, dryRun bool) func(context.Context) (platform.Client, error) {
	return func(context.Context) (platform.Client, error) {
		if dryRun {
			return platform.NewDryRun(logger), nil
		}
		creds, err := cfg.Platform.Credentials()
		if err != nil {
			return nil, err
		}
		return newXClient(creds), nil
	}
}

// buildRunner assembles a runner over an opened store.
func buildRunner(cfg *config.Config, backend *store.Backend, logger *log.Logger, rs runSettings) (*bot.Runner, error) {
	cleaner, err := sanitize.New(cfg.Sanitize.Patterns)
	if err != nil {
		return nil, fmt.Errorf("sanitize patterns: %w", err)
	}

	rnd := newRand()
	selector, err := buildSelector(cfg, cleaner, rnd)
	if err != nil {
		return nil, err
	}

	dryRun := rs.dryRun || cfg.DryRun()
	var pacer publish.Pacer = publish.NoDelay{}
	startJitter := time.Duration(0)
	if !rs.noDelay {
		pacer = publish.NewPacer(cfg.Run.SegmentDelay.Duration, cfg.Run.SegmentJitter.Duration, rnd)
		startJitter = cfg.Run.StartJitter.Duration
	}
	fetcher := media.NewFetcher(nil, cfg.Media.MaxBytes)

	var finder bot.ImageFinder
	if cfg.Media.OGImage {
		finder = media.NewFinder(nil)
	}

	return bot.New(bot.Options{
		History:    backend.History,
		Quota:      backend.Quota,
		DailyLimit: cfg.Quota.DailyLimit,
		Connect:    connector(cfg, logger, dryRun),
		Selector:   selector,
		Renderer:   render.FromConfig(cfg),
		NewPublisher: func(c platform.Client) bot.Publisher {
			return publish.New(c, fetcher, pacer, cfg.Media.ImagesPerPost)
		},
		Finder:      finder,
		Logger:      logger,
		StartJitter: startJitter,
		Rand:        rnd,
		DryRun:      dryRun,
	})
}
