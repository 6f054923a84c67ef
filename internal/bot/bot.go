// Package bot runs one posting pass: check the quota, pick content, render
// it, publish it and record it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ppiankov/postbot/internal/platform"
	"github.com/ppiankov/postbot/internal/publish"
	"github.com/ppiankov/postbot/internal/render"
	"github.com/ppiankov/postbot/internal/source"
	"github.com/ppiankov/postbot/internal/store"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	Posted           Outcome = "posted"
	SkippedQuota     Outcome = "skipped_quota"
	SkippedNoContent Outcome = "skipped_no_content"
	FailedPublish    Outcome = "failed_publish"
)

// Selector picks a candidate that is not in seen.
type Selector interface {
	Select(ctx context.Context, seen store.Set) source.Selection
}

// Renderer lays a candidate out as segments.
type Renderer interface {
	Render(c source.Candidate) ([]render.Segment, error)
}

// Publisher posts segments.
type Publisher interface {
	Publish(ctx context.Context, segs []render.Segment) (publish.Result, error)
}

// ImageFinder returns the preview image declared by an article page.
type ImageFinder interface {
	Find(ctx context.Context, pageURL string) (string, error)
}

// Options wires a Runner. Connect returns a configuration error when the
// platform cannot be reached with the configured credentials.
type Options struct {
	History      store.History
	Quota        store.Quota
	DailyLimit   int
	Connect      func(ctx context.Context) (platform.Client, error)
	Selector     Selector
	Renderer     Renderer
	NewPublisher func(platform.Client) Publisher
	Finder       ImageFinder // optional
	Logger       *log.Logger

	StartJitter time.Duration
	Rand        *rand.Rand
	Sleep       func(ctx context.Context, d time.Duration) error
	NewRunID    func() string

	// DryRun skips the history and quota commit.
	DryRun bool
}

// Report summarizes a run.
type Report struct {
	RunID     string   `json:"run_id"`
	Outcome   Outcome  `json:"outcome"`
	ContentID string   `json:"content_id,omitempty"`
	Category  string   `json:"category,omitempty"`
	RootID    string   `json:"root_id,omitempty"`
	PostIDs   []string `json:"post_ids,omitempty"`
	Count     int      `json:"count"`
}

// Runner executes runs. It assumes no other run is in flight.
type Runner struct {
	opts Options
}

func New(opts Options) (*Runner, error) {
	switch {
	case opts.History == nil:
		return nil, errors.New("runner: history is required")
	case opts.Quota == nil:
		return nil, errors.New("runner: quota is required")
	case opts.Connect == nil:
		return nil, errors.New("runner: connect is required")
	case opts.Selector == nil:
		return nil, errors.New("runner: selector is required")
	case opts.Renderer == nil:
		return nil, errors.New("runner: renderer is required")
	case opts.NewPublisher == nil:
		return nil, errors.New("runner: publisher is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = publish.Sleep
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Runner{opts: opts}, nil
}

// Run performs one pass. The error is non-nil only for configuration
// errors and cancellation; every other failure ends in an Outcome.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: r.opts.NewRunID()}
	logger := r.opts.Logger.With("run", rep.RunID)

	if err := r.startDelay(ctx, logger); err != nil {
		return rep, err
	}

	// CheckQuota
	state, err := r.opts.Quota.Read(ctx)
	if err != nil {
		logger.Warn("quota state unreadable, starting from zero", "err", err)
	}
	rep.Count = state.Count
	if state.Count >= r.opts.DailyLimit {
		logger.Info("daily limit reached", "count", state.Count, "limit", r.opts.DailyLimit, "date", state.Date)
		return r.finish(logger, rep, SkippedQuota), nil
	}

	// Authenticate
	client, err := r.opts.Connect(ctx)
	if err != nil {
		return rep, fmt.Errorf("connect: %w", err)
	}

	// Select
	seen, err := r.opts.History.Load(ctx)
	if err != nil {
		logger.Warn("history unreadable, treating as empty", "err", err)
	}
	sel := r.opts.Selector.Select(ctx, seen)
	for _, issue := range sel.Issues {
		logger.Warn("source issue", "err", issue)
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	if sel.Candidate == nil {
		logger.Info("nothing new to post")
		return r.finish(logger, rep, SkippedNoContent), nil
	}
	c := *sel.Candidate
	rep.ContentID, rep.Category = c.ID, c.Category
	logger.Info("selected", "id", c.ID, "category", c.Category, "kind", c.Kind)

	r.discoverImage(ctx, logger, &c)

	// Render
	segs, err := r.opts.Renderer.Render(c)
	if err != nil {
		logger.Warn("render failed", "id", c.ID, "err", err)
		return r.finish(logger, rep, SkippedNoContent), nil
	}

	// Publish
	res, err := r.opts.NewPublisher(client).Publish(ctx, segs)
	for _, issue := range res.Issues {
		logger.Warn("image skipped", "err", issue)
	}
	rep.RootID, rep.PostIDs = res.RootID, res.IDs
	if err != nil {
		var pe *publish.PartialError
		if errors.As(err, &pe) {
			logger.Error("thread partially published", "published", pe.Published, "err", pe.Err)
		} else {
			logger.Error("publish failed", "err", err)
		}
		return r.finish(logger, rep, FailedPublish), nil
	}

	// Commit
	if r.opts.DryRun {
		logger.Info("dry run, not recording", "id", c.ID)
		return r.finish(logger, rep, Posted), nil
	}
	// The post is live; a shutdown signal must not stop it being recorded.
	commitCtx := context.WithoutCancel(ctx)
	if err := r.opts.History.Record(commitCtx, c.ID); err != nil {
		logger.Error("record history", "id", c.ID, "err", err)
	}
	if err := r.opts.Quota.Write(commitCtx, state.Count+1); err != nil {
		logger.Error("write quota", "err", err)
	} else {
		rep.Count = state.Count + 1
	}
	return r.finish(logger, rep, Posted), nil
}

func (r *Runner) startDelay(ctx context.Context, logger *log.Logger) error {
	if r.opts.StartJitter <= 0 {
		return nil
	}
	d := time.Duration(r.opts.Rand.Int64N(int64(r.opts.StartJitter) + 1))
	logger.Debug("start delay", "delay", d)
	return r.opts.Sleep(ctx, d)
}

// discoverImage appends the article's preview image to the candidate.
func (r *Runner) discoverImage(ctx context.Context, logger *log.Logger, c *source.Candidate) {
	if r.opts.Finder == nil || c.Link == "" {
		return
	}
	img, err := r.opts.Finder.Find(ctx, c.Link)
	if err != nil {
		logger.Debug("no preview image", "link", c.Link, "err", err)
		return
	}
	for _, existing := range c.Images {
		if existing == img {
			return
		}
	}
	c.Images = append(append([]string(nil), c.Images...), img)
}

func (r *Runner) finish(logger *log.Logger, rep Report, o Outcome) Report {
	rep.Outcome = o
	logger.Info("run finished", "outcome", o, "count", rep.Count)
	return rep
}
