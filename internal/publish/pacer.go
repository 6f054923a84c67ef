package publish

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out the posts of a thread.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NoDelay never waits.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}

// RatePacer lets one post through per delay, then sleeps up to jitter
// more before every post after the first.
type RatePacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	rnd   *rand.Rand
	calls int
}

// NewPacer returns a pacer. A zero delay disables the rate limit.
func NewPacer(delay, jitter time.Duration, rnd *rand.Rand) *RatePacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &RatePacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
		sleep:   Sleep,
		rnd:     rnd,
	}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	first := p.calls == 0
	p.calls++
	var extra time.Duration
	if !first && p.jitter > 0 && p.rnd != nil {
		extra = time.Duration(p.rnd.Int64N(int64(p.jitter) + 1))
	}
	p.mu.Unlock()

	if extra == 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, extra)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
