// Package publish posts rendered segments as a reply chain.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/postbot/internal/platform"
	"github.com/ppiankov/postbot/internal/render"
)

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Result describes a completed publish.
type Result struct {
	RootID string
	IDs    []string // one per segment, in order
	Issues []error  // skipped image downloads or uploads
}

// PartialError reports a thread that stopped after some segments were
// already live. Published segments are not removed.
type PartialError struct {
	Published []string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("thread stopped after %d of its segments were published (%s): %v",
		len(e.Published), strings.Join(e.Published, ", "), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Publisher posts segment 0 as a new post and each later segment as a
// reply to the one before it.
type Publisher struct {
	client        platform.Client
	fetcher       ImageFetcher
	pacer         Pacer
	imagesPerPost int
}

// New returns a publisher. A nil pacer publishes without delays; a nil
// fetcher disables images.
func New(client platform.Client, fetcher ImageFetcher, pacer Pacer, imagesPerPost int) *Publisher {
	if pacer == nil {
		pacer = NoDelay{}
	}
	return &Publisher{client: client, fetcher: fetcher, pacer: pacer, imagesPerPost: imagesPerPost}
}

// Publish posts segs in order. Any post failure stops the chain; when at
// least one segment was published the error is a *PartialError.
func (p *Publisher) Publish(ctx context.Context, segs []render.Segment) (Result, error) {
	if len(segs) == 0 {
		return Result{}, render.ErrNoContent
	}

	var res Result
	for i, seg := range segs {
		if err := p.pacer.Wait(ctx); err != nil {
			return res, p.stopped(res, fmt.Errorf("segment %d: %w", i, err))
		}

		var mediaIDs []string
		if i == 0 {
			var issues []error
			mediaIDs, issues = p.upload(ctx, seg.Media)
			res.Issues = append(res.Issues, issues...)
		}

		var id string
		var err error
		if i == 0 {
			id, err = p.client.CreatePost(ctx, seg.Text, mediaIDs)
		} else {
			id, err = p.client.Reply(ctx, seg.Text, res.IDs[i-1], nil)
		}
		if err != nil {
			return res, p.stopped(res, fmt.Errorf("segment %d: %w", i, err))
		}

		res.IDs = append(res.IDs, id)
		if i == 0 {
			res.RootID = id
		}
	}
	return res, nil
}

func (p *Publisher) stopped(res Result, err error) error {
	if len(res.IDs) == 0 {
		return err
	}
	return &PartialError{Published: append([]string(nil), res.IDs...), Err: err}
}

// upload tries images in order until imagesPerPost have been uploaded.
// Failures are returned as issues and the image is skipped.
func (p *Publisher) upload(ctx context.Context, urls []string) ([]string, []error) {
	if p.fetcher == nil || p.imagesPerPost <= 0 {
		return nil, nil
	}

	var ids []string
	var issues []error
	for _, u := range urls {
		if len(ids) >= p.imagesPerPost {
			break
		}
		if err := ctx.Err(); err != nil {
			issues = append(issues, err)
			break
		}

		data, err := p.fetcher.Download(ctx, u)
		if err != nil {
			issues = append(issues, fmt.Errorf("image %s: %w", u, err))
			continue
		}
		id, err := p.client.UploadMedia(ctx, data)
		if err != nil {
			issues = append(issues, fmt.Errorf("image %s: %w", u, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, issues
}
