package platform

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// DryRun logs posts instead of sending them and returns synthetic ids.
type DryRun struct {
	logger *log.Logger
	seq    atomic.Int64
}

func NewDryRun(logger *log.Logger) *DryRun {
	return &DryRun{logger: logger}
}

func (d *DryRun) next(kind string) string {
	return fmt.Sprintf("dryrun-%s-%d", kind, d.seq.Add(1))
}

func (d *DryRun) CreatePost(_ context.Context, text string, mediaIDs []string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	id := d.next("post")
	d.logger.Info("dry run post", "id", id, "media", len(mediaIDs), "text", text)
	return id, nil
}

func (d *DryRun) Reply(_ context.Context, text, inReplyTo string, mediaIDs []string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	id := d.next("post")
	d.logger.Info("dry run reply", "id", id, "in_reply_to", inReplyTo, "media", len(mediaIDs), "text", text)
	return id, nil
}

func (d *DryRun) UploadMedia(_ context.Context, data []byte) (string, error) {
	id := d.next("media")
	d.logger.Info("dry run upload", "id", id, "bytes", len(data))
	return id, nil
}
