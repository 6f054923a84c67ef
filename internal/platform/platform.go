// Package platform talks to the social network that receives posts.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// Client publishes posts. Every call is a single attempt.
type Client interface {
	// CreatePost publishes a top-level post and returns its id.
	CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error)

	// Reply publishes a post answering inReplyTo and returns its id.
	Reply(ctx context.Context, text, inReplyTo string, mediaIDs []string) (string, error)

	// UploadMedia stores an image and returns the id to attach it with.
	UploadMedia(ctx context.Context, data []byte) (string, error)
}

// ErrEmptyText is returned for a post without text.
var ErrEmptyText = errors.New("post text is empty")

// APIError is a non-success response from the platform.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}
