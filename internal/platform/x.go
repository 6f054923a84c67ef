package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/ppiankov/postbot/internal/config"
)

const (
	defaultAPIBase    = "https://api.twitter.com"
	defaultUploadBase = "https://upload.twitter.com"
	xTimeout          = 30 * time.Second
	maxErrorBody      = 512
)

// X posts through the X API: v2 for posts, v1.1 for media upload. Requests
// are signed with OAuth 1.0a user context.
type X struct {
	client     *http.Client
	apiBase    string
	uploadBase string
}

// NewX returns a client signing requests with creds.
func NewX(creds config.Credentials) *X {
	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	client := cfg.Client(oauth1.NoContext, token)
	client.Timeout = xTimeout
	return &X{client: client, apiBase: defaultAPIBase, uploadBase: defaultUploadBase}
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (x *X) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	return x.tweet(ctx, "create post", tweetRequest{Text: text}, mediaIDs)
}

func (x *X) Reply(ctx context.Context, text, inReplyTo string, mediaIDs []string) (string, error) {
	if inReplyTo == "" {
		return "", fmt.Errorf("reply: in_reply_to is required")
	}
	req := tweetRequest{Text: text, Reply: &tweetReply{InReplyToTweetID: inReplyTo}}
	return x.tweet(ctx, "reply", req, mediaIDs)
}

func (x *X) tweet(ctx context.Context, op string, body tweetRequest, mediaIDs []string) (string, error) {
	if strings.TrimSpace(body.Text) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyText)
	}
	if len(mediaIDs) > 0 {
		body.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%s: marshal: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.apiBase+"/2/tweets", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp tweetResponse
	if err := x.do(req, op, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("%s: response has no id", op)
	}
	return resp.Data.ID, nil
}

type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// UploadMedia performs a simple (non-chunked) upload.
func (x *X) UploadMedia(ctx context.Context, data []byte) (string, error) {
	const op = "upload media"
	if len(data) == 0 {
		return "", fmt.Errorf("%s: empty image", op)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", "image")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := x.do(req, op, &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("%s: response has no media id", op)
	}
	return resp.MediaIDString, nil
}

type meResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// Me returns the username the credentials act for.
func (x *X) Me(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.apiBase+"/2/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("me: create request: %w", err)
	}
	var resp meResponse
	if err := x.do(req, "me", &resp); err != nil {
		return "", err
	}
	return resp.Data.Username, nil
}

func (x *X) do(req *http.Request, op string, out any) error {
	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
