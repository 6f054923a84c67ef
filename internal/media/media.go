// Package media discovers and downloads images attached to posts.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	fetchTimeout = 20 * time.Second
	maxPageBytes = 2 << 20
	userAgent    = "Mozilla/5.0 (compatible; postbot/1.0; +https://github.com/ppiankov/postbot)"
)

var (
	// ErrNoImage is returned when a page declares no preview image.
	ErrNoImage = errors.New("no preview image")

	// ErrTooLarge is returned when an image exceeds the size cap.
	ErrTooLarge = errors.New("image too large")
)

// imageMeta lists the preview image declarations in order of preference.
var imageMeta = []string{
	`meta[property="og:image:secure_url"]`,
	`meta[property="og:image"]`,
	`meta[name="og:image"]`,
	`meta[name="twitter:image"]`,
	`meta[name="twitter:image:src"]`,
	`meta[property="twitter:image"]`,
}

// Finder looks up the preview image an article page declares.
type Finder struct {
	client *http.Client
}

// NewFinder returns a finder. A nil client uses a default with a timeout.
func NewFinder(client *http.Client) *Finder {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Finder{client: client}
}

// Find returns the absolute URL of the page's og:image or twitter:image.
func (f *Finder) Find(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	resp, err := get(ctx, f.client, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	for _, sel := range imageMeta {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if u, ok := resolve(base, content); ok {
			return u, nil
		}
	}
	return "", fmt.Errorf("%s: %w", pageURL, ErrNoImage)
}

// resolve makes ref absolute against base, accepting only http(s) URLs.
func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	u = base.ResolveReference(u)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// Fetcher downloads images with a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher returns a fetcher refusing images over maxBytes.
func NewFetcher(client *http.Client, maxBytes int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Fetcher{client: client, maxBytes: int64(maxBytes)}
}

// Download returns the image bytes. The response must be an image/* type.
func (f *Fetcher) Download(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := get(ctx, f.client, imageURL, "image/*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("download %s: content type %q is not an image", imageURL, mediaType)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("download %s: %w (%d bytes)", imageURL, ErrTooLarge, resp.ContentLength)
	}

	r := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imageURL, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("download %s: %w", imageURL, ErrTooLarge)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s: empty body", imageURL)
	}
	return data, nil
}

func get(ctx context.Context, client *http.Client, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}
