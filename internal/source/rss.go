package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/ppiankov/postbot/internal/sanitize"
	"github.com/ppiankov/postbot/internal/store"
)

const (
	rssFetchTimeout = 30 * time.Second
	rssUserAgent    = "Mozilla/5.0 (compatible; postbot/1.0; +https://github.com/ppiankov/postbot)"
)

// Entry is a feed item reduced to the fields the bot uses. ID is always
// set: the item GUID when present, otherwise its link.
type Entry struct {
	ID      string
	Title   string
	Link    string
	Summary string
	Image   string
}

// FeedFetcher returns the entries of one feed in feed order.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]Entry, error)
}

// FeedOptions configures a FeedSource.
type FeedOptions struct {
	Category string
	Feeds    []string
	TopK     int
	Prefix   string
	Tags     []string
	Fetcher  FeedFetcher
	Cleaner  *sanitize.Cleaner
}

// FeedSource scans the newest entries of each feed for one not yet posted.
type FeedSource struct {
	opts FeedOptions
}

// NewFeed creates a feed-backed source. At least one feed URL is required.
func NewFeed(opts FeedOptions) (*FeedSource, error) {
	if len(opts.Feeds) == 0 {
		return nil, errors.New("feed: at least one feed URL is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("feed: fetcher is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &FeedSource{opts: opts}, nil
}

func (fs *FeedSource) Name() string {
	return fs.opts.Category
}

// Select walks the feeds in configured order and returns the first of the
// top-K entries whose id has not been posted. A failing feed is reported
// and skipped. Later entries are not examined once a match is found.
func (fs *FeedSource) Select(ctx context.Context, seen store.Set) Selection {
	var issues []error
	for _, feedURL := range fs.opts.Feeds {
		if err := ctx.Err(); err != nil {
			issues = append(issues, err)
			break
		}

		entries, err := fs.opts.Fetcher.Fetch(ctx, feedURL)
		if err != nil {
			issues = append(issues, err)
			continue
		}
		if len(entries) == 0 {
			issues = append(issues, fmt.Errorf("feed %s: no entries", feedURL))
			continue
		}

		if len(entries) > fs.opts.TopK {
			entries = entries[:fs.opts.TopK]
		}
		for _, e := range entries {
			e.ID = CleanID(e.ID)
			if e.ID == "" || seen.Has(e.ID) {
				continue
			}
			return Selection{Candidate: fs.candidate(e), Issues: issues}
		}
	}
	return Selection{Issues: issues}
}

func (fs *FeedSource) candidate(e Entry) *Candidate {
	title, summary := e.Title, e.Summary
	if fs.opts.Cleaner != nil {
		title = fs.opts.Cleaner.Text(title)
		summary = fs.opts.Cleaner.Text(summary)
	}
	if title == "" {
		title = summary
	}

	c := &Candidate{
		ID:       e.ID,
		Category: fs.opts.Category,
		Kind:     KindHeadline,
		Title:    title,
		Body:     summary,
		Link:     e.Link,
		Prefix:   fs.opts.Prefix,
		Tags:     append([]string(nil), fs.opts.Tags...),
	}
	if e.Image != "" {
		c.Images = []string{e.Image}
	}
	return c
}

// GofeedFetcher fetches feeds over HTTP with gofeed.
type GofeedFetcher struct {
	client *http.Client
}

// NewGofeedFetcher returns a fetcher with a bot User-Agent and a 30s timeout.
func NewGofeedFetcher() *GofeedFetcher {
	return &GofeedFetcher{client: &http.Client{
		Timeout:   rssFetchTimeout,
		Transport: &rssTransport{base: http.DefaultTransport},
	}}
}

// rssTransport injects a User-Agent header into every request.
type rssTransport struct {
	base http.RoundTripper
}

func (t *rssTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", rssUserAgent)
	return t.base.RoundTrip(req)
}

func (g *GofeedFetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = g.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}
	return entriesFromFeed(feed), nil
}

func entriesFromFeed(feed *gofeed.Feed) []Entry {
	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, Entry{
			ID:      itemID(item),
			Title:   strings.TrimSpace(item.Title),
			Link:    strings.TrimSpace(item.Link),
			Summary: itemSummary(item),
			Image:   itemImage(item),
		})
	}
	return entries
}

func itemID(item *gofeed.Item) string {
	if id := CleanID(item.GUID); id != "" {
		return id
	}
	return CleanID(item.Link)
}

func itemSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// itemImage returns the first image hint of an item: its image element,
// an image enclosure, or a media:thumbnail / media:content extension.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return mediaExtensionImage(item.Extensions)
}

func mediaExtensionImage(exts ext.Extensions) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	for _, name := range []string{"thumbnail", "content"} {
		for _, e := range media[name] {
			u := e.Attrs["url"]
			if u == "" {
				continue
			}
			if name == "content" {
				if medium := e.Attrs["medium"]; medium != "" && medium != "image" {
					continue
				}
			}
			return u
		}
	}
	return ""
}
