package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	wikiEndpoint = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	wikiTimeout  = 15 * time.Second
)

// Summary is the lead section of an encyclopedia page.
type Summary struct {
	Title     string
	Extract   string
	URL       string
	Thumbnail string
}

// Encyclopedia looks up page summaries.
type Encyclopedia interface {
	Summary(ctx context.Context, page string) (Summary, error)
}

// Wikipedia reads page summaries from the Wikipedia REST API.
type Wikipedia struct {
	endpoint string
	client   *http.Client
}

func NewWikipedia() *Wikipedia {
	return &Wikipedia{
		endpoint: wikiEndpoint,
		client: &http.Client{
			Timeout:   wikiTimeout,
			Transport: &rssTransport{base: http.DefaultTransport},
		},
	}
}

type wikiSummary struct {
	Title         string    `json:"title"`
	Extract       string    `json:"extract"`
	Thumbnail     wikiImage `json:"thumbnail"`
	OriginalImage wikiImage `json:"originalimage"`
	ContentURLs   struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type wikiImage struct {
	Source string `json:"source"`
}

func (w *Wikipedia) Summary(ctx context.Context, page string) (Summary, error) {
	page = strings.ReplaceAll(strings.TrimSpace(page), " ", "_")
	if page == "" {
		return Summary{}, errors.New("wikipedia: page is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+url.PathEscape(page), nil)
	if err != nil {
		return Summary{}, fmt.Errorf("wikipedia %s: create request: %w", page, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("wikipedia %s: %w", page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("wikipedia %s: status %d", page, resp.StatusCode)
	}

	var ws wikiSummary
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return Summary{}, fmt.Errorf("wikipedia %s: decode: %w", page, err)
	}

	s := Summary{
		Title:     ws.Title,
		Extract:   strings.TrimSpace(ws.Extract),
		URL:       ws.ContentURLs.Desktop.Page,
		Thumbnail: ws.OriginalImage.Source,
	}
	if s.Thumbnail == "" {
		s.Thumbnail = ws.Thumbnail.Source
	}
	return s, nil
}
