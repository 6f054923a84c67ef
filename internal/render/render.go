// Package render lays out a candidate as one or more post-sized segments.
package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/source"
)

// ErrNoContent is returned when nothing postable remains after layout.
var ErrNoContent = errors.New("no content to post")

// Segment is one post of a thread. Only the first segment carries media.
type Segment struct {
	Text  string
	Media []string
}

// Options are the platform and layout limits.
type Options struct {
	MaxChars    int
	MaxMedia    int
	MaxSegments int
	MaxTags     int
	Separator   string
	Rules       []config.TagRule
	FallbackTag string
}

// Renderer turns candidates into segments.
type Renderer struct {
	opts Options
}

// New returns a renderer. Zero limits take the config defaults.
func New(opts Options) *Renderer {
	if opts.MaxChars <= 0 {
		opts.MaxChars = config.DefaultMaxChars
	}
	if opts.MaxMedia < 0 {
		opts.MaxMedia = 0
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = config.DefaultMaxSegments
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = config.DefaultMaxTags
	}
	if opts.Separator == "" {
		opts.Separator = config.DefaultSeparator
	}
	if opts.FallbackTag == "" {
		opts.FallbackTag = DefaultFallbackTag
	}
	return &Renderer{opts: opts}
}

// FromConfig builds a renderer from the loaded configuration.
func FromConfig(cfg *config.Config) *Renderer {
	return New(Options{
		MaxChars:    cfg.Platform.MaxChars,
		MaxMedia:    cfg.Platform.MaxMedia,
		MaxSegments: cfg.Render.MaxSegments,
		MaxTags:     cfg.Render.MaxTags,
		Separator:   cfg.Generate.Separator,
		Rules:       cfg.Render.Tags,
	})
}

// Render lays out c according to its kind. Every segment fits MaxChars.
func (r *Renderer) Render(c source.Candidate) ([]Segment, error) {
	var texts []string
	var err error
	switch c.Kind {
	case source.KindHeadline:
		texts, err = r.headline(c)
	case source.KindExcerpt:
		texts, err = r.excerpt(c)
	case source.KindThread:
		texts, err = r.thread(c)
	default:
		return nil, fmt.Errorf("render: unknown kind %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, len(texts))
	for i, t := range texts {
		segments[i] = Segment{Text: t}
	}
	segments[0].Media = r.media(c.Images)
	return segments, nil
}

func (r *Renderer) headline(c source.Candidate) ([]string, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return nil, ErrNoContent
	}
	suffix := joinSuffix(c.Link, r.tagLine(c))
	return []string{Fit(c.Prefix+title, suffix, r.opts.MaxChars)}, nil
}

// excerpt packs the body on sentence boundaries. The root carries the
// title and hashtags; the last segment carries the link.
func (r *Renderer) excerpt(c source.Candidate) ([]string, error) {
	head := strings.TrimSpace(c.Prefix + c.Title)
	body := strings.TrimSpace(c.Body)
	if head == "" && body == "" {
		return nil, ErrNoContent
	}

	tags := r.tagLine(c)
	single := joinParagraphs(head, body)
	if runeLen(single+joinSuffix(c.Link, tags)) <= r.opts.MaxChars || r.opts.MaxSegments == 1 {
		return []string{Fit(single, joinSuffix(c.Link, tags), r.opts.MaxChars)}, nil
	}

	linkSuffix := joinSuffix(c.Link)
	tagSuffix := joinSuffix(tags)
	rootBudget := r.opts.MaxChars - runeLen(tagSuffix) - runeLen(linkSuffix)
	budget := r.opts.MaxChars - runeLen(linkSuffix)

	var texts []string
	cur := head
	for _, piece := range chunks(splitSentences(body), budget) {
		limit := budget
		if len(texts) == 0 {
			limit = rootBudget
		}
		sep := " "
		switch {
		case cur == "":
			sep = ""
		case len(texts) == 0 && cur == head:
			sep = "\n\n"
		}
		if runeLen(cur+sep+piece) <= limit {
			cur += sep + piece
			continue
		}
		if cur != "" {
			texts = append(texts, cur)
		}
		cur = piece
	}
	if cur != "" {
		texts = append(texts, cur)
	}

	if len(texts) > r.opts.MaxSegments {
		last := strings.Join(texts[r.opts.MaxSegments-1:], " ")
		texts = append(texts[:r.opts.MaxSegments-1], last)
	}
	return r.decorate(texts, c.Link, tags), nil
}

// thread splits generated text exactly on the separator, dropping empty parts.
func (r *Renderer) thread(c source.Candidate) ([]string, error) {
	var parts []string
	for _, p := range strings.Split(c.Body, r.opts.Separator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoContent
	}
	if len(parts) > r.opts.MaxSegments {
		parts = parts[:r.opts.MaxSegments]
	}
	if c.Prefix != "" {
		parts[0] = c.Prefix + parts[0]
	}
	return r.decorate(parts, c.Link, r.tagLine(c)), nil
}

// decorate fits each text, reserving hashtags on the root and the link on
// the last segment.
func (r *Renderer) decorate(texts []string, link, tags string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		var suffix []string
		if i == 0 {
			suffix = append(suffix, tags)
		}
		if i == len(texts)-1 {
			suffix = append([]string{link}, suffix...)
		}
		out[i] = Fit(t, joinSuffix(suffix...), r.opts.MaxChars)
	}
	return out
}

func (r *Renderer) media(images []string) []string {
	var out []string
	for _, img := range images {
		if len(out) >= r.opts.MaxMedia {
			break
		}
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}

// joinSuffix joins the non-empty parts, each introduced by a blank line.
func joinSuffix(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteString("\n\n")
			b.WriteString(p)
		}
	}
	return b.String()
}

func joinParagraphs(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
