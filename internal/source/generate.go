package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/generate"
	"github.com/ppiankov/postbot/internal/store"
)

// GeneratedTopicID returns the history id of a generated post keyed by topic.
func GeneratedTopicID(name string) string {
	return CleanID("gen:" + name)
}

// GeneratedTextID returns the history id of a generated post keyed by its
// text: the first 16 hex digits of its SHA-256.
func GeneratedTextID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "gen:" + hex.EncodeToString(sum[:])[:16]
}

// GenerateOptions configures a GenerativeSource.
type GenerateOptions struct {
	Category  string
	Topics    []config.Topic
	Style     string
	Segments  int
	Tone      string
	IDFrom    string
	Prefix    string
	Tags      []string
	MaxChars  int
	Separator string
	Attempts  int
	Generator generate.Generator
	Rand      *rand.Rand
}

// GenerativeSource asks a model for a fresh post.
type GenerativeSource struct {
	opts GenerateOptions
}

func NewGenerative(opts GenerateOptions) (*GenerativeSource, error) {
	if opts.Generator == nil {
		return nil, errors.New("generate: generator is required")
	}
	if opts.Rand == nil {
		return nil, errors.New("generate: random source is required")
	}
	if opts.IDFrom == config.IDFromTopic && len(opts.Topics) == 0 {
		return nil, errors.New("generate: id_from topic needs topics")
	}
	if opts.Separator == "" {
		opts.Separator = config.DefaultSeparator
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &GenerativeSource{opts: opts}, nil
}

func (gs *GenerativeSource) Name() string {
	return gs.opts.Category
}

// Select makes up to Attempts generation calls. An attempt is rejected when
// the call fails, returns blank text, or yields an id already in seen.
func (gs *GenerativeSource) Select(ctx context.Context, seen store.Set) Selection {
	var issues []error
	for attempt := 1; attempt <= gs.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			issues = append(issues, err)
			break
		}

		topic, ok := gs.topic(seen)
		if !ok {
			issues = append(issues, errors.New("every topic has already been posted"))
			break
		}

		text, err := gs.opts.Generator.Generate(ctx, gs.prompt(topic))
		if err != nil {
			issues = append(issues, fmt.Errorf("attempt %d: %w", attempt, err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			issues = append(issues, fmt.Errorf("attempt %d: empty text", attempt))
			continue
		}

		id := GeneratedTextID(text)
		if gs.opts.IDFrom == config.IDFromTopic {
			id = GeneratedTopicID(topic.Name)
		}
		if seen.Has(id) {
			issues = append(issues, fmt.Errorf("attempt %d: %s already posted", attempt, id))
			continue
		}

		return Selection{Candidate: &Candidate{
			ID:       id,
			Category: gs.opts.Category,
			Kind:     KindThread,
			Title:    topic.Name,
			Body:     text,
			Link:     topic.Link,
			Prefix:   gs.opts.Prefix,
			Images:   nonEmpty(topic.Image),
			Tags:     mergeTags(gs.opts.Tags, topic.Tags),
		}, Issues: issues}
	}
	return Selection{Issues: issues}
}

// topic picks the subject of the next attempt. Keyed by topic, only unseen
// topics qualify. Keyed by text, any topic may repeat, and a category
// without topics leaves the subject to the model.
func (gs *GenerativeSource) topic(seen store.Set) (config.Topic, bool) {
	if len(gs.opts.Topics) == 0 {
		return config.Topic{}, true
	}
	if gs.opts.IDFrom == config.IDFromTopic {
		t := pickTopic(gs.opts.Topics, seen, GeneratedTopicID, gs.opts.Rand)
		if t == nil {
			return config.Topic{}, false
		}
		return *t, true
	}
	return gs.opts.Topics[gs.opts.Rand.IntN(len(gs.opts.Topics))], true
}

func (gs *GenerativeSource) prompt(t config.Topic) generate.Prompt {
	topic := t.Name
	if t.Text != "" {
		topic = fmt.Sprintf("%s (%s)", t.Name, t.Text)
	}
	return generate.Prompt{
		Style:     gs.opts.Style,
		Topic:     topic,
		Category:  gs.opts.Category,
		Tone:      gs.opts.Tone,
		Segments:  gs.opts.Segments,
		MaxChars:  gs.opts.MaxChars,
		Separator: gs.opts.Separator,
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
