package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/sanitize"
	"github.com/ppiankov/postbot/internal/store"
)

// TopicID returns the history id of a static topic.
func TopicID(name string) string {
	return CleanID("topic:" + name)
}

// TopicOptions configures a TopicSource.
type TopicOptions struct {
	Category string
	Topics   []config.Topic
	Prefix   string
	Tags     []string
	Wiki     Encyclopedia // nil disables lookups
	Cleaner  *sanitize.Cleaner
	Rand     *rand.Rand
}

// TopicSource draws from a static topic list. Once every topic has been
// posted it keeps drawing from the full list.
type TopicSource struct {
	opts TopicOptions
}

func NewTopics(opts TopicOptions) (*TopicSource, error) {
	if len(opts.Topics) == 0 {
		return nil, errors.New("topics: at least one topic is required")
	}
	if opts.Rand == nil {
		return nil, errors.New("topics: random source is required")
	}
	return &TopicSource{opts: opts}, nil
}

func (ts *TopicSource) Name() string {
	return ts.opts.Category
}

func (ts *TopicSource) Select(ctx context.Context, seen store.Set) Selection {
	t := pickTopic(ts.opts.Topics, seen, TopicID, ts.opts.Rand)
	if t == nil {
		t = &ts.opts.Topics[ts.opts.Rand.IntN(len(ts.opts.Topics))]
	}

	c := &Candidate{
		ID:       TopicID(t.Name),
		Category: ts.opts.Category,
		Kind:     KindExcerpt,
		Title:    t.Name,
		Body:     t.Text,
		Link:     t.Link,
		Prefix:   ts.opts.Prefix,
		Tags:     mergeTags(ts.opts.Tags, t.Tags),
	}
	if t.Image != "" {
		c.Images = append(c.Images, t.Image)
	}

	var issues []error
	if t.Wiki != "" && ts.opts.Wiki != nil {
		s, err := ts.opts.Wiki.Summary(ctx, t.Wiki)
		if err != nil {
			issues = append(issues, fmt.Errorf("topic %s: %w", t.Name, err))
		} else {
			ts.enrich(c, s)
		}
	}
	if ts.opts.Cleaner != nil {
		c.Body = ts.opts.Cleaner.Text(c.Body)
	}
	return Selection{Candidate: c, Issues: issues}
}

func (ts *TopicSource) enrich(c *Candidate, s Summary) {
	if s.Extract != "" {
		c.Body = s.Extract
	}
	if c.Link == "" {
		c.Link = s.URL
	}
	if s.Thumbnail != "" {
		c.Images = append(c.Images, s.Thumbnail)
	}
}

// pickTopic returns a uniformly random topic whose id is not in seen, or
// nil when every topic has been seen.
func pickTopic(topics []config.Topic, seen store.Set, id func(string) string, rnd *rand.Rand) *config.Topic {
	var fresh []int
	for i, t := range topics {
		if !seen.Has(id(t.Name)) {
			fresh = append(fresh, i)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return &topics[fresh[rnd.IntN(len(fresh))]]
}

// mergeTags concatenates tag lists, dropping duplicates.
func mergeTags(lists ...[]string) []string {
	var out []string
	dup := make(map[string]bool)
	for _, list := range lists {
		for _, tag := range list {
			if tag == "" || dup[tag] {
				continue
			}
			dup[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
