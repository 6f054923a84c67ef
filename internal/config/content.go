package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	KindFeed     = "feed"
	KindTopics   = "topics"
	KindGenerate = "generate"

	StyleThread = "thread"
	StyleFact   = "fact"
	StyleQuiz   = "quiz"

	IDFromTopic = "topic"
	IDFromText  = "text"
)

// Category is one weighted content pool.
type Category struct {
	Name   string   `yaml:"name"`
	Weight int      `yaml:"weight"`
	Kind   string   `yaml:"kind"` // "feed", "topics", "generate"
	Prefix string   `yaml:"prefix"`
	Tags   []string `yaml:"tags"`

	// feed
	Feeds []string `yaml:"feeds"`

	// topics and generate
	Topics []Topic `yaml:"topics"`

	// generate
	Style    string `yaml:"style"`
	Segments int    `yaml:"segments"`
	Tone     string `yaml:"tone"`
	IDFrom   string `yaml:"id_from"`
}

// UnmarshalYAML defaults the weight to 1; an explicit weight: 0 disables
// the category.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	type plain Category
	p := plain{Weight: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = Category(p)
	return nil
}

// Topic is a static list entry. Wiki names a Wikipedia page used to fetch an excerpt.
type Topic struct {
	Name  string   `yaml:"name"`
	Text  string   `yaml:"text"`
	Wiki  string   `yaml:"wiki"`
	Link  string   `yaml:"link"`
	Image string   `yaml:"image"`
	Tags  []string `yaml:"tags"`
}

// UnmarshalYAML accepts either a bare string or a mapping.
func (t *Topic) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Name = value.Value
		return nil
	}
	type plain Topic
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Topic(p)
	return nil
}

type RenderConfig struct {
	MaxSegments int       `yaml:"max_segments"`
	MaxTags     int       `yaml:"max_tags"`
	Tags        []TagRule `yaml:"tags"`
}

// TagRule attaches Tags when the text contains any of the keywords.
type TagRule struct {
	ContainsAny []string `yaml:"contains_any"`
	Tags        []string `yaml:"tags"`
}

func applyCategoryDefaults(c *Category) {
	if c.Kind == KindGenerate {
		if c.Style == "" {
			c.Style = StyleThread
		}
		if c.Segments == 0 {
			switch c.Style {
			case StyleFact:
				c.Segments = 1
			case StyleQuiz:
				c.Segments = 2
			default:
				c.Segments = 3
			}
		}
		if c.IDFrom == "" {
			if len(c.Topics) > 0 {
				c.IDFrom = IDFromTopic
			} else {
				c.IDFrom = IDFromText
			}
		}
	}
	for i := range c.Tags {
		c.Tags[i] = normalizeTag(c.Tags[i])
	}
	for i := range c.Topics {
		for j := range c.Topics[i].Tags {
			c.Topics[i].Tags[j] = normalizeTag(c.Topics[i].Tags[j])
		}
	}
}

func validateCategory(c *Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if c.Weight < 0 {
		return fmt.Errorf("%s: weight must not be negative, got %d", c.Name, c.Weight)
	}

	switch c.Kind {
	case KindFeed:
		if len(c.Feeds) == 0 {
			return fmt.Errorf("%s: feed category needs at least one feed", c.Name)
		}
	case KindTopics:
		if len(c.Topics) == 0 {
			return fmt.Errorf("%s: topics category needs at least one topic", c.Name)
		}
	case KindGenerate:
		switch c.Style {
		case StyleThread, StyleFact, StyleQuiz:
		default:
			return fmt.Errorf("%s: unknown style %q (want thread, fact or quiz)", c.Name, c.Style)
		}
		switch c.IDFrom {
		case IDFromTopic:
			if len(c.Topics) == 0 {
				return fmt.Errorf("%s: id_from topic needs at least one topic", c.Name)
			}
		case IDFromText:
		default:
			return fmt.Errorf("%s: unknown id_from %q (want topic or text)", c.Name, c.IDFrom)
		}
		if c.Segments < 1 {
			return fmt.Errorf("%s: segments must be positive", c.Name)
		}
	default:
		return fmt.Errorf("%s: unknown kind %q (want feed, topics or generate)", c.Name, c.Kind)
	}

	for i, t := range c.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%s: topics[%d]: name is required", c.Name, i)
		}
	}
	return nil
}

func validateRender(r *RenderConfig) error {
	if r.MaxSegments < 1 {
		return fmt.Errorf("render.max_segments: must be positive, got %d", r.MaxSegments)
	}
	for i := range r.Tags {
		if len(r.Tags[i].ContainsAny) == 0 || len(r.Tags[i].Tags) == 0 {
			return fmt.Errorf("render.tags[%d]: contains_any and tags are required", i)
		}
		for j := range r.Tags[i].Tags {
			r.Tags[i].Tags[j] = normalizeTag(r.Tags[i].Tags[j])
		}
	}
	return nil
}

// normalizeTag ensures a leading '#' and strips whitespace.
func normalizeTag(tag string) string {
	tag = strings.Join(strings.Fields(tag), "")
	if tag == "" || strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}
