package render

import (
	"strings"

	"github.com/ppiankov/postbot/internal/config"
	"github.com/ppiankov/postbot/internal/source"
)

// DefaultFallbackTag is used when no rule or category supplies a hashtag.
const DefaultFallbackTag = "#News"

// Tags returns the hashtags for c: matching keyword rules first, then the
// candidate's defaults, deduplicated and capped. Never empty.
func (r *Renderer) Tags(c source.Candidate) []string {
	textLower := strings.ToLower(c.Title + "\n" + c.Body)

	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		key := strings.ToLower(tag)
		if tag == "" || seen[key] || len(tags) >= r.opts.MaxTags {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	for _, rule := range r.opts.Rules {
		if ruleMatches(textLower, rule) {
			for _, tag := range rule.Tags {
				add(tag)
			}
		}
	}
	for _, tag := range c.Tags {
		add(tag)
	}
	if len(tags) == 0 {
		tags = append(tags, r.opts.FallbackTag)
	}
	return tags
}

func (r *Renderer) tagLine(c source.Candidate) string {
	return strings.Join(r.Tags(c), " ")
}

func ruleMatches(textLower string, rule config.TagRule) bool {
	for _, kw := range rule.ContainsAny {
		if kw != "" && strings.Contains(textLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
