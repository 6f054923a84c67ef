// Package sanitize turns upstream markup into plain post text.
package sanitize

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Cleaner strips HTML and removes configured boilerplate patterns.
type Cleaner struct {
	policy   *bluemonday.Policy
	patterns []*regexp.Regexp
}

// New compiles patterns. Returns an error if any pattern is invalid.
func New(patterns []string) (*Cleaner, error) {
	compiled, err := Compile(patterns)
	if err != nil {
		return nil, err
	}

	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)

	return &Cleaner{policy: p, patterns: compiled}, nil
}

// Text returns s without tags, entities or matched patterns, with runs of
// whitespace collapsed to single spaces.
func (c *Cleaner) Text(s string) string {
	if s == "" {
		return ""
	}
	s = c.policy.Sanitize(s)
	s = html.UnescapeString(s)
	s = Apply(s, c.patterns)
	return strings.Join(strings.Fields(s), " ")
}

// Compile compiles a list of regex pattern strings into compiled regexps.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile sanitize pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Apply removes every match of the compiled patterns from text.
func Apply(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		text = re.ReplaceAllString(text, " ")
	}
	return text
}
