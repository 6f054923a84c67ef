// Package generate asks a language model for post text.
package generate

import (
	"context"
	"fmt"
	"strings"
)

const (
	StyleThread = "thread"
	StyleFact   = "fact"
	StyleQuiz   = "quiz"
)

// Generator returns raw text for a prompt. Multi-part output is delimited
// by Prompt.Separator.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Prompt describes the text wanted from the model.
type Prompt struct {
	Style     string
	Topic     string
	Category  string
	Tone      string
	Segments  int
	MaxChars  int
	Separator string
}

// System returns the system instruction shared by every style.
func (p Prompt) System() string {
	var b strings.Builder
	b.WriteString("You write posts for a social media account")
	if p.Category != "" {
		fmt.Fprintf(&b, " about %s", p.Category)
	}
	b.WriteString(". Write plain text only: no hashtags, no numbering, no markdown, no links.")
	if p.Tone != "" {
		fmt.Fprintf(&b, " Tone: %s.", p.Tone)
	}
	return b.String()
}

// User returns the request for one piece of content.
func (p Prompt) User() string {
	subject := p.Topic
	if subject == "" {
		subject = "a topic of your choice"
		if p.Category != "" {
			subject = "a topic of your choice related to " + p.Category
		}
	}

	var b strings.Builder
	switch p.Style {
	case StyleFact:
		fmt.Fprintf(&b, "Write one surprising, accurate fact about %s.", subject)
	case StyleQuiz:
		fmt.Fprintf(&b, "Write a quiz about %s in exactly 2 parts. "+
			"Part 1 is a question with up to four short options labelled A to D. "+
			"Part 2 reveals the correct answer with a one sentence explanation.", subject)
	default:
		n := p.Segments
		if n < 1 {
			n = 1
		}
		fmt.Fprintf(&b, "Write a thread about %s in exactly %d parts. "+
			"The first part must hook the reader; the last part must wrap up.", subject, n)
	}
	if p.MaxChars > 0 {
		fmt.Fprintf(&b, " Each part must be at most %d characters.", p.MaxChars)
	}
	if p.Style != StyleFact {
		fmt.Fprintf(&b, " Separate the parts with %s and nothing else.", p.Separator)
	}
	return b.String()
}
