package source

import (
	"context"
	"strings"

	"github.com/ppiankov/postbot/internal/store"
)

// Kind tells the renderer how to lay out a candidate.
type Kind string

const (
	KindHeadline Kind = "headline" // single news post
	KindExcerpt  Kind = "excerpt"  // long encyclopedic text, may span several posts
	KindThread   Kind = "thread"   // generated text delimited by a separator
)

// Candidate is one prospective piece of content for the current run.
type Candidate struct {
	ID       string   // dedup identifier recorded in history after posting
	Category string   // category name from config
	Kind     Kind     // layout hint for the renderer
	Title    string   // headline or topic name
	Body     string   // plain text body; generated threads keep their separators
	Link     string   // optional URL appended to the post
	Prefix   string   // fixed text placed before the title, e.g. "NEWS: "
	Images   []string // image URLs, in order of preference
	Tags     []string // default hashtags for the category or topic
}

// Selection is the outcome of one source lookup. A nil Candidate means
// nothing eligible was found. Issues are upstream failures that were
// skipped on the way and should be reported.
type Selection struct {
	Candidate *Candidate
	Issues    []error
}

// Source yields candidates that are not in the posted set.
type Source interface {
	// Name returns the category name this source serves.
	Name() string

	// Select returns the first eligible candidate, if any.
	Select(ctx context.Context, seen store.Set) Selection
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// CleanID turns raw into a history id: line breaks become spaces and the
// ends are trimmed. Every id a source compares against the posted set goes
// through it, so what is checked is exactly what gets recorded.
func CleanID(raw string) string {
	return strings.TrimSpace(lineBreaks.Replace(raw))
}
