// Package store persists what has been posted and how many posts went out today.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrCorrupt marks persisted state that could not be read back. Callers
// treat it as a soft failure: the returned value is already the safe default.
var ErrCorrupt = errors.New("corrupt state")

// Set is a deduplicated set of posted content identifiers.
type Set map[string]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// QuotaState is the post counter for one calendar day.
type QuotaState struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// History is the append-only log of posted identifiers.
type History interface {
	// Load returns every recorded id. It always returns a usable set; a
	// missing store is an empty set, an unreadable one is an empty set plus
	// an ErrCorrupt error.
	Load(ctx context.Context) (Set, error)

	// Record durably appends id.
	Record(ctx context.Context, id string) error

	// List returns recorded ids in the order they were recorded.
	List(ctx context.Context) ([]string, error)
}

// Quota is the daily post counter.
type Quota interface {
	// Read returns today's state, or {today, 0} when nothing valid is stored
	// for today.
	Read(ctx context.Context) (QuotaState, error)

	// Write stores {today, count}.
	Write(ctx context.Context, count int) error
}

// Clock returns the current time in the zone where quota days begin.
type Clock func() time.Time

// ClockIn returns a wall clock for loc.
func ClockIn(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

func (c Clock) today() string {
	if c == nil {
		return time.Now().Format(dateLayout)
	}
	return c().Format(dateLayout)
}

// Options selects and configures a storage backend.
type Options struct {
	Backend     string // "file" or "sqlite"
	HistoryPath string
	QuotaPath   string
	DBPath      string
	Clock       Clock
}

// Backend bundles the history and quota stores of one backend.
type Backend struct {
	History History
	Quota   Quota

	close func() error
}

// Open opens the configured backend. An error wrapping ErrCorrupt comes with
// a usable backend: the damaged state was set aside and storage starts empty.
func Open(opts Options) (*Backend, error) {
	switch opts.Backend {
	case "", "file":
		return &Backend{
			History: NewFileHistory(opts.HistoryPath),
			Quota:   NewFileQuota(opts.QuotaPath, opts.Clock),
		}, nil
	case "sqlite":
		db, err := OpenSQLite(opts.DBPath, opts.Clock)
		if db == nil {
			return nil, err
		}
		return &Backend{History: db, Quota: db, close: db.Close}, err
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id is required")
	}
	if strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("id %q contains a line break", id)
	}
	return nil
}
