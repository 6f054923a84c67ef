package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite keeps history and quota in one sqlite database.
type SQLite struct {
	db    *sql.DB
	clock Clock
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
//
// A file that sqlite reports as corrupt or not a database is renamed to
// path.corrupt-<timestamp> and a fresh database takes its place. The store is
// then usable and the returned error wraps ErrCorrupt.
func OpenSQLite(path string, clock Clock) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	s, err := openSQLite(path, clock)
	if err == nil || !isCorruptDB(err) {
		return s, err
	}

	aside := path + ".corrupt-" + time.Now().UTC().Format("20060102T150405")
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("move corrupt database aside: %w (open: %v)", rerr, err)
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Rename(path+suffix, aside+suffix)
	}

	s, ferr := openSQLite(path, clock)
	if ferr != nil {
		return nil, ferr
	}
	return s, fmt.Errorf("%w: %v; moved to %s", ErrCorrupt, err, aside)
}

func openSQLite(path string, clock Clock) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the bot never runs two statements concurrently.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, clock: clock}, nil
}

func isCorruptDB(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context) (Set, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return NewSet(ids...), nil
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content_id FROM history ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return ids, nil
}

func (s *SQLite) Record(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if err := validateID(id); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO history(content_id, posted_at) VALUES(?, ?)",
		id, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

func (s *SQLite) Read(ctx context.Context) (QuotaState, error) {
	if s == nil || s.db == nil {
		return QuotaState{}, errors.New("store is not initialized")
	}
	today := s.clock.today()
	fresh := QuotaState{Date: today}

	var st QuotaState
	err := s.db.QueryRowContext(ctx, "SELECT day, count FROM quota WHERE singleton = 1").Scan(&st.Date, &st.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return fresh, nil
	}
	if err != nil {
		return fresh, fmt.Errorf("%w: read quota: %v", ErrCorrupt, err)
	}
	if st.Date != today {
		return fresh, nil
	}
	return st, nil
}

func (s *SQLite) Write(ctx context.Context, count int) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if count < 0 {
		return fmt.Errorf("quota count must not be negative, got %d", count)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota (singleton, day, count) VALUES (1, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			day = excluded.day,
			count = excluded.count
	`, s.clock.today(), count)
	if err != nil {
		return fmt.Errorf("write quota: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
