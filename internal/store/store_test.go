package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeClock returns a settable clock for quota tests.
func fakeClock(t time.Time) (Clock, func(time.Time)) {
	now := t
	return func() time.Time { return now }, func(next time.Time) { now = next }
}

var day1 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

// backends runs fn against both storage backends.
func backends(t *testing.T, clock Clock, fn func(t *testing.T, b *Backend)) {
	t.Helper()
	for _, name := range []string{"file", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			b, err := Open(Options{
				Backend:     name,
				HistoryPath: filepath.Join(dir, "state", "posted_ids.txt"),
				QuotaPath:   filepath.Join(dir, "state", "quota.json"),
				DBPath:      filepath.Join(dir, "state", "postbot.db"),
				Clock:       clock,
			})
			if err != nil {
				t.Fatalf("open %s backend: %v", name, err)
			}
			t.Cleanup(func() { _ = b.Close() })
			fn(t, b)
		})
	}
}

func TestHistory_LoadMissingIsEmpty(t *testing.T) {
	clock, _ := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		set, err := b.History.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(set) != 0 {
			t.Fatalf("set = %v, want empty", set)
		}
	})
}

func TestHistory_RecordThenLoad(t *testing.T) {
	clock, _ := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		ctx := context.Background()
		for _, id := range []string{"https://example.com/a", "topic:Monza", "https://example.com/a"} {
			if err := b.History.Record(ctx, id); err != nil {
				t.Fatalf("record %q: %v", id, err)
			}
		}

		set, err := b.History.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(set) != 2 {
			t.Fatalf("set size = %d, want 2 (deduplicated)", len(set))
		}
		if !set.Has("topic:Monza") || !set.Has("https://example.com/a") {
			t.Fatalf("set = %v", set)
		}

		ids, err := b.History.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if ids[0] != "https://example.com/a" || ids[1] != "topic:Monza" {
			t.Fatalf("list order = %v", ids)
		}
	})
}

func TestHistory_RecordRejectsBadIDs(t *testing.T) {
	clock, _ := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		for _, id := range []string{"", "   ", "a\nb", "a\rb"} {
			if err := b.History.Record(context.Background(), id); err == nil {
				t.Errorf("record %q: expected error", id)
			}
		}
	})
}

func TestFileHistory_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted_ids.txt")
	if err := os.WriteFile(path, []byte("old-1\n\n  old-2  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := NewFileHistory(path)

	if err := h.Record(context.Background(), "new-1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old-1\n\n  old-2  \nnew-1\n" {
		t.Fatalf("file content = %q, existing lines must be kept verbatim", data)
	}

	set, err := h.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range []string{"old-1", "old-2", "new-1"} {
		if !set.Has(id) {
			t.Errorf("missing %q in %v", id, set)
		}
	}
}

func TestFileHistory_UnreadableFailsSoft(t *testing.T) {
	// A directory in place of the file cannot be read as lines.
	path := t.TempDir()
	set, err := NewFileHistory(path).Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if set == nil || len(set) != 0 {
		t.Fatalf("set = %v, want empty non-nil set", set)
	}
}

func TestQuota_MissingIsFreshDay(t *testing.T) {
	clock, _ := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		st, err := b.Quota.Read(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if st != (QuotaState{Date: "2026-10-15", Count: 0}) {
			t.Fatalf("state = %+v", st)
		}
	})
}

func TestQuota_MonotonicThenReset(t *testing.T) {
	clock, set := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		set(day1)
		ctx := context.Background()

		for want := 1; want <= 3; want++ {
			st, err := b.Quota.Read(ctx)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if st.Count != want-1 {
				t.Fatalf("count before write %d = %d, want %d", want, st.Count, want-1)
			}
			if err := b.Quota.Write(ctx, st.Count+1); err != nil {
				t.Fatalf("write: %v", err)
			}
		}

		set(day1.Add(24 * time.Hour))
		st, err := b.Quota.Read(ctx)
		if err != nil {
			t.Fatalf("read next day: %v", err)
		}
		if st != (QuotaState{Date: "2026-10-16", Count: 0}) {
			t.Fatalf("next day state = %+v, want reset", st)
		}

		if err := b.Quota.Write(ctx, st.Count+1); err != nil {
			t.Fatalf("write next day: %v", err)
		}
		st, _ = b.Quota.Read(ctx)
		if st.Count != 1 || st.Date != "2026-10-16" {
			t.Fatalf("after first post of new day = %+v", st)
		}
	})
}

func TestQuota_WriteStampsCurrentDate(t *testing.T) {
	clock, set := fakeClock(day1)
	backends(t, clock, func(t *testing.T, b *Backend) {
		set(day1)
		ctx := context.Background()
		st, _ := b.Quota.Read(ctx)

		// Midnight passes between read and write.
		set(day1.Add(16 * time.Hour))
		if err := b.Quota.Write(ctx, st.Count+1); err != nil {
			t.Fatalf("write: %v", err)
		}

		got, _ := b.Quota.Read(ctx)
		if got.Date != "2026-10-16" || got.Count != 1 {
			t.Fatalf("state = %+v, want {2026-10-16 1}", got)
		}
	})
}

func TestFileQuota_MalformedFailsSoft(t *testing.T) {
	clock, _ := fakeClock(day1)
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"bad date", `{"date":"yesterday","count":2}`},
		{"negative count", `{"date":"2026-10-15","count":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quota.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			st, err := NewFileQuota(path, clock).Read(context.Background())
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
			if st != (QuotaState{Date: "2026-10-15"}) {
				t.Fatalf("state = %+v, want fresh default", st)
			}
		})
	}
}

func TestFileQuota_RejectsNegativeWrite(t *testing.T) {
	clock, _ := fakeClock(day1)
	q := NewFileQuota(filepath.Join(t.TempDir(), "quota.json"), clock)
	if err := q.Write(context.Background(), -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestOpenSQLite_Migrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbot.db")
	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var version string
	if err := db.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("schema version = %s, want 1", version)
	}

	// Reopening an existing database must not fail.
	_ = db.Close()
	again, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestOpenSQLite_NewerSchemaRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbot.db")
	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := OpenSQLite(path, nil); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpen_CorruptSQLiteSetAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "postbot.db")
	garbage := bytes.Repeat([]byte("this is not a sqlite database\n"), 64)
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	clock, _ := fakeClock(day1)
	b, err := Open(Options{Backend: "sqlite", DBPath: path, Clock: clock})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if b == nil {
		t.Fatal("expected a usable backend alongside ErrCorrupt")
	}
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	seen, err := b.History.Load(ctx)
	if err != nil || len(seen) != 0 {
		t.Fatalf("fresh history = %v, %v", seen, err)
	}
	if err := b.History.Record(ctx, "a"); err != nil {
		t.Fatalf("record on fresh database: %v", err)
	}
	if err := b.Quota.Write(ctx, 1); err != nil {
		t.Fatalf("write quota on fresh database: %v", err)
	}

	matches, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(matches) != 1 {
		t.Fatalf("set-aside files = %v, %v", matches, err)
	}
	kept, err := os.ReadFile(matches[0])
	if err != nil || !bytes.Equal(kept, garbage) {
		t.Errorf("corrupt file not preserved as-is")
	}
}
