package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileHistory keeps one id per line in a plain text file.
type FileHistory struct {
	path string
}

func NewFileHistory(path string) *FileHistory {
	return &FileHistory{path: path}
}

func (h *FileHistory) Load(ctx context.Context) (Set, error) {
	ids, err := h.List(ctx)
	if err != nil {
		return Set{}, err
	}
	return NewSet(ids...), nil
}

func (h *FileHistory) List(_ context.Context) ([]string, error) {
	f, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open history: %v", ErrCorrupt, err)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrCorrupt, err)
	}
	return ids, nil
}

func (h *FileHistory) Record(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := ensureDir(h.path); err != nil {
		return err
	}

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync history: %w", err)
	}
	return f.Close()
}

// FileQuota stores the quota state as a small JSON document.
type FileQuota struct {
	path  string
	clock Clock
}

func NewFileQuota(path string, clock Clock) *FileQuota {
	return &FileQuota{path: path, clock: clock}
}

func (q *FileQuota) Read(_ context.Context) (QuotaState, error) {
	today := q.clock.today()
	fresh := QuotaState{Date: today}

	data, err := os.ReadFile(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return fresh, fmt.Errorf("%w: read quota: %v", ErrCorrupt, err)
	}

	var st QuotaState
	if err := json.Unmarshal(data, &st); err != nil {
		return fresh, fmt.Errorf("%w: parse quota: %v", ErrCorrupt, err)
	}
	if _, err := time.Parse(dateLayout, st.Date); err != nil {
		return fresh, fmt.Errorf("%w: quota date %q", ErrCorrupt, st.Date)
	}
	if st.Count < 0 {
		return fresh, fmt.Errorf("%w: negative quota count %d", ErrCorrupt, st.Count)
	}

	if st.Date != today {
		return fresh, nil
	}
	return st, nil
}

func (q *FileQuota) Write(_ context.Context, count int) error {
	if count < 0 {
		return fmt.Errorf("quota count must not be negative, got %d", count)
	}
	if err := ensureDir(q.path); err != nil {
		return err
	}

	data, err := json.Marshal(QuotaState{Date: q.clock.today(), Count: count})
	if err != nil {
		return fmt.Errorf("encode quota: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(q.path), ".quota-*")
	if err != nil {
		return fmt.Errorf("create quota temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write quota: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync quota: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close quota: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		return fmt.Errorf("replace quota: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}
