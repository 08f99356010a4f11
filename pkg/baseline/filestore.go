package baseline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/jsonutil"
)

// FileStore persists baselines as one JSON file per application under a
// base directory. Writes go through a temporary file and an atomic
// rename so a crashed run never leaves a half-written baseline behind.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a file store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating baseline directory: %v", ErrBaselineUnavailable, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get returns the baseline for the application.
func (s *FileStore) Get(ctx context.Context, app string) (*Baseline, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaselineUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(app))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, app)
		}
		return nil, fmt.Errorf("%w: reading baseline for %s: %v", ErrBaselineUnavailable, app, err)
	}

	var b Baseline
	if err := jsonutil.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &b, nil
}

// Put records the baseline for the application.
func (s *FileStore) Put(ctx context.Context, app string, b *Baseline) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBaselineUnavailable, err)
	}
	if app == "" {
		return fmt.Errorf("%w: empty app name", ErrInvalidBaseline)
	}
	if b == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidBaseline)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := *b
	if record.Version == "" {
		record.Version = Version
	}
	if record.AppName == "" {
		record.AppName = app
	}
	now := time.Now().UTC()
	if record.RecordedAt.IsZero() {
		record.RecordedAt = now
	}
	record.UpdatedAt = now

	if err := record.Validate(); err != nil {
		return err
	}

	data, err := jsonutil.MarshalIndent(&record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	path := s.path(app)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("%w: writing baseline for %s: %v", ErrBaselineUnavailable, app, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up orphaned temp file
		return fmt.Errorf("%w: replacing baseline for %s: %v", ErrBaselineUnavailable, app, err)
	}

	return nil
}

// Delete removes the baseline for the application.
func (s *FileStore) Delete(ctx context.Context, app string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBaselineUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(app)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBaselineNotFound, app)
		}
		return fmt.Errorf("%w: removing baseline for %s: %v", ErrBaselineUnavailable, app, err)
	}
	return nil
}

// List returns every recorded baseline, sorted by application name.
func (s *FileStore) List(ctx context.Context) ([]*Baseline, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaselineUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing baselines: %v", ErrBaselineUnavailable, err)
	}

	baselines := make([]*Baseline, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrBaselineUnavailable, entry.Name(), err)
		}
		var b Baseline
		if err := jsonutil.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBaseline, entry.Name(), err)
		}
		baselines = append(baselines, &b)
	}

	sort.Slice(baselines, func(i, j int) bool {
		return baselines[i].AppName < baselines[j].AppName
	})

	return baselines, nil
}

// path returns the baseline file path for an application.
func (s *FileStore) path(app string) string {
	return filepath.Join(s.dir, safeFileName(app)+".json")
}

// safeFileName maps an application name to a filesystem-safe file stem.
// Anything outside [a-zA-Z0-9._-] becomes an underscore.
func safeFileName(app string) string {
	if app == "" {
		return "_"
	}
	var sb strings.Builder
	sb.Grow(len(app))
	for _, r := range app {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
