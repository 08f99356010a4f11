// Package history provides file-based storage of past evaluation runs.
// Historical data enables trend analysis across gate runs and
// comparison between any two evaluations of an application.
//
// Data is stored in JSON format for portability and simplicity.
// For high-volume production use, consider upgrading to a database backend.
package history

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/jsonutil"
	"github.com/riskgate/riskgate/pkg/policy"
	"github.com/riskgate/riskgate/pkg/scoring"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Store manages historical evaluation runs using JSON file storage.
type Store struct {
	mu       sync.RWMutex
	basePath string
	index    *storeIndex
}

// storeIndex tracks all stored runs for quick lookup.
type storeIndex struct {
	Runs map[string]*RunRecord `json:"runs"`
}

// RunRecord represents a stored evaluation run.
type RunRecord struct {
	// ID is the unique run identifier
	ID string `json:"id"`

	// Timestamp is when the evaluation was executed
	Timestamp time.Time `json:"timestamp"`

	// AppName is the evaluated application
	AppName string `json:"app_name"`

	// Status is the gate verdict
	Status policy.Status `json:"status"`

	// Rule is the decision table rule that produced the verdict
	Rule string `json:"rule,omitempty"`

	// RiskScore is the weighted risk score
	RiskScore int `json:"risk_score"`

	// TotalFindings is the number of findings evaluated
	TotalFindings int `json:"total_findings"`

	// SeverityCounts breaks the findings down by tier
	SeverityCounts scoring.Counts `json:"severity_counts"`

	// ViolationCount is the number of threshold violations
	ViolationCount int `json:"violation_count"`

	// RegressionAccepted is false when the guard rejected the run
	RegressionAccepted bool `json:"regression_accepted"`

	// FirstRun is set when no baseline existed for the application
	FirstRun bool `json:"first_run,omitempty"`

	// PolicyReference identifies the policy the run was gated with
	PolicyReference string `json:"policy_reference,omitempty"`

	// Duration is the evaluation duration in milliseconds
	Duration int64 `json:"duration"`

	// Version is the riskgate version used
	Version string `json:"version,omitempty"`

	// Tags are user-defined labels
	Tags []string `json:"tags,omitempty"`

	// Notes are optional run notes
	Notes string `json:"notes,omitempty"`
}

// TrendPoint represents a single data point for trend visualization.
type TrendPoint struct {
	Timestamp     time.Time     `json:"timestamp"`
	Status        policy.Status `json:"status"`
	RiskScore     int           `json:"risk_score"`
	TotalFindings int           `json:"total_findings"`
}

// ComparisonResult represents the difference between two runs.
type ComparisonResult struct {
	BaseID           string    `json:"base_id"`
	CompareID        string    `json:"compare_id"`
	BaseTimestamp    time.Time `json:"base_timestamp"`
	CompareTimestamp time.Time `json:"compare_timestamp"`

	// StatusChange is positive when the verdict improved.
	StatusChange int `json:"status_change"`

	RiskScoreDelta int `json:"risk_score_delta"`
	FindingsDelta  int `json:"findings_delta"`
	CriticalDelta  int `json:"critical_delta"`
	HighDelta      int `json:"high_delta"`
	MediumDelta    int `json:"medium_delta"`

	Improved bool `json:"improved"`
}

// StoreStats contains storage statistics.
type StoreStats struct {
	TotalRuns        int       `json:"total_runs"`
	UniqueApps       int       `json:"unique_apps"`
	OldestRun        time.Time `json:"oldest_run"`
	NewestRun        time.Time `json:"newest_run"`
	StorageSizeBytes int64     `json:"storage_size_bytes"`
}

// NewStore creates a new history store at the specified directory.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}

	store := &Store{
		basePath: basePath,
		index: &storeIndex{
			Runs: make(map[string]*RunRecord),
		},
	}

	// Load existing index if present
	if err := store.loadIndex(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

// indexPath returns the path to the store index file.
func (s *Store) indexPath() string {
	return filepath.Join(s.basePath, "index.json")
}

// loadIndex loads the store index from disk.
func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return err
	}
	return jsonutil.Unmarshal(data, s.index)
}

// saveIndex persists the store index to disk using atomic write.
// Writes to a temporary file first, then renames to prevent corruption.
func (s *Store) saveIndex() error {
	data, err := jsonutil.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.indexPath()); err != nil {
		os.Remove(tmpPath) // Clean up orphaned temp file
		return err
	}
	return nil
}

// Save stores a run record.
func (s *Store) Save(record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Runs[record.ID] = record
	return s.saveIndex()
}

// copyRunRecord creates a deep copy of a RunRecord.
func copyRunRecord(r *RunRecord) *RunRecord {
	c := *r
	if r.Tags != nil {
		c.Tags = make([]string, len(r.Tags))
		copy(c.Tags, r.Tags)
	}
	return &c
}

// Get retrieves a run record by ID.
func (s *Store) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.index.Runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return copyRunRecord(record), nil
}

// List retrieves run records for an application within a time range.
func (s *Store) List(app string, since, until time.Time, limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*RunRecord
	for _, record := range s.index.Runs {
		if app != "" && record.AppName != app {
			continue
		}
		if record.Timestamp.Before(since) || record.Timestamp.After(until) {
			continue
		}
		records = append(records, copyRunRecord(record))
	}

	// Sort by timestamp descending
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	// Apply limit
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// GetTrend retrieves trend data for an application over time.
func (s *Store) GetTrend(app string, since time.Time, maxPoints int) ([]TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []TrendPoint
	for _, record := range s.index.Runs {
		if app != "" && record.AppName != app {
			continue
		}
		if record.Timestamp.Before(since) {
			continue
		}
		points = append(points, TrendPoint{
			Timestamp:     record.Timestamp,
			Status:        record.Status,
			RiskScore:     record.RiskScore,
			TotalFindings: record.TotalFindings,
		})
	}

	// Sort by timestamp ascending
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	// Apply limit, keeping the most recent points
	if maxPoints > 0 && len(points) > maxPoints {
		points = points[len(points)-maxPoints:]
	}

	return points, nil
}

// Compare compares two run records and returns the delta.
func (s *Store) Compare(baseID, compareID string) (*ComparisonResult, error) {
	base, err := s.Get(baseID)
	if err != nil {
		return nil, err
	}

	compare, err := s.Get(compareID)
	if err != nil {
		return nil, err
	}

	result := &ComparisonResult{
		BaseID:           baseID,
		CompareID:        compareID,
		BaseTimestamp:    base.Timestamp,
		CompareTimestamp: compare.Timestamp,
		StatusChange:     base.Status.Rank() - compare.Status.Rank(),
		RiskScoreDelta:   compare.RiskScore - base.RiskScore,
		FindingsDelta:    compare.TotalFindings - base.TotalFindings,
		CriticalDelta:    compare.SeverityCounts.Critical - base.SeverityCounts.Critical,
		HighDelta:        compare.SeverityCounts.High - base.SeverityCounts.High,
		MediumDelta:      compare.SeverityCounts.Medium - base.SeverityCounts.Medium,
	}

	// Improvement means the score dropped without the verdict getting worse
	result.Improved = result.RiskScoreDelta < 0 && result.StatusChange >= 0

	return result, nil
}

// Delete removes a run record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Runs[id]; !ok {
		return ErrRunNotFound
	}

	delete(s.index.Runs, id)
	return s.saveIndex()
}

// Prune removes run records older than the specified duration.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	count := 0

	for id, record := range s.index.Runs {
		if record.Timestamp.Before(cutoff) {
			delete(s.index.Runs, id)
			count++
		}
	}

	if count > 0 {
		if err := s.saveIndex(); err != nil {
			return count, err
		}
	}

	return count, nil
}

// Stats returns storage statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StoreStats{
		TotalRuns: len(s.index.Runs),
	}

	apps := make(map[string]bool)
	for _, record := range s.index.Runs {
		apps[record.AppName] = true
		if stats.OldestRun.IsZero() || record.Timestamp.Before(stats.OldestRun) {
			stats.OldestRun = record.Timestamp
		}
		if record.Timestamp.After(stats.NewestRun) {
			stats.NewestRun = record.Timestamp
		}
	}
	stats.UniqueApps = len(apps)

	// Get storage size
	info, err := os.Stat(s.indexPath())
	if err == nil {
		stats.StorageSizeBytes = info.Size()
	}

	return stats, nil
}

// Close closes the store (no-op for file-based storage).
func (s *Store) Close() error {
	return nil
}

// ListAll returns all run records, sorted by timestamp descending.
func (s *Store) ListAll(limit int) ([]*RunRecord, error) {
	return s.List("", time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), limit)
}

// GetLatest returns the most recent run for an application.
func (s *Store) GetLatest(app string) (*RunRecord, error) {
	records, err := s.List(app, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRunNotFound
	}
	return records[0], nil
}
