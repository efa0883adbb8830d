// Package history persists scored run records so pass rates can be
// tracked across runs. Two backends: a JSON snapshot file for local
// use and Postgres for shared deployments.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lengi96/ai-qa-framework/internal/probe"
)

// Entry is one scored case from one run.
type Entry struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	TestID     string         `json:"test_id"`
	Name       string         `json:"name,omitempty"`
	Category   probe.Category `json:"category"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Verdict    probe.Verdict  `json:"verdict"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CategoryStats summarizes all stored entries for one category.
type CategoryStats struct {
	Category probe.Category `json:"category"`
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Errors   int            `json:"errors"`
	MeanMS   float64        `json:"mean_duration_ms"`
}

type Store interface {
	Append(ctx context.Context, entries []Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	ListByCategory(ctx context.Context, category probe.Category, limit int) ([]Entry, error)
	Overview(ctx context.Context) ([]CategoryStats, error)
	Close()
}

// NewEntries stamps run records into history entries.
func NewEntries(runID, providerName, model string, records []probe.Record) []Entry {
	now := time.Now().UTC()
	out := make([]Entry, len(records))
	for i, rec := range records {
		out[i] = Entry{
			ID:         uuid.NewString(),
			RunID:      runID,
			TestID:     rec.TestID,
			Name:       rec.Name,
			Category:   rec.Category,
			Provider:   providerName,
			Model:      model,
			Verdict:    rec.Verdict,
			Error:      rec.Error,
			DurationMS: rec.DurationMS,
			CreatedAt:  now,
		}
	}
	return out
}

// MemoryFileStore keeps all entries in memory and snapshots them to a
// JSON file on every append. The snapshot is written to a temp file
// and renamed in, so a crash never leaves a half-written history.
type MemoryFileStore struct {
	mu      sync.Mutex
	path    string
	entries []Entry
}

func NewMemoryFileStore(path string) (*MemoryFileStore, error) {
	s := &MemoryFileStore{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history snapshot: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("parse history snapshot %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *MemoryFileStore) Append(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return s.snapshotLocked()
}

func (s *MemoryFileStore) snapshotLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("write history snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write history snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history snapshot: %w", err)
	}
	return nil
}

func (s *MemoryFileStore) List(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.entries, limit), nil
}

func (s *MemoryFileStore) ListByCategory(_ context.Context, category probe.Category, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered []Entry
	for _, e := range s.entries {
		if e.Category == category {
			filtered = append(filtered, e)
		}
	}
	return newestFirst(filtered, limit), nil
}

func (s *MemoryFileStore) Overview(_ context.Context) ([]CategoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCat := map[probe.Category]*CategoryStats{}
	sums := map[probe.Category]int64{}
	for _, e := range s.entries {
		st := byCat[e.Category]
		if st == nil {
			st = &CategoryStats{Category: e.Category}
			byCat[e.Category] = st
		}
		st.Total++
		switch {
		case e.Error != "":
			st.Errors++
		case e.Verdict.Passed:
			st.Passed++
		}
		sums[e.Category] += e.DurationMS
	}
	out := make([]CategoryStats, 0, len(byCat))
	for cat, st := range byCat {
		if st.Total > 0 {
			st.MeanMS = float64(sums[cat]) / float64(st.Total)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *MemoryFileStore) Close() {}

func newestFirst(entries []Entry, limit int) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
