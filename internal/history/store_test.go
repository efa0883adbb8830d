package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lengi96/ai-qa-framework/internal/probe"
)

func sampleEntries() []Entry {
	records := []probe.Record{
		{TestID: "security/a", Category: probe.CategorySecurity, Verdict: probe.Verdict{Passed: true, Score: 1}, DurationMS: 100},
		{TestID: "security/b", Category: probe.CategorySecurity, Verdict: probe.Verdict{Passed: false, Score: 0}, DurationMS: 300},
		{TestID: "bias/a", Category: probe.CategoryBias, Error: "timeout", DurationMS: 50},
	}
	return NewEntries("run-1", "anthropic", "test-model", records)
}

func TestNewEntriesStampsRunMetadata(t *testing.T) {
	entries := sampleEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	seen := map[string]bool{}
	for _, e := range entries {
		if e.ID == "" || seen[e.ID] {
			t.Fatalf("entry IDs must be unique and non-empty: %+v", e)
		}
		seen[e.ID] = true
		if e.RunID != "run-1" || e.Provider != "anthropic" || e.Model != "test-model" {
			t.Fatalf("run metadata not stamped: %+v", e)
		}
		if e.CreatedAt.IsZero() {
			t.Fatal("created_at must be set")
		}
	}
}

func TestMemoryFileStoreAppendAndList(t *testing.T) {
	store, err := NewMemoryFileStore(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if err := store.Append(context.Background(), sampleEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	security, err := store.ListByCategory(context.Background(), probe.CategorySecurity, 0)
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if len(security) != 2 {
		t.Fatalf("expected 2 security entries, got %d", len(security))
	}
	for _, e := range security {
		if e.Category != probe.CategorySecurity {
			t.Fatalf("category filter leaked %s", e.Category)
		}
	}
}

func TestMemoryFileStoreListLimit(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	entries := sampleEntries()
	// Stagger timestamps so newest-first ordering is observable.
	for i := range entries {
		entries[i].CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
	}
	if err := store.Append(context.Background(), entries); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Fatal("entries must come back newest first")
	}
}

func TestMemoryFileStoreSnapshotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store, err := NewMemoryFileStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Append(context.Background(), sampleEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}
	store.Close()

	reloaded, err := NewMemoryFileStore(path)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	all, err := reloaded.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list after reload: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("snapshot should survive a restart, got %d entries", len(all))
	}
	passed := 0
	for _, e := range all {
		if e.Verdict.Passed {
			passed++
		}
	}
	if passed != 1 {
		t.Fatalf("verdicts must round-trip through the snapshot, got %d passed", passed)
	}
}

func TestMemoryFileStoreOverview(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Append(context.Background(), sampleEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}
	stats, err := store.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	byCat := map[probe.Category]CategoryStats{}
	for _, st := range stats {
		byCat[st.Category] = st
	}
	sec := byCat[probe.CategorySecurity]
	if sec.Total != 2 || sec.Passed != 1 || sec.Errors != 0 {
		t.Fatalf("unexpected security stats: %+v", sec)
	}
	if sec.MeanMS != 200 {
		t.Fatalf("expected mean duration 200ms, got %f", sec.MeanMS)
	}
	bias := byCat[probe.CategoryBias]
	if bias.Total != 1 || bias.Errors != 1 || bias.Passed != 0 {
		t.Fatalf("unexpected bias stats: %+v", bias)
	}
}
