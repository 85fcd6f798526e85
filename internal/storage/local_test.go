package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hotosm/tm-extractor/internal/domain"
)

func TestLocalStoreSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	store := NewLocalStore(path)

	report := make(domain.Report)
	report.SetResult("task-1", json.RawMessage(`{"download_url":"https://example.com/x.zip"}`))
	report.SetFailure("task-2", "timeout")

	if err := store.Save(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read results file: %v", err)
	}

	var back map[string]json.RawMessage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("results file is not valid JSON: %v", err)
	}
	if len(back) != 2 {
		t.Errorf("expected 2 entries, got %d", len(back))
	}
	if string(back["task-2"]) != `"FAILURE: timeout"` {
		t.Errorf("unexpected failure entry: %s", back["task-2"])
	}
}

func TestLocalStoreSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	store := NewLocalStore(path)

	first := make(domain.Report)
	first.SetString("old", "stale entry")
	if err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := make(domain.Report)
	second.SetString("new", "fresh entry")
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read results file: %v", err)
	}
	var back map[string]json.RawMessage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("results file is not valid JSON: %v", err)
	}
	if _, ok := back["old"]; ok {
		t.Error("expected the old report to be replaced")
	}
	if _, ok := back["new"]; !ok {
		t.Error("expected the new report entry")
	}
}

func TestLocalStoreLocation(t *testing.T) {
	store := NewLocalStore("result.json")
	if !filepath.IsAbs(store.Location()) {
		t.Errorf("expected absolute location, got %q", store.Location())
	}
}

func TestNewResultStore_UnknownBackend(t *testing.T) {
	if _, err := NewResultStore(&Config{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
