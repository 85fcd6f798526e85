package service

import (
	"encoding/json"
	"testing"

	"github.com/hotosm/tm-extractor/internal/domain"
)

func testTemplate(t *testing.T) *domain.Template {
	t.Helper()
	tmpl, err := domain.ParseTemplate([]byte(`{
		"queue": "raw_ondemand",
		"dataset": {
			"dataset_prefix": "template_prefix",
			"dataset_folder": "TM",
			"dataset_title": "Template Title"
		},
		"categories": [
			{"Buildings": {"types": ["polygons"]}},
			{"Roads": {"types": ["lines"]}},
			{"Waterways": {"types": ["lines", "polygons"]}},
			{"Landuse": {"types": ["points", "polygons"]}}
		]
	}`))
	if err != nil {
		t.Fatalf("failed to parse template: %v", err)
	}
	return tmpl
}

func TestBuildSnapshotConfig(t *testing.T) {
	tmpl := testTemplate(t)
	geometry := json.RawMessage(`{"type":"Polygon","coordinates":[]}`)

	cfg := BuildSnapshotConfig(tmpl, 1234, []string{"Roads", "Buildings"}, geometry)

	if cfg.Dataset.DatasetPrefix != "hotosm_project_1234" {
		t.Errorf("expected hotosm_project_1234, got %q", cfg.Dataset.DatasetPrefix)
	}
	if cfg.Dataset.DatasetTitle != "Tasking Manger Project 1234" {
		t.Errorf("unexpected dataset title %q", cfg.Dataset.DatasetTitle)
	}
	if _, ok := cfg.Dataset.Extra["dataset_folder"]; !ok {
		t.Error("expected dataset_folder to pass through")
	}
	if string(cfg.Geometry) != string(geometry) {
		t.Error("expected geometry to be attached verbatim")
	}

	// output order follows the template, not the request
	wantOrder := []string{"Buildings", "Roads"}
	if len(cfg.Categories) != len(wantOrder) {
		t.Fatalf("expected %d categories, got %d", len(wantOrder), len(cfg.Categories))
	}
	for i, want := range wantOrder {
		if cfg.Categories[i].Name != want {
			t.Errorf("category %d: expected %q, got %q", i, want, cfg.Categories[i].Name)
		}
	}
}

func TestBuildSnapshotConfig_DedupAndUnknown(t *testing.T) {
	tmpl := testTemplate(t)

	cfg := BuildSnapshotConfig(tmpl, 5, []string{"Roads", "Roads", "Ferries"}, nil)

	if len(cfg.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(cfg.Categories))
	}
	if cfg.Categories[0].Name != "Roads" {
		t.Errorf("expected Roads, got %q", cfg.Categories[0].Name)
	}
}

func TestBuildSnapshotConfig_TemplateUntouched(t *testing.T) {
	tmpl := testTemplate(t)

	cfg := BuildSnapshotConfig(tmpl, 7, []string{"Buildings"}, nil)
	cfg.Dataset.Extra["dataset_folder"] = json.RawMessage(`"mutated"`)
	cfg.Extra["queue"] = json.RawMessage(`"mutated"`)

	if string(tmpl.Dataset.Extra["dataset_folder"]) != `"TM"` {
		t.Error("template dataset extras were mutated by the derived config")
	}
	if string(tmpl.Extra["queue"]) != `"raw_ondemand"` {
		t.Error("template top-level extras were mutated by the derived config")
	}
	if tmpl.Dataset.DatasetPrefix != "template_prefix" {
		t.Error("template dataset prefix was rewritten")
	}
}
