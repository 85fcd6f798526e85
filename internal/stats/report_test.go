package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hotosm/tm-extractor/internal/domain"
)

func TestSummarize(t *testing.T) {
	report := domain.Report{
		"task-1": json.RawMessage(`{
			"started_at": "2024-01-01T10:00:00Z",
			"elapsed_time": "2 minutes",
			"datasets": [
				{"hotosm_project_1_buildings": {"resources": [{"name": "a.geojson"}, {"name": "a.shp"}]}},
				{"hotosm_project_1_roads": {"resources": [{"name": "b.geojson"}]}}
			]
		}`),
		"task-2": json.RawMessage(`{
			"started_at": "2024-01-01T10:05:00Z",
			"elapsed_time": "a minute",
			"datasets": [
				{"hotosm_project_2_buildings": {"resources": [{"name": "c.geojson"}]}}
			]
		}`),
		"task-3": json.RawMessage(`"FAILURE: snapshot submission failed after 3 retries"`),
		"task-4": json.RawMessage(`"No result available"`),
	}

	summary, err := Summarize(report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalTasks != 4 {
		t.Errorf("expected 4 total tasks, got %d", summary.TotalTasks)
	}
	if summary.SuccessfulTasks != 2 {
		t.Errorf("expected 2 successful tasks, got %d", summary.SuccessfulTasks)
	}
	if summary.FailedTasks != 2 {
		t.Errorf("expected 2 failed tasks, got %d", summary.FailedTasks)
	}
	if summary.TotalDatasets != 3 {
		t.Errorf("expected 3 datasets, got %d", summary.TotalDatasets)
	}
	if summary.TotalResources != 4 {
		t.Errorf("expected 4 resources, got %d", summary.TotalResources)
	}
	if summary.DatasetCounts["hotosm_project_1_buildings"] != 2 {
		t.Errorf("unexpected dataset counts: %v", summary.DatasetCounts)
	}

	// earliest start 10:00, latest end 10:05 + 1 minute
	if summary.TotalElapsed != "6m0s" {
		t.Errorf("expected 6m0s total elapsed, got %s", summary.TotalElapsed)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary, err := Summarize(domain.Report{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalTasks != 0 || summary.TotalElapsed != "0s" {
		t.Errorf("unexpected summary for empty report: %+v", summary)
	}
}

func TestParseElapsed(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"2 minutes", 2 * time.Minute},
		{"1 minute", time.Minute},
		{"a minute", time.Minute},
		{"an hour", time.Hour},
		{"3 seconds", 3 * time.Second},
		{"2 days", 48 * time.Hour},
		{"a few seconds", time.Second},
		{"", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		if got := parseElapsed(tt.input); got != tt.want {
			t.Errorf("parseElapsed(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
