package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"
)

// snapshotRecorder captures every request config posted to the fake raw-data
// API and hands out sequential task IDs.
type snapshotRecorder struct {
	mu     sync.Mutex
	bodies []map[string]json.RawMessage
}

func (rec *snapshotRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read snapshot body: %v", err)
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Errorf("snapshot body is not valid JSON: %v", err)
		}

		rec.mu.Lock()
		rec.bodies = append(rec.bodies, doc)
		n := len(rec.bodies)
		rec.mu.Unlock()

		fmt.Fprintf(w, `{"task_id": "task-%d"}`, n)
	}
}

func newTestSubmit(t *testing.T, tmHandler, rawHandler http.HandlerFunc, workers int) *SubmitService {
	t.Helper()
	tmSrv := httptest.NewServer(tmHandler)
	t.Cleanup(tmSrv.Close)
	rawSrv := httptest.NewServer(rawHandler)
	t.Cleanup(rawSrv.Close)

	tm := NewTaskingManagerService(&TaskingManagerConfig{
		BaseURL:     tmSrv.URL,
		Timeout:     5 * time.Second,
		MaxRetries:  1,
		BackoffBase: 0,
	}, testLogger())

	rawdata := NewRawDataService(&RawDataConfig{
		BaseURL:       rawSrv.URL,
		AuthToken:     "test-token",
		Timeout:       5 * time.Second,
		MaxRetries:    1,
		RateLimitWait: time.Millisecond,
		BackoffBase:   0,
	}, testLogger())

	return NewSubmitService(tm, rawdata, testTemplate(t), testLogger(), &SubmitConfig{Workers: workers})
}

func projectHandler(t *testing.T, mappingTypes string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"mappingTypes": %s,
			"areaOfInterest": {"type": "Polygon", "coordinates": []}
		}`, mappingTypes)
	}
}

func TestSubmitRun(t *testing.T) {
	rec := &snapshotRecorder{}
	svc := newTestSubmit(t, projectHandler(t, `["BUILDINGS", "ROADS"]`), rec.handler(t), 2)

	result, err := svc.Run(context.Background(), SubmitOptions{Projects: []int{101, 102, 103}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.TaskIDs) != 3 {
		t.Fatalf("expected 3 task IDs, got %d", len(result.TaskIDs))
	}
	if result.Stats.Submitted != 3 || result.Stats.Failed != 0 || result.Stats.Skipped != 0 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}

	ids := append([]string(nil), result.TaskIDs...)
	sort.Strings(ids)
	for i, id := range ids {
		if want := fmt.Sprintf("task-%d", i+1); id != want {
			t.Errorf("expected %s, got %s", want, id)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, doc := range rec.bodies {
		var cats []map[string]json.RawMessage
		if err := json.Unmarshal(doc["categories"], &cats); err != nil {
			t.Fatalf("categories missing from request config: %v", err)
		}
		if len(cats) != 2 {
			t.Errorf("expected 2 categories, got %d", len(cats))
		}
		if _, ok := doc["geometry"]; !ok {
			t.Error("expected geometry in request config")
		}
	}
}

func TestSubmitRun_UnsupportedTypesSkipped(t *testing.T) {
	rec := &snapshotRecorder{}
	svc := newTestSubmit(t, projectHandler(t, `["UNKNOWN_TYPE"]`), rec.handler(t), 1)

	result, err := svc.Run(context.Background(), SubmitOptions{Projects: []int{5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.TaskIDs) != 0 {
		t.Errorf("expected no submissions, got %d", len(result.TaskIDs))
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", result.Stats.Skipped)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.bodies) != 0 {
		t.Errorf("expected no snapshot requests, got %d", len(rec.bodies))
	}
}

func TestSubmitRun_ResolverFailureContinues(t *testing.T) {
	rec := &snapshotRecorder{}
	var tmRequests int
	var mu sync.Mutex
	svc := newTestSubmit(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tmRequests++
		mu.Unlock()
		if r.URL.Path == "/projects/404/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		projectHandler(t, `["BUILDINGS"]`)(w, r)
	}, rec.handler(t), 1)

	result, err := svc.Run(context.Background(), SubmitOptions{Projects: []int{404, 200}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the missing project disappears from the batch, the other one proceeds
	if len(result.TaskIDs) != 1 {
		t.Errorf("expected 1 task ID, got %d", len(result.TaskIDs))
	}
	if result.Stats.TotalProjects != 1 {
		t.Errorf("expected 1 resolved project, got %d", result.Stats.TotalProjects)
	}
}

func TestSubmitRun_ActiveProjects(t *testing.T) {
	rec := &snapshotRecorder{}
	svc := newTestSubmit(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/queries/active/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"features": [
				{
					"type": "Feature",
					"properties": {"project_id": 20, "mapping_types": [2, "ROADS"]},
					"geometry": {"type": "Polygon", "coordinates": []}
				}
			]
		}`)
	}, rec.handler(t), 1)

	result, err := svc.Run(context.Background(), SubmitOptions{ActiveWindowHours: 24})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.TaskIDs) != 1 {
		t.Fatalf("expected 1 task ID, got %d", len(result.TaskIDs))
	}
}

func TestSubmitRun_NothingToDo(t *testing.T) {
	rec := &snapshotRecorder{}
	svc := newTestSubmit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, rec.handler(t), 1)

	result, err := svc.Run(context.Background(), SubmitOptions{ActiveWindowHours: 24})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.TaskIDs) != 0 || result.Stats.TotalProjects != 0 {
		t.Errorf("expected an empty batch, got %+v", result)
	}
}
