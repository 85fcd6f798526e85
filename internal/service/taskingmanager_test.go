package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestTM(t *testing.T, handler http.HandlerFunc) *TaskingManagerService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTaskingManagerService(&TaskingManagerConfig{
		BaseURL:     srv.URL,
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		BackoffBase: 0,
	}, testLogger())
}

func TestProjectDetails(t *testing.T) {
	svc := newTestTM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/123/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("as_file") != "false" || r.URL.Query().Get("abbreviated") != "false" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{
			"mappingTypes": ["BUILDINGS", 1],
			"areaOfInterest": {"type": "Polygon", "coordinates": []},
			"projectInfo": {"name": "ignored"}
		}`)
	})

	feature, err := svc.ProjectDetails(context.Background(), 123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feature.Type != "Feature" {
		t.Errorf("expected Feature, got %q", feature.Type)
	}
	if feature.Properties.ProjectID != 123 {
		t.Errorf("expected project ID 123, got %d", feature.Properties.ProjectID)
	}
	if len(feature.Properties.MappingTypes) != 2 {
		t.Errorf("expected 2 mapping types, got %d", len(feature.Properties.MappingTypes))
	}
	if len(feature.Geometry) == 0 {
		t.Error("expected geometry to be attached")
	}
}

func TestProjectDetails_NotFoundIsTerminal(t *testing.T) {
	var requests int32
	svc := newTestTM(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := svc.ProjectDetails(context.Background(), 404)
	if err == nil {
		t.Fatal("expected error for missing project")
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected a 404 to stop retries, got %d requests", n)
	}
}

func TestProjectDetails_MissingFieldsRetried(t *testing.T) {
	var requests int32
	svc := newTestTM(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		// well-formed 200 but missing areaOfInterest
		fmt.Fprint(w, `{"mappingTypes": ["BUILDINGS"]}`)
	})

	_, err := svc.ProjectDetails(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}

func TestActiveProjects(t *testing.T) {
	svc := newTestTM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/queries/active/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "24" {
			t.Errorf("unexpected interval %s", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, `{
			"features": [
				{
					"type": "Feature",
					"properties": {"project_id": 11, "mapping_types": ["ROADS"]},
					"geometry": {"type": "Polygon", "coordinates": []}
				},
				{
					"type": "Feature",
					"properties": {"project_id": 12, "mapping_types": [2]},
					"geometry": {"type": "Polygon", "coordinates": []}
				}
			]
		}`)
	})

	features, err := svc.ActiveProjects(context.Background(), 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(features))
	}
	if features[0].Properties.ProjectID != 11 {
		t.Errorf("expected project 11, got %d", features[0].Properties.ProjectID)
	}
}

func TestActiveProjects_MissingFeatures(t *testing.T) {
	var requests int32
	svc := newTestTM(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `{"message": "no features here"}`)
	})

	_, err := svc.ActiveProjects(context.Background(), 24)
	if err == nil {
		t.Fatal("expected error when features is missing")
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}
