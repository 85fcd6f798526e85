package domain

import (
	"encoding/json"
	"fmt"
)

// NoResultPlaceholder is recorded when a task finishes without a result payload.
const NoResultPlaceholder = "No result available"

// Report maps every submitted task ID to either its success payload or a
// failure string. One entry per task, write-once per ID.
type Report map[string]json.RawMessage

// SetResult records a task's success payload. A task that completed without a
// payload gets the placeholder string instead, so the entry is never empty.
func (r Report) SetResult(taskID string, result json.RawMessage) {
	if len(result) == 0 || string(result) == "null" {
		r.SetString(taskID, NoResultPlaceholder)
		return
	}
	r[taskID] = result
}

// SetFailure records a failure marker for a task.
func (r Report) SetFailure(taskID, message string) {
	if message == "" {
		message = "Unknown error"
	}
	r.SetString(taskID, fmt.Sprintf("FAILURE: %s", message))
}

// SetString records a plain string entry for a task.
func (r Report) SetString(taskID, s string) {
	raw, err := json.Marshal(s)
	if err != nil {
		// strings always marshal; keep the entry present regardless
		raw = []byte(`"FAILURE: unencodable result"`)
	}
	r[taskID] = raw
}

// Marshal renders the report as indented JSON, matching the results artifact
// format consumed by the report tooling.
func (r Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
