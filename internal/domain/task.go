package domain

import "encoding/json"

// TaskStatus represents the status of a raw-data API extraction task.
type TaskStatus string

const (
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusStarted TaskStatus = "STARTED"
	TaskStatusError   TaskStatus = "ERROR"
	TaskStatusFailure TaskStatus = "FAILURE"
)

// Terminal reports whether the status ends the polling loop for a task.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusError, TaskStatusFailure:
		return true
	}
	return false
}

// Running reports whether the task is still being processed upstream.
func (s TaskStatus) Running() bool {
	return s == TaskStatusPending || s == TaskStatusStarted
}

// TaskStatusResponse is the body of GET /tasks/status/{task_id}/.
// Result is opaque: its shape is owned by the raw-data API.
type TaskStatusResponse struct {
	Status  TaskStatus      `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SubmitResponse is the body of POST /custom/snapshot/.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}
