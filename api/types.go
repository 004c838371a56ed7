package api

import (
	"time"

	"portscan/scanner"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanTask represents a scanning job managed by the API service.
type ScanTask struct {
	// ID is the immutable identifier of the scan task (UUID v4).
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status reflects the asynchronous lifecycle state of the task.
	Status string `json:"status" enums:"pending,running,completed,failed" example:"pending"`
	// Host is the single target of the scan.
	Host string `json:"host" example:"192.0.2.10"`
	// Ports is the port expression as submitted.
	Ports string `json:"ports" example:"1-1024"`
	// TimeoutMS is the per-probe timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms" example:"1000"`
	// Concurrency is the worker pool size used for the scan.
	Concurrency int `json:"concurrency" example:"100"`
	// Results holds one outcome per port once the task completes.
	Results []scanner.Outcome `json:"results,omitempty"`
	// Counts summarizes Results by status.
	Counts *scanner.Counts `json:"counts,omitempty"`
	// CreatedAt records when the task was created.
	CreatedAt time.Time `json:"created_at" format:"date-time"`
	// CompletedAt is set once the task transitions to a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	// Error contains context when a task fails.
	Error string `json:"error,omitempty" example:"invalid port spec: port is not a number: \"http\""`
}

// CreateScanRequest is the payload for creating new scan tasks.
type CreateScanRequest struct {
	Host        string `json:"host" binding:"required" example:"192.0.2.10"`
	Ports       string `json:"ports" example:"80,443,8080"`
	TimeoutMS   int    `json:"timeout_ms" binding:"omitempty,min=1,max=60000" example:"1000"`
	Concurrency int    `json:"concurrency" binding:"omitempty,min=1,max=1000" example:"100"`
}

// ScanAcceptedResponse captures the asynchronous acknowledgement returned after job submission.
type ScanAcceptedResponse struct {
	ID     string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	Status string `json:"status" enums:"pending" example:"pending"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	Error string `json:"error" example:"task not found"`
}
