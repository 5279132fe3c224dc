package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionEvent summarises a finished execution for downstream consumers.
// It never carries the submitted source or program output.
type ExecutionEvent struct {
	ExecutionID   uuid.UUID       `json:"execution_id"`
	Status        ExecutionStatus `json:"status"`
	HasError      bool            `json:"has_error"`
	ExecutionTime int64           `json:"execution_time_ms"`
	TraceCount    int             `json:"trace_count"`
	SourceBytes   int             `json:"source_bytes"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// ProgressEvent is one stage notification sent while an execution is in flight.
type ProgressEvent struct {
	ExecutionID uuid.UUID       `json:"executionId"`
	Status      ExecutionStatus `json:"status"`
}
