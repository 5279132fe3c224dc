package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents where an execution is in its lifecycle, and for
// terminal states, how it ended.
type ExecutionStatus string

const (
	StatusQueued           ExecutionStatus = "QUEUED"
	StatusCompiling        ExecutionStatus = "COMPILING"
	StatusRunning          ExecutionStatus = "RUNNING"
	StatusSuccess          ExecutionStatus = "SUCCESS"
	StatusCompilationError ExecutionStatus = "COMPILATION_ERROR"
	StatusRuntimeError     ExecutionStatus = "RUNTIME_ERROR"
	StatusTimeout          ExecutionStatus = "TIMEOUT"
	StatusSystemError      ExecutionStatus = "SYSTEM_ERROR"
)

// IsTerminal returns true if the status represents a final state.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusCompilationError, StatusRuntimeError,
		StatusTimeout, StatusSystemError:
		return true
	}
	return false
}

// IsError returns true for every terminal status other than SUCCESS.
func (s ExecutionStatus) IsError() bool {
	return s.IsTerminal() && s != StatusSuccess
}

// RunRequest is the body accepted by the run endpoints.
type RunRequest struct {
	Code  string `json:"code"`
	Input string `json:"input"`
}

// ExecutionRequest is an accepted submission. It is immutable once created.
type ExecutionRequest struct {
	ExecutionID uuid.UUID
	SourceCode  string
	Stdin       string
	AcceptedAt  time.Time
}

// TraceEntry is one recorded variable write.
type TraceEntry struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
	Address  string `json:"address"`
}

// CompileOutcome is the result of compiling one workspace.
type CompileOutcome struct {
	OK          bool
	BinaryPath  string
	Diagnostics string
	Duration    time.Duration
}

// RunOutcome is the raw result of running a compiled program.
type RunOutcome struct {
	Status          ExecutionStatus
	Stdout          string
	Stderr          string
	ExitCode        int
	Signal          string
	ElapsedMs       int64
	StdoutTruncated bool
	StderrTruncated bool
}

// ExecutionResult is the response returned to the client.
type ExecutionResult struct {
	ExecutionID   uuid.UUID       `json:"executionId"`
	Output        string          `json:"output"`
	HasError      bool            `json:"hasError"`
	ExecutionTime int64           `json:"executionTime"`
	Trace         []TraceEntry    `json:"trace"`
	Status        ExecutionStatus `json:"status"`
	Stderr        string          `json:"stderr,omitempty"`
	ExitCode      *int            `json:"exitCode,omitempty"`
}
