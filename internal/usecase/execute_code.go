package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/instrument"
	"github.com/SachiinVishwakarma/CodeBasse/internal/metrics"
	"github.com/SachiinVishwakarma/CodeBasse/internal/pool"
	"github.com/SachiinVishwakarma/CodeBasse/internal/publisher"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
	"github.com/SachiinVishwakarma/CodeBasse/internal/tracelog"
)

const (
	// DefaultMaxSourceBytes bounds the submitted source.
	DefaultMaxSourceBytes = 64 * 1024

	eventPublishTimeout = 10 * time.Second

	systemErrorOutput = "System error: the program could not be executed. Please try again."
)

// Admitter runs a task on a bounded set of workers, blocking until it has run.
type Admitter interface {
	Do(ctx context.Context, id string, fn pool.Task) error
}

// Observer receives stage notifications for one execution. It is called from
// the worker goroutine, in order, and must not block for long.
type Observer func(domain.ProgressEvent)

// ExecuteCodeUsecase instruments, compiles and runs one submission and turns
// what it printed into a display string plus a variable trace.
type ExecuteCodeUsecase struct {
	pool           Admitter
	workspaces     repository.Workspaces
	executor       repository.Executor
	publisher      publisher.Publisher
	maxSourceBytes int
	logger         *zap.Logger

	events sync.WaitGroup
}

// NewExecuteCodeUsecase creates a new ExecuteCodeUsecase.
func NewExecuteCodeUsecase(
	admitter Admitter,
	workspaces repository.Workspaces,
	exec repository.Executor,
	pub publisher.Publisher,
	maxSourceBytes int,
	logger *zap.Logger,
) *ExecuteCodeUsecase {
	if maxSourceBytes <= 0 {
		maxSourceBytes = DefaultMaxSourceBytes
	}
	if pub == nil {
		pub = publisher.NewNoop()
	}
	return &ExecuteCodeUsecase{
		pool:           admitter,
		workspaces:     workspaces,
		executor:       exec,
		publisher:      pub,
		maxSourceBytes: maxSourceBytes,
		logger:         logger,
	}
}

// Execute validates the submission, waits for a free worker and runs the
// whole pipeline there. Input errors are returned before anything is
// allocated; every other failure is reported inside the result.
func (uc *ExecuteCodeUsecase) Execute(ctx context.Context, req *domain.RunRequest, observe Observer) (*domain.ExecutionResult, error) {
	if req == nil || strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrEmptySourceCode
	}
	if len(req.Code) > uc.maxSourceBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	// Generate UUIDv7 (time-ordered)
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	execReq := &domain.ExecutionRequest{
		ExecutionID: id,
		SourceCode:  req.Code,
		Stdin:       req.Input,
		AcceptedAt:  time.Now().UTC(),
	}

	notify := func(status domain.ExecutionStatus) {
		if observe != nil {
			observe(domain.ProgressEvent{ExecutionID: id, Status: status})
		}
	}
	notify(domain.StatusQueued)

	var result *domain.ExecutionResult
	err = uc.pool.Do(ctx, id.String(), func(taskCtx context.Context) {
		result = uc.process(taskCtx, execReq, notify)
	})
	if err != nil {
		return nil, err
	}

	notify(result.Status)
	uc.record(execReq, result)
	return result, nil
}

// Wait blocks until every event handed to the publisher has been sent or
// has failed.
func (uc *ExecuteCodeUsecase) Wait() {
	uc.events.Wait()
}

func (uc *ExecuteCodeUsecase) process(ctx context.Context, req *domain.ExecutionRequest, notify func(domain.ExecutionStatus)) *domain.ExecutionResult {
	log := uc.logger.With(zap.String("execution_id", req.ExecutionID.String()))

	instrumented, err := instrument.Transform(req.SourceCode)
	if err != nil {
		var directiveErr *instrument.DirectiveError
		if errors.As(err, &directiveErr) {
			log.Info("Submission rejected by directive check", zap.Error(err))
			return compilationError(req, directiveErr.Error())
		}
		log.Error("Instrumentation failed", zap.Error(err))
		return systemError(req)
	}

	ws, err := uc.workspaces.Acquire(ctx)
	if err != nil {
		log.Error("Failed to acquire workspace", zap.Error(err))
		return systemError(req)
	}
	defer uc.workspaces.Release(ws)
	log = log.With(zap.String("workspace_id", ws.ID))

	if err := uc.workspaces.Materialize(ws, instrumented); err != nil {
		log.Error("Failed to write source", zap.Error(err))
		return systemError(req)
	}

	notify(domain.StatusCompiling)
	compiled, err := uc.executor.Compile(ctx, ws)
	if err != nil {
		log.Error("Compiler invocation failed", zap.Error(err))
		return systemError(req)
	}
	if !compiled.OK {
		log.Debug("Compilation failed", zap.Duration("elapsed", compiled.Duration))
		return compilationError(req, compiled.Diagnostics)
	}

	notify(domain.StatusRunning)
	run, err := uc.executor.Run(ctx, ws, req.Stdin)
	if err != nil {
		log.Error("Sandbox execution failed", zap.Error(err))
		return systemError(req)
	}

	return uc.buildResult(req, run)
}

func (uc *ExecuteCodeUsecase) buildResult(req *domain.ExecutionRequest, run *domain.RunOutcome) *domain.ExecutionResult {
	display, trace := tracelog.Parse(run.Stdout)

	result := &domain.ExecutionResult{
		ExecutionID:   req.ExecutionID,
		Output:        display,
		HasError:      run.Status.IsError(),
		ExecutionTime: run.ElapsedMs,
		Trace:         trace,
		Status:        run.Status,
		Stderr:        run.Stderr,
	}

	switch run.Status {
	case domain.StatusSuccess:
		// Stderr on a clean exit is diagnostic only and stays out of output.
		result.ExitCode = intPtr(run.ExitCode)

	case domain.StatusRuntimeError:
		result.Output = appendBlock(result.Output, run.Stderr)
		if run.Signal != "" {
			result.Output = appendBlock(result.Output, "Process terminated by signal "+run.Signal)
		} else {
			result.ExitCode = intPtr(run.ExitCode)
			result.Output = appendBlock(result.Output, fmt.Sprintf("Process exited with code %d", run.ExitCode))
		}

	case domain.StatusTimeout:
		result.Output = appendBlock(result.Output, run.Stderr)
		result.Output = appendBlock(result.Output, "Execution timed out after "+formatSeconds(uc.executor.RunTimeout()))
	}

	return result
}

// record updates metrics and hands a summary event to the publisher without
// holding up the response.
func (uc *ExecuteCodeUsecase) record(req *domain.ExecutionRequest, result *domain.ExecutionResult) {
	metrics.ExecutionsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.TraceEntries.Observe(float64(len(result.Trace)))

	uc.logger.Info("Execution finished",
		zap.String("execution_id", req.ExecutionID.String()),
		zap.String("status", string(result.Status)),
		zap.Int64("elapsed_ms", result.ExecutionTime),
		zap.Int("trace_entries", len(result.Trace)),
	)

	event := &domain.ExecutionEvent{
		ExecutionID:   req.ExecutionID,
		Status:        result.Status,
		HasError:      result.HasError,
		ExecutionTime: result.ExecutionTime,
		TraceCount:    len(result.Trace),
		SourceBytes:   len(req.SourceCode),
		FinishedAt:    time.Now().UTC(),
	}

	uc.events.Add(1)
	go func() {
		defer uc.events.Done()
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()

		if err := uc.publisher.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues("error").Inc()
			uc.logger.Warn("Failed to publish execution event",
				zap.String("execution_id", req.ExecutionID.String()),
				zap.Error(err),
			)
			return
		}
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}()
}

func compilationError(req *domain.ExecutionRequest, diagnostics string) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		ExecutionID:   req.ExecutionID,
		Output:        diagnostics,
		HasError:      true,
		ExecutionTime: 0,
		Trace:         []domain.TraceEntry{},
		Status:        domain.StatusCompilationError,
	}
}

func systemError(req *domain.ExecutionRequest) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		ExecutionID: req.ExecutionID,
		Output:      systemErrorOutput,
		HasError:    true,
		Trace:       []domain.TraceEntry{},
		Status:      domain.StatusSystemError,
	}
}

// appendBlock adds text on its own line after out.
func appendBlock(out, text string) string {
	if text == "" {
		return out
	}
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + text
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}

func intPtr(v int) *int { return &v }
