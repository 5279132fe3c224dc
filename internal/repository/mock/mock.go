package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

// ---- Workspaces mock ----

var _ repository.Workspaces = (*Workspaces)(nil)

// Workspaces is a test double for repository.Workspaces. It never touches the
// filesystem; materialized sources are kept in memory.
type Workspaces struct {
	mu sync.Mutex

	AcquireFn     func(ctx context.Context) (*workspace.Workspace, error)
	MaterializeFn func(ws *workspace.Workspace, source string) error

	// Recorded calls for assertions.
	Acquired     []*workspace.Workspace
	Sources      map[string]string
	ReleaseCalls []*workspace.Workspace
}

func (m *Workspaces) Acquire(ctx context.Context) (*workspace.Workspace, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("mock%d", len(m.Acquired)+1)
	ws := &workspace.Workspace{
		ID:         id,
		Dir:        "/tmp/" + id,
		SourcePath: "/tmp/" + id + "/" + workspace.SourceName,
		BinaryPath: "/tmp/" + id + "/" + workspace.BinaryName,
	}
	m.Acquired = append(m.Acquired, ws)
	return ws, nil
}

func (m *Workspaces) Materialize(ws *workspace.Workspace, source string) error {
	if m.MaterializeFn != nil {
		return m.MaterializeFn(ws, source)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sources == nil {
		m.Sources = make(map[string]string)
	}
	m.Sources[ws.ID] = source
	return nil
}

func (m *Workspaces) Release(ws *workspace.Workspace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls = append(m.ReleaseCalls, ws)
}

// Released returns how many times Release was called.
func (m *Workspaces) Released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReleaseCalls)
}

// ---- Executor mock ----

var _ repository.Executor = (*Executor)(nil)

// Executor is a test double for repository.Executor.
type Executor struct {
	mu sync.Mutex

	CompileFn func(ctx context.Context, ws *workspace.Workspace) (*domain.CompileOutcome, error)
	RunFn     func(ctx context.Context, ws *workspace.Workspace, stdin string) (*domain.RunOutcome, error)
	Timeout   time.Duration

	CompileCalls []*workspace.Workspace
	RunCalls     []RunCall
}

// RunCall records one Run invocation.
type RunCall struct {
	Workspace *workspace.Workspace
	Stdin     string
}

func (m *Executor) Compile(ctx context.Context, ws *workspace.Workspace) (*domain.CompileOutcome, error) {
	m.mu.Lock()
	m.CompileCalls = append(m.CompileCalls, ws)
	m.mu.Unlock()
	if m.CompileFn != nil {
		return m.CompileFn(ctx, ws)
	}
	return &domain.CompileOutcome{OK: true, BinaryPath: ws.BinaryPath}, nil
}

func (m *Executor) Run(ctx context.Context, ws *workspace.Workspace, stdin string) (*domain.RunOutcome, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, RunCall{Workspace: ws, Stdin: stdin})
	m.mu.Unlock()
	if m.RunFn != nil {
		return m.RunFn(ctx, ws, stdin)
	}
	return &domain.RunOutcome{
		Status:    domain.StatusSuccess,
		Stdout:    "Hello, World!\n",
		ElapsedMs: 42,
	}, nil
}

func (m *Executor) RunTimeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return 5 * time.Second
}

// Runs returns how many times Run was called.
func (m *Executor) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// ---- ExampleRepository mock ----

var _ repository.ExampleRepository = (*ExampleRepository)(nil)

// ExampleRepository is an in-memory repository.ExampleRepository.
type ExampleRepository struct {
	mu       sync.Mutex
	examples []domain.Example

	ListFn func(ctx context.Context) ([]domain.Example, error)
	PingFn func(ctx context.Context) error
}

// NewExampleRepository creates a mock pre-loaded with examples.
func NewExampleRepository(examples ...domain.Example) *ExampleRepository {
	return &ExampleRepository{examples: examples}
}

func (m *ExampleRepository) List(ctx context.Context) ([]domain.Example, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Example, len(m.examples))
	copy(out, m.examples)
	return out, nil
}

func (m *ExampleRepository) GetByID(_ context.Context, id string) (*domain.Example, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.examples {
		if m.examples[i].ID == id {
			ex := m.examples[i]
			return &ex, nil
		}
	}
	return nil, domain.ErrExampleNotFound
}

func (m *ExampleRepository) Seed(_ context.Context, examples []domain.Example) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examples = append([]domain.Example(nil), examples...)
	return nil
}

func (m *ExampleRepository) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// ---- RateLimitStore mock ----

var _ repository.RateLimitStore = (*RateLimitStore)(nil)

// RateLimitStore is a test double for repository.RateLimitStore.
type RateLimitStore struct {
	mu sync.Mutex

	AllowFn func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Keys []string
}

func (m *RateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()
	if m.AllowFn != nil {
		return m.AllowFn(ctx, key, limit, window)
	}
	return true, nil
}
