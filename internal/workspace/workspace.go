// Package workspace hands out one private directory per execution and
// removes it, with everything the compiler and program left behind, when the
// execution ends.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/metrics"
)

const (
	dirPrefix = "ws-"

	// SourceName and BinaryName are fixed so compiler diagnostics read "main.c".
	SourceName = "main.c"
	BinaryName = "main"

	acquireAttempts = 3
)

// Workspace is an isolated directory owned by exactly one execution.
type Workspace struct {
	ID         string
	Dir        string
	SourcePath string
	BinaryPath string

	released atomic.Bool
}

// Manager creates and destroys workspaces under a single root directory.
type Manager struct {
	root   string
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*Workspace
}

// NewManager creates the root directory if needed and returns a Manager.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "codebasse")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	return &Manager{
		root:   abs,
		logger: logger,
		active: make(map[string]*Workspace),
	}, nil
}

// Root returns the absolute directory workspaces are created under.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh, uniquely named workspace. The directory is made
// with os.Mkdir, so an existing directory with the same name is an error and
// never reused. It is readable only by the server user until a sandbox
// hands it to the user the program runs as.
func (m *Manager) Acquire(ctx context.Context) (*Workspace, error) {
	var lastErr error
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := xid.New().String()
		dir := filepath.Join(m.root, dirPrefix+id)
		if err := os.Mkdir(dir, 0o700); err != nil {
			lastErr = err
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("workspace: create dir: %w", err)
		}

		ws := &Workspace{
			ID:         id,
			Dir:        dir,
			SourcePath: filepath.Join(dir, SourceName),
			BinaryPath: filepath.Join(dir, BinaryName),
		}

		m.mu.Lock()
		m.active[id] = ws
		m.mu.Unlock()
		metrics.WorkspacesActive.Inc()

		m.logger.Debug("Workspace acquired", zap.String("workspace_id", id))
		return ws, nil
	}
	return nil, fmt.Errorf("workspace: create dir: %w", lastErr)
}

// Materialize writes the program source into the workspace.
func (m *Manager) Materialize(ws *Workspace, source string) error {
	if ws.released.Load() {
		return fmt.Errorf("workspace: %s already released", ws.ID)
	}
	if err := os.WriteFile(ws.SourcePath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("workspace: write source: %w", err)
	}
	return nil
}

// Release removes the workspace directory and everything in it. It is safe to
// call more than once; only the first call does anything. Removal failures are
// logged and counted, never returned.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || !ws.released.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	delete(m.active, ws.ID)
	m.mu.Unlock()
	metrics.WorkspacesActive.Dec()

	if err := os.RemoveAll(ws.Dir); err != nil {
		metrics.WorkspaceCleanupFailures.Inc()
		m.logger.Warn("Failed to remove workspace",
			zap.String("workspace_id", ws.ID),
			zap.String("dir", ws.Dir),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("Workspace released", zap.String("workspace_id", ws.ID))
}

// Active returns the number of workspaces acquired and not yet released.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Sweep removes workspace directories left under the root by a previous
// process. Call it once at startup, before any Acquire.
func (m *Manager) Sweep() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("workspace: read root: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), dirPrefix)

		m.mu.Lock()
		_, live := m.active[id]
		m.mu.Unlock()
		if live {
			continue
		}

		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			metrics.WorkspaceCleanupFailures.Inc()
			m.logger.Warn("Failed to sweep stale workspace", zap.String("dir", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("Swept stale workspaces", zap.Int("count", removed))
	}
	return removed, nil
}
