package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// New builds the backend named in opts and verifies it can be used.
func New(opts Options, logger *zap.Logger) (Sandbox, error) {
	switch opts.Backend {
	case "", BackendProcess:
		if opts.Limits.UID < 0 {
			logger.Warn("Process sandbox without SANDBOX_UID runs programs as the server user with network access; use it for local development only")
		}
		return NewProcess(opts.Limits, logger), nil

	case BackendNsjail:
		binary := opts.NsjailPath
		if binary == "" {
			binary = "nsjail"
		}
		resolved, err := exec.LookPath(binary)
		if err != nil {
			return nil, fmt.Errorf("sandbox: nsjail not found: %w", err)
		}
		return NewNsjail(resolved, opts.NsjailConfig, opts.Limits, logger), nil

	case BackendDocker:
		rt, err := NewDockerRuntime()
		if err != nil {
			return nil, fmt.Errorf("sandbox: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Ping(ctx); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("sandbox: docker daemon unreachable: %w", err)
		}
		return NewDocker(rt, opts.DockerImage, opts.Limits, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
