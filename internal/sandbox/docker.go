package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const (
	dockerMountPoint   = "/sandbox"
	dockerNobody       = "65534:65534"
	dockerCleanupAfter = 5 * time.Second

	// DefaultDockerImage must ship a C runtime compatible with the host
	// compiler's output, since binaries are built outside the container.
	DefaultDockerImage = "debian:bookworm-slim"
)

// Attachment is the multiplexed stream of an attached container.
type Attachment struct {
	// Output carries stdout and stderr in docker's multiplexed framing.
	Output io.Reader
	// Input feeds the container's stdin; Close half-closes the stream.
	Input io.WriteCloser
	Close func()
}

// ContainerRuntime is the subset of the docker engine API the docker backend
// needs. DockerRuntime implements it on top of the official client.
type ContainerRuntime interface {
	Create(ctx context.Context, cfg *container.Config, host *container.HostConfig) (string, error)
	Attach(ctx context.Context, id string) (*Attachment, error)
	Start(ctx context.Context, id string) error
	Wait(ctx context.Context, id string) (int64, error)
	Kill(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Docker runs each program in a throwaway container with no network, a
// read-only root filesystem and the workspace mounted read-only.
type Docker struct {
	runtime ContainerRuntime
	image   string
	limits  Limits
	logger  *zap.Logger
}

// NewDocker creates a docker-backed sandbox on top of rt.
func NewDocker(rt ContainerRuntime, image string, limits Limits, logger *zap.Logger) *Docker {
	if image == "" {
		image = DefaultDockerImage
	}
	return &Docker{runtime: rt, image: image, limits: limits, logger: logger}
}

// Name implements Sandbox.
func (d *Docker) Name() string { return BackendDocker }

// Acquire implements Sandbox.
func (d *Docker) Acquire(ctx context.Context, dir string) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The container user is not the server user and reads the binary
	// through a bind mount.
	if err := os.Chmod(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: chmod workspace: %w", err)
	}
	return &dockerContext{docker: d, dir: dir}, nil
}

// Close closes the underlying runtime when it holds a connection.
func (d *Docker) Close() error {
	if c, ok := d.runtime.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *Docker) containerConfig(spec Spec) *container.Config {
	user := dockerNobody
	if d.limits.UID >= 0 {
		gid := d.limits.GID
		if gid < 0 {
			gid = d.limits.UID
		}
		user = fmt.Sprintf("%d:%d", d.limits.UID, gid)
	}
	return &container.Config{
		Image:           d.image,
		Cmd:             []string{path.Join(dockerMountPoint, spec.Binary)},
		WorkingDir:      dockerMountPoint,
		User:            user,
		Env:             []string{},
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		NetworkDisabled: true,
	}
}

func (d *Docker) hostConfig(dir string) *container.HostConfig {
	host := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,size=16m"},
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   dir,
				Target:   dockerMountPoint,
				ReadOnly: true,
			},
		},
	}
	if d.limits.MemoryBytes > 0 {
		host.Resources.Memory = int64(d.limits.MemoryBytes)
		host.Resources.MemorySwap = int64(d.limits.MemoryBytes)
	}
	if d.limits.CPUSeconds > 0 {
		// NanoCPUs only caps the share to one core; the time ceiling is the
		// cpu ulimit, as for the other backends.
		host.Resources.NanoCPUs = 1e9
		host.Resources.Ulimits = []*container.Ulimit{{
			Name: "cpu",
			Soft: int64(d.limits.CPUSeconds),
			Hard: int64(d.limits.CPUSeconds) + 1,
		}}
	}
	if d.limits.MaxProcs > 0 {
		pids := int64(d.limits.MaxProcs)
		host.Resources.PidsLimit = &pids
	}
	return host
}

type dockerContext struct {
	docker *Docker
	dir    string

	mu         sync.Mutex
	containers []string
	closed     bool
}

func (c *dockerContext) Run(ctx context.Context, spec Spec) (*Outcome, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	rt := c.docker.runtime

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("sandbox: context closed")
	}
	c.mu.Unlock()

	id, err := rt.Create(ctx, c.docker.containerConfig(spec), c.docker.hostConfig(c.dir))
	if err != nil {
		return nil, fmt.Errorf("sandbox: create container: %w", err)
	}
	c.mu.Lock()
	c.containers = append(c.containers, id)
	c.mu.Unlock()

	att, err := rt.Attach(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sandbox: attach container: %w", err)
	}
	defer att.Close()

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = stdcopy.StdCopy(spec.Stdout, spec.Stderr, att.Output)
	}()

	runCtx, cancel := runDeadline(ctx, spec.Timeout)
	defer cancel()

	start := time.Now()
	if err := rt.Start(runCtx, id); err != nil {
		return nil, fmt.Errorf("sandbox: start container: %w", err)
	}

	go func() {
		if spec.Stdin != nil {
			_, _ = io.Copy(att.Input, spec.Stdin)
		}
		_ = att.Input.Close()
	}()

	outcome := &Outcome{}
	code, waitErr := rt.Wait(runCtx, id)
	outcome.Elapsed = time.Since(start)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.TimedOut = true
		outcome.ExitCode = -1
		killCtx, killCancel := context.WithTimeout(context.Background(), dockerCleanupAfter)
		if err := rt.Kill(killCtx, id); err != nil {
			c.docker.logger.Warn("Failed to kill timed out container", zap.String("container_id", id), zap.Error(err))
		}
		killCancel()
	case waitErr != nil:
		return nil, fmt.Errorf("sandbox: wait container: %w", waitErr)
	default:
		outcome.ExitCode = int(code)
		outcome.Signal = signalFromExitCode(outcome.ExitCode)
	}

	select {
	case <-copied:
	case <-time.After(waitDelay):
		c.docker.logger.Debug("Container output still streaming after exit", zap.String("container_id", id))
	}
	return outcome, nil
}

// Close force-removes every container the context created.
func (c *dockerContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ids := c.containers
	c.containers = nil
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), dockerCleanupAfter)
		if err := c.docker.runtime.Remove(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove container %s: %w", id, err))
		}
		cancel()
	}
	return errors.Join(errs...)
}

// DockerRuntime adapts the docker engine client to ContainerRuntime.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects to the docker daemon configured in the
// environment (DOCKER_HOST and friends).
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Ping checks the daemon is reachable.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	_, err := r.cli.Ping(ctx)
	return err
}

func (r *DockerRuntime) Create(ctx context.Context, cfg *container.Config, host *container.HostConfig) (string, error) {
	resp, err := r.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *DockerRuntime) Attach(ctx context.Context, id string) (*Attachment, error) {
	resp, err := r.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, err
	}
	return &Attachment{
		Output: resp.Reader,
		Input:  halfCloser{Writer: resp.Conn, closeWrite: resp.CloseWrite},
		Close:  resp.Close,
	}, nil
}

func (r *DockerRuntime) Start(ctx context.Context, id string) error {
	return r.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (r *DockerRuntime) Wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := r.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, err
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return st.StatusCode, errors.New(st.Error.Message)
		}
		return st.StatusCode, nil
	}
}

func (r *DockerRuntime) Kill(ctx context.Context, id string) error {
	return r.cli.ContainerKill(ctx, id, "KILL")
}

func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	return r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

// Close closes the client connection.
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

type halfCloser struct {
	io.Writer
	closeWrite func() error
}

func (h halfCloser) Close() error {
	return h.closeWrite()
}
