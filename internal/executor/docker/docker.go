// Package docker runs snippets inside pooled, network-isolated containers.
// Containers are pre-warmed (see pool.go) so a run only pays for the exec,
// not a cold container start.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/notecode/internal/executor"
)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *runnerPool
}

// New creates a Docker Executor, pulls the sandbox image, and starts the
// container pool. Fails if the Docker daemon is unreachable — callers may
// treat that as "execution unavailable" and keep serving.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Reading to EOF blocks until the pull completes
	io.Copy(io.Discard, reader)
	logger.Info("docker image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = newRunnerPool(cli, cfg, logger)
	exec.pool.start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.stop()
	return e.cli.Close()
}

// Execute runs req.Code in a sandboxed container, feeding req.Stdin to the
// process. The container is single-use: acquired from the pool, destroyed
// after the run regardless of outcome.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	containerID, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire a runner: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	// The pooled container idles on `sleep infinity`; we exec the snippet
	// into it rather than starting a fresh container.
	execConfig := container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python", "-c", req.Code},
	}

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	// Write the sample input, then close the write half so the process
	// sees EOF — a snippet that reads all of stdin would hang otherwise.
	go func() {
		if req.Stdin != "" {
			_, _ = attachResp.Conn.Write([]byte(req.Stdin))
		}
		_ = attachResp.CloseWrite()
	}()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the combined stream into stdout/stderr
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var finalExitCode int

	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			finalExitCode = inspectResp.ExitCode
		}
	case <-executeCtx.Done():
		// 124 matches the unix timeout(1) convention
		finalExitCode = 124
		stderr.WriteString("\nExecution timed out.\n")
	}

	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: finalExitCode,
		Duration: time.Since(start),
	}, nil
}
