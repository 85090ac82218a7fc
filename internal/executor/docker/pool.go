package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// runnerPool keeps warm, idle containers for file runs, so pressing "run"
// on a saved file pays only for the exec inside an already-booted sandbox,
// not for the container boot itself.
//
// Runners are single-use. Execute takes one, runs the snippet, destroys the
// container, and the pool warms a replacement. A compromised or wedged
// interpreter therefore never sees a second user's code.
type runnerPool struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	idle   chan string   // warm container IDs, buffered to PoolSize
	refill chan struct{} // nudged on every Acquire so the replenisher wakes
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newRunnerPool(cli *client.Client, cfg Config, logger *slog.Logger) *runnerPool {
	return &runnerPool{
		cli:    cli,
		config: cfg,
		logger: logger,
		idle:   make(chan string, cfg.PoolSize),
		refill: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// start launches the background replenisher that warms runners up to the
// configured pool size.
func (p *runnerPool) start() {
	p.once.Do(func() {
		p.logger.Info("warming runner pool",
			slog.Int("size", p.config.PoolSize),
			slog.String("image", p.config.Image),
		)
		p.wg.Add(1)
		go p.replenish()
	})
}

// stop shuts down the replenisher and removes every idle runner.
func (p *runnerPool) stop() {
	p.logger.Info("draining runner pool")
	close(p.done)
	p.wg.Wait()

	for {
		select {
		case id := <-p.idle:
			p.removeRunner(id)
		default:
			return
		}
	}
}

// Acquire hands out a warm runner, blocking until one is ready or the run's
// context expires. Taking a runner frees a slot, so the replenisher is
// nudged to start warming the replacement immediately rather than on its
// next wakeup.
func (p *runnerPool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.idle:
		select {
		case p.refill <- struct{}{}:
		default:
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// replenish keeps the idle channel at capacity. It sleeps between Acquires
// instead of polling; creation failures (daemon hiccup, image pull gone
// stale) back off a second and try again.
func (p *runnerPool) replenish() {
	defer p.wg.Done()

	for {
		for len(p.idle) < cap(p.idle) {
			select {
			case <-p.done:
				return
			default:
			}

			id, err := p.createRunner()
			if err != nil {
				p.logger.Error("failed to warm runner container", slog.String("error", err.Error()))
				select {
				case <-p.done:
					return
				case <-time.After(time.Second):
				}
				continue
			}

			select {
			case p.idle <- id:
			case <-p.done:
				p.removeRunner(id)
				return
			}
		}

		select {
		case <-p.done:
			return
		case <-p.refill:
		}
	}
}

// createRunner starts an idle container the executor can exec a snippet
// into. No network, capped memory/CPU, read-only rootfs, unprivileged
// user — the file's code gets an interpreter and nothing else.
func (p *runnerPool) createRunner() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:        p.config.Image,
		Cmd:          []string{"sleep", "infinity"},
		Tty:          false,
		AttachStdout: false,
		AttachStderr: false,
		User:         "nobody",
	}, hostConfig, nil, nil, "")

	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeRunner(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// removeRunner force removes a container by ID.
func (p *runnerPool) removeRunner(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = p.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force: true,
	})
}
