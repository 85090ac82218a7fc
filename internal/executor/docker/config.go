package docker

import (
	"time"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Docker image to use for execution.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time a run can take.
	Timeout time.Duration
	// PoolSize is the number of warm runner containers to keep ready for file runs.
	PoolSize int
}

// DefaultConfig provides sensible defaults for a Python sandbox.
func DefaultConfig() Config {
	return Config{
		Image:       "python:3.12-alpine",
		MemoryLimit: 128 * 1024 * 1024, // 128 MB
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    3,
	}
}
