// Package executor defines the interface for running stored code in an
// isolated environment.
package executor

import (
	"context"
	"time"
)

// ExecutionRequest is a single run of a snippet: the code plus whatever the
// file's sample input should be fed to the process on stdin.
type ExecutionRequest struct {
	Code  string `json:"code"`
	Stdin string `json:"stdin"`
}

// ExecutionResult captures the outcome of a run.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// Executor runs code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
