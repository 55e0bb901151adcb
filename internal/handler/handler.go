// Package handler defines the stage handler collaborators that produce the
// actual work at each stage. The engine only consumes their structured
// outputs, it never performs domain work itself.
package handler

import (
	"context"

	"github.com/slok/stagegate/internal/model"
)

// Result is the outcome a stage handler returns for one task.
type Result struct {
	// Status is the task status after execution.
	Status model.TaskStatus
	// EvidenceClaims are the evidence records the handler claims for the
	// task, zero or more.
	EvidenceClaims []model.Evidence
}

// Handler executes the work of a single task. Implementations are
// interchangeable (code generation agent, test runner, research agent...).
type Handler interface {
	Execute(ctx context.Context, task model.Task) (*Result, error)
}

// RunReport is the outcome of running a test suite.
type RunReport struct {
	Passed  int
	Failed  int
	LogPath string
}

// TestRunner runs a test suite selection and reports the outcome. Consumed
// by TEST stage handlers, not implemented by the engine.
type TestRunner interface {
	Run(ctx context.Context, suiteSelector string) (*RunReport, error)
}
