// Package approval defines the plan approval collaborator. The orchestrator
// blocks on it after the PLAN gate passes and before any later stage runs.
package approval

import (
	"context"

	"github.com/slok/stagegate/internal/model"
)

// Request is the material submitted for plan approval.
type Request struct {
	WorkflowID string
	Objective  string
	Documents  []model.Document
}

// Approver is the external authority that signs off a plan. Approve blocks
// until a verdict exists, there is no timeout: an unanswered plan waits
// indefinitely and only an explicit rejection aborts the run.
type Approver interface {
	Approve(ctx context.Context, req Request) (*model.Review, error)
}
