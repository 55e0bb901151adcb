package storage

import (
	"context"

	"github.com/slok/stagegate/internal/model"
)

// TaskRepository persists task records. Tasks are append/update only, a run
// never deletes them.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	ListTasksByStage(ctx context.Context, stage model.Stage) ([]model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) error
}

// EvidenceRepository persists evidence records. Evidence is immutable after
// a verification passes, so there is no update.
type EvidenceRepository interface {
	CreateEvidence(ctx context.Context, e model.Evidence) error
	GetEvidence(ctx context.Context, id string) (*model.Evidence, error)
	ListEvidence(ctx context.Context) ([]model.Evidence, error)
}

// GateLogRepository persists gate decisions. The log is append-only and
// safe for concurrent appends.
type GateLogRepository interface {
	AppendGateResult(ctx context.Context, r model.GateResult) error
	ListGateResults(ctx context.Context, stage model.Stage) ([]model.GateResult, error)
}

// Repository is the interface for run record persistence.
type Repository interface {
	TaskRepository
	EvidenceRepository
	GateLogRepository
}
