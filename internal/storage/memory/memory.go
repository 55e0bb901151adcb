package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	tasks    map[string]model.Task
	evidence map[string]model.Evidence
	gateLog  []model.GateResult
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:    make(map[string]model.Task),
		evidence: make(map[string]model.Evidence),
		logger:   cfg.Logger,
	}, nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = t
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	taskCopy := t
	return &taskCopy, nil
}

// ListTasks returns all tasks.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// ListTasksByStage returns all tasks belonging to a stage.
func (r *Repository) ListTasksByStage(ctx context.Context, stage model.Stage) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.Task
	for _, t := range r.tasks {
		if t.Metadata.CurrentStage == stage {
			tasks = append(tasks, t)
		}
	}

	return tasks, nil
}

// UpdateTask updates an existing task. Updates are atomic per record.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.tasks[t.ID] = t
	r.logger.Debugf("Updated task in repository: %s", t.ID)

	return nil
}

// CreateEvidence creates a new evidence record in the repository.
func (r *Repository) CreateEvidence(ctx context.Context, e model.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid evidence: %w", err)
	}

	if _, ok := r.evidence[e.ID]; ok {
		return fmt.Errorf("evidence with id %s: %w", e.ID, model.ErrAlreadyExists)
	}

	r.evidence[e.ID] = e
	r.logger.Debugf("Created evidence in repository: %s", e.ID)

	return nil
}

// GetEvidence retrieves an evidence record by ID.
func (r *Repository) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evidence[id]
	if !ok {
		return nil, fmt.Errorf("evidence %s: %w", id, model.ErrNotFound)
	}

	evidenceCopy := e
	return &evidenceCopy, nil
}

// ListEvidence returns all evidence records.
func (r *Repository) ListEvidence(ctx context.Context) ([]model.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evs := make([]model.Evidence, 0, len(r.evidence))
	for _, e := range r.evidence {
		evs = append(evs, e)
	}

	return evs, nil
}

// AppendGateResult appends a gate decision to the gate log.
func (r *Repository) AppendGateResult(ctx context.Context, result model.GateResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateLog = append(r.gateLog, result)
	r.logger.Debugf("Appended gate result: %s %s", result.Stage, result.Action)

	return nil
}

// ListGateResults returns the gate log stream for a stage, oldest first.
func (r *Repository) ListGateResults(ctx context.Context, stage model.Stage) ([]model.GateResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []model.GateResult
	for _, g := range r.gateLog {
		if g.Stage == stage {
			results = append(results, g)
		}
	}

	return results, nil
}
