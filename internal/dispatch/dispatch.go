// Package dispatch executes a stage's tasks in dependency order, fanning out
// independent tasks over a bounded worker pool.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slok/stagegate/internal/handler"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/storage"
)

const (
	// DefaultParallelThreshold is the minimum number of simultaneously ready
	// tasks before the dispatcher uses the worker pool.
	DefaultParallelThreshold = 3
	// DefaultWorkers is the worker pool width.
	DefaultWorkers = 5
)

// TaskResult is the dispatch outcome of one task.
type TaskResult struct {
	TaskID         string
	Status         model.TaskStatus
	EvidenceClaims []model.Evidence
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ServiceConfig is the configuration for the dispatcher service.
type ServiceConfig struct {
	Handler    handler.Handler
	Repository storage.TaskRepository
	// ParallelThreshold is the ready-set size that triggers parallel dispatch.
	ParallelThreshold int
	// Workers bounds how many tasks run at once.
	Workers int
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Handler == nil {
		return fmt.Errorf("handler is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("task repository is required")
	}
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = DefaultParallelThreshold
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "dispatch.Service"})

	return nil
}

// Service dispatches a stage's tasks respecting their blocked_by dependencies.
type Service struct {
	handler           handler.Handler
	repository        storage.TaskRepository
	parallelThreshold int
	workers           int
	logger            log.Logger
}

// NewService creates a new dispatcher service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		handler:           cfg.Handler,
		repository:        cfg.Repository,
		parallelThreshold: cfg.ParallelThreshold,
		workers:           cfg.Workers,
		logger:            cfg.Logger,
	}, nil
}

// Dispatch runs the given tasks in dependency waves. Tasks with no pending
// dependencies form a wave, a wave at or above the parallel threshold runs
// on the worker pool, otherwise tasks run one by one.
// A failed task blocks its transitive dependents instead of running them.
// A dependency cycle or an unresolved dependency reference is fatal, no
// task runs at all.
func (s *Service) Dispatch(ctx context.Context, tasks []model.Task) ([]TaskResult, error) {
	waves, err := topoWaves(tasks)
	if err != nil {
		return nil, err
	}

	byID := map[string]model.Task{}
	for _, t := range tasks {
		byID[t.ID] = t
	}

	results := map[string]TaskResult{}

	for _, wave := range waves {
		// Drop tasks whose dependencies failed or got blocked.
		runnable := make([]model.Task, 0, len(wave))
		for _, id := range wave {
			t := byID[id]
			if blocker := failedDependency(t, results); blocker != "" {
				s.logger.Warningf("Task %s blocked, dependency %s didn't complete", t.ID, blocker)
				results[t.ID] = s.markBlocked(ctx, t)
				continue
			}
			runnable = append(runnable, t)
		}

		if len(runnable) == 0 {
			continue
		}

		var waveResults []TaskResult
		if s.parallelEligible(runnable) {
			waveResults = s.runParallel(ctx, runnable)
		} else {
			waveResults = s.runSequential(ctx, runnable)
		}
		for _, r := range waveResults {
			results[r.TaskID] = r
		}
	}

	// Stable output, task ID order.
	out := make([]TaskResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })

	return out, nil
}

// parallelEligible reports whether a wave should use the worker pool. The
// ready-set size is the only trigger, task metadata flags never veto a wave.
func (s *Service) parallelEligible(wave []model.Task) bool {
	return len(wave) >= s.parallelThreshold
}

func (s *Service) runSequential(ctx context.Context, tasks []model.Task) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		results = append(results, s.runTask(ctx, t))
	}
	return results
}

func (s *Service) runParallel(ctx context.Context, tasks []model.Task) []TaskResult {
	s.logger.Infof("Dispatching %d tasks on %d workers", len(tasks), s.workers)

	results := make([]TaskResult, len(tasks))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t model.Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.runTask(ctx, t)
		}(i, t)
	}
	wg.Wait()

	return results
}

// runTask executes one task through the handler, tracking status transitions
// in the repository.
func (s *Service) runTask(ctx context.Context, t model.Task) TaskResult {
	result := TaskResult{TaskID: t.ID, StartedAt: time.Now().UTC()}

	t.Status = model.TaskStatusInProgress
	if err := s.repository.UpdateTask(ctx, t); err != nil {
		result.Status = model.TaskStatusFailed
		result.Err = fmt.Errorf("could not mark task in progress: %w", err)
		result.FinishedAt = time.Now().UTC()
		return result
	}

	res, err := s.handler.Execute(ctx, t)
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		s.logger.Errorf("Task %s failed: %s", t.ID, err)
		result.Status = model.TaskStatusFailed
		result.Err = err
	} else {
		result.Status = res.Status
		result.EvidenceClaims = res.EvidenceClaims
	}

	t.Status = result.Status
	if err := s.repository.UpdateTask(ctx, t); err != nil {
		s.logger.Errorf("Could not persist task %s status: %s", t.ID, err)
	}

	return result
}

func (s *Service) markBlocked(ctx context.Context, t model.Task) TaskResult {
	now := time.Now().UTC()
	t.Status = model.TaskStatusBlocked
	if err := s.repository.UpdateTask(ctx, t); err != nil {
		s.logger.Errorf("Could not persist task %s status: %s", t.ID, err)
	}

	return TaskResult{
		TaskID:     t.ID,
		Status:     model.TaskStatusBlocked,
		StartedAt:  now,
		FinishedAt: now,
	}
}

// failedDependency returns the ID of the first dependency that didn't
// complete, empty when all dependencies completed.
func failedDependency(t model.Task, results map[string]TaskResult) string {
	for _, dep := range t.Metadata.BlockedBy {
		r, ok := results[dep]
		if !ok || r.Status != model.TaskStatusCompleted {
			return dep
		}
	}
	return ""
}

// topoWaves orders tasks into dependency waves with Kahn's algorithm. Every
// task in a wave only depends on tasks of earlier waves.
func topoWaves(tasks []model.Task) ([][]string, error) {
	known := map[string]bool{}
	for _, t := range tasks {
		known[t.ID] = true
	}

	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, t := range tasks {
		indegree[t.ID] = 0
	}
	for _, t := range tasks {
		for _, dep := range t.Metadata.BlockedBy {
			if !known[dep] {
				return nil, fmt.Errorf("task %s depends on unknown task %s: %w", t.ID, dep, model.ErrDependencyCycle)
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var waves [][]string
	resolved := 0
	ready := []string{}
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		waves = append(waves, ready)
		resolved += len(ready)

		var next []string
		for _, id := range ready {
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		ready = next
	}

	if resolved != len(tasks) {
		return nil, fmt.Errorf("task dependencies form a cycle: %w", model.ErrDependencyCycle)
	}

	return waves, nil
}
