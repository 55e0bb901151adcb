package dispatch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/dispatch"
	"github.com/slok/stagegate/internal/handler"
	"github.com/slok/stagegate/internal/handler/handlermock"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/storage/memory"
)

func newTask(id string, blockedBy []string, parallel bool) model.Task {
	return model.Task{
		ID:       id,
		Content:  "do " + id,
		Status:   model.TaskStatusPending,
		Priority: model.TaskPriorityMedium,
		Metadata: model.TaskMetadata{
			Objective:        "objective of " + id,
			SuccessCriteria:  "done",
			EvidenceLocation: "/runs/w1/evidence/" + id + ".log",
			BlockedBy:        blockedBy,
			Parallel:         parallel,
			CurrentStage:     model.StageImplement,
		},
	}
}

func seedRepo(t *testing.T, tasks []model.Task) *memory.Repository {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	for _, task := range tasks {
		require.NoError(t, repo.CreateTask(context.Background(), task))
	}

	return repo
}

func TestDispatchRunsInDependencyOrder(t *testing.T) {
	tasks := []model.Task{
		newTask("t3", []string{"t2"}, false),
		newTask("t1", nil, false),
		newTask("t2", []string{"t1"}, false),
	}
	repo := seedRepo(t, tasks)

	var order []string
	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.Anything).Times(3).Return(&handler.Result{Status: model.TaskStatusCompleted}, nil).Run(func(args mock.Arguments) {
		task := args.Get(1).(model.Task)
		order = append(order, task.ID)
	})

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	results, err := svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, order)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, model.TaskStatusCompleted, r.Status)
	}
}

func TestDispatchCycleIsFatal(t *testing.T) {
	tasks := []model.Task{
		newTask("t1", []string{"t2"}, false),
		newTask("t2", []string{"t1"}, false),
	}
	repo := seedRepo(t, tasks)

	h := &handlermock.MockHandler{}
	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	results, err := svc.Dispatch(context.Background(), tasks)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDependencyCycle)
	assert.Nil(t, results)
	h.AssertNotCalled(t, "Execute")
}

func TestDispatchUnknownDependencyIsFatal(t *testing.T) {
	tasks := []model.Task{
		newTask("t1", []string{"ghost"}, false),
	}
	repo := seedRepo(t, tasks)

	h := &handlermock.MockHandler{}
	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), tasks)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDependencyCycle)
	h.AssertNotCalled(t, "Execute")
}

func TestDispatchFailureBlocksDependents(t *testing.T) {
	tasks := []model.Task{
		newTask("t1", nil, false),
		newTask("t2", []string{"t1"}, false),
		newTask("t3", []string{"t2"}, false),
	}
	repo := seedRepo(t, tasks)

	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.MatchedBy(func(task model.Task) bool { return task.ID == "t1" })).
		Once().Return(nil, fmt.Errorf("boom"))

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	results, err := svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := map[string]dispatch.TaskResult{}
	for _, r := range results {
		byID[r.TaskID] = r
	}
	assert.Equal(t, model.TaskStatusFailed, byID["t1"].Status)
	assert.Equal(t, model.TaskStatusBlocked, byID["t2"].Status)
	assert.Equal(t, model.TaskStatusBlocked, byID["t3"].Status)
	h.AssertExpectations(t)

	// Statuses are persisted too.
	stored, err := repo.GetTask(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusBlocked, stored.Status)
}

func TestDispatchParallelWaveOverlaps(t *testing.T) {
	// Three independent parallel tasks reach the threshold and must overlap
	// in time.
	tasks := []model.Task{
		newTask("t1", nil, true),
		newTask("t2", nil, true),
		newTask("t3", nil, true),
	}
	repo := seedRepo(t, tasks)

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.Anything).Times(3).Return(&handler.Result{Status: model.TaskStatusCompleted}, nil).Run(func(args mock.Arguments) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	results, err := svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Greater(t, maxRunning, 1, "parallel tasks should overlap")

	// Start/finish timestamps overlap across results.
	for _, r := range results {
		assert.False(t, r.StartedAt.IsZero())
		assert.False(t, r.FinishedAt.Before(r.StartedAt))
	}
}

func TestDispatchParallelKeysOnWaveSizeNotFlags(t *testing.T) {
	// Three independent tasks overlap even when none of them carries the
	// parallel metadata flag, the ready-set size alone decides.
	tasks := []model.Task{
		newTask("t1", nil, false),
		newTask("t2", nil, false),
		newTask("t3", nil, false),
	}
	repo := seedRepo(t, tasks)

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.Anything).Times(3).Return(&handler.Result{Status: model.TaskStatusCompleted}, nil).Run(func(args mock.Arguments) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	results, err := svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Greater(t, maxRunning, 1, "wave at threshold should overlap regardless of task flags")
}

func TestDispatchBelowThresholdRunsSequentially(t *testing.T) {
	tasks := []model.Task{
		newTask("t1", nil, true),
		newTask("t2", nil, true),
	}
	repo := seedRepo(t, tasks)

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.Anything).Times(2).Return(&handler.Result{Status: model.TaskStatusCompleted}, nil).Run(func(args mock.Arguments) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	assert.Equal(t, 1, maxRunning)
}

func TestDispatchWorkerPoolIsBounded(t *testing.T) {
	var tasks []model.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, newTask(fmt.Sprintf("t%02d", i), nil, true))
	}
	repo := seedRepo(t, tasks)

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	h := &handlermock.MockHandler{}
	h.On("Execute", mock.Anything, mock.Anything).Times(10).Return(&handler.Result{Status: model.TaskStatusCompleted}, nil).Run(func(args mock.Arguments) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})

	svc, err := dispatch.NewService(dispatch.ServiceConfig{Handler: h, Repository: repo})
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), tasks)

	require.NoError(t, err)
	assert.LessOrEqual(t, maxRunning, dispatch.DefaultWorkers)
}
