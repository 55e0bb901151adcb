package fake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slok/stagegate/internal/handler"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
)

// HandlerConfig is the configuration for the fake stage handler.
type HandlerConfig struct {
	// EvidenceDir is where artifact files are written.
	EvidenceDir string
	// Session identifies the run inside evidence IDs.
	Session string
	// TestRunner runs the suite behind TEST stage tasks. Optional, without
	// one TEST tasks complete like any other stage.
	TestRunner handler.TestRunner
	Logger     log.Logger
}

func (c *HandlerConfig) defaults() error {
	if c.EvidenceDir == "" {
		return fmt.Errorf("evidence dir is required")
	}
	if c.Session == "" {
		return fmt.Errorf("session is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "handler.Fake"})
	return nil
}

// Handler is a fake implementation of handler.Handler. It completes every
// task by writing an artifact containing its success criteria and claiming
// matching evidence, so full pipeline runs can be exercised without real
// agents.
type Handler struct {
	evidenceDir string
	session     string
	testRunner  handler.TestRunner
	seq         map[model.Stage]int
	mu          sync.Mutex
	logger      log.Logger
}

// NewHandler creates a new fake stage handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Handler{
		evidenceDir: cfg.EvidenceDir,
		session:     cfg.Session,
		testRunner:  cfg.TestRunner,
		seq:         map[model.Stage]int{},
		logger:      cfg.Logger,
	}, nil
}

// Execute completes the task and claims one log evidence for it. TEST stage
// tasks run their suite through the test runner when one is configured, and
// fail when the suite reports failures.
func (h *Handler) Execute(ctx context.Context, task model.Task) (*handler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage := task.Metadata.CurrentStage
	if stage == model.StageTest && h.testRunner != nil {
		return h.executeTests(ctx, task)
	}

	location := task.Metadata.EvidenceLocation
	if location == "" {
		location = filepath.Join(h.evidenceDir, task.ID+".log")
	}

	content := fmt.Sprintf("task %s done\n%s\nexit status 0\n", task.ID, task.Metadata.SuccessCriteria)
	if err := os.MkdirAll(filepath.Dir(location), 0755); err != nil {
		return nil, fmt.Errorf("could not create artifact directory: %w", err)
	}
	if err := os.WriteFile(location, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("could not write artifact: %w", err)
	}

	ev := model.Evidence{
		ID:         model.NewEvidenceID(stage, h.session, h.nextSeq(stage)),
		Type:       model.EvidenceTypeLog,
		Claim:      task.Metadata.SuccessCriteria,
		Location:   location,
		Timestamp:  time.Now().UTC(),
		Verified:   true,
		VerifiedBy: model.VerifiedByAgent,
	}

	h.logger.Infof("Executed fake task %s, evidence %s", task.ID, ev.ID)

	return &handler.Result{
		Status:         model.TaskStatusCompleted,
		EvidenceClaims: []model.Evidence{ev},
	}, nil
}

func (h *Handler) executeTests(ctx context.Context, task model.Task) (*handler.Result, error) {
	report, err := h.testRunner.Run(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("could not run test suite: %w", err)
	}

	location := report.LogPath
	if location == "" {
		location = task.Metadata.EvidenceLocation
	}
	if location == "" {
		location = filepath.Join(h.evidenceDir, task.ID+".log")
	}

	status := model.TaskStatusCompleted
	content := fmt.Sprintf("suite %s: %d passed, %d failed\n", task.ID, report.Passed, report.Failed)
	if report.Failed > 0 {
		status = model.TaskStatusFailed
		content += "exit status 1\n"
	} else {
		// A clean suite proves the task's success criteria.
		content += task.Metadata.SuccessCriteria + "\nexit status 0\n"
	}

	if err := os.MkdirAll(filepath.Dir(location), 0755); err != nil {
		return nil, fmt.Errorf("could not create artifact directory: %w", err)
	}
	if err := os.WriteFile(location, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("could not write artifact: %w", err)
	}

	ev := model.Evidence{
		ID:         model.NewEvidenceID(model.StageTest, h.session, h.nextSeq(model.StageTest)),
		Type:       model.EvidenceTypeTestResult,
		Claim:      task.Metadata.SuccessCriteria,
		Location:   location,
		Timestamp:  time.Now().UTC(),
		Verified:   report.Failed == 0,
		VerifiedBy: model.VerifiedByAgent,
	}

	h.logger.Infof("Ran test suite for %s: %d passed, %d failed", task.ID, report.Passed, report.Failed)

	return &handler.Result{
		Status:         status,
		EvidenceClaims: []model.Evidence{ev},
	}, nil
}

func (h *Handler) nextSeq(stage model.Stage) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq[stage]++
	return h.seq[stage]
}
