// Package pipeline implements the workflow orchestrator application service:
// the STARTUP checks, the stage loop and the gate-driven transitions.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/stagegate/internal/approval"
	"github.com/slok/stagegate/internal/conventions"
	"github.com/slok/stagegate/internal/dispatch"
	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/kv"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/schema"
	"github.com/slok/stagegate/internal/storage"
	"github.com/slok/stagegate/internal/workflow"
)

const (
	// startupProbeKey is the key used for the STARTUP store round-trip probe.
	startupProbeKey = "stagegate/startup-probe"
	// defaultMaxEscalations bounds how many times a single stage may escalate
	// before the run stops.
	defaultMaxEscalations = 1
)

// ServiceConfig is the configuration for the pipeline service.
type ServiceConfig struct {
	Repository storage.Repository
	Gate       *gate.Service
	Dispatcher *dispatch.Service
	KV         kv.Store
	// Approver is the plan approval authority the run blocks on after the
	// PLAN gate passes.
	Approver approval.Approver
	// DataDir is the root data directory run layouts are created under.
	DataDir string
	// Agent is the name of the executing agent, used in review and handoff
	// records.
	Agent string
	// EscalationAgent is the stronger agent escalations hand off to.
	EscalationAgent string
	// MaxEscalations bounds escalations per stage instance.
	MaxEscalations int
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Gate == nil {
		return fmt.Errorf("gate service is required")
	}
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.KV == nil {
		return fmt.Errorf("kv store is required")
	}
	if c.Approver == nil {
		return fmt.Errorf("plan approver is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Agent == "" {
		c.Agent = "executor"
	}
	if c.EscalationAgent == "" {
		c.EscalationAgent = "senior-executor"
	}
	if c.MaxEscalations == 0 {
		c.MaxEscalations = defaultMaxEscalations
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Pipeline"})

	return nil
}

// Service runs complete workflow pipelines.
type Service struct {
	repository      storage.Repository
	gate            *gate.Service
	dispatcher      *dispatch.Service
	kv              kv.Store
	approver        approval.Approver
	dataDir         string
	agent           string
	escalationAgent string
	maxEscalations  int
	logger          log.Logger
}

// NewService creates a new pipeline service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repository:      cfg.Repository,
		gate:            cfg.Gate,
		dispatcher:      cfg.Dispatcher,
		kv:              cfg.KV,
		approver:        cfg.Approver,
		dataDir:         cfg.DataDir,
		agent:           cfg.Agent,
		escalationAgent: cfg.EscalationAgent,
		maxEscalations:  cfg.MaxEscalations,
		logger:          cfg.Logger,
	}, nil
}

// RunRequest is the request to run a workflow pipeline.
type RunRequest struct {
	WorkflowID string
	Objective  string
	// Tasks seed the run. Each task's current_stage decides which stage
	// dispatches it.
	Tasks []model.Task
}

func (r *RunRequest) validate() error {
	if r.WorkflowID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if r.Objective == "" {
		return fmt.Errorf("objective is required")
	}
	for i := range r.Tasks {
		if err := r.Tasks[i].Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	return nil
}

// RunResponse is the final state of a pipeline run.
type RunResponse struct {
	FinalStage  model.Stage
	GateResults []model.GateResult
	Handoff     *model.Handoff
	Recovery    *model.RecoveryRecord
}

// Run executes the pipeline from STARTUP to a terminal stage. Every stage
// exit goes through the quality gate, no transition can skip it.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", model.ErrNotValid)
	}

	logger := s.logger.WithValues(log.Kv{"workflow": req.WorkflowID})
	startedAt := time.Now().UTC()

	if err := s.startup(ctx, req.WorkflowID); err != nil {
		return nil, fmt.Errorf("startup checks failed: %w", err)
	}

	for i := range req.Tasks {
		err := s.repository.CreateTask(ctx, req.Tasks[i])
		if err != nil && !errors.Is(err, model.ErrAlreadyExists) {
			return nil, fmt.Errorf("could not seed task: %w", err)
		}
	}

	runCtx := workflow.NewRunContext(req.WorkflowID)
	// STARTUP has no quality gate, passing its checks advances directly.
	runCtx, err := runCtx.Advance(model.GateActionProceed)
	if err != nil {
		return nil, err
	}

	resp := &RunResponse{}
	escalations := map[model.Stage]int{}

	for !runCtx.Stage().IsTerminal() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stage := runCtx.Stage()
		stageLogger := logger.WithValues(log.Kv{"stage": stage, "retry": runCtx.Retry()})
		stageLogger.Infof("Entering stage")

		docs, claims, err := s.runStage(ctx, req, runCtx, startedAt)
		if err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", stage, err)
		}

		result, err := s.gate.Check(ctx, stage, docs, runCtx.Retry())
		if err != nil {
			return nil, fmt.Errorf("gate check failed at %s: %w", stage, err)
		}
		resp.GateResults = append(resp.GateResults, *result)
		if err := s.appendGateLogLine(req.WorkflowID, result); err != nil {
			stageLogger.Errorf("Could not append gate log line: %s", err)
		}

		// Only claims that survived verification become evidence records.
		if err := s.persistProvenEvidence(ctx, claims, result); err != nil {
			return nil, fmt.Errorf("could not persist evidence at %s: %w", stage, err)
		}

		action := result.Action

		// A passing PLAN gate is not enough to leave PLAN: the plan must be
		// explicitly approved. The wait has no deadline, only an explicit
		// rejection (or context cancellation) ends a pending plan.
		if stage == model.StagePlan && action == model.GateActionProceed {
			stageLogger.Infof("Plan gate passed, waiting for plan approval")
			verdict, err := s.approver.Approve(ctx, approval.Request{
				WorkflowID: req.WorkflowID,
				Objective:  req.Objective,
				Documents:  docs,
			})
			if err != nil {
				return nil, fmt.Errorf("plan approval failed: %w", err)
			}
			if !verdict.Approved {
				stageLogger.Warningf("Plan rejected, stopping run")
				for _, reason := range verdict.Reasons {
					result.Errors = append(result.Errors, model.GateError{
						Kind:    model.GateErrorExternalRejection,
						Message: reason,
					})
				}
				action = model.GateActionStop
			}
		}
		switch action {
		case model.GateActionRevise:
			if err := s.writeRemediation(req.WorkflowID, result); err != nil {
				stageLogger.Errorf("Could not write remediation report: %s", err)
			}
			s.resetFailedTasks(ctx, stage)
		case model.GateActionEscalate:
			if escalations[stage] >= s.maxEscalations {
				stageLogger.Errorf("Stage already escalated %d times, stopping", escalations[stage])
				action = model.GateActionStop
				break
			}
			escalations[stage]++
			h, err := s.escalate(ctx, req, runCtx, result)
			if err != nil {
				return nil, fmt.Errorf("escalation failed at %s: %w", stage, err)
			}
			resp.Handoff = h
			s.resetFailedTasks(ctx, stage)
		}

		if action == model.GateActionStop {
			rec, err := s.stop(req.WorkflowID, runCtx, result)
			if err != nil {
				return nil, fmt.Errorf("could not write recovery record: %w", err)
			}
			resp.Recovery = rec
		}

		runCtx, err = runCtx.Advance(action)
		if err != nil {
			return nil, err
		}
	}

	resp.FinalStage = runCtx.Stage()
	if resp.FinalStage == model.StageComplete {
		err := writeJSON(filepath.Join(conventions.RunDir(s.dataDir, req.WorkflowID), conventions.DocsDir, "complete.json"), map[string]any{
			"workflow_id":      req.WorkflowID,
			"completed_stages": runCtx.Completed(),
			"finished_at":      time.Now().UTC(),
		})
		if err != nil {
			logger.Errorf("Could not write completion note: %s", err)
		}
	}
	logger.Infof("Run finished at %s", resp.FinalStage)

	return resp, nil
}

// appendGateLogLine mirrors every gate decision as a JSON line under the
// run's logs directory, so operators can tail decisions without the record
// database.
func (s *Service) appendGateLogLine(workflowID string, result *model.GateResult) error {
	path := filepath.Join(conventions.RunDir(s.dataDir, workflowID), conventions.LogsDir, conventions.GateLogFile)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(result)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	_, err = f.Write(line)
	return err
}

// LivenessCheck re-verifies the run's preconditions. Scheduled periodically
// between stage transitions.
func (s *Service) LivenessCheck(ctx context.Context) error {
	err := kv.RoundTrip(ctx, s.kv, startupProbeKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store probe failed: %w", err)
	}

	_, err = s.repository.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("repository unreachable: %w", err)
	}

	return nil
}

// startup performs the STARTUP precondition checks: run directory layout,
// store round-trip and a persisted startup record. Any failure aborts the
// run before the first stage.
func (s *Service) startup(ctx context.Context, workflowID string) error {
	runDir := conventions.RunDir(s.dataDir, workflowID)
	for _, dir := range conventions.RunDirs {
		if err := os.MkdirAll(filepath.Join(runDir, dir), 0755); err != nil {
			return fmt.Errorf("could not create run directory %s: %w", dir, err)
		}
	}

	err := kv.RoundTrip(ctx, s.kv, startupProbeKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store round-trip failed: %w", err)
	}

	record := model.Startup{
		ServicesVerified: true,
		SchedulerActive:  true,
		StoreOK:          true,
		EnvReady:         true,
		WorkflowDir:      runDir,
		Timestamp:        time.Now().UTC(),
	}
	err = writeJSON(filepath.Join(runDir, conventions.DocsDir, "startup.json"), record)
	if err != nil {
		return fmt.Errorf("could not write startup record: %w", err)
	}

	s.logger.Infof("Startup checks passed, run dir %s", runDir)

	return nil
}

// runStage dispatches the stage's tasks and assembles the output documents
// the gate will evaluate. Evidence claims are staged, not persisted: only
// claims the gate proves become records, see persistProvenEvidence.
func (s *Service) runStage(ctx context.Context, req RunRequest, runCtx workflow.RunContext, startedAt time.Time) ([]model.Document, []model.Evidence, error) {
	stage := runCtx.Stage()

	tasks, err := s.repository.ListTasksByStage(ctx, stage)
	if err != nil {
		return nil, nil, fmt.Errorf("could not list stage tasks: %w", err)
	}

	var results []dispatch.TaskResult
	if len(tasks) > 0 {
		results, err = s.dispatcher.Dispatch(ctx, tasks)
		if err != nil {
			return nil, nil, fmt.Errorf("could not dispatch tasks: %w", err)
		}
	}

	var docs []model.Document

	// Updated task records.
	tasks, err = s.repository.ListTasksByStage(ctx, stage)
	if err != nil {
		return nil, nil, fmt.Errorf("could not list stage tasks: %w", err)
	}
	for _, t := range tasks {
		doc, err := model.TaskDocument(t)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, doc)
	}

	// Staged evidence claims, forwarded to the gate for verification.
	var claims []model.Evidence
	for _, r := range results {
		for _, ev := range r.EvidenceClaims {
			doc, err := model.NewDocument(schema.Evidence, ev)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, doc)
			claims = append(claims, ev)
		}
	}

	extra, err := s.stageRecords(ctx, req, runCtx, results, startedAt)
	if err != nil {
		return nil, nil, err
	}
	docs = append(docs, extra...)

	return docs, claims, nil
}

// persistProvenEvidence stores the staged claims that passed verification.
// A claim named in a gate error never becomes an evidence record.
func (s *Service) persistProvenEvidence(ctx context.Context, claims []model.Evidence, result *model.GateResult) error {
	failed := map[string]bool{}
	for _, ge := range result.Errors {
		if ge.Ref != "" {
			failed[ge.Ref] = true
		}
	}

	for _, ev := range claims {
		if failed[ev.ID] {
			continue
		}
		err := s.repository.CreateEvidence(ctx, ev)
		if err != nil && !errors.Is(err, model.ErrAlreadyExists) {
			return fmt.Errorf("could not persist evidence %s: %w", ev.ID, err)
		}
	}

	return nil
}

// stageRecords synthesizes the orchestrator-owned records each stage must
// produce besides tasks and evidence.
func (s *Service) stageRecords(ctx context.Context, req RunRequest, runCtx workflow.RunContext, results []dispatch.TaskResult, startedAt time.Time) ([]model.Document, error) {
	stage := runCtx.Stage()
	now := time.Now().UTC()
	var docs []model.Document

	add := func(kind string, record any) error {
		doc, err := model.NewDocument(kind, record)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	}

	allCompleted := true
	for _, r := range results {
		if r.Status != model.TaskStatusCompleted {
			allCompleted = false
			break
		}
	}

	switch stage {
	case model.StageReview, model.StageReviewPost, model.StageValidate:
		action := "proceed"
		if !allCompleted {
			action = "revise"
		}
		err := add(schema.ReviewGate, model.ReviewGate{
			Stage:           stage,
			ReviewingAgent:  s.agent,
			Timestamp:       now,
			CriteriaChecked: []string{req.Objective},
			Approved:        allCompleted,
			Action:          action,
		})
		if err != nil {
			return nil, err
		}
	case model.StageDisrupt:
		err := add(schema.Conflict, model.Conflict{
			ID:        model.NewConflictID(now),
			Type:      model.ConflictTypePlanDisagreement,
			Parties:   []string{s.agent, "disruptor"},
			Positions: []string{req.Objective, "assumptions challenged before implementation"},
		})
		if err != nil {
			return nil, err
		}
	}

	if stage == model.StageTest || stage == model.StageLearn {
		evs, err := s.repository.ListEvidence(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not list evidence: %w", err)
		}
		quality := "pass"
		if !allCompleted {
			quality = "fail"
		}
		err = add(schema.Metrics, model.Metrics{
			WorkflowID:   req.WorkflowID,
			Timestamp:    now,
			TotalTimeMin: int(now.Sub(startedAt).Minutes()),
			Stages:       len(runCtx.Completed()),
			Agents:       1,
			Evidence:     len(evs),
			Quality:      quality,
		})
		if err != nil {
			return nil, err
		}
	}

	if stage == model.StageLearn {
		err := add(schema.Skill, model.Skill{
			Name:             fmt.Sprintf("%s-learnings", req.WorkflowID),
			Source:           req.WorkflowID,
			Purpose:          req.Objective,
			Interface:        "document",
			Tested:           allCompleted,
			EvidenceLocation: conventions.EvidencePath(s.dataDir, req.WorkflowID),
		})
		if err != nil {
			return nil, err
		}
	}

	return docs, nil
}

// escalate builds and persists the handoff document that reassigns the
// stalled stage to the escalation agent.
func (s *Service) escalate(ctx context.Context, req RunRequest, runCtx workflow.RunContext, result *model.GateResult) (*model.Handoff, error) {
	stage := runCtx.Stage()

	tasks, err := s.repository.ListTasksByStage(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("could not list stage tasks: %w", err)
	}
	// The handoff is only real if the stage's tasks change hands too.
	pending := []string{}
	for _, t := range tasks {
		if t.Status != model.TaskStatusCompleted {
			pending = append(pending, t.ID)
		}
		t.Metadata.ResponsibleAgent = s.escalationAgent
		if err := s.repository.UpdateTask(ctx, t); err != nil {
			return nil, fmt.Errorf("could not reassign task %s: %w", t.ID, err)
		}
	}

	evs, err := s.repository.ListEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list evidence: %w", err)
	}
	refs := make([]string, 0, len(evs))
	for _, ev := range evs {
		refs = append(refs, ev.ID)
	}

	h := &model.Handoff{
		From:      s.agent,
		To:        s.escalationAgent,
		Timestamp: time.Now().UTC(),
		Context: model.HandoffContext{
			Objective:       req.Objective,
			CurrentStage:    stage,
			CompletedStages: runCtx.Completed(),
			PendingTasks:    pending,
			EvidenceRefs:    refs,
			Blockers:        result.ErrorMessages(),
		},
		Instructions: fmt.Sprintf("resolve the %d gate errors and re-run stage %s", len(result.Errors), stage),
		Deadline:     "next gate evaluation",
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	err = writeJSON(conventions.HandoffPath(s.dataDir, req.WorkflowID), h)
	if err != nil {
		return nil, err
	}

	s.logger.Warningf("Escalated stage %s from %s to %s", stage, s.agent, s.escalationAgent)

	return h, nil
}

// stop writes the recovery record that lets an operator resume an aborted
// run from a known checkpoint.
func (s *Service) stop(workflowID string, runCtx workflow.RunContext, result *model.GateResult) (*model.RecoveryRecord, error) {
	now := time.Now().UTC()

	rollback := string(model.StageStartup)
	if completed := runCtx.Completed(); len(completed) > 0 {
		rollback = string(completed[len(completed)-1])
	}

	trigger := "gate stop"
	if msgs := result.ErrorMessages(); len(msgs) > 0 {
		trigger = msgs[0]
	}

	rec := &model.RecoveryRecord{
		ID:          model.NewRecoveryID(now),
		Trigger:     trigger,
		RollbackTo:  rollback,
		ResumeStage: runCtx.Stage(),
		Success:     false,
	}

	err := writeJSON(conventions.RecoveryPath(s.dataDir, workflowID), rec)
	if err != nil {
		return nil, err
	}

	s.logger.Errorf("Run stopped at %s, recovery record %s", runCtx.Stage(), rec.ID)

	return rec, nil
}

func (s *Service) writeRemediation(workflowID string, result *model.GateResult) error {
	report := gate.Remediation(result)
	if report == "" {
		return nil
	}

	path := conventions.RemediationPath(s.dataDir, workflowID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(report), 0644)
}

// resetFailedTasks moves failed and blocked tasks of a stage back to pending
// so the next revision cycle re-runs them.
func (s *Service) resetFailedTasks(ctx context.Context, stage model.Stage) {
	tasks, err := s.repository.ListTasksByStage(ctx, stage)
	if err != nil {
		s.logger.Errorf("Could not list stage tasks: %s", err)
		return
	}

	for _, t := range tasks {
		if t.Status != model.TaskStatusFailed && t.Status != model.TaskStatusBlocked {
			continue
		}
		t.Status = model.TaskStatusPending
		if err := s.repository.UpdateTask(ctx, t); err != nil {
			s.logger.Errorf("Could not reset task %s: %s", t.ID, err)
		}
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
