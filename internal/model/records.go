package model

import (
	"fmt"
	"regexp"
	"time"
)

// ReviewGate records the outcome of a review stage.
type ReviewGate struct {
	Stage           Stage     `json:"stage" yaml:"stage"`
	ReviewingAgent  string    `json:"reviewing_agent" yaml:"reviewing_agent"`
	Timestamp       time.Time `json:"timestamp" yaml:"timestamp"`
	CriteriaChecked []string  `json:"criteria_checked" yaml:"criteria_checked"`
	Approved        bool      `json:"approved" yaml:"approved"`
	Action          string    `json:"action" yaml:"action"`
}

// ConflictType classifies a surfaced disagreement.
type ConflictType string

const (
	ConflictTypePlanDisagreement ConflictType = "plan_disagreement"
	ConflictTypeEvidenceDispute  ConflictType = "evidence_dispute"
	ConflictTypePriorityConflict ConflictType = "priority_conflict"
	ConflictTypeResourceConflict ConflictType = "resource_conflict"
)

// ConflictIDPattern is the pattern conflict IDs must match (C-<timestamp>).
var ConflictIDPattern = regexp.MustCompile(`^C-\d{8}T\d{6}$`)

// Conflict records a disagreement surfaced during the disruptive review
// stage. Resolution is filled by the external reviewer.
type Conflict struct {
	ID         string       `json:"id" yaml:"id"`
	Type       ConflictType `json:"type" yaml:"type"`
	Parties    []string     `json:"parties" yaml:"parties"`
	Positions  []string     `json:"positions" yaml:"positions"`
	Resolution string       `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// NewConflictID builds a conflict ID from a timestamp.
func NewConflictID(t time.Time) string {
	return "C-" + t.UTC().Format("20060102T150405")
}

// HandoffContext carries enough state for a fresh agent to resume a stalled
// stage without replaying history.
type HandoffContext struct {
	Objective       string   `json:"objective" yaml:"objective"`
	CurrentStage    Stage    `json:"current_stage" yaml:"current_stage"`
	CompletedStages []Stage  `json:"completed_stages" yaml:"completed_stages"`
	PendingTasks    []string `json:"pending_tasks" yaml:"pending_tasks"`
	EvidenceRefs    []string `json:"evidence_refs" yaml:"evidence_refs"`
	Blockers        []string `json:"blockers" yaml:"blockers"`
}

// Handoff is created on escalation to reassign pending work.
type Handoff struct {
	From         string         `json:"from" yaml:"from"`
	To           string         `json:"to" yaml:"to"`
	Timestamp    time.Time      `json:"timestamp" yaml:"timestamp"`
	Context      HandoffContext `json:"context" yaml:"context"`
	Instructions string         `json:"instructions" yaml:"instructions"`
	Deadline     string         `json:"deadline" yaml:"deadline"`
}

// Validate validates the handoff record.
func (h *Handoff) Validate() error {
	if h.From == "" {
		return fmt.Errorf("from is required: %w", ErrNotValid)
	}
	if h.To == "" {
		return fmt.Errorf("to is required: %w", ErrNotValid)
	}
	if h.Context.Objective == "" {
		return fmt.Errorf("context objective is required: %w", ErrNotValid)
	}
	if h.Context.CurrentStage == "" {
		return fmt.Errorf("context current_stage is required: %w", ErrNotValid)
	}
	return nil
}

// RecoveryIDPattern is the pattern recovery IDs must match (R-<timestamp>).
var RecoveryIDPattern = regexp.MustCompile(`^R-\d{8}T\d{6}$`)

// RecoveryRecord is created on STOP and defines the checkpoint from which a
// run may later resume.
type RecoveryRecord struct {
	ID          string `json:"id" yaml:"id"`
	Trigger     string `json:"trigger" yaml:"trigger"`
	RollbackTo  string `json:"rollback_to" yaml:"rollback_to"`
	ResumeStage Stage  `json:"resume_stage" yaml:"resume_stage"`
	Success     bool   `json:"success" yaml:"success"`
}

// NewRecoveryID builds a recovery ID from a timestamp.
func NewRecoveryID(t time.Time) string {
	return "R-" + t.UTC().Format("20060102T150405")
}

// Metrics summarizes a finished run, produced at the TEST and LEARN stages.
type Metrics struct {
	WorkflowID   string    `json:"workflow_id" yaml:"workflow_id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	TotalTimeMin int       `json:"total_time_min" yaml:"total_time_min"`
	Stages       int       `json:"stages" yaml:"stages"`
	Agents       int       `json:"agents" yaml:"agents"`
	Evidence     int       `json:"evidence" yaml:"evidence"`
	Quality      string    `json:"quality" yaml:"quality"`
}

// Skill is a reusable learning extracted at the LEARN stage.
type Skill struct {
	Name             string `json:"name" yaml:"name"`
	Source           string `json:"source" yaml:"source"`
	Purpose          string `json:"purpose" yaml:"purpose"`
	Interface        string `json:"interface" yaml:"interface"`
	Tested           bool   `json:"tested" yaml:"tested"`
	EvidenceLocation string `json:"evidence_location" yaml:"evidence_location"`
}

// Startup records the result of the STARTUP precondition checks.
type Startup struct {
	ServicesVerified bool      `json:"services_verified" yaml:"services_verified"`
	SchedulerActive  bool      `json:"scheduler_active" yaml:"scheduler_active"`
	StoreOK          bool      `json:"store_ok" yaml:"store_ok"`
	EnvReady         bool      `json:"env_ready" yaml:"env_ready"`
	WorkflowDir      string    `json:"workflow_dir" yaml:"workflow_dir"`
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
}
