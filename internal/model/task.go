package model

import (
	"fmt"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskPriority represents the priority of a task.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// Task represents a unit of work flowing through the pipeline.
//
// Field names are the wire names used by existing run logs, don't rename.
type Task struct {
	ID       string       `json:"id" yaml:"id"`
	Content  string       `json:"content" yaml:"content"`
	Status   TaskStatus   `json:"status" yaml:"status"`
	Priority TaskPriority `json:"priority" yaml:"priority"`
	Metadata TaskMetadata `json:"metadata" yaml:"metadata"`
}

// TaskMetadata is the 13-field metadata block every task carries.
type TaskMetadata struct {
	Objective        string       `json:"objective" yaml:"objective"`
	SuccessCriteria  string       `json:"success_criteria" yaml:"success_criteria"`
	FailCriteria     string       `json:"fail_criteria" yaml:"fail_criteria"`
	EvidenceRequired EvidenceType `json:"evidence_required" yaml:"evidence_required"`
	EvidenceLocation string       `json:"evidence_location" yaml:"evidence_location"`
	ResponsibleAgent string       `json:"responsible_agent" yaml:"responsible_agent"`
	WorkflowPath     string       `json:"workflow_path" yaml:"workflow_path"`
	BlockedBy        []string     `json:"blocked_by" yaml:"blocked_by"`
	Parallel         bool         `json:"parallel" yaml:"parallel"`
	CurrentStage     Stage        `json:"current_stage" yaml:"current_stage"`
	InstructionSet   string       `json:"instruction_set" yaml:"instruction_set"`
	TimeBudget       string       `json:"time_budget" yaml:"time_budget"`
	Reviewer         string       `json:"reviewer" yaml:"reviewer"`
}

// Validate validates the task record.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if t.Content == "" {
		return fmt.Errorf("content is required: %w", ErrNotValid)
	}

	switch t.Status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked, TaskStatusFailed:
	default:
		return fmt.Errorf("status %q is unknown: %w", t.Status, ErrNotValid)
	}

	switch t.Priority {
	case TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
	default:
		return fmt.Errorf("priority %q is unknown: %w", t.Priority, ErrNotValid)
	}

	if t.Metadata.Objective == "" {
		return fmt.Errorf("metadata objective is required: %w", ErrNotValid)
	}
	if t.Metadata.SuccessCriteria == "" {
		return fmt.Errorf("metadata success_criteria is required: %w", ErrNotValid)
	}
	if t.Metadata.EvidenceLocation == "" {
		return fmt.Errorf("metadata evidence_location is required: %w", ErrNotValid)
	}

	return nil
}

// CanTransition returns whether a status transition is legal. Tasks only
// move pending -> in_progress -> {completed|failed|blocked}.
func (t *Task) CanTransition(to TaskStatus) bool {
	switch t.Status {
	case TaskStatusPending:
		return to == TaskStatusInProgress
	case TaskStatusInProgress:
		return to == TaskStatusCompleted || to == TaskStatusFailed || to == TaskStatusBlocked
	default:
		return false
	}
}
