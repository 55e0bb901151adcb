// Package workflow holds the pipeline state machine: the fixed stage
// sequence, the legal transitions per gate action and the immutable run
// context threaded through a run.
package workflow

import (
	"fmt"

	"github.com/slok/stagegate/internal/model"
)

// next maps each stage to its successor on PROCEED.
var next = map[model.Stage]model.Stage{
	model.StageStartup:    model.StagePlan,
	model.StagePlan:       model.StageReview,
	model.StageReview:     model.StageDisrupt,
	model.StageDisrupt:    model.StageImplement,
	model.StageImplement:  model.StageTest,
	model.StageTest:       model.StageReviewPost,
	model.StageReviewPost: model.StageValidate,
	model.StageValidate:   model.StageLearn,
	model.StageLearn:      model.StageComplete,
}

// Next resolves the stage a run moves to when a gate action fires at a
// stage. REVISE and ESCALATE re-enter the same stage (escalation swaps the
// agent, not the stage), STOP aborts, PROCEED advances along the fixed
// sequence. Skipping stages is not expressible.
func Next(stage model.Stage, action model.GateAction) (model.Stage, error) {
	if stage.IsTerminal() {
		return "", fmt.Errorf("stage %s is terminal: %w", stage, model.ErrNotValid)
	}

	switch action {
	case model.GateActionProceed:
		to, ok := next[stage]
		if !ok {
			return "", fmt.Errorf("stage %s has no successor: %w", stage, model.ErrNotValid)
		}
		return to, nil
	case model.GateActionRevise, model.GateActionEscalate:
		return stage, nil
	case model.GateActionStop:
		return model.StageAborted, nil
	default:
		return "", fmt.Errorf("gate action %q is unknown: %w", action, model.ErrNotValid)
	}
}

// RunContext is the immutable state of one workflow run. Mutating methods
// return a new copy, callers never share mutable state.
type RunContext struct {
	workflowID string
	stage      model.Stage
	retries    map[model.Stage]int
	completed  []model.Stage
}

// NewRunContext creates a run context positioned at STARTUP.
func NewRunContext(workflowID string) RunContext {
	return RunContext{
		workflowID: workflowID,
		stage:      model.StageStartup,
		retries:    map[model.Stage]int{},
	}
}

// WorkflowID returns the run's workflow ID.
func (r RunContext) WorkflowID() string { return r.workflowID }

// Stage returns the stage the run is currently at.
func (r RunContext) Stage() model.Stage { return r.stage }

// Retry returns the REVISE count of the current stage instance. REVIEW and
// REVIEW_POST are distinct instances with independent counters.
func (r RunContext) Retry() int { return r.retries[r.stage] }

// Completed returns the stages completed so far, in order.
func (r RunContext) Completed() []model.Stage {
	out := make([]model.Stage, len(r.completed))
	copy(out, r.completed)
	return out
}

// Advance applies a gate action and returns the resulting run context.
func (r RunContext) Advance(action model.GateAction) (RunContext, error) {
	to, err := Next(r.stage, action)
	if err != nil {
		return r, err
	}

	out := r.clone()
	switch action {
	case model.GateActionProceed:
		out.completed = append(out.completed, r.stage)
		out.stage = to
	case model.GateActionRevise:
		out.retries[r.stage]++
	case model.GateActionEscalate:
		// Escalation hands the stage to a stronger agent with a fresh
		// retry budget.
		out.retries[r.stage] = 0
	case model.GateActionStop:
		out.stage = model.StageAborted
	}

	return out, nil
}

func (r RunContext) clone() RunContext {
	retries := make(map[model.Stage]int, len(r.retries))
	for k, v := range r.retries {
		retries[k] = v
	}
	completed := make([]model.Stage, len(r.completed))
	copy(completed, r.completed)

	return RunContext{
		workflowID: r.workflowID,
		stage:      r.stage,
		retries:    retries,
		completed:  completed,
	}
}
