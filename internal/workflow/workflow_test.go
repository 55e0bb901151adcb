package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/workflow"
)

func TestNext(t *testing.T) {
	tests := map[string]struct {
		stage  model.Stage
		action model.GateAction
		exp    model.Stage
		expErr bool
	}{
		"STARTUP proceeds to PLAN":          {stage: model.StageStartup, action: model.GateActionProceed, exp: model.StagePlan},
		"PLAN proceeds to REVIEW":           {stage: model.StagePlan, action: model.GateActionProceed, exp: model.StageReview},
		"REVIEW proceeds to DISRUPT":        {stage: model.StageReview, action: model.GateActionProceed, exp: model.StageDisrupt},
		"DISRUPT proceeds to IMPLEMENT":     {stage: model.StageDisrupt, action: model.GateActionProceed, exp: model.StageImplement},
		"IMPLEMENT proceeds to TEST":        {stage: model.StageImplement, action: model.GateActionProceed, exp: model.StageTest},
		"TEST proceeds to REVIEW_POST":      {stage: model.StageTest, action: model.GateActionProceed, exp: model.StageReviewPost},
		"REVIEW_POST proceeds to VALIDATE":  {stage: model.StageReviewPost, action: model.GateActionProceed, exp: model.StageValidate},
		"VALIDATE proceeds to LEARN":        {stage: model.StageValidate, action: model.GateActionProceed, exp: model.StageLearn},
		"LEARN proceeds to COMPLETE":        {stage: model.StageLearn, action: model.GateActionProceed, exp: model.StageComplete},
		"REVISE re-enters the same stage":   {stage: model.StageImplement, action: model.GateActionRevise, exp: model.StageImplement},
		"ESCALATE re-enters the same stage": {stage: model.StageTest, action: model.GateActionEscalate, exp: model.StageTest},
		"STOP aborts":                       {stage: model.StagePlan, action: model.GateActionStop, exp: model.StageAborted},
		"Terminal stages have no exits":     {stage: model.StageComplete, action: model.GateActionProceed, expErr: true},
		"ABORTED has no exits":              {stage: model.StageAborted, action: model.GateActionRevise, expErr: true},
		"Unknown actions are rejected":      {stage: model.StagePlan, action: "SKIP", expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := workflow.Next(tt.stage, tt.action)

			if tt.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, got)
		})
	}
}

func TestRunContextAdvance(t *testing.T) {
	runCtx := workflow.NewRunContext("w1")
	assert.Equal(t, model.StageStartup, runCtx.Stage())
	assert.Equal(t, 0, runCtx.Retry())

	// STARTUP -> PLAN.
	runCtx, err := runCtx.Advance(model.GateActionProceed)
	require.NoError(t, err)
	assert.Equal(t, model.StagePlan, runCtx.Stage())
	assert.Equal(t, []model.Stage{model.StageStartup}, runCtx.Completed())

	// Two revisions bump the retry counter.
	runCtx, err = runCtx.Advance(model.GateActionRevise)
	require.NoError(t, err)
	runCtx, err = runCtx.Advance(model.GateActionRevise)
	require.NoError(t, err)
	assert.Equal(t, model.StagePlan, runCtx.Stage())
	assert.Equal(t, 2, runCtx.Retry())

	// Escalation resets the retry budget without moving.
	runCtx, err = runCtx.Advance(model.GateActionEscalate)
	require.NoError(t, err)
	assert.Equal(t, model.StagePlan, runCtx.Stage())
	assert.Equal(t, 0, runCtx.Retry())

	// Proceeding into a new stage starts a fresh counter.
	runCtx, err = runCtx.Advance(model.GateActionProceed)
	require.NoError(t, err)
	assert.Equal(t, model.StageReview, runCtx.Stage())
	assert.Equal(t, 0, runCtx.Retry())
}

func TestRunContextRetryCountersAreIndependent(t *testing.T) {
	runCtx := workflow.NewRunContext("w1")

	var err error
	for _, action := range []model.GateAction{
		model.GateActionProceed, // STARTUP -> PLAN
		model.GateActionProceed, // PLAN -> REVIEW
	} {
		runCtx, err = runCtx.Advance(action)
		require.NoError(t, err)
	}

	// Two revisions at REVIEW.
	runCtx, err = runCtx.Advance(model.GateActionRevise)
	require.NoError(t, err)
	runCtx, err = runCtx.Advance(model.GateActionRevise)
	require.NoError(t, err)
	assert.Equal(t, 2, runCtx.Retry())

	// Walk forward to REVIEW_POST, its counter starts at zero even though
	// REVIEW revised twice.
	for _, action := range []model.GateAction{
		model.GateActionProceed, // REVIEW -> DISRUPT
		model.GateActionProceed, // DISRUPT -> IMPLEMENT
		model.GateActionProceed, // IMPLEMENT -> TEST
		model.GateActionProceed, // TEST -> REVIEW_POST
	} {
		runCtx, err = runCtx.Advance(action)
		require.NoError(t, err)
	}
	assert.Equal(t, model.StageReviewPost, runCtx.Stage())
	assert.Equal(t, 0, runCtx.Retry())
}

func TestRunContextImmutability(t *testing.T) {
	base := workflow.NewRunContext("w1")
	advanced, err := base.Advance(model.GateActionProceed)
	require.NoError(t, err)

	assert.Equal(t, model.StageStartup, base.Stage())
	assert.Equal(t, model.StagePlan, advanced.Stage())
	assert.Empty(t, base.Completed())
}
