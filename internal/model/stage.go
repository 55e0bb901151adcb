package model

// Stage is a named phase in the fixed pipeline sequence.
type Stage string

const (
	StageStartup   Stage = "STARTUP"
	StagePlan      Stage = "PLAN"
	StageReview    Stage = "REVIEW"
	StageDisrupt   Stage = "DISRUPT"
	StageImplement Stage = "IMPLEMENT"
	StageTest      Stage = "TEST"
	// StageReviewPost is the second REVIEW occurrence after TEST. It is an
	// independent stage instance with its own retry counter and gate log.
	StageReviewPost Stage = "REVIEW_POST"
	StageValidate   Stage = "VALIDATE"
	StageLearn      Stage = "LEARN"

	// Terminal states.
	StageComplete Stage = "COMPLETE"
	StageAborted  Stage = "ABORTED"
)

// Stages is the fixed pipeline order, STARTUP first.
var Stages = []Stage{
	StageStartup,
	StagePlan,
	StageReview,
	StageDisrupt,
	StageImplement,
	StageTest,
	StageReviewPost,
	StageValidate,
	StageLearn,
}

// IsTerminal returns whether the stage ends the run.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageAborted
}
