package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/app/pipeline"
	"github.com/slok/stagegate/internal/approval"
	"github.com/slok/stagegate/internal/approval/approvalmock"
	approvalfake "github.com/slok/stagegate/internal/approval/fake"
	"github.com/slok/stagegate/internal/conventions"
	"github.com/slok/stagegate/internal/dispatch"
	"github.com/slok/stagegate/internal/evidence"
	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/handler"
	handlerfake "github.com/slok/stagegate/internal/handler/fake"
	"github.com/slok/stagegate/internal/handler/handlermock"
	"github.com/slok/stagegate/internal/kv"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/review"
	reviewfake "github.com/slok/stagegate/internal/review/fake"
	"github.com/slok/stagegate/internal/storage/memory"
)

func stageTask(id string, stage model.Stage, evidenceDir string) model.Task {
	return model.Task{
		ID:       id,
		Content:  "do " + id,
		Status:   model.TaskStatusPending,
		Priority: model.TaskPriorityMedium,
		Metadata: model.TaskMetadata{
			Objective:        "ship the feature",
			SuccessCriteria:  "all checks pass for " + id,
			FailCriteria:     "any check fails",
			EvidenceRequired: model.EvidenceTypeLog,
			EvidenceLocation: filepath.Join(evidenceDir, id+".log"),
			ResponsibleAgent: "executor",
			WorkflowPath:     "workflows/feature.yaml",
			CurrentStage:     stage,
			InstructionSet:   "implement",
			TimeBudget:       "30m",
			Reviewer:         "reviewer",
		},
	}
}

// pipelineTasks seeds one task per evidence-producing stage so every gate
// sees the records it requires.
func pipelineTasks(evidenceDir string) []model.Task {
	stages := []model.Stage{
		model.StagePlan, model.StageReview, model.StageDisrupt,
		model.StageImplement, model.StageTest, model.StageReviewPost,
		model.StageValidate,
	}
	var tasks []model.Task
	for i, stage := range stages {
		id := string(rune('a'+i)) + "-task"
		tasks = append(tasks, stageTask(id, stage, evidenceDir))
	}
	return tasks
}

// serviceOverrides are the collaborators a test swaps out, zero values get
// working fakes.
type serviceOverrides struct {
	verdicts    map[model.Stage]model.Review
	planVerdict *model.Review
	approver    approval.Approver
	handler     handler.Handler
}

func newPipelineService(t *testing.T, dataDir string, ov serviceOverrides) (*pipeline.Service, *memory.Repository) {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	verifier, err := evidence.NewVerifier(evidence.VerifierConfig{FS: os.DirFS("/")})
	require.NoError(t, err)

	reviewer, err := reviewfake.NewReviewer(reviewfake.ReviewerConfig{Verdicts: ov.verdicts})
	require.NoError(t, err)
	timeoutReviewer, err := review.NewTimeoutReviewer(review.TimeoutReviewerConfig{Reviewer: reviewer})
	require.NoError(t, err)

	gateSvc, err := gate.NewService(gate.ServiceConfig{
		Verifier: verifier,
		Reviewer: timeoutReviewer,
		GateLog:  repo,
	})
	require.NoError(t, err)

	stageHandler := ov.handler
	if stageHandler == nil {
		stageHandler, err = handlerfake.NewHandler(handlerfake.HandlerConfig{
			EvidenceDir: filepath.Join(dataDir, "evidence"),
			Session:     "20260104.0700",
		})
		require.NoError(t, err)
	}

	approver := ov.approver
	if approver == nil {
		approver, err = approvalfake.NewApprover(approvalfake.ApproverConfig{Verdict: ov.planVerdict})
		require.NoError(t, err)
	}

	dispatcher, err := dispatch.NewService(dispatch.ServiceConfig{Handler: stageHandler, Repository: repo})
	require.NoError(t, err)

	svc, err := pipeline.NewService(pipeline.ServiceConfig{
		Repository: repo,
		Gate:       gateSvc,
		Dispatcher: dispatcher,
		KV:         kv.NewMemoryStore(),
		Approver:   approver,
		DataDir:    dataDir,
	})
	require.NoError(t, err)

	return svc, repo
}

func TestPipelineRunCompletes(t *testing.T) {
	dataDir := t.TempDir()
	evidenceDir := filepath.Join(dataDir, "artifacts")

	svc, _ := newPipelineService(t, dataDir, serviceOverrides{})

	resp, err := svc.Run(context.Background(), pipeline.RunRequest{
		WorkflowID: "w1",
		Objective:  "ship the feature",
		Tasks:      pipelineTasks(evidenceDir),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, resp.FinalStage)
	assert.Nil(t, resp.Handoff)
	assert.Nil(t, resp.Recovery)

	// Every gated stage passed on its first evaluation.
	require.Len(t, resp.GateResults, 8)
	for _, result := range resp.GateResults {
		assert.Equal(t, model.GateActionProceed, result.Action, "stage %s", result.Stage)
		assert.Empty(t, result.Errors, "stage %s", result.Stage)
	}

	// STARTUP left its record behind.
	startupPath := filepath.Join(conventions.RunDir(dataDir, "w1"), conventions.DocsDir, "startup.json")
	_, err = os.Stat(startupPath)
	assert.NoError(t, err)

	// One JSON line per gate decision.
	gateLogPath := filepath.Join(conventions.RunDir(dataDir, "w1"), conventions.LogsDir, conventions.GateLogFile)
	data, err := os.ReadFile(gateLogPath)
	require.NoError(t, err)
	assert.Equal(t, 8, strings.Count(string(data), "\n"))
}

func TestPipelineRunWaitsForPlanApproval(t *testing.T) {
	dataDir := t.TempDir()
	evidenceDir := filepath.Join(dataDir, "artifacts")

	// A passing PLAN gate must still go through the approver, exactly once.
	mapp := approvalmock.NewMockApprover(t)
	mapp.On("Approve", mock.Anything, mock.MatchedBy(func(req approval.Request) bool {
		return req.WorkflowID == "w3" && len(req.Documents) > 0
	})).Once().Return(&model.Review{Approved: true}, nil)

	svc, _ := newPipelineService(t, dataDir, serviceOverrides{approver: mapp})

	resp, err := svc.Run(context.Background(), pipeline.RunRequest{
		WorkflowID: "w3",
		Objective:  "ship the feature",
		Tasks:      pipelineTasks(evidenceDir),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, resp.FinalStage)
}

func TestPipelineRunPlanRejectionAborts(t *testing.T) {
	dataDir := t.TempDir()
	evidenceDir := filepath.Join(dataDir, "artifacts")

	svc, _ := newPipelineService(t, dataDir, serviceOverrides{
		planVerdict: &model.Review{Approved: false, Reasons: []string{"scope too wide"}},
	})

	resp, err := svc.Run(context.Background(), pipeline.RunRequest{
		WorkflowID: "w4",
		Objective:  "ship the feature",
		Tasks:      pipelineTasks(evidenceDir),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StageAborted, resp.FinalStage)

	// The run never left PLAN: one gate evaluation, then the rejection.
	require.Len(t, resp.GateResults, 1)
	assert.Equal(t, model.StagePlan, resp.GateResults[0].Stage)

	require.NotNil(t, resp.Recovery)
	assert.Equal(t, model.StagePlan, resp.Recovery.ResumeStage)
	assert.Contains(t, resp.Recovery.Trigger, "scope too wide")
}

func TestPipelineRunUnprovenClaimsAreNotPersisted(t *testing.T) {
	dataDir := t.TempDir()

	// The handler keeps claiming verified evidence whose artifact doesn't
	// exist: first a missing-evidence revise, then a fabrication stop. No
	// evidence record may survive either evaluation.
	claim := model.Evidence{
		ID:         model.NewEvidenceID(model.StagePlan, "20260104.0700", 1),
		Type:       model.EvidenceTypeLog,
		Claim:      "all checks pass for a-task",
		Location:   filepath.Join(dataDir, "missing", "a-task.log"),
		Timestamp:  time.Now().UTC(),
		Verified:   true,
		VerifiedBy: model.VerifiedByAgent,
	}
	mh := handlermock.NewMockHandler(t)
	mh.On("Execute", mock.Anything, mock.Anything).Return(&handler.Result{
		Status:         model.TaskStatusCompleted,
		EvidenceClaims: []model.Evidence{claim},
	}, nil)

	svc, repo := newPipelineService(t, dataDir, serviceOverrides{handler: mh})

	resp, err := svc.Run(context.Background(), pipeline.RunRequest{
		WorkflowID: "w5",
		Objective:  "ship the feature",
		Tasks:      []model.Task{stageTask("a-task", model.StagePlan, filepath.Join(dataDir, "missing"))},
	})

	require.NoError(t, err)
	assert.Equal(t, model.StageAborted, resp.FinalStage)

	last := resp.GateResults[len(resp.GateResults)-1]
	assert.Equal(t, model.GateActionStop, last.Action)

	evs, err := repo.ListEvidence(context.Background())
	require.NoError(t, err)
	assert.Empty(t, evs, "disproven claims must not become evidence records")
}

func TestPipelineRunRejectionAborts(t *testing.T) {
	dataDir := t.TempDir()
	evidenceDir := filepath.Join(dataDir, "artifacts")

	// The external reviewer rejects DISRUPT forever, so the stage burns its
	// retry budget, escalates once and finally stops.
	svc, repo := newPipelineService(t, dataDir, serviceOverrides{
		verdicts: map[model.Stage]model.Review{
			model.StageDisrupt: {Approved: false, Reasons: []string{"assumptions not challenged"}},
		},
	})

	resp, err := svc.Run(context.Background(), pipeline.RunRequest{
		WorkflowID: "w2",
		Objective:  "ship the feature",
		Tasks:      pipelineTasks(evidenceDir),
	})

	require.NoError(t, err)
	assert.Equal(t, model.StageAborted, resp.FinalStage)

	require.NotNil(t, resp.Handoff)
	assert.Equal(t, model.StageDisrupt, resp.Handoff.Context.CurrentStage)

	// The escalation reassigned the stage's tasks, not just the handoff doc.
	reassigned, err := repo.GetTask(context.Background(), "c-task")
	require.NoError(t, err)
	assert.Equal(t, "senior-executor", reassigned.Metadata.ResponsibleAgent)

	require.NotNil(t, resp.Recovery)
	assert.Equal(t, model.StageDisrupt, resp.Recovery.ResumeStage)
	assert.Contains(t, resp.Recovery.Trigger, "assumptions not challenged")

	// The recovery record is persisted for operators.
	_, err = os.Stat(conventions.RecoveryPath(dataDir, "w2"))
	assert.NoError(t, err)

	last := resp.GateResults[len(resp.GateResults)-1]
	assert.Equal(t, model.StageDisrupt, last.Stage)
	assert.Equal(t, model.GateActionStop, last.Action)
}

func TestPipelineRunInvalidRequest(t *testing.T) {
	svc, _ := newPipelineService(t, t.TempDir(), serviceOverrides{})

	_, err := svc.Run(context.Background(), pipeline.RunRequest{WorkflowID: "w1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestPipelineLivenessCheck(t *testing.T) {
	svc, _ := newPipelineService(t, t.TempDir(), serviceOverrides{})

	assert.NoError(t, svc.LivenessCheck(context.Background()))
}
