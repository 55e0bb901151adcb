package gatecheck_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/app/gatecheck"
	"github.com/slok/stagegate/internal/evidence"
	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/storage/memory"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

func newService(t *testing.T, fs fstest.MapFS) *gatecheck.Service {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	verifier, err := evidence.NewVerifier(evidence.VerifierConfig{FS: fs})
	require.NoError(t, err)

	gateSvc, err := gate.NewService(gate.ServiceConfig{
		Verifier: verifier,
		GateLog:  repo,
	})
	require.NoError(t, err)

	svc, err := gatecheck.NewService(gatecheck.ServiceConfig{
		Gate:   gateSvc,
		Loader: storageio.NewDocumentLoader(fs),
	})
	require.NoError(t, err)

	return svc
}

func TestCheckProceeds(t *testing.T) {
	docs := `[
	  {"id": "t1", "content": "build", "status": "completed", "priority": "high",
	   "metadata": {"objective": "working build", "success_criteria": "build ok",
	     "fail_criteria": "build broken", "evidence_required": "log",
	     "evidence_location": "runs/w1/evidence/t1.log", "responsible_agent": "executor",
	     "workflow_path": "wf.yaml", "blocked_by": [], "parallel": false,
	     "current_stage": "IMPLEMENT", "instruction_set": "implement",
	     "time_budget": "30m", "reviewer": "reviewer"}},
	  {"evidence": {"id": "E-IMPLEMENT-20260104.0700-001", "type": "log",
	    "claim": "build ok", "location": "runs/w1/evidence/t1.log",
	    "timestamp": "2026-01-04T07:00:00Z", "verified": true, "verified_by": "agent"}}
	]`

	fs := fstest.MapFS{
		"stage.json":              &fstest.MapFile{Data: []byte(docs)},
		"runs/w1/evidence/t1.log": &fstest.MapFile{Data: []byte("build ok\nexit status 0\n")},
	}
	svc := newService(t, fs)

	resp, err := svc.Check(context.Background(), gatecheck.CheckRequest{
		Stage: model.StageImplement,
		Path:  "stage.json",
	})

	require.NoError(t, err)
	assert.Equal(t, model.GateActionProceed, resp.Result.Action)
	assert.Empty(t, resp.Remediation)
}

func TestCheckRevisesWithRemediation(t *testing.T) {
	fs := fstest.MapFS{
		"stage.json": &fstest.MapFile{Data: []byte(`{"conflict": {"id": "C-20260104T070000"}}`)},
	}
	svc := newService(t, fs)

	resp, err := svc.Check(context.Background(), gatecheck.CheckRequest{
		Stage: model.StageTest,
		Path:  "stage.json",
	})

	require.NoError(t, err)
	assert.Equal(t, model.GateActionRevise, resp.Result.Action)
	assert.Contains(t, resp.Remediation, "# Gate remediation: TEST")
}

func TestCheckValidatesRequest(t *testing.T) {
	svc := newService(t, fstest.MapFS{})

	_, err := svc.Check(context.Background(), gatecheck.CheckRequest{Path: "stage.json"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)

	_, err = svc.Check(context.Background(), gatecheck.CheckRequest{Stage: model.StageTest})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)
}
