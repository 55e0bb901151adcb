package gate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/model"
)

func TestRemediation(t *testing.T) {
	ts := time.Date(2026, 1, 4, 7, 0, 0, 0, time.UTC)

	result := &model.GateResult{
		Stage:  model.StageImplement,
		Valid:  false,
		Action: model.GateActionRevise,
		Retry:  1,
		Errors: []model.GateError{
			{Kind: model.GateErrorMissingEvidence, Schema: "evidence", Message: "evidence E-IMPLEMENT-20260104.0700-001: artifact not found"},
			{Kind: model.GateErrorSchemaViolation, Schema: "todo", Message: "missing field: content"},
			{Kind: model.GateErrorMissingEvidence, Schema: "evidence", Message: "evidence E-IMPLEMENT-20260104.0700-002: artifact not found"},
		},
		Timestamp: ts,
	}

	report := gate.Remediation(result)

	assert.Contains(t, report, "# Gate remediation: IMPLEMENT (retry 1)")
	assert.Contains(t, report, "Decision: REVISE at 2026-01-04 07:00:00 UTC")
	assert.Contains(t, report, "## missing_evidence")
	assert.Contains(t, report, "## schema_violation")
	assert.Contains(t, report, "- [todo] missing field: content")
	assert.Contains(t, report, "- [evidence] evidence E-IMPLEMENT-20260104.0700-001: artifact not found")

	// Grouping preserves first seen kind order.
	assert.Less(t, strings.Index(report, "## missing_evidence"), strings.Index(report, "## schema_violation"))
}

func TestRemediationPassingResultIsEmpty(t *testing.T) {
	assert.Empty(t, gate.Remediation(nil))
	assert.Empty(t, gate.Remediation(&model.GateResult{Valid: true}))
}
