package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/schema"
)

func todoDoc() model.Document {
	return model.Document{
		"id":       "task-1",
		"content":  "Implement the parser",
		"status":   "pending",
		"priority": "high",
		"metadata": map[string]any{
			"objective":         "working parser",
			"success_criteria":  "all parser tests pass",
			"fail_criteria":     "any parser test fails",
			"evidence_required": "test_result",
			"evidence_location": "/runs/w1/evidence/task-1.log",
			"responsible_agent": "executor",
			"workflow_path":     "workflows/feature.yaml",
			"blocked_by":        []any{},
			"parallel":          false,
			"current_stage":     "IMPLEMENT",
			"instruction_set":   "implement",
			"time_budget":       "30m",
			"reviewer":          "reviewer",
		},
	}
}

func evidenceDoc() model.Document {
	return model.Document{
		"evidence": map[string]any{
			"id":          "E-IMPLEMENT-20260104.0700-001",
			"type":        "log",
			"claim":       "parser tests pass",
			"location":    "/runs/w1/evidence/task-1.log",
			"timestamp":   "2026-01-04T07:00:00Z",
			"verified":    true,
			"verified_by": "agent",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		doc     func() model.Document
		schema  string
		expErrs []string
	}{
		"A valid todo should pass": {
			doc:    todoDoc,
			schema: schema.Todo,
		},

		"A todo missing top level fields should report them": {
			doc: func() model.Document {
				d := todoDoc()
				delete(d, "content")
				delete(d, "priority")
				return d
			},
			schema:  schema.Todo,
			expErrs: []string{"missing field: content", "missing field: priority"},
		},

		"A todo missing metadata fields should report them": {
			doc: func() model.Document {
				d := todoDoc()
				metadata := d["metadata"].(map[string]any)
				delete(metadata, "objective")
				delete(metadata, "time_budget")
				return d
			},
			schema:  schema.Todo,
			expErrs: []string{"missing field: metadata.objective", "missing field: metadata.time_budget"},
		},

		"A todo with an unknown status should fail": {
			doc: func() model.Document {
				d := todoDoc()
				d["status"] = "done"
				return d
			},
			schema:  schema.Todo,
			expErrs: []string{`status: "done" is not a valid value`},
		},

		"A todo with a non list blocked_by should fail": {
			doc: func() model.Document {
				d := todoDoc()
				d["metadata"].(map[string]any)["blocked_by"] = "task-0"
				return d
			},
			schema:  schema.Todo,
			expErrs: []string{"blocked_by: expected list, got string"},
		},

		"A todo with a non bool parallel should fail": {
			doc: func() model.Document {
				d := todoDoc()
				d["metadata"].(map[string]any)["parallel"] = "yes"
				return d
			},
			schema:  schema.Todo,
			expErrs: []string{"parallel: expected bool, got string"},
		},

		"A valid evidence should pass": {
			doc:    evidenceDoc,
			schema: schema.Evidence,
		},

		"An evidence with a malformed ID should fail": {
			doc: func() model.Document {
				d := evidenceDoc()
				d["evidence"].(map[string]any)["id"] = "EV-1"
				return d
			},
			schema:  schema.Evidence,
			expErrs: []string{`id: "EV-1" doesn't match pattern ^E-[A-Z]+-[\w.]+-\d{3}$`},
		},

		"An evidence with an unknown verifier should fail": {
			doc: func() model.Document {
				d := evidenceDoc()
				d["evidence"].(map[string]any)["verified_by"] = "nobody"
				return d
			},
			schema:  schema.Evidence,
			expErrs: []string{`verified_by: "nobody" is not a valid value`},
		},

		"A valid review gate should pass": {
			doc: func() model.Document {
				return model.Document{
					"review_gate": map[string]any{
						"stage":            "REVIEW",
						"reviewing_agent":  "reviewer",
						"timestamp":        "2026-01-04T07:00:00Z",
						"criteria_checked": []any{"tests pass"},
						"approved":         true,
						"action":           "proceed",
					},
				}
			},
			schema: schema.ReviewGate,
		},

		"A review gate with an unknown action should fail": {
			doc: func() model.Document {
				return model.Document{
					"review_gate": map[string]any{
						"stage":            "REVIEW",
						"reviewing_agent":  "reviewer",
						"timestamp":        "2026-01-04T07:00:00Z",
						"criteria_checked": []any{"tests pass"},
						"approved":         true,
						"action":           "merge",
					},
				}
			},
			schema:  schema.ReviewGate,
			expErrs: []string{`action: "merge" is not a valid value`},
		},

		"A valid conflict should pass": {
			doc: func() model.Document {
				return model.Document{
					"conflict": map[string]any{
						"id":        "C-20260104T070000",
						"type":      "plan_disagreement",
						"parties":   []any{"planner", "disruptor"},
						"positions": []any{"a", "b"},
					},
				}
			},
			schema: schema.Conflict,
		},

		"A valid startup should pass": {
			doc: func() model.Document {
				return model.Document{
					"startup": map[string]any{
						"services_verified": true,
						"scheduler_active":  true,
						"store_ok":          true,
						"env_ready":         true,
						"workflow_dir":      "/runs/w1",
						"timestamp":         "2026-01-04T07:00:00Z",
					},
				}
			},
			schema: schema.Startup,
		},

		"A skill with a non bool tested should fail": {
			doc: func() model.Document {
				return model.Document{
					"skill": map[string]any{
						"name":              "parser-learnings",
						"source":            "w1",
						"purpose":           "reuse",
						"interface":         "document",
						"tested":            "yes",
						"evidence_location": "/runs/w1/evidence",
					},
				}
			},
			schema:  schema.Skill,
			expErrs: []string{"tested: expected bool, got string"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			errs, err := schema.Validate(tt.doc(), tt.schema)
			require.NoError(t, err)
			assert.Equal(t, tt.expErrs, errs)
		})
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	_, err := schema.Validate(model.Document{}, "invoice")
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownSchema)
}

func TestValidateIsDeterministic(t *testing.T) {
	doc := todoDoc()
	delete(doc, "content")
	doc["status"] = "done"

	first, err := schema.Validate(doc, schema.Todo)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := schema.Validate(doc, schema.Todo)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestDetect(t *testing.T) {
	tests := map[string]struct {
		doc       model.Document
		expSchema string
		expOK     bool
	}{
		"A wrapped evidence is detected": {
			doc:       evidenceDoc(),
			expSchema: schema.Evidence,
			expOK:     true,
		},
		"An unwrapped todo is detected by its metadata objective": {
			doc:       todoDoc(),
			expSchema: schema.Todo,
			expOK:     true,
		},
		"A wrapped conflict is detected": {
			doc:       model.Document{"conflict": map[string]any{"id": "C-20260104T070000"}},
			expSchema: schema.Conflict,
			expOK:     true,
		},
		"A document without discriminator is not detected": {
			doc:   model.Document{"foo": "bar"},
			expOK: false,
		},
		"A todo without objective is not detected": {
			doc:   model.Document{"metadata": map[string]any{"reviewer": "x"}},
			expOK: false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := schema.Detect(tt.doc)
			assert.Equal(t, tt.expOK, ok)
			assert.Equal(t, tt.expSchema, got)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"conflict", "evidence", "handoff", "metrics", "recovery",
		"review_gate", "skill", "startup", "todo",
	}, schema.Names())
}
