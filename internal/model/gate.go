package model

import (
	"time"
)

// GateAction is the decision a quality gate takes at stage exit.
type GateAction string

const (
	// GateActionProceed advances to the next stage.
	GateActionProceed GateAction = "PROCEED"
	// GateActionRevise re-enters the same stage with an incremented retry count.
	GateActionRevise GateAction = "REVISE"
	// GateActionEscalate hands the stage off to a higher-capability agent.
	GateActionEscalate GateAction = "ESCALATE"
	// GateActionStop aborts the run with a recovery record.
	GateActionStop GateAction = "STOP"
)

// GateError is a single failed gate check, classified by the error taxonomy.
type GateError struct {
	// Kind is the taxonomy bucket (schema_violation, missing_evidence,
	// unproven_claim, external_rejection, dependency_cycle, fabrication).
	Kind string `json:"kind" yaml:"kind"`
	// Schema is the schema the failing record matched, if any.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Ref is the ID of the record that failed the check, if any.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
	// Message is the human readable description of the failure.
	Message string `json:"message" yaml:"message"`
}

// GateError kinds.
const (
	GateErrorSchemaViolation   = "schema_violation"
	GateErrorMissingSchema     = "missing_schema"
	GateErrorMissingEvidence   = "missing_evidence"
	GateErrorUnprovenClaim     = "unproven_claim"
	GateErrorExternalRejection = "external_rejection"
	GateErrorFabrication       = "fabrication"
)

// GateResult is the outcome of one quality gate evaluation. It is the row
// appended to the gate log.
type GateResult struct {
	Stage     Stage       `json:"stage" yaml:"stage"`
	Valid     bool        `json:"valid" yaml:"valid"`
	Checked   []string    `json:"checked" yaml:"checked"`
	Errors    []GateError `json:"errors" yaml:"errors"`
	Action    GateAction  `json:"action" yaml:"action"`
	Retry     int         `json:"retry" yaml:"retry"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}

// ErrorMessages returns the flat list of gate error messages.
func (g *GateResult) ErrorMessages() []string {
	msgs := make([]string, 0, len(g.Errors))
	for _, e := range g.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Review is the verdict of the external reviewer over an evidence package.
type Review struct {
	Approved bool     `json:"approved" yaml:"approved"`
	Reasons  []string `json:"reasons" yaml:"reasons"`
}
