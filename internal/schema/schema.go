// Package schema validates stage-output records against the fixed record
// schemas. It is pure: no I/O, no side effects, deterministic output.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/slok/stagegate/internal/model"
)

// ErrUnknownSchema is returned when validation is requested against a schema
// name that doesn't exist. An unknown schema is never a silent pass.
var ErrUnknownSchema = errors.New("unknown schema")

// Schema names.
const (
	Todo       = "todo"
	Evidence   = "evidence"
	ReviewGate = "review_gate"
	Conflict   = "conflict"
	Handoff    = "handoff"
	Recovery   = "recovery"
	Metrics    = "metrics"
	Skill      = "skill"
	Startup    = "startup"
)

// fieldKind is the expected Go type of a typed schema field after JSON/YAML
// decoding.
type fieldKind int

const (
	kindBool fieldKind = iota
	kindList
	kindString
	kindNumber
)

func (k fieldKind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindList:
		return "list"
	case kindNumber:
		return "number"
	default:
		return "string"
	}
}

// definition is a declarative record schema.
type definition struct {
	required []string
	// nested maps a sub-document field (metadata, context) to its required
	// sub-fields.
	nested   map[string][]string
	enums    map[string][]string
	patterns map[string]*regexp.Regexp
	types    map[string]fieldKind
}

var stageEnum = []string{"PLAN", "REVIEW", "DISRUPT", "IMPLEMENT", "TEST", "REVIEW_POST", "VALIDATE", "LEARN"}

var schemas = map[string]definition{
	Todo: {
		required: []string{"id", "content", "status", "priority", "metadata"},
		nested: map[string][]string{
			"metadata": {
				"objective", "success_criteria", "fail_criteria", "evidence_required",
				"evidence_location", "responsible_agent", "workflow_path", "blocked_by",
				"parallel", "current_stage", "instruction_set", "time_budget", "reviewer",
			},
		},
		enums: map[string][]string{
			"status":            {"pending", "in_progress", "completed", "blocked", "failed"},
			"priority":          {"high", "medium", "low"},
			"evidence_required": {"log", "output", "test_result", "diff", "screenshot", "api_response"},
			"current_stage":     stageEnum,
		},
		types: map[string]fieldKind{
			"blocked_by": kindList,
			"parallel":   kindBool,
		},
	},
	Evidence: {
		required: []string{"id", "type", "claim", "location", "timestamp", "verified", "verified_by"},
		patterns: map[string]*regexp.Regexp{"id": model.EvidenceIDPattern},
		enums: map[string][]string{
			"type":        {"log", "output", "test_result", "diff", "screenshot", "api_response"},
			"verified_by": {"agent", "external-reviewer", "human"},
		},
		types: map[string]fieldKind{"verified": kindBool},
	},
	ReviewGate: {
		required: []string{"stage", "reviewing_agent", "timestamp", "criteria_checked", "approved", "action"},
		enums: map[string][]string{
			"action": {"proceed", "revise", "escalate"},
			"stage":  stageEnum,
		},
		types: map[string]fieldKind{
			"criteria_checked": kindList,
			"approved":         kindBool,
		},
	},
	Conflict: {
		required: []string{"id", "type", "parties", "positions"},
		patterns: map[string]*regexp.Regexp{"id": model.ConflictIDPattern},
		enums: map[string][]string{
			"type": {"plan_disagreement", "evidence_dispute", "priority_conflict", "resource_conflict"},
		},
		types: map[string]fieldKind{
			"parties":   kindList,
			"positions": kindList,
		},
	},
	Handoff: {
		required: []string{"from", "to", "timestamp", "context"},
		nested: map[string][]string{
			"context": {
				"objective", "current_stage", "completed_stages", "pending_tasks",
				"evidence_refs", "blockers",
			},
		},
	},
	Recovery: {
		required: []string{"id", "trigger", "rollback_to", "resume_stage", "success"},
		patterns: map[string]*regexp.Regexp{"id": model.RecoveryIDPattern},
		enums:    map[string][]string{"resume_stage": stageEnum},
		types:    map[string]fieldKind{"success": kindBool},
	},
	Metrics: {
		required: []string{"workflow_id", "timestamp", "total_time_min", "stages", "agents", "evidence", "quality"},
		types:    map[string]fieldKind{"total_time_min": kindNumber},
	},
	Skill: {
		required: []string{"name", "source", "purpose", "interface", "tested", "evidence_location"},
		types:    map[string]fieldKind{"tested": kindBool},
	},
	Startup: {
		required: []string{"services_verified", "scheduler_active", "store_ok", "env_ready", "workflow_dir", "timestamp"},
		types: map[string]fieldKind{
			"services_verified": kindBool,
			"scheduler_active":  kindBool,
			"store_ok":          kindBool,
			"env_ready":         kindBool,
		},
	},
}

// Names returns all known schema names sorted.
func Names() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a record document against a named schema and returns the
// list of field-level errors. An empty list means the record is valid.
func Validate(doc model.Document, schemaName string) ([]string, error) {
	def, ok := schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %q: %w", schemaName, ErrUnknownSchema)
	}

	data := doc.Unwrap(schemaName)
	var errs []string

	// Required fields, present and non-empty.
	for _, field := range def.required {
		v, ok := data[field]
		if !ok || v == nil || v == "" {
			errs = append(errs, fmt.Sprintf("missing field: %s", field))
		}
	}

	// Nested required sub-fields (metadata, context).
	for _, nested := range []string{"metadata", "context"} {
		required, ok := def.nested[nested]
		if !ok {
			continue
		}
		sub, _ := data[nested].(map[string]any)
		for _, field := range required {
			if _, ok := sub[field]; !ok {
				errs = append(errs, fmt.Sprintf("missing field: %s.%s", nested, field))
			}
		}
	}

	// Enum fields.
	for field, allowed := range def.enums {
		v := lookupField(data, field)
		s, ok := v.(string)
		if v == nil || !ok || s == "" {
			continue
		}
		if !contains(allowed, s) {
			errs = append(errs, fmt.Sprintf("%s: %q is not a valid value", field, s))
		}
	}

	// Pattern fields.
	for field, pattern := range def.patterns {
		s, ok := data[field].(string)
		if !ok || s == "" {
			continue
		}
		if !pattern.MatchString(s) {
			errs = append(errs, fmt.Sprintf("%s: %q doesn't match pattern %s", field, s, pattern))
		}
	}

	// Typed fields.
	for field, kind := range def.types {
		v := lookupField(data, field)
		if v == nil {
			continue
		}
		if !matchesKind(v, kind) {
			errs = append(errs, fmt.Sprintf("%s: expected %s, got %T", field, kind, v))
		}
	}

	sort.Strings(errs)
	return errs, nil
}

// Detect resolves the schema of a record document from its kind
// discriminator: records travel wrapped under their kind key, todos are
// unwrapped and carry a metadata.objective field.
func Detect(doc model.Document) (string, bool) {
	for _, name := range []string{Evidence, Handoff, ReviewGate, Conflict, Metrics, Skill, Startup, Recovery} {
		if _, ok := doc[name].(map[string]any); ok {
			return name, true
		}
	}

	if metadata, ok := doc["metadata"].(map[string]any); ok {
		if _, ok := metadata["objective"]; ok {
			return Todo, true
		}
	}

	return "", false
}

// lookupField resolves a field at the top level or inside the metadata
// block, where todo enum and typed fields live.
func lookupField(data map[string]any, field string) any {
	if v, ok := data[field]; ok {
		return v
	}
	if metadata, ok := data["metadata"].(map[string]any); ok {
		return metadata[field]
	}
	return nil
}

func matchesKind(v any, kind fieldKind) bool {
	switch kind {
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindList:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case kindNumber:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	default:
		_, ok := v.(string)
		return ok
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
