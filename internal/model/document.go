package model

import (
	"encoding/json"
	"fmt"
)

// Document is a generic stage-output record before schema detection. Stage
// handlers emit records wrapped in a single kind key (e.g.
// {"evidence": {...}}), todos carry their metadata block directly.
type Document map[string]any

// Unwrap returns the inner record for a kind key, or the document itself
// when the key is absent (todo records aren't wrapped).
func (d Document) Unwrap(kind string) map[string]any {
	if inner, ok := d[kind].(map[string]any); ok {
		return inner
	}
	return d
}

// DecodeDocument decodes the record of a kind inside a document into a typed
// model (Task, Evidence, Conflict...). Decoding goes through JSON so the
// wire field names apply.
func DecodeDocument[T any](d Document, kind string) (*T, error) {
	raw, err := json.Marshal(d.Unwrap(kind))
	if err != nil {
		return nil, fmt.Errorf("could not marshal document: %w", err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("could not decode %q record: %w", kind, err)
	}

	return &out, nil
}

// NewDocument wraps a typed record under its kind key, producing the generic
// form stage handlers emit.
func NewDocument(kind string, record any) (Document, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("could not marshal record: %w", err)
	}

	var inner map[string]any
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, fmt.Errorf("could not build document: %w", err)
	}

	return Document{kind: inner}, nil
}

// TaskDocument builds the unwrapped document form of a task. Todos are the
// only record kind that travels unwrapped, detection keys on
// metadata.objective.
func TaskDocument(t Task) (Document, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("could not marshal task: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("could not build task document: %w", err)
	}

	return doc, nil
}
