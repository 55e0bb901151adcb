// Package io loads workflow record documents from JSON and YAML files.
package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/slok/stagegate/internal/model"
)

// DocumentLoader loads record documents from JSON or YAML files. A file may
// hold a single document or a list of documents.
type DocumentLoader struct {
	fs fs.FS
}

// NewDocumentLoader creates a new document loader on top of a filesystem.
func NewDocumentLoader(filesystem fs.FS) *DocumentLoader {
	return &DocumentLoader{fs: filesystem}
}

// Load reads one file and returns the documents it holds. The format is
// picked from the file extension, `.json` is JSON and anything else is
// parsed as YAML (YAML is a JSON superset, so this is safe for both).
func (l *DocumentLoader) Load(ctx context.Context, path string) ([]model.Document, error) {
	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading document file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if filepath.Ext(path) == ".json" {
		return parseJSON(data)
	}

	return parseYAML(data)
}

func parseJSON(data []byte) ([]model.Document, error) {
	// Try a list first, fall back to a single document.
	var docs []model.Document
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	return []model.Document{doc}, nil
}

func parseYAML(data []byte) ([]model.Document, error) {
	var docs []model.Document
	if err := yaml.Unmarshal(data, &docs); err == nil {
		for i, doc := range docs {
			docs[i] = normalizeDoc(doc)
		}
		return docs, nil
	}

	var doc model.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	return []model.Document{normalizeDoc(doc)}, nil
}

// normalizeDoc converts YAML map[any]any values into map[string]any so
// documents behave the same regardless of source format.
func normalizeDoc(doc model.Document) model.Document {
	out := model.Document{}
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := map[string]any{}
		for k, val := range t {
			m[fmt.Sprintf("%v", k)] = normalizeValue(val)
		}
		return m
	case map[string]any:
		m := map[string]any{}
		for k, val := range t {
			m[k] = normalizeValue(val)
		}
		return m
	case []any:
		s := make([]any, 0, len(t))
		for _, val := range t {
			s = append(s, normalizeValue(val))
		}
		return s
	default:
		return v
	}
}
