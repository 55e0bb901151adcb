package io_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/model"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

func TestDocumentLoaderLoad(t *testing.T) {
	tests := map[string]struct {
		fs      fstest.MapFS
		path    string
		expDocs []model.Document
		expErr  bool
	}{
		"A single JSON document should load as a one element list": {
			fs: fstest.MapFS{
				"docs/evidence.json": &fstest.MapFile{Data: []byte(`{"evidence": {"id": "E-TEST-20260104.0700-001"}}`)},
			},
			path: "docs/evidence.json",
			expDocs: []model.Document{
				{"evidence": map[string]any{"id": "E-TEST-20260104.0700-001"}},
			},
		},

		"A JSON list should load every document": {
			fs: fstest.MapFS{
				"docs/batch.json": &fstest.MapFile{Data: []byte(`[{"evidence": {"id": "E-TEST-20260104.0700-001"}}, {"conflict": {"id": "C-20260104T070000"}}]`)},
			},
			path: "docs/batch.json",
			expDocs: []model.Document{
				{"evidence": map[string]any{"id": "E-TEST-20260104.0700-001"}},
				{"conflict": map[string]any{"id": "C-20260104T070000"}},
			},
		},

		"A single YAML document should load with string keyed maps": {
			fs: fstest.MapFS{
				"docs/evidence.yaml": &fstest.MapFile{Data: []byte("evidence:\n  id: E-TEST-20260104.0700-001\n  verified: true\n")},
			},
			path: "docs/evidence.yaml",
			expDocs: []model.Document{
				{"evidence": map[string]any{"id": "E-TEST-20260104.0700-001", "verified": true}},
			},
		},

		"A YAML list should load every document": {
			fs: fstest.MapFS{
				"docs/batch.yaml": &fstest.MapFile{Data: []byte("- evidence:\n    id: E-TEST-20260104.0700-001\n- evidence:\n    id: E-TEST-20260104.0700-002\n")},
			},
			path: "docs/batch.yaml",
			expDocs: []model.Document{
				{"evidence": map[string]any{"id": "E-TEST-20260104.0700-001"}},
				{"evidence": map[string]any{"id": "E-TEST-20260104.0700-002"}},
			},
		},

		"A missing file should fail": {
			fs:     fstest.MapFS{},
			path:   "docs/missing.json",
			expErr: true,
		},

		"Malformed JSON should fail": {
			fs: fstest.MapFS{
				"docs/broken.json": &fstest.MapFile{Data: []byte(`{"evidence": `)},
			},
			path:   "docs/broken.json",
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			loader := storageio.NewDocumentLoader(tt.fs)

			docs, err := loader.Load(context.Background(), tt.path)

			if tt.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expDocs, docs)
		})
	}
}
