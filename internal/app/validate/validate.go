// Package validate implements the standalone record validation application
// service backing the `validate` command.
package validate

import (
	"context"
	"fmt"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/schema"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

// ServiceConfig is the configuration for the validation service.
type ServiceConfig struct {
	Loader *storageio.DocumentLoader
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Loader == nil {
		return fmt.Errorf("document loader is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Validate"})

	return nil
}

// Service validates record documents against the record schemas.
type Service struct {
	loader *storageio.DocumentLoader
	logger log.Logger
}

// NewService creates a new validation service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		loader: cfg.Loader,
		logger: cfg.Logger,
	}, nil
}

// ValidateRequest is the request to validate a documents file.
type ValidateRequest struct {
	// Path is the JSON or YAML file holding one or more record documents.
	Path string
	// Schema forces every document against one schema instead of detecting
	// each document's schema. Optional.
	Schema string
}

// DocumentResult is the validation outcome of one document.
type DocumentResult struct {
	Index  int
	Schema string
	Errors []string
}

// ValidateResponse is the validation outcome of a documents file.
type ValidateResponse struct {
	Results []DocumentResult
	Valid   bool
}

// Validate loads the documents of a file and validates each against its
// schema. A document matching no schema is invalid, never a silent pass.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResponse, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("path is required: %w", model.ErrNotValid)
	}

	docs, err := s.loader.Load(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("could not load documents: %w", err)
	}

	resp := &ValidateResponse{Valid: true}
	for i, doc := range docs {
		result := DocumentResult{Index: i}

		name := req.Schema
		if name == "" {
			detected, ok := schema.Detect(doc)
			if !ok {
				result.Errors = []string{"document matches no known record schema"}
				resp.Results = append(resp.Results, result)
				resp.Valid = false
				continue
			}
			name = detected
		}
		result.Schema = name

		fieldErrs, err := schema.Validate(doc, name)
		if err != nil {
			return nil, fmt.Errorf("could not validate document %d: %w", i, err)
		}
		result.Errors = fieldErrs
		if len(fieldErrs) > 0 {
			resp.Valid = false
		}

		resp.Results = append(resp.Results, result)
	}

	s.logger.Debugf("Validated %d documents, valid=%t", len(docs), resp.Valid)

	return resp, nil
}
