// Package gatecheck implements the one-shot gate evaluation application
// service backing the `gate` command.
package gatecheck

import (
	"context"
	"fmt"

	"github.com/slok/stagegate/internal/gate"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	storageio "github.com/slok/stagegate/internal/storage/io"
)

// ServiceConfig is the configuration for the gate check service.
type ServiceConfig struct {
	Gate   *gate.Service
	Loader *storageio.DocumentLoader
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Gate == nil {
		return fmt.Errorf("gate service is required")
	}
	if c.Loader == nil {
		return fmt.Errorf("document loader is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.GateCheck"})

	return nil
}

// Service evaluates a stage quality gate over a documents file.
type Service struct {
	gate   *gate.Service
	loader *storageio.DocumentLoader
	logger log.Logger
}

// NewService creates a new gate check service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		gate:   cfg.Gate,
		loader: cfg.Loader,
		logger: cfg.Logger,
	}, nil
}

// CheckRequest is the request to evaluate one stage gate.
type CheckRequest struct {
	Stage model.Stage
	// Path is the JSON or YAML file holding the stage's output documents.
	Path string
	// Retry is the current revision count of the stage instance.
	Retry int
}

// CheckResponse is the gate evaluation outcome.
type CheckResponse struct {
	Result      *model.GateResult
	Remediation string
}

// Check loads the stage output documents and runs them through the quality
// gate.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	if req.Stage == "" {
		return nil, fmt.Errorf("stage is required: %w", model.ErrNotValid)
	}
	if req.Path == "" {
		return nil, fmt.Errorf("path is required: %w", model.ErrNotValid)
	}

	docs, err := s.loader.Load(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("could not load documents: %w", err)
	}

	result, err := s.gate.Check(ctx, req.Stage, docs, req.Retry)
	if err != nil {
		return nil, fmt.Errorf("gate check failed: %w", err)
	}

	s.logger.Infof("Gate %s evaluated %d documents, action %s", req.Stage, len(docs), result.Action)

	return &CheckResponse{
		Result:      result,
		Remediation: gate.Remediation(result),
	}, nil
}
