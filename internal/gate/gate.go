// Package gate implements the stage-exit quality gate: schema validation,
// evidence verification and the PROCEED/REVISE/ESCALATE/STOP decision.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/stagegate/internal/evidence"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/review"
	"github.com/slok/stagegate/internal/schema"
	"github.com/slok/stagegate/internal/storage"
)

const (
	// DefaultMaxRetry is how many times a stage may REVISE before the gate
	// escalates instead.
	DefaultMaxRetry = 3
	// DefaultErrorCeiling is the gate error count above which a run stops
	// outright, no matter the retry budget.
	DefaultErrorCeiling = 10
)

// requiredSchemas maps each gated stage to the record schemas its outputs
// must satisfy before the stage may exit.
var requiredSchemas = map[model.Stage][]string{
	model.StagePlan:       {schema.Todo, schema.Evidence},
	model.StageReview:     {schema.ReviewGate, schema.Evidence},
	model.StageDisrupt:    {schema.Conflict, schema.Evidence},
	model.StageImplement:  {schema.Todo, schema.Evidence},
	model.StageTest:       {schema.Evidence, schema.Metrics},
	model.StageReviewPost: {schema.ReviewGate, schema.Evidence},
	model.StageValidate:   {schema.ReviewGate, schema.Evidence},
	model.StageLearn:      {schema.Skill, schema.Metrics},
}

// blockingReviewStages are the stages whose gate requires an external
// reviewer verdict before it can pass.
var blockingReviewStages = map[model.Stage]bool{
	model.StageDisrupt:  true,
	model.StageValidate: true,
}

// RequiredSchemas returns the record schemas a stage's outputs must satisfy.
func RequiredSchemas(stage model.Stage) []string {
	return requiredSchemas[stage]
}

// ServiceConfig is the configuration for the gate engine service.
type ServiceConfig struct {
	Verifier *evidence.Verifier
	// Reviewer is the external approval authority, required only when
	// blocking-review stages are gated.
	Reviewer review.Reviewer
	GateLog  storage.GateLogRepository
	// MaxRetry is the REVISE budget per stage instance.
	MaxRetry int
	// ErrorCeiling stops the run when a single evaluation crosses it.
	ErrorCeiling int
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Verifier == nil {
		return fmt.Errorf("evidence verifier is required")
	}
	if c.GateLog == nil {
		return fmt.Errorf("gate log repository is required")
	}
	if c.MaxRetry == 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.ErrorCeiling == 0 {
		c.ErrorCeiling = DefaultErrorCeiling
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gate.Service"})

	return nil
}

// Service is the quality gate engine. It evaluates a stage's output records
// and decides whether the workflow proceeds, revises, escalates or stops.
type Service struct {
	verifier     *evidence.Verifier
	reviewer     review.Reviewer
	gateLog      storage.GateLogRepository
	maxRetry     int
	errorCeiling int
	logger       log.Logger
}

// NewService creates a new gate engine service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		verifier:     cfg.Verifier,
		reviewer:     cfg.Reviewer,
		gateLog:      cfg.GateLog,
		maxRetry:     cfg.MaxRetry,
		errorCeiling: cfg.ErrorCeiling,
		logger:       cfg.Logger,
	}, nil
}

// Check evaluates the output documents of a stage and returns the gate
// decision. The decision is appended to the gate log before it is returned,
// an unlogged decision never reaches the caller. Check is read-only over its
// inputs, evaluating the same documents twice yields the same decision.
func (s *Service) Check(ctx context.Context, stage model.Stage, docs []model.Document, retry int) (*model.GateResult, error) {
	required, ok := requiredSchemas[stage]
	if !ok {
		return nil, fmt.Errorf("stage %s has no quality gate: %w", stage, model.ErrNotValid)
	}

	logger := s.logger.WithValues(log.Kv{"stage": stage, "retry": retry})

	var gateErrs []model.GateError

	// Classify every document by schema and validate it.
	bySchema := map[string][]model.Document{}
	for i, doc := range docs {
		name, ok := schema.Detect(doc)
		if !ok {
			gateErrs = append(gateErrs, model.GateError{
				Kind:    model.GateErrorSchemaViolation,
				Message: fmt.Sprintf("document %d matches no known record schema", i),
			})
			continue
		}
		bySchema[name] = append(bySchema[name], doc)

		fieldErrs, err := schema.Validate(doc, name)
		if err != nil {
			return nil, fmt.Errorf("could not validate document: %w", err)
		}
		for _, fe := range fieldErrs {
			gateErrs = append(gateErrs, model.GateError{
				Kind:    model.GateErrorSchemaViolation,
				Schema:  name,
				Message: fe,
			})
		}
	}

	// Every required schema must be represented.
	for _, name := range required {
		if len(bySchema[name]) == 0 {
			gateErrs = append(gateErrs, model.GateError{
				Kind:    model.GateErrorMissingSchema,
				Schema:  name,
				Message: fmt.Sprintf("stage %s requires at least one %s record", stage, name),
			})
		}
	}

	// Evidence claims must be backed by real artifacts.
	evidenceErrs, err := s.verifyEvidence(ctx, bySchema, retry)
	if err != nil {
		return nil, err
	}
	gateErrs = append(gateErrs, evidenceErrs...)

	// Blocking stages cannot pass without the external reviewer's approval.
	if blockingReviewStages[stage] {
		reviewErrs, err := s.externalReview(ctx, stage, docs)
		if err != nil {
			return nil, err
		}
		gateErrs = append(gateErrs, reviewErrs...)
	}

	result := &model.GateResult{
		Stage:     stage,
		Valid:     len(gateErrs) == 0,
		Checked:   required,
		Errors:    gateErrs,
		Action:    s.decide(gateErrs, retry),
		Retry:     retry,
		Timestamp: time.Now().UTC(),
	}

	err = s.gateLog.AppendGateResult(ctx, *result)
	if err != nil {
		return nil, fmt.Errorf("could not append gate result to log: %w", err)
	}

	if result.Valid {
		logger.Infof("Gate passed, action %s", result.Action)
	} else {
		logger.Warningf("Gate failed with %d errors, action %s", len(result.Errors), result.Action)
	}

	return result, nil
}

// verifyEvidence checks every evidence record's artifact against the success
// criteria of its owning task. The owner is matched by evidence location,
// records without an owner are verified against their own claim.
func (s *Service) verifyEvidence(ctx context.Context, bySchema map[string][]model.Document, retry int) ([]model.GateError, error) {
	criteriaByLocation := map[string]string{}
	for _, doc := range bySchema[schema.Todo] {
		t, err := model.DecodeDocument[model.Task](doc, schema.Todo)
		if err != nil {
			continue
		}
		if t.Metadata.EvidenceLocation != "" {
			criteriaByLocation[t.Metadata.EvidenceLocation] = t.Metadata.SuccessCriteria
		}
	}

	var gateErrs []model.GateError
	for _, doc := range bySchema[schema.Evidence] {
		ev, err := model.DecodeDocument[model.Evidence](doc, schema.Evidence)
		if err != nil {
			return nil, fmt.Errorf("could not decode evidence record: %w", err)
		}

		criteria, ok := criteriaByLocation[ev.Location]
		if !ok || criteria == "" {
			criteria = ev.Claim
		}

		proof := s.verifier.Verify(ctx, *ev, criteria)
		if proof.Proven {
			continue
		}

		kind := model.GateErrorUnprovenClaim
		switch {
		case ev.Verified && retry >= 1:
			// A record still marked verified after a failed cycle is a
			// fabricated claim, not an honest miss.
			kind = model.GateErrorFabrication
		case proof.Reason == evidence.ReasonMissingFile:
			kind = model.GateErrorMissingEvidence
		}

		gateErrs = append(gateErrs, model.GateError{
			Kind:    kind,
			Schema:  schema.Evidence,
			Ref:     ev.ID,
			Message: fmt.Sprintf("evidence %s: %s", ev.ID, proof.Detail),
		})
	}

	return gateErrs, nil
}

// externalReview sends the stage's documents to the external reviewer and
// converts a rejection into gate errors. No reviewer configured means the
// blocking gate cannot pass.
func (s *Service) externalReview(ctx context.Context, stage model.Stage, docs []model.Document) ([]model.GateError, error) {
	if s.reviewer == nil {
		return []model.GateError{{
			Kind:    model.GateErrorExternalRejection,
			Message: fmt.Sprintf("stage %s requires an external review and no reviewer is configured", stage),
		}}, nil
	}

	verdict, err := s.reviewer.Review(ctx, review.EvidencePackage{Stage: stage, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("external review failed: %w", err)
	}

	if verdict.Approved {
		return nil, nil
	}

	var gateErrs []model.GateError
	for _, reason := range verdict.Reasons {
		gateErrs = append(gateErrs, model.GateError{
			Kind:    model.GateErrorExternalRejection,
			Message: reason,
		})
	}
	if len(gateErrs) == 0 {
		gateErrs = append(gateErrs, model.GateError{
			Kind:    model.GateErrorExternalRejection,
			Message: "external reviewer rejected the evidence package",
		})
	}

	return gateErrs, nil
}

// decide maps the collected gate errors and the current retry count to a
// gate action. Precedence: error ceiling and fabrication stop the run,
// exhausted retries escalate, anything else revises.
func (s *Service) decide(gateErrs []model.GateError, retry int) model.GateAction {
	if len(gateErrs) == 0 {
		return model.GateActionProceed
	}

	if len(gateErrs) > s.errorCeiling {
		return model.GateActionStop
	}
	for _, ge := range gateErrs {
		if ge.Kind == model.GateErrorFabrication {
			return model.GateActionStop
		}
	}

	if retry >= s.maxRetry {
		return model.GateActionEscalate
	}

	return model.GateActionRevise
}
