package fake

import (
	"context"
	"fmt"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
	"github.com/slok/stagegate/internal/review"
)

// ReviewerConfig is the configuration for the fake reviewer.
type ReviewerConfig struct {
	// Verdicts maps a stage to a scripted verdict. Stages without an entry
	// are approved.
	Verdicts map[model.Stage]model.Review
	Logger   log.Logger
}

func (c *ReviewerConfig) defaults() error {
	if c.Verdicts == nil {
		c.Verdicts = map[model.Stage]model.Review{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "review.Fake"})
	return nil
}

// Reviewer is a fake implementation of review.Reviewer with scripted
// verdicts. It approves everything by default.
type Reviewer struct {
	verdicts map[model.Stage]model.Review
	logger   log.Logger
}

// NewReviewer creates a new fake reviewer.
func NewReviewer(cfg ReviewerConfig) (*Reviewer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Reviewer{
		verdicts: cfg.Verdicts,
		logger:   cfg.Logger,
	}, nil
}

// Review returns the scripted verdict for the package stage, approving when
// none is scripted.
func (r *Reviewer) Review(ctx context.Context, pkg review.EvidencePackage) (*model.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if verdict, ok := r.verdicts[pkg.Stage]; ok {
		r.logger.Debugf("Scripted verdict for %s: approved=%t", pkg.Stage, verdict.Approved)
		return &verdict, nil
	}

	r.logger.Debugf("No scripted verdict for %s, approving %d documents", pkg.Stage, len(pkg.Documents))
	return &model.Review{Approved: true}, nil
}

