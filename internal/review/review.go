// Package review defines the external reviewer collaborator consumed at the
// blocking DISRUPT and VALIDATE gates.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
)

// EvidencePackage is the compiled material sent to the external reviewer.
type EvidencePackage struct {
	Stage     model.Stage
	Documents []model.Document
}

// Reviewer is the independent approval authority whose rejection is binding.
type Reviewer interface {
	Review(ctx context.Context, pkg EvidencePackage) (*model.Review, error)
}

// TimeoutReviewerConfig is the configuration for the timeout reviewer
// decorator.
type TimeoutReviewerConfig struct {
	Reviewer Reviewer
	Timeout  time.Duration
	Logger   log.Logger
}

func (c *TimeoutReviewerConfig) defaults() error {
	if c.Reviewer == nil {
		return fmt.Errorf("reviewer is required")
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "review.Timeout"})
	return nil
}

// TimeoutReviewer wraps a reviewer with a finite timeout. A timed out review
// is treated as a rejection, never as an approval.
type TimeoutReviewer struct {
	reviewer Reviewer
	timeout  time.Duration
	logger   log.Logger
}

// NewTimeoutReviewer creates a new timeout reviewer decorator.
func NewTimeoutReviewer(cfg TimeoutReviewerConfig) (*TimeoutReviewer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TimeoutReviewer{
		reviewer: cfg.Reviewer,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

// Review calls the wrapped reviewer under a deadline.
func (t *TimeoutReviewer) Review(ctx context.Context, pkg EvidencePackage) (*model.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	rv, err := t.reviewer.Review(ctx, pkg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.logger.Warningf("External review timed out after %s, treating as rejection", t.timeout)
			return &model.Review{
				Approved: false,
				Reasons:  []string{fmt.Sprintf("review timed out after %s", t.timeout)},
			}, nil
		}
		return nil, fmt.Errorf("external review failed: %w", err)
	}

	return rv, nil
}
