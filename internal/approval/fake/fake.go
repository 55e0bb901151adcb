package fake

import (
	"context"
	"fmt"

	"github.com/slok/stagegate/internal/approval"
	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
)

// ApproverConfig is the configuration for the fake plan approver.
type ApproverConfig struct {
	// Verdict is the scripted verdict, nil approves every plan.
	Verdict *model.Review
	Logger  log.Logger
}

func (c *ApproverConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "approval.Fake"})
	return nil
}

// Approver is a fake implementation of approval.Approver with a scripted
// verdict, so full pipeline runs can be exercised without a human.
type Approver struct {
	verdict *model.Review
	logger  log.Logger
}

// NewApprover creates a new fake plan approver.
func NewApprover(cfg ApproverConfig) (*Approver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Approver{
		verdict: cfg.Verdict,
		logger:  cfg.Logger,
	}, nil
}

// Approve returns the scripted verdict, approving when none is scripted.
func (a *Approver) Approve(ctx context.Context, req approval.Request) (*model.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.verdict != nil {
		a.logger.Debugf("Scripted plan verdict for %s: approved=%t", req.WorkflowID, a.verdict.Approved)
		verdict := *a.verdict
		return &verdict, nil
	}

	a.logger.Debugf("No scripted plan verdict for %s, approving", req.WorkflowID)
	return &model.Review{Approved: true}, nil
}
