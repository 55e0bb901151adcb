// Package evidence verifies that claimed evidence artifacts exist on disk
// and textually substantiate the claim they back.
package evidence

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/slok/stagegate/internal/log"
	"github.com/slok/stagegate/internal/model"
)

// ProofReason classifies why an evidence claim failed verification.
type ProofReason string

const (
	// ReasonProven means the artifact substantiates the claim.
	ReasonProven ProofReason = "proven"
	// ReasonMissingFile means no artifact exists at the evidence location.
	ReasonMissingFile ProofReason = "missing_file"
	// ReasonCriteriaNotFound means the artifact doesn't contain the success criteria.
	ReasonCriteriaNotFound ProofReason = "criteria_not_found"
	// ReasonFailureMarkerPresent means the artifact contains a failure marker.
	ReasonFailureMarkerPresent ProofReason = "failure_marker_present"
)

// Proof is the result of verifying one evidence record.
type Proof struct {
	Proven bool
	Reason ProofReason
	Detail string
}

// DefaultFailureMarkers are the substrings whose presence in an artifact
// disproves a success claim.
var DefaultFailureMarkers = []string{"error", "exception", "traceback"}

// VerifierConfig is the configuration for the evidence verifier.
type VerifierConfig struct {
	// FS is the filesystem evidence locations resolve against.
	FS fs.FS
	// FailureMarkers overrides the default failure marker set.
	FailureMarkers []string
	Logger         log.Logger
}

func (c *VerifierConfig) defaults() error {
	if c.FS == nil {
		return fmt.Errorf("filesystem is required")
	}
	if c.FailureMarkers == nil {
		c.FailureMarkers = DefaultFailureMarkers
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "evidence.Verifier"})
	return nil
}

// Verifier checks evidence artifacts against their claims.
type Verifier struct {
	fs             fs.FS
	failureMarkers []string
	logger         log.Logger
}

// NewVerifier creates a new evidence verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Verifier{
		fs:             cfg.FS,
		failureMarkers: cfg.FailureMarkers,
		logger:         cfg.Logger,
	}, nil
}

// Verify confirms the artifact at the evidence location exists, contains the
// success criteria (case-insensitive) and contains no failure marker. The
// criteria comes from the owning task; when no owner is known callers pass
// the evidence claim itself.
func (v *Verifier) Verify(ctx context.Context, ev model.Evidence, criteria string) Proof {
	if err := ctx.Err(); err != nil {
		return Proof{Proven: false, Reason: ReasonMissingFile, Detail: err.Error()}
	}

	path := normalizePath(ev.Location)
	raw, err := fs.ReadFile(v.fs, path)
	if err != nil {
		v.logger.Debugf("Evidence artifact missing: %s", ev.Location)
		return Proof{
			Proven: false,
			Reason: ReasonMissingFile,
			Detail: fmt.Sprintf("no artifact at %s", ev.Location),
		}
	}

	content := strings.ToLower(string(raw))

	for _, marker := range v.failureMarkers {
		if strings.Contains(content, strings.ToLower(marker)) {
			return Proof{
				Proven: false,
				Reason: ReasonFailureMarkerPresent,
				Detail: fmt.Sprintf("artifact %s contains failure marker %q", ev.Location, marker),
			}
		}
	}

	if criteria == "" || !strings.Contains(content, strings.ToLower(criteria)) {
		return Proof{
			Proven: false,
			Reason: ReasonCriteriaNotFound,
			Detail: fmt.Sprintf("artifact %s doesn't contain success criteria %q", ev.Location, criteria),
		}
	}

	v.logger.Debugf("Evidence proven: %s", ev.ID)
	return Proof{Proven: true, Reason: ReasonProven}
}

// normalizePath maps an evidence location onto an fs.FS path (fs paths are
// always relative and slash separated).
func normalizePath(location string) string {
	p := filepath.ToSlash(filepath.Clean(location))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "."
	}
	return p
}
