package model

import (
	"fmt"
	"regexp"
	"time"
)

// EvidenceType represents the kind of artifact backing an evidence record.
type EvidenceType string

const (
	EvidenceTypeLog         EvidenceType = "log"
	EvidenceTypeOutput      EvidenceType = "output"
	EvidenceTypeTestResult  EvidenceType = "test_result"
	EvidenceTypeDiff        EvidenceType = "diff"
	EvidenceTypeScreenshot  EvidenceType = "screenshot"
	EvidenceTypeAPIResponse EvidenceType = "api_response"
)

// VerifiedBy represents who verified an evidence record.
type VerifiedBy string

const (
	VerifiedByAgent            VerifiedBy = "agent"
	VerifiedByExternalReviewer VerifiedBy = "external-reviewer"
	VerifiedByHuman            VerifiedBy = "human"
)

// EvidenceIDPattern is the pattern evidence IDs must match:
// E-{STAGE}-{SESSION}-{SEQ}, e.g. E-IMPLEMENT-20260104.0700-001.
var EvidenceIDPattern = regexp.MustCompile(`^E-[A-Z]+-[\w.]+-\d{3}$`)

// Evidence represents a recorded, verifiable proof artifact substantiating
// a completion claim.
type Evidence struct {
	ID         string       `json:"id" yaml:"id"`
	Type       EvidenceType `json:"type" yaml:"type"`
	Claim      string       `json:"claim" yaml:"claim"`
	Location   string       `json:"location" yaml:"location"`
	Timestamp  time.Time    `json:"timestamp" yaml:"timestamp"`
	Verified   bool         `json:"verified" yaml:"verified"`
	VerifiedBy VerifiedBy   `json:"verified_by" yaml:"verified_by"`
}

// NewEvidenceID builds an evidence ID for a stage, session and sequence
// number following the fixed ID pattern.
func NewEvidenceID(stage Stage, session string, seq int) string {
	return fmt.Sprintf("E-%s-%s-%03d", stage, session, seq)
}

// Validate validates the evidence record.
func (e *Evidence) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if !EvidenceIDPattern.MatchString(e.ID) {
		return fmt.Errorf("id %q doesn't match the evidence ID pattern: %w", e.ID, ErrNotValid)
	}

	switch e.Type {
	case EvidenceTypeLog, EvidenceTypeOutput, EvidenceTypeTestResult,
		EvidenceTypeDiff, EvidenceTypeScreenshot, EvidenceTypeAPIResponse:
	default:
		return fmt.Errorf("type %q is unknown: %w", e.Type, ErrNotValid)
	}

	if e.Claim == "" {
		return fmt.Errorf("claim is required: %w", ErrNotValid)
	}
	if e.Location == "" {
		return fmt.Errorf("location is required: %w", ErrNotValid)
	}

	switch e.VerifiedBy {
	case VerifiedByAgent, VerifiedByExternalReviewer, VerifiedByHuman:
	default:
		return fmt.Errorf("verified_by %q is unknown: %w", e.VerifiedBy, ErrNotValid)
	}

	return nil
}
