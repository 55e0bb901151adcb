package model

import "errors"

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a record already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a record is not valid.
	ErrNotValid = errors.New("not valid")
)

// Gate check error taxonomy. Every gate error wraps one of these so the
// engine and its callers can classify failures without string matching.
var (
	// ErrSchemaViolation is returned when a record fails structural validation.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrMissingEvidence is returned when a claimed evidence artifact is absent.
	ErrMissingEvidence = errors.New("missing evidence")
	// ErrUnprovenClaim is returned when an artifact exists but doesn't substantiate the claim.
	ErrUnprovenClaim = errors.New("unproven claim")
	// ErrExternalRejection is returned when the blocking external reviewer declined.
	ErrExternalRejection = errors.New("external rejection")
	// ErrDependencyCycle is returned when a task dependency graph has a cycle.
	ErrDependencyCycle = errors.New("dependency cycle")
	// ErrFabrication is returned when a completion claim references no evidence at all.
	ErrFabrication = errors.New("fabrication")
)
