package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stagegate/internal/model"
)

func goodEvidence() model.Evidence {
	return model.Evidence{
		ID:         "E-IMPLEMENT-20260104.0700-001",
		Type:       model.EvidenceTypeLog,
		Claim:      "parser tests pass",
		Location:   "/runs/w1/evidence/task-1.log",
		Timestamp:  time.Date(2026, 1, 4, 7, 0, 0, 0, time.UTC),
		Verified:   true,
		VerifiedBy: model.VerifiedByAgent,
	}
}

func TestEvidenceValidate(t *testing.T) {
	tests := map[string]struct {
		evidence func() model.Evidence
		expErr   bool
	}{
		"A valid evidence should not fail": {
			evidence: goodEvidence,
			expErr:   false,
		},

		"Missing ID should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.ID = ""
				return e
			},
			expErr: true,
		},

		"ID not matching the pattern should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.ID = "EV-1"
				return e
			},
			expErr: true,
		},

		"Unknown type should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.Type = "video"
				return e
			},
			expErr: true,
		},

		"Missing claim should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.Claim = ""
				return e
			},
			expErr: true,
		},

		"Missing location should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.Location = ""
				return e
			},
			expErr: true,
		},

		"Unknown verifier should fail": {
			evidence: func() model.Evidence {
				e := goodEvidence()
				e.VerifiedBy = "nobody"
				return e
			},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := tt.evidence()
			err := e.Validate()

			if tt.expErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEvidenceIDPattern(t *testing.T) {
	tests := map[string]struct {
		id  string
		exp bool
	}{
		"Canonical ID matches":            {id: "E-IMPLEMENT-20260104.0700-001", exp: true},
		"Generated ID matches":            {id: model.NewEvidenceID(model.StageTest, "20260104.0700", 12), exp: true},
		"Lowercase stage doesn't match":   {id: "E-implement-20260104.0700-001", exp: false},
		"Two digit sequence doesn't match": {id: "E-TEST-20260104.0700-01", exp: false},
		"Missing prefix doesn't match":    {id: "IMPLEMENT-20260104.0700-001", exp: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.exp, model.EvidenceIDPattern.MatchString(tt.id))
		})
	}
}

func TestRecordIDPatterns(t *testing.T) {
	ts := time.Date(2026, 1, 4, 7, 0, 0, 0, time.UTC)

	assert.Equal(t, "C-20260104T070000", model.NewConflictID(ts))
	assert.True(t, model.ConflictIDPattern.MatchString(model.NewConflictID(ts)))

	assert.Equal(t, "R-20260104T070000", model.NewRecoveryID(ts))
	assert.True(t, model.RecoveryIDPattern.MatchString(model.NewRecoveryID(ts)))
}
