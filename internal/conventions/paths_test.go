package conventions_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stagegate/internal/conventions"
)

func TestPaths(t *testing.T) {
	dataDir := filepath.Join("/var", "lib", "stagegate")

	assert.Equal(t, "/var/lib/stagegate/runs/w1", conventions.RunDir(dataDir, "w1"))
	assert.Equal(t, "/var/lib/stagegate/runs/w1/records.db", conventions.DBPath(dataDir, "w1"))
	assert.Equal(t, "/var/lib/stagegate/runs/w1/evidence", conventions.EvidencePath(dataDir, "w1"))
	assert.Equal(t, "/var/lib/stagegate/runs/w1/docs/remediation.md", conventions.RemediationPath(dataDir, "w1"))
	assert.Equal(t, "/var/lib/stagegate/runs/w1/docs/recovery.json", conventions.RecoveryPath(dataDir, "w1"))
	assert.Equal(t, "/var/lib/stagegate/runs/w1/docs/handoff.json", conventions.HandoffPath(dataDir, "w1"))
}

func TestRunDirsCoverEveryLayoutDir(t *testing.T) {
	assert.Equal(t, []string{
		conventions.TodoDir, conventions.EvidenceDir, conventions.LogsDir,
		conventions.DocsDir, conventions.TestDir, conventions.PlansDir,
		conventions.ParallelDir,
	}, conventions.RunDirs)
}
