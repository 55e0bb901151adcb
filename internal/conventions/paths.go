// Package conventions centralizes the on-disk layout of a workflow run so
// every component resolves the same paths.
package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default stagegate data directory name (relative to home).
	DefaultDataDir = ".stagegate"
	// RunsDir is the subdirectory holding per-workflow run data.
	RunsDir = "runs"

	// Run-level subdirectories.

	// TodoDir holds task record files.
	TodoDir = "todo"
	// EvidenceDir holds evidence artifacts written by stage handlers.
	EvidenceDir = "evidence"
	// LogsDir holds execution logs.
	LogsDir = "logs"
	// DocsDir holds handoff and recovery documents.
	DocsDir = "docs"
	// TestDir holds test run outputs.
	TestDir = "test"
	// PlansDir holds plan stage outputs.
	PlansDir = "plans"
	// ParallelDir holds per-worker scratch space for parallel dispatch.
	ParallelDir = "parallel"

	// Run-level files.

	// DBFile is the SQLite database filename for run records.
	DBFile = "records.db"
	// GateLogFile is the JSON lines gate decision log filename.
	GateLogFile = "gate.log"
	// RemediationFile is the remediation report filename written on REVISE.
	RemediationFile = "remediation.md"
	// RecoveryFile is the recovery record filename written on STOP.
	RecoveryFile = "recovery.json"
	// HandoffFile is the handoff document filename written on ESCALATE.
	HandoffFile = "handoff.json"
)

// RunDirs lists the subdirectories every run root must contain.
var RunDirs = []string{TodoDir, EvidenceDir, LogsDir, DocsDir, TestDir, PlansDir, ParallelDir}

// RunDir returns the root directory for a specific workflow run.
func RunDir(dataDir, workflowID string) string {
	return filepath.Join(dataDir, RunsDir, workflowID)
}

// RunFilePath returns the full path to a file inside a workflow run directory.
func RunFilePath(dataDir, workflowID, filename string) string {
	return filepath.Join(RunDir(dataDir, workflowID), filename)
}

// DBPath returns the path to a run's record database.
func DBPath(dataDir, workflowID string) string {
	return RunFilePath(dataDir, workflowID, DBFile)
}

// EvidencePath returns the evidence directory for a run.
func EvidencePath(dataDir, workflowID string) string {
	return RunFilePath(dataDir, workflowID, EvidenceDir)
}

// RemediationPath returns the path to a run's remediation report.
func RemediationPath(dataDir, workflowID string) string {
	return filepath.Join(RunDir(dataDir, workflowID), DocsDir, RemediationFile)
}

// RecoveryPath returns the path to a run's recovery record.
func RecoveryPath(dataDir, workflowID string) string {
	return filepath.Join(RunDir(dataDir, workflowID), DocsDir, RecoveryFile)
}

// HandoffPath returns the path to a run's handoff document.
func HandoffPath(dataDir, workflowID string) string {
	return filepath.Join(RunDir(dataDir, workflowID), DocsDir, HandoffFile)
}
