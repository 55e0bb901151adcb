package printer

import "github.com/slok/stagegate/internal/model"

// ValidationResult is the printable validation outcome of one document.
type ValidationResult struct {
	Index  int
	Schema string
	Errors []string
}

// Printer knows how to print workflow run information in different formats.
type Printer interface {
	PrintGateResult(result model.GateResult) error
	PrintRunSummary(finalStage model.Stage, results []model.GateResult) error
	PrintValidation(results []ValidationResult) error
	PrintCheckResults(results []model.CheckResult) error
	PrintMessage(msg string) error
}
