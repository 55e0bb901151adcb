package printer

import (
	"encoding/json"
	"io"

	"github.com/slok/stagegate/internal/model"
)

// JSONPrinter prints workflow run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// runSummaryOutput represents a finished run output.
type runSummaryOutput struct {
	FinalStage model.Stage        `json:"final_stage"`
	Gates      []model.GateResult `json:"gates"`
}

// validationOutput represents a document validation output.
type validationOutput struct {
	Index  int      `json:"index"`
	Schema string   `json:"schema,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// checkOutput represents a precondition check output.
type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintGateResult prints one gate evaluation in JSON format.
func (j *JSONPrinter) PrintGateResult(result model.GateResult) error {
	return j.encode(result)
}

// PrintRunSummary prints the gate decisions of a finished run in JSON format.
func (j *JSONPrinter) PrintRunSummary(finalStage model.Stage, results []model.GateResult) error {
	return j.encode(runSummaryOutput{FinalStage: finalStage, Gates: results})
}

// PrintValidation prints per-document validation results in JSON format.
func (j *JSONPrinter) PrintValidation(results []ValidationResult) error {
	out := make([]validationOutput, 0, len(results))
	for _, r := range results {
		out = append(out, validationOutput{
			Index:  r.Index,
			Schema: r.Schema,
			Valid:  len(r.Errors) == 0,
			Errors: r.Errors,
		})
	}
	return j.encode(out)
}

// PrintCheckResults prints precondition check results in JSON format.
func (j *JSONPrinter) PrintCheckResults(results []model.CheckResult) error {
	out := make([]checkOutput, 0, len(results))
	for _, r := range results {
		out = append(out, checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message})
	}
	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
