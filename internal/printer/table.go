package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/stagegate/internal/model"
)

// TablePrinter prints workflow run information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintGateResult prints one gate evaluation.
func (t *TablePrinter) PrintGateResult(result model.GateResult) error {
	fmt.Fprintf(t.writer, "Stage:    %s\n", result.Stage)
	fmt.Fprintf(t.writer, "Action:   %s\n", result.Action)
	fmt.Fprintf(t.writer, "Valid:    %t\n", result.Valid)
	fmt.Fprintf(t.writer, "Retry:    %d\n", result.Retry)
	fmt.Fprintf(t.writer, "Checked:  %v\n", result.Checked)

	if len(result.Errors) == 0 {
		return nil
	}

	fmt.Fprintf(t.writer, "\nErrors:\n")
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "KIND\tSCHEMA\tMESSAGE")
	for _, e := range result.Errors {
		schema := e.Schema
		if schema == "" {
			schema = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, schema, e.Message)
	}

	return nil
}

// PrintRunSummary prints the gate decisions of a finished run.
func (t *TablePrinter) PrintRunSummary(finalStage model.Stage, results []model.GateResult) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	// Print header.
	fmt.Fprintln(tw, "STAGE\tRETRY\tERRORS\tACTION")

	// Print rows.
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Stage, r.Retry, len(r.Errors), r.Action)
	}
	tw.Flush()

	fmt.Fprintf(t.writer, "\nFinal stage: %s\n", finalStage)

	return nil
}

// PrintValidation prints per-document validation results.
func (t *TablePrinter) PrintValidation(results []ValidationResult) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "DOC\tSCHEMA\tRESULT")

	// Print rows.
	for _, r := range results {
		schema := r.Schema
		if schema == "" {
			schema = "-"
		}
		if len(r.Errors) == 0 {
			fmt.Fprintf(tw, "%d\t%s\tok\n", r.Index, schema)
			continue
		}
		for _, e := range r.Errors {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Index, schema, e)
		}
	}

	return nil
}

// PrintCheckResults prints precondition check results.
func (t *TablePrinter) PrintCheckResults(results []model.CheckResult) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	// Print header.
	fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE")

	// Print rows.
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Status, r.Message)
	}
	tw.Flush()

	ok, warnings, errs := model.CountByStatus(results)
	fmt.Fprintf(t.writer, "\n%d ok, %d warnings, %d errors\n", ok, warnings, errs)

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
