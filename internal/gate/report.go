package gate

import (
	"fmt"
	"strings"

	"github.com/slok/stagegate/internal/model"
)

// remediationHints maps each gate error kind to the concrete fix the next
// revision cycle should attempt.
var remediationHints = map[string]string{
	model.GateErrorSchemaViolation:   "Fix the record fields listed above so the record validates against its schema.",
	model.GateErrorMissingSchema:     "Produce the missing record kind before re-running the stage.",
	model.GateErrorMissingEvidence:   "Write the evidence artifact to the claimed location, claims without artifacts don't pass.",
	model.GateErrorUnprovenClaim:     "Make the artifact substantiate the claim: it must contain the success criteria and no failure markers.",
	model.GateErrorExternalRejection: "Address the reviewer's objections and resubmit the evidence package.",
	model.GateErrorFabrication:       "A verified flag was set on disproven evidence. Manual intervention is required before the run can resume.",
}

// Remediation renders a human readable remediation report for a failed gate
// evaluation. Returns an empty string for passing results.
func Remediation(result *model.GateResult) string {
	if result == nil || result.Valid {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Gate remediation: %s (retry %d)\n\n", result.Stage, result.Retry)
	fmt.Fprintf(&b, "Decision: %s at %s\n\n", result.Action, result.Timestamp.Format("2006-01-02 15:04:05 MST"))

	byKind := map[string][]model.GateError{}
	order := []string{}
	for _, ge := range result.Errors {
		if _, ok := byKind[ge.Kind]; !ok {
			order = append(order, ge.Kind)
		}
		byKind[ge.Kind] = append(byKind[ge.Kind], ge)
	}

	for _, kind := range order {
		fmt.Fprintf(&b, "## %s\n\n", kind)
		for _, ge := range byKind[kind] {
			if ge.Schema != "" {
				fmt.Fprintf(&b, "- [%s] %s\n", ge.Schema, ge.Message)
			} else {
				fmt.Fprintf(&b, "- %s\n", ge.Message)
			}
		}
		if hint, ok := remediationHints[kind]; ok {
			fmt.Fprintf(&b, "\n%s\n\n", hint)
		} else {
			b.WriteString("\n")
		}
	}

	return b.String()
}
