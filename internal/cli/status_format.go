package cli

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/themesync/internal/modesync"
)

func formatOutcome(outcome modesync.Outcome) string {
	label, color := statusLabelForOutcome(outcome)
	return colorize(formatStatusLabel(label, outcome.String()), color)
}

func formatConverged(converged bool) string {
	if converged {
		return colorize("OK converged", colorGreen)
	}
	return colorize("ERR not converged", colorRed)
}

func formatApplied(applied bool) string {
	if applied {
		return colorize("OK applied", colorGreen)
	}
	return colorize("WARN base only", colorYellow)
}

func statusLabelForOutcome(outcome modesync.Outcome) (string, string) {
	switch outcome {
	case modesync.OutcomeConverged:
		return "OK", colorGreen
	case modesync.OutcomeNotConverged:
		return "ERR", colorRed
	case modesync.OutcomeUnavailable:
		return "SKIP", colorCyan
	default:
		return "WARN", colorYellow
	}
}

func formatStatusLabel(label, status string) string {
	normalized := strings.TrimSpace(status)
	if normalized != "" {
		normalized = strings.ReplaceAll(normalized, "_", " ")
	}
	if normalized == "" {
		return label
	}
	return fmt.Sprintf("%s %s", label, normalized)
}
