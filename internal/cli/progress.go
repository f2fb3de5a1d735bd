package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opencode-ai/themesync/internal/appearance"
)

// progressEnvVars silence progress output when set to any value.
var progressEnvVars = []string{"THEMESYNC_NO_PROGRESS", "NO_PROGRESS"}

// selectionStep reports a theme selection on stderr while the host
// switches mode, then its outcome:
//
//	Applying theme... builtin-nord (1.2s)
//	Cycling theme... builtin-dawn, mode not reached (4.5s)
//
// A nil step is valid and prints nothing.
type selectionStep struct {
	out     io.Writer
	started time.Time
}

func startProgress(label string) *selectionStep {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(os.Stderr, "%s... ", label)
	return &selectionStep{out: os.Stderr, started: time.Now()}
}

// Finish ends the step with the outcome of res.
func (p *selectionStep) Finish(res appearance.Result) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "%s (%s)\n", describeSelection(res), formatDuration(time.Since(p.started)))
}

func (p *selectionStep) Fail(err error) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "failed: %v\n", err)
}

// describeSelection is the one-line outcome of a selection.
func describeSelection(res appearance.Result) string {
	switch {
	case res.ThemeID == "":
		return "none, base styles"
	case !res.Resolved:
		return res.ThemeID + " not found, base styles"
	case !res.Converged:
		return res.ThemeID + ", mode not reached"
	case !res.Applied:
		return res.ThemeID + ", styling off"
	default:
		return res.ThemeID
	}
}

func progressEnabled() bool {
	if noProgress || IsJSONOutput() || IsJSONLOutput() {
		return false
	}
	for _, name := range progressEnvVars {
		if _, set := os.LookupEnv(name); set {
			return false
		}
	}
	return true
}

// formatDuration rounds d for display; sub-millisecond values stay exact.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
