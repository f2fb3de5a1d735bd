package cli

import "os"

// IsNonInteractive reports whether prompts should be skipped.
func IsNonInteractive() bool {
	if nonInteractive {
		return true
	}
	if _, ok := os.LookupEnv("THEMESYNC_NON_INTERACTIVE"); ok {
		return true
	}
	return !hasTTY()
}
