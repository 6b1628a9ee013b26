package backend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/semmy-space/skc/internal/config"
)

// warningShown checks if the fallback warning has already been shown.
// Uses a marker file in the state directory to avoid repeating on every command.
func warningShown() bool {
	_, err := os.Stat(warningMarkerPath())
	return err == nil
}

func warningMarkerPath() string {
	return filepath.Join(config.StateDir(), ".fallback-warning-shown")
}

// quietMode returns true if the user has suppressed warnings via SKC_QUIET.
func quietMode() bool {
	return os.Getenv("SKC_QUIET") == "1" || os.Getenv("SKC_QUIET") == "true"
}

// warnOnce prints a message to w unless a previous run already completed
// a fallback. Set SKC_QUIET=1 to suppress entirely.
func warnOnce(w io.Writer, msg string) {
	if quietMode() || warningShown() {
		return
	}
	fmt.Fprintln(w, msg)
}

// markWarningsDone persists the marker so future commands stay quiet.
func markWarningsDone() {
	if warningShown() {
		return
	}
	if err := os.MkdirAll(config.StateDir(), 0700); err != nil {
		return
	}
	_ = os.WriteFile(warningMarkerPath(), []byte("1"), 0600)
}
