// Package notify sends desktop notifications when runs finish.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/msageha/conductor/internal/events"
	"github.com/msageha/conductor/internal/logging"
	"github.com/msageha/conductor/internal/model"
)

// runCommand is replaced in tests.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Supported reports whether desktop notifications can be sent here.
func Supported() bool {
	return runtime.GOOS == "darwin"
}

// Send sends a macOS notification via osascript with sound.
func Send(title, message string) error {
	title = escapeAppleScript(title)
	message = escapeAppleScript(message)

	script := fmt.Sprintf(
		`display notification %q with title %q sound name "default"`,
		message, title,
	)

	if out, err := runCommand("osascript", "-e", script); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// Observer notifies once per terminal run state.
func Observer(logger *logging.Logger) events.Subscriber {
	logger = logger.With("notify")
	return func(e events.Event) {
		if e.Type != events.EventStateChanged || !model.IsRunTerminal(model.RunState(e.State)) {
			return
		}
		msg := "run " + e.RunID + " ended in " + e.State
		if e.Details != "" {
			msg += ": " + e.Details
		}
		if err := Send("conductor "+e.Task, msg); err != nil {
			logger.Warnf("%v", err)
		}
	}
}
