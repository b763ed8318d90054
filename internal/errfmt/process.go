package errfmt

import (
	"fmt"
	"strings"
)

// ProcessErrorPrefix introduces errors raised by the evaluator process itself
// rather than by user code.
const ProcessErrorPrefix = "Error in the LiveCode extension!\n"

// missingRuntimeMarkers identify "no such file or executable" failures:
// the errno token, the Windows shell exit code, and Go's exec messages.
var missingRuntimeMarkers = []string{
	"ENOENT",
	"9009",
	"executable file not found",
	"no such file or directory",
}

// Runtime names the runtime the evaluator needs, for remediation hints.
type Runtime struct {
	Name        string
	DownloadURL string
}

// DefaultRuntime is the runtime the stock evaluator runs on.
var DefaultRuntime = Runtime{
	Name:        "python 3",
	DownloadURL: "https://www.python.org/downloads/",
}

// IsMissingRuntime reports whether raw describes a missing executable.
func IsMissingRuntime(raw string) bool {
	for _, marker := range missingRuntimeMarkers {
		if strings.Contains(raw, marker) {
			return true
		}
	}
	return false
}

// ProcessError builds the raw text shown for an evaluator process failure,
// appending an install hint when the runtime appears to be missing.
// The result is raw text; run it through Format before display.
func ProcessError(raw string, rt Runtime) string {
	msg := ProcessErrorPrefix + raw
	if IsMissingRuntime(raw) {
		msg += fmt.Sprintf("\n\nAre you sure you have installed %s and it is in your PATH?\nYou can download %s here: %s",
			rt.Name, rt.Name, rt.DownloadURL)
	}
	return msg
}
