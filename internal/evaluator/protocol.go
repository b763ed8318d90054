package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResultPrefix marks a stdout line carrying a JSON result. Any other
// stdout line is print output from the user's code.
const ResultPrefix = "6q3co7"

// Request asks the evaluator to run code.
type Request struct {
	// EvalCode is the code to run.
	EvalCode string
	// SavedCode is the code whose state is kept between runs.
	SavedCode string
	// FilePath is the source file the code came from.
	FilePath string
	// UsePreviousVariables continues from the previous run's variables.
	UsePreviousVariables bool
	// ShowGlobalVars includes module globals in the snapshot.
	ShowGlobalVars bool
	// DefaultFilterVars are variable names hidden from the snapshot.
	DefaultFilterVars []string
	// DefaultFilterTypes are type names hidden from the snapshot.
	DefaultFilterTypes []string
}

// EncodeRequest renders req as one JSON line, without the trailing newline.
func EncodeRequest(req Request) ([]byte, error) {
	out := []byte(`{}`)
	fields := []struct {
		key   string
		value any
	}{
		{"evalCode", req.EvalCode},
		{"savedCode", req.SavedCode},
		{"filePath", req.FilePath},
		{"usePreviousVariables", req.UsePreviousVariables},
		{"showGlobalVars", req.ShowGlobalVars},
		{"default_filter_vars", nonNil(req.DefaultFilterVars)},
		{"default_filter_types", nonNil(req.DefaultFilterTypes)},
	}

	var err error
	for _, f := range fields {
		out, err = sjson.SetBytes(out, f.key, f.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.key, err)
		}
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Result is one evaluation report.
type Result struct {
	// UserError is the diagnostic text for an error in user code, empty
	// when the run succeeded.
	UserError string
	// UserVariables is the JSON variables snapshot, nil when absent.
	UserVariables json.RawMessage
	// ExecTime is the time spent running user code.
	ExecTime time.Duration
	// TotalTime is the evaluator's total time for the request.
	TotalTime time.Duration
	// InternalError reports a failure inside the evaluator itself.
	InternalError string
	// Caller names the function that produced an intermediate dump.
	Caller string
	// Lineno is the source line currently being evaluated, 0 if unknown.
	Lineno int
	// Done is false for intermediate dumps and true for the final result.
	Done bool
	// Count numbers intermediate dumps.
	Count int
}

// ParseResult decodes a prefixed result line. ok is false when line is
// not a result line.
func ParseResult(line string) (res Result, ok bool, err error) {
	payload, found := strings.CutPrefix(strings.TrimRight(line, "\r\n"), ResultPrefix)
	if !found {
		return Result{}, false, nil
	}
	if !gjson.Valid(payload) {
		return Result{}, true, fmt.Errorf("malformed evaluator result: %q", truncate(payload, 80))
	}

	parsed := gjson.Parse(payload)
	res = Result{
		UserError:     userError(parsed.Get("userError")),
		InternalError: parsed.Get("internalError").String(),
		Caller:        parsed.Get("caller").String(),
		Lineno:        int(parsed.Get("lineno").Int()),
		Done:          parsed.Get("done").Bool(),
		Count:         int(parsed.Get("count").Int()),
		ExecTime:      seconds(parsed.Get("execTime").Float()),
		TotalTime:     seconds(parsed.Get("totalPyTime").Float()),
	}
	if vars := parsed.Get("userVariables"); vars.Exists() && vars.Type != gjson.Null {
		res.UserVariables = json.RawMessage(vars.Raw)
	}
	return res, true, nil
}

// userError flattens the error field, which is either a string or a list
// of traceback lines.
func userError(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	var b strings.Builder
	for _, item := range v.Array() {
		b.WriteString(item.String())
	}
	return b.String()
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
