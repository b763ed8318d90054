// Package errfmt turns raw evaluator diagnostics into safe, annotated markup.
//
// Text is HTML-escaped before any annotation so diagnostic text can never
// inject markup, while the links added afterwards stay live. Line-number
// references are blanked and the error-kind line of a trace is wrapped in
// a web-search link.
package errfmt

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSearchPrefix is the search URL prefix used for error-kind links.
const DefaultSearchPrefix = "https://www.google.com/search?q=python "

var (
	// An error kind is a single dotted token followed by a colon,
	// e.g. "json.decoder.JSONDecodeError: Expecting value". Escaped tags
	// in front of the token are skipped so markup-looking noise does not
	// hide the kind.
	errorKindRe = regexp.MustCompile(`^(?:&lt;[^&]*?&gt;)*([\w\.]+): `)

	// A reference to a source line, e.g. `File "<string>", line 4`.
	lineRefRe = regexp.MustCompile(`line (\d+)`)
)

// Formatter formats evaluator diagnostics.
type Formatter struct {
	searchPrefix string
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithSearchPrefix sets the URL prefix the error-kind line is appended to.
func WithSearchPrefix(prefix string) Option {
	return func(f *Formatter) {
		f.searchPrefix = prefix
	}
}

// New creates a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{searchPrefix: DefaultSearchPrefix}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format escapes raw and annotates it.
//
// Lines are scanned from the last one upward, since the root cause of a
// trace is usually at the bottom. Every line mentioning "line N" is
// blanked; every line that starts with an error kind is wrapped in a
// search link over its escaped text. Empty or whitespace-only input is
// returned unchanged.
func (f *Formatter) Format(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	lines := strings.Split(html.EscapeString(raw), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		if lineRefRe.MatchString(lines[i]) {
			lines[i] = ""
		}

		if errorKindRe.MatchString(lines[i]) {
			lines[i] = link(f.searchPrefix+lines[i], lines[i])
		}
	}

	return strings.Join(lines, "\n")
}

// link wraps text in an anchor to href.
func link(href, text string) string {
	return `<a href="` + strings.ReplaceAll(href, `"`, "&quot;") + `">` + text + "</a>"
}

// Format formats raw with the default Formatter.
func Format(raw string) string {
	return New().Format(raw)
}
