package errfmt

import (
	"strings"
	"testing"
)

func TestFormat_EscapeThenAnnotate(t *testing.T) {
	got := Format("<script>BadError: x</script>")

	if strings.Contains(got, "<script>") {
		t.Errorf("Format() = %q, raw <script> tag survived", got)
	}
	if !strings.Contains(got, "&lt;script&gt;BadError: x&lt;/script&gt;") {
		t.Errorf("Format() = %q, want escaped text preserved", got)
	}
	if !strings.HasPrefix(got, `<a href="`+DefaultSearchPrefix+"&lt;script&gt;BadError: x") {
		t.Errorf("Format() = %q, want line wrapped in search link over escaped text", got)
	}
	if !strings.HasSuffix(got, "</a>") {
		t.Errorf("Format() = %q, want closing anchor", got)
	}
}

func TestFormat_ErrorKindLink(t *testing.T) {
	raw := "Traceback (most recent call last):\nZeroDivisionError: division by zero"
	got := Format(raw)

	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("Format() produced %d lines, want 2", len(lines))
	}
	if lines[0] != "Traceback (most recent call last):" {
		t.Errorf("line 0 = %q, want unchanged", lines[0])
	}
	want := `<a href="` + DefaultSearchPrefix + `ZeroDivisionError: division by zero">ZeroDivisionError: division by zero</a>`
	if lines[1] != want {
		t.Errorf("line 1 = %q, want %q", lines[1], want)
	}
}

func TestFormat_DottedErrorKind(t *testing.T) {
	got := Format("json.decoder.JSONDecodeError: Expecting value")
	if !strings.HasPrefix(got, "<a href=") {
		t.Errorf("Format() = %q, want dotted kind linked", got)
	}
}

func TestFormat_LineNumberStripping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "first line",
			raw:  "error at line 42\nsecond\nthird",
			want: "\nsecond\nthird",
		},
		{
			name: "middle line",
			raw:  "first\n  File \"<string>\", line 42, in <module>\nthird",
			want: "first\n\nthird",
		},
		{
			name: "last line",
			raw:  "first\nsecond\nline 42",
			want: "first\nsecond\n",
		},
		{
			name: "several",
			raw:  "line 1\nkeep\nline 2",
			want: "\nkeep\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.raw); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormat_LineReferenceBeatsErrorKind(t *testing.T) {
	// A kind line that also references a line number is blanked, not linked.
	got := Format("SyntaxError: invalid syntax (line 3)")
	if got != "" {
		t.Errorf("Format() = %q, want blank", got)
	}
}

func TestFormat_EveryMatchingLineLinked(t *testing.T) {
	got := Format("KeyError: 'a'\nduring handling\nValueError: b")
	if n := strings.Count(got, "<a href="); n != 2 {
		t.Errorf("links = %d, want 2 in %q", n, got)
	}
}

func TestFormat_IndentedLineNotLinked(t *testing.T) {
	got := Format("    a: int = 5")
	if strings.Contains(got, "<a") {
		t.Errorf("Format() = %q, indented source line must not be linked", got)
	}
}

func TestFormat_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t\n"} {
		if got := Format(raw); got != raw {
			t.Errorf("Format(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestFormat_SearchPrefix(t *testing.T) {
	f := New(WithSearchPrefix("https://example.com/?q="))
	got := f.Format("TypeError: nope")
	if !strings.HasPrefix(got, `<a href="https://example.com/?q=TypeError: nope">`) {
		t.Errorf("Format() = %q, want custom prefix", got)
	}
}

func TestFormat_QuotesEscaped(t *testing.T) {
	got := Format(`NameError: name "x" is not defined`)
	if strings.Count(got, `"`) != 2 {
		t.Errorf("Format() = %q, want only the href quotes unescaped", got)
	}
}
