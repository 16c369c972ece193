package collate

import (
	"fmt"
	"strings"
	"testing"
)

// TestTrim tests the whitespace rule applied before emission.
func TestTrim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "trailing blank lines removed",
			in:   "line one\nline two\n\n\n",
			want: "line one\nline two",
		},
		{
			name: "trailing whitespace at end removed",
			in:   "line one\nline two   \t ",
			want: "line one\nline two",
		},
		{
			name: "leading blank lines preserved",
			in:   "\n\nline one\n",
			want: "\n\nline one",
		},
		{
			name: "interior line trailing spaces stripped",
			in:   "a  \nb\t\nc",
			want: "a\nb\nc",
		},
		{
			name: "carriage returns stripped",
			in:   "a\r\nb\r\n",
			want: "a\nb",
		},
		{
			name: "whitespace only",
			in:   "   \n\t\n",
			want: "",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trim(tt.in); got != tt.want {
				t.Errorf("Trim(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestAbridge tests head/tail elision of long captures.
func TestAbridge(t *testing.T) {
	t.Run("short content untouched", func(t *testing.T) {
		in := "one\ntwo\nthree"
		if got := Abridge(in); got != in {
			t.Errorf("Abridge(%q) = %q, want unchanged", in, got)
		}
	})

	t.Run("at threshold untouched", func(t *testing.T) {
		var lines []string
		for i := 1; i <= abridgeThreshold; i++ {
			lines = append(lines, fmt.Sprintf("line %d", i))
		}
		in := strings.Join(lines, "\n")
		if got := Abridge(in); got != in {
			t.Errorf("Abridge() changed content at the threshold:\n%s", got)
		}
	})

	t.Run("verbose capture keeps head and tail", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("Build log for widget\n")
		for i := 1; i <= 50; i++ {
			fmt.Fprintf(&b, "step %d\n", i)
		}

		got := Abridge(b.String())

		for _, want := range []string{"Build log for widget", "step 1\n", "step 2\n", "step 49", "step 50", "46 lines omitted"} {
			if !strings.Contains(got+"\n", want) {
				t.Errorf("abridged output missing %q:\n%s", want, got)
			}
		}
		for i := 4; i <= 47; i++ {
			if strings.Contains(got, fmt.Sprintf("step %d\n", i)) {
				t.Errorf("abridged output still contains elided line %d:\n%s", i, got)
			}
		}

		if lines := strings.Split(got, "\n"); len(lines) != abridgeHead+abridgeTail+1 {
			t.Errorf("abridged output has %d lines, want %d", len(lines), abridgeHead+abridgeTail+1)
		}
	})

	t.Run("trimming applies to kept segments", func(t *testing.T) {
		var b strings.Builder
		for i := 1; i <= 20; i++ {
			fmt.Fprintf(&b, "line %d   \n", i)
		}

		got := Abridge(b.String())
		for _, line := range strings.Split(got, "\n") {
			if strings.TrimRight(line, " \t") != line {
				t.Errorf("kept line %q retains trailing whitespace", line)
			}
		}
	})
}
