package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSymbols(t *testing.T) {
	tests := map[string]struct {
		caps TerminalCapabilities
		want ProgressSymbols
	}{
		"unicode": {
			caps: TerminalCapabilities{IsTTY: true, SupportsUnicode: true},
			want: ProgressSymbols{Checkmark: "✓", Failure: "✗", SpinnerSet: 14},
		},
		"ascii": {
			caps: TerminalCapabilities{},
			want: ProgressSymbols{Checkmark: "[OK]", Failure: "[FAIL]", SpinnerSet: 9},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectSymbols(tt.caps))
		})
	}
}

func TestDetectTerminalCapabilities_NotATerminal(t *testing.T) {
	// go test runs with stdout redirected.
	caps := DetectTerminalCapabilities()
	if caps.IsTTY {
		t.Skip("stdout is a terminal")
	}
	assert.False(t, caps.SupportsColor)
	assert.False(t, caps.SupportsUnicode)
	assert.Zero(t, caps.Width)
}

func TestDisplay_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayWith(&buf, TerminalCapabilities{})

	d.Start("discovering versions")
	d.Succeed("")
	d.Start("extracting 3 versions")
	d.Fail("extraction failed for 1.2.0")
	d.Start("publishing")
	d.Stop()
	d.Succeed("")

	assert.Equal(t, "[OK] discovering versions\n[FAIL] extraction failed for 1.2.0\n", buf.String())
}
