// Package progress reports long-running steps on the terminal: a spinner
// while a step runs and a check or cross when it ends. Without a TTY only
// the final lines are printed.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Display shows the progress of one step at a time.
type Display struct {
	out     io.Writer
	caps    TerminalCapabilities
	symbols ProgressSymbols

	mu      sync.Mutex
	spin    *spinner.Spinner
	current string
}

// NewDisplay creates a display writing to stdout with detected capabilities.
func NewDisplay() *Display {
	return NewDisplayWith(os.Stdout, DetectTerminalCapabilities())
}

// NewDisplayWith creates a display for an explicit writer and capabilities.
func NewDisplayWith(out io.Writer, caps TerminalCapabilities) *Display {
	return &Display{out: out, caps: caps, symbols: SelectSymbols(caps)}
}

// Start begins a step. A running step is finished as succeeded first.
func (d *Display) Start(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.current = msg
	if !d.caps.IsTTY {
		return
	}
	s := spinner.New(spinner.CharSets[d.symbols.SpinnerSet], 100*time.Millisecond, spinner.WithWriter(d.out))
	s.Suffix = " " + msg
	s.Start()
	d.spin = s
}

// Succeed ends the current step with a check mark. An empty msg repeats
// the step's start message.
func (d *Display) Succeed(msg string) {
	d.finish(msg, d.symbols.Checkmark, color.FgGreen)
}

// Fail ends the current step with a failure mark.
func (d *Display) Fail(msg string) {
	d.finish(msg, d.symbols.Failure, color.FgRed)
}

// Stop ends the current step without a status line.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.current = ""
}

func (d *Display) finish(msg, mark string, attr color.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	if msg == "" {
		msg = d.current
	}
	d.current = ""
	if msg == "" {
		return
	}
	if d.caps.SupportsColor {
		mark = color.New(attr).Sprint(mark)
	}
	fmt.Fprintf(d.out, "%s %s\n", mark, msg)
}

func (d *Display) stopLocked() {
	if d.spin != nil {
		d.spin.Stop()
		d.spin = nil
	}
}
