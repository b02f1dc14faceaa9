// Package progress renders stage spinners and summaries for the reflinkcopy
// command line.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Tracker shows a spinner for the running stage and a one-line summary when
// it finishes. Without a terminal only the summaries are printed.
type Tracker struct {
	mu          sync.Mutex
	out         io.Writer
	spinner     *spinner.Spinner
	showSpinner bool
	quiet       bool
	stage       string
	startTime   time.Time
}

// New creates a Tracker writing to stdout. forceShow enables the spinner
// even when stdout is not a terminal.
func New(forceShow bool) *Tracker {
	return NewWithWriter(os.Stdout, forceShow || isTerminal(os.Stdout))
}

// NewWithWriter creates a Tracker writing to out
func NewWithWriter(out io.Writer, showSpinner bool) *Tracker {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Color("cyan")

	return &Tracker{
		out:         out,
		spinner:     s,
		showSpinner: showSpinner,
	}
}

// StartStage begins a new stage
func (t *Tracker) StartStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = stage
	t.startTime = time.Now()

	if t.showSpinner {
		t.spinner.Suffix = fmt.Sprintf(" %s...", stage)
		t.spinner.Start()
	}
}

// UpdateStage shows info next to the running stage
func (t *Tracker) UpdateStage(info string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.showSpinner {
		elapsed := time.Since(t.startTime)
		t.spinner.Lock()
		t.spinner.Suffix = fmt.Sprintf(" %s... %s (%v)", t.stage, info, elapsed.Truncate(10*time.Millisecond))
		t.spinner.Unlock()
	}
}

// FinishStage stops the spinner and prints the stage with its duration
func (t *Tracker) FinishStage() {
	t.FinishStageWithInfo("")
}

// FinishStageWithInfo is FinishStage with extra detail in the summary
func (t *Tracker) FinishStageWithInfo(info string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime)
	t.stop()
	if t.quiet {
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if info == "" {
		fmt.Fprintf(t.out, "✓ %s %s in %v\n", green(t.stage), cyan("completed"), elapsed.Truncate(time.Microsecond))
		return
	}
	fmt.Fprintf(t.out, "✓ %s %s %s in %v\n", green(t.stage), yellow(info), cyan("completed"), elapsed.Truncate(time.Microsecond))
}

// Error stops the spinner and prints err. Errors are printed even when quiet.
func (t *Tracker) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stop()
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(t.out, "✗ %s %s\n", red("Error:"), err.Error())
}

// SetQuiet disables the spinner and stage summaries
func (t *Tracker) SetQuiet(quiet bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.quiet = quiet
	if quiet {
		t.stop()
		t.showSpinner = false
	}
}

func (t *Tracker) stop() {
	if t.showSpinner {
		t.spinner.Stop()
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
