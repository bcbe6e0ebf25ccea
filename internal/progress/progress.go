package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// CLIProgress implements Tracker for CLI mode using progress bars.
type CLIProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewCLIProgress creates a new CLI progress tracker writing to stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NopTracker discards progress. Used when the terminal belongs to the TUI.
type NopTracker struct{}

func (NopTracker) Start(int64, string) {}
func (NopTracker) Update(int64) {}
func (NopTracker) Finish() {}
func (NopTracker) Error(error) {}
func (NopTracker) SetDescription(string) {}
