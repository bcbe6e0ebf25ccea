package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// UploadUI draws archive upload bars using mpb
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
}

// ArchiveBar represents a single archive upload progress bar
type ArchiveBar struct {
	bar         *mpb.Bar
	ui          *UploadUI
	localPath   string
	folderTitle string
	size        int64

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	done       bool
}

// NewUploadUI creates a new upload UI writing to stderr
func NewUploadUI() *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		out:        os.Stdout,
		isTerminal: isTerminal,
	}
}

// AddArchiveBar creates a new progress bar for an archive upload
func (u *UploadUI) AddArchiveBar(localPath, folderTitle string, size int64) BarHandle {
	ab := &ArchiveBar{
		ui:          u,
		localPath:   localPath,
		folderTitle: folderTitle,
		size:        size,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
	}

	label := fmt.Sprintf("%s (%s) → %s",
		truncatePath(localPath, 2),
		units.BytesSize(float64(size)),
		folderTitle)

	if u.isTerminal {
		ab.bar = u.progress.New(size,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading: %s\n", label)
	}

	return ab
}

// SetPercent moves the bar to percent of the archive size.
// Uses EWMA timing for accurate speed and ETA calculations.
func (b *ArchiveBar) SetPercent(percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	current := b.size * int64(percent) / 100
	now := time.Now()

	if b.bar != nil {
		b.bar.EwmaIncrBy(int(current-b.lastBytes), now.Sub(b.lastUpdate))
	} else if !b.ui.isTerminal && current > b.lastBytes {
		fmt.Fprintf(b.ui.out, "  %d%%\n", percent)
	}

	b.lastBytes = current
	b.lastUpdate = now
}

// Complete marks the upload as finished and prints a summary
func (b *ArchiveBar) Complete(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true

	elapsed := time.Since(b.startTime)

	var msg string
	if err == nil {
		if b.bar != nil {
			// Ensure exact 100% completion (no rounding errors)
			b.bar.SetCurrent(b.size)
			b.bar.SetTotal(b.size, true)
		}
		speed := float64(b.size) / elapsed.Seconds()
		msg = fmt.Sprintf("✓ %s → %s (%s, %s, %s/s)\n",
			truncatePath(b.localPath, 2),
			b.folderTitle,
			units.BytesSize(float64(b.size)),
			elapsed.Round(time.Second),
			units.BytesSize(speed))
	} else {
		if b.bar != nil {
			b.bar.Abort(false) // false = don't remove (show failure)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n",
			truncatePath(b.localPath, 2),
			b.folderTitle,
			err)
	}

	// Write through mpb's writer (not stdout) to avoid triggering redraws
	_, _ = b.ui.Writer().Write([]byte(msg))
}

// Wait blocks until all progress bars complete
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that safely prints above the progress bars
func (u *UploadUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences.
// The real work is in uploadui_windows.go.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
