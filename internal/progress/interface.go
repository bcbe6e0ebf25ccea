package progress

import "io"

// Tracker reports byte progress for a long local operation such as
// zipping a directory. CLIProgress draws a bar; NopTracker draws nothing.
type Tracker interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// UploadDisplay renders upload progress for headless runs.
type UploadDisplay interface {
	// AddArchiveBar creates a bar for one archive transfer
	AddArchiveBar(localPath, folderTitle string, size int64) BarHandle

	// Wait blocks until all progress bars complete
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}

// BarHandle represents a handle to a single archive's progress bar
type BarHandle interface {
	// SetPercent moves the bar to the given percentage (0-100)
	SetPercent(percent int)

	// Complete marks the transfer as finished and prints a summary
	Complete(err error)
}
