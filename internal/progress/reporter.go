// Package progress turns raw byte counts from uploads into throttled
// percentage events, and draws progress bars for headless runs.
package progress

import (
	"fmt"
	"os"
	"sync"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/events"
)

// Reporter converts byte deltas into percentage events.
//
// Add may be called from any goroutine at any rate. Emitted percentages
// rise by at least constants.ProgressStepPercent each time, and 100 is
// always emitted exactly once when the transfer completes.
type Reporter struct {
	jobID string
	total int64
	sink  events.Sink

	mu           sync.Mutex
	seen         int64
	lastReported int
}

// NewReporter creates a reporter for a transfer of total bytes.
func NewReporter(jobID string, total int64, sink events.Sink) *Reporter {
	return &Reporter{
		jobID:        jobID,
		total:        total,
		sink:         sink,
		lastReported: -1,
	}
}

// NewFileReporter creates a reporter whose total is the size of path on disk.
func NewFileReporter(jobID, path string, sink events.Sink) (*Reporter, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	return NewReporter(jobID, info.Size(), sink), nil
}

// Add records delta more bytes transferred and emits an event if the
// percentage moved far enough.
func (r *Reporter) Add(delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen += delta
	r.emitLocked(r.percentLocked())
}

// Complete forces the reporter to 100%. It emits only if 100 has not been
// emitted yet, so it is safe to call after a transfer that already reported it.
func (r *Reporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen < r.total {
		r.seen = r.total
	}
	r.emitLocked(100)
}

// LastReported returns the last emitted percentage, or -1.
func (r *Reporter) LastReported() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReported
}

func (r *Reporter) percentLocked() int {
	if r.total <= 0 {
		return 100
	}
	percent := int(r.seen * 100 / r.total)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}

func (r *Reporter) emitLocked(percent int) {
	if percent >= r.lastReported+constants.ProgressStepPercent ||
		(percent == 100 && r.lastReported != 100) {
		r.lastReported = percent
		events.PostProgress(r.sink, r.jobID, percent)
	}
}
