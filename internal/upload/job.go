// Package upload runs one upload job at a time: validation, packaging,
// transport selection and transfer, reporting every step as events.
package upload

import (
	"github.com/preservica-tools/preservica-upload/internal/packaging"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/transport"
)

// Status is the lifecycle state of a job.
type Status int

const (
	StatusIdle Status = iota
	StatusValidating
	StatusPackaging
	StatusSelectingTransport
	StatusUploading
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusValidating:
		return "Validating"
	case StatusPackaging:
		return "Packaging"
	case StatusSelectingTransport:
		return "SelectingTransport"
	case StatusUploading:
		return "Uploading"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s ends a job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one upload run. Fields are filled in as the job advances.
type Job struct {
	ID                  string
	Selection           selection.LocalSelection
	Target              remotetree.Folder
	Archive             *packaging.Archive
	Transport           transport.Transport
	Status              Status
	LastReportedPercent int
	Err                 error
}

// UploadFailedError wraps whatever ended a job in Failed. Its message is
// the underlying error's message so status text reads naturally.
type UploadFailedError struct {
	JobID string
	Stage Status
	Err   error
}

func (e *UploadFailedError) Error() string { return e.Err.Error() }

func (e *UploadFailedError) Unwrap() error { return e.Err }
