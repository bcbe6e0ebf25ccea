package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/localfs"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/packaging"
	"github.com/preservica-tools/preservica-upload/internal/preservica"
	"github.com/preservica-tools/preservica-upload/internal/progress"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/transport"
)

// Status messages shown to the operator.
const (
	msgUploadComplete = "✅ Upload complete! Check Preservica web UI for ingest progress."
	msgLargeFile      = "📦 Large file detected - using S3 upload..."
	msgStartingUpload = "⬆️  Starting upload..."
)

// Client transfers a packaged archive. *preservica.Client implements it.
type Client interface {
	UploadDirect(ctx context.Context, archivePath string, folder remotetree.Folder, progress preservica.ProgressFunc, deleteAfter bool) error
	UploadBulk(ctx context.Context, archivePath, bucket string, folder remotetree.Folder, progress preservica.ProgressFunc, deleteAfter bool) error
}

// Packager builds the archive for a validated job. *packaging.Pipeline implements it.
type Packager interface {
	Package(ctx context.Context, job selection.ValidatedJob) (*packaging.Archive, error)
}

// Options wires an Orchestrator.
type Options struct {
	Packager     Packager
	Selector     transport.Selector
	Client       Client
	Sink         events.Sink
	Logger       *logging.Logger
	Bucket       string // bulk upload bucket
	ErrorLogPath string // diagnostic file overwritten on each failure
}

// Orchestrator runs at most one job at a time on a background goroutine.
type Orchestrator struct {
	packager     Packager
	selector     transport.Selector
	client       Client
	sink         events.Sink
	logger       *logging.Logger
	bucket       string
	errorLogPath string

	busy atomic.Bool
	wg   sync.WaitGroup

	mu      sync.Mutex
	state   Status
	current *Job
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	errorLogPath := opts.ErrorLogPath
	if errorLogPath == "" {
		errorLogPath = constants.ErrorLogFile
	}
	return &Orchestrator{
		packager:     opts.Packager,
		selector:     opts.Selector,
		client:       opts.Client,
		sink:         opts.Sink,
		logger:       logger,
		bucket:       opts.Bucket,
		errorLogPath: errorLogPath,
		state:        StatusIdle,
	}
}

// Trigger validates the selection pair and, if valid, starts a job in the
// background. It returns false without doing anything while a job is
// running, and false after posting the reason when validation fails.
func (o *Orchestrator) Trigger(ctx context.Context, local *selection.LocalSelection, folder *remotetree.Folder) bool {
	if !o.busy.CompareAndSwap(false, true) {
		o.logger.Debug().Str("component", "upload").Msg("upload already running, trigger ignored")
		return false
	}

	job := &Job{ID: uuid.NewString(), Status: StatusIdle, LastReportedPercent: -1}
	o.mu.Lock()
	o.current = job
	o.mu.Unlock()

	o.transition(job, StatusValidating, nil)
	validated, err := selection.TrySubmit(local, folder)
	if err != nil {
		events.PostStatusLevel(o.sink, events.ErrorLevel, "❌ "+err.Error())
		o.mu.Lock()
		job.Err = err
		o.mu.Unlock()
		o.transition(job, StatusIdle, err)
		o.busy.Store(false)
		return false
	}

	o.mu.Lock()
	job.Selection = validated.Local
	job.Target = validated.Folder
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(ctx, job, validated)
	}()
	return true
}

// Wait blocks until the running job, if any, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// State returns the orchestrator's current status. It is Idle between jobs.
func (o *Orchestrator) State() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether a job is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// LastJob returns a copy of the most recent job, or nil.
func (o *Orchestrator) LastJob() *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	job := *o.current
	return &job
}

func (o *Orchestrator) run(ctx context.Context, job *Job, validated selection.ValidatedJob) {
	defer func() {
		o.transition(job, StatusIdle, nil)
		o.busy.Store(false)
	}()

	start := time.Now()
	stage, err := o.execute(ctx, job, validated)
	if err != nil {
		o.fail(job, &UploadFailedError{JobID: job.ID, Stage: stage, Err: err})
		return
	}

	o.setJobStatus(job, StatusCompleted, nil)
	events.PostProgressVisibility(o.sink, false, false)
	events.PostStatusLevel(o.sink, events.SuccessLevel, msgUploadComplete)

	o.logger.Info().
		Str("component", "upload").
		Str("job_id", job.ID).
		Str("local", validated.Local.Path).
		Str("folder", validated.Folder.Ref).
		Str("transport", job.Transport.String()).
		Dur("elapsed", time.Since(start)).
		Msg("upload complete")
}

// execute walks the job through its stages and returns the stage that failed.
func (o *Orchestrator) execute(ctx context.Context, job *Job, validated selection.ValidatedJob) (Status, error) {
	local := validated.Local
	local.Kind = selection.Classify(local.Path)
	if local.Kind == selection.KindOther {
		return StatusValidating, packaging.ErrUnsupportedKind
	}

	size, err := localSize(local)
	if err != nil {
		return StatusValidating, err
	}
	events.PostStatus(o.sink, fmt.Sprintf("📁 File size: %.2f MB", transport.SizeMB(size)))
	events.PostStatus(o.sink, "📤 Uploading to folder: "+validated.Folder.Title)

	o.transition(job, StatusPackaging, nil)
	archive, err := o.packager.Package(ctx, selection.ValidatedJob{Local: local, Folder: validated.Folder})
	if err != nil {
		return StatusPackaging, err
	}
	o.mu.Lock()
	job.Archive = archive
	o.mu.Unlock()

	o.transition(job, StatusSelectingTransport, nil)
	chosen := o.selector.Select(archive.SizeBytes)
	o.mu.Lock()
	job.Transport = chosen
	o.mu.Unlock()
	if chosen == transport.BulkObjectStorage {
		events.PostStatus(o.sink, msgLargeFile)
	}

	o.transition(job, StatusUploading, nil)
	events.PostStatus(o.sink, msgStartingUpload)
	events.PostProgressVisibility(o.sink, true, true)

	reporter, err := progress.NewFileReporter(job.ID, archive.Path, o.sink)
	if err != nil {
		return StatusUploading, err
	}

	switch chosen {
	case transport.BulkObjectStorage:
		err = o.client.UploadBulk(ctx, archive.Path, o.bucket, validated.Folder, reporter.Add, archive.DeleteAfterUpload)
	default:
		err = o.client.UploadDirect(ctx, archive.Path, validated.Folder, reporter.Add, archive.DeleteAfterUpload)
	}
	if err == nil {
		reporter.Complete()
	}

	o.mu.Lock()
	job.LastReportedPercent = reporter.LastReported()
	o.mu.Unlock()

	if err != nil {
		return StatusUploading, err
	}
	return StatusCompleted, nil
}

func (o *Orchestrator) fail(job *Job, err *UploadFailedError) {
	o.setJobStatus(job, StatusFailed, err)
	events.PostProgressVisibility(o.sink, false, false)
	events.PostStatusLevel(o.sink, events.ErrorLevel, "❌ Upload failed: "+err.Error())

	o.logger.Error().
		Err(err.Err).
		Str("component", "upload").
		Str("job_id", job.ID).
		Str("stage", err.Stage.String()).
		Msg("upload failed")

	if werr := o.writeErrorLog(job, err); werr != nil {
		o.logger.Warn().Err(werr).Str("path", o.errorLogPath).Msg("failed to write error log")
	}
}

// writeErrorLog overwrites the diagnostic file with the failure and a stack trace.
func (o *Orchestrator) writeErrorLog(job *Job, failure *UploadFailedError) error {
	snapshot := o.LastJob()

	var b strings.Builder
	fmt.Fprintf(&b, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "job: %s\n", job.ID)
	if snapshot != nil {
		fmt.Fprintf(&b, "local: %s\n", snapshot.Selection.Path)
		fmt.Fprintf(&b, "folder: %s (%s)\n", snapshot.Target.Title, snapshot.Target.Ref)
		if snapshot.Archive != nil {
			fmt.Fprintf(&b, "archive: %s (%d bytes)\n", snapshot.Archive.Path, snapshot.Archive.SizeBytes)
			fmt.Fprintf(&b, "transport: %s\n", snapshot.Transport)
		}
	}
	fmt.Fprintf(&b, "stage: %s\n", failure.Stage)
	fmt.Fprintf(&b, "error: %s\n\n", failure.Error())
	fmt.Fprintf(&b, "%+v\n", pkgerrors.WithStack(failure.Err))

	return os.WriteFile(o.errorLogPath, []byte(b.String()), 0644)
}

// transition moves both the orchestrator and job to next.
func (o *Orchestrator) transition(job *Job, next Status, err error) {
	o.mu.Lock()
	old := o.state
	o.state = next
	if !job.Status.Terminal() || next != StatusIdle {
		job.Status = next
	}
	o.mu.Unlock()

	o.postStateChange(job.ID, old, next, err)
}

// setJobStatus records a terminal status on the job. The orchestrator
// itself returns to Idle once the job's goroutine exits.
func (o *Orchestrator) setJobStatus(job *Job, next Status, err error) {
	o.mu.Lock()
	old := o.state
	o.state = next
	job.Status = next
	job.Err = err
	o.mu.Unlock()

	o.postStateChange(job.ID, old, next, err)
}

func (o *Orchestrator) postStateChange(jobID string, old, next Status, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	events.PostStateChange(o.sink, jobID, old.String(), next.String(), msg)
}

// localSize returns the size of a file, or the total size of the regular
// files under a directory.
func localSize(local selection.LocalSelection) (int64, error) {
	if local.Kind == selection.KindDirectory {
		result, err := localfs.WalkCollect(local.Path, localfs.WalkOptions{IncludeHidden: true})
		if err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", filepath.Base(local.Path), err)
		}
		return result.TotalBytes, nil
	}
	info, err := os.Stat(local.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
