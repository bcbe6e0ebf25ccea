// Package packaging turns a local selection into a single archive ready
// for upload: single files go through the asset packager, directories are
// zipped into the temp directory.
package packaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/preservica-tools/preservica-upload/internal/diskspace"
	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/localfs"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/progress"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/transport"
)

// ErrUnsupportedKind is returned for paths that are neither files nor directories.
var ErrUnsupportedKind = errors.New("Selected path is neither a file nor a folder")

// AssetPackager wraps a single file into an ingest package for folder and
// returns the package path.
type AssetPackager interface {
	PackageSingleFile(ctx context.Context, path string, folder remotetree.Folder) (string, error)
}

// Archive is a packaged file owned by one upload job.
type Archive struct {
	Path              string
	SizeBytes         int64
	DeleteAfterUpload bool
}

// SizeMB returns the archive size in megabytes.
func (a *Archive) SizeMB() float64 {
	return transport.SizeMB(a.SizeBytes)
}

// PackagingFailedError wraps any failure while building the archive.
type PackagingFailedError struct {
	Path string
	Err  error
}

func (e *PackagingFailedError) Error() string {
	return fmt.Sprintf("packaging %s failed: %v", e.Path, e.Err)
}

func (e *PackagingFailedError) Unwrap() error { return e.Err }

// Pipeline builds archives.
type Pipeline struct {
	packager AssetPackager
	sink     events.Sink
	tempDir  string
	tracker  progress.Tracker
	logger   *logging.Logger

	checkSpace func(dir string, required int64, margin float64) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir sets where directory archives are written. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithTracker reports zipping progress in bytes.
func WithTracker(t progress.Tracker) Option {
	return func(p *Pipeline) { p.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline that posts status messages to sink.
func NewPipeline(packager AssetPackager, sink events.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		packager: packager,
		sink:     sink,
		tempDir:  os.TempDir(),
		tracker:  progress.NopTracker{},
		logger:   logging.NewNopLogger(),

		checkSpace: diskspace.CheckAvailableSpace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package builds the archive for job. Every failure is a *PackagingFailedError.
func (p *Pipeline) Package(ctx context.Context, job selection.ValidatedJob) (*Archive, error) {
	local := job.Local

	if err := p.ensureSpace(local); err != nil {
		return nil, &PackagingFailedError{Path: local.Path, Err: err}
	}

	var path string
	var err error
	switch local.Kind {
	case selection.KindFile:
		events.PostStatus(p.sink, "📦 Creating asset package...")
		path, err = p.packager.PackageSingleFile(ctx, local.Path, job.Folder)
	case selection.KindDirectory:
		events.PostStatus(p.sink, fmt.Sprintf("📦 Zipping folder %s...", filepath.Base(local.Path)))
		path, err = p.zipDirectory(ctx, local.Path)
	default:
		err = ErrUnsupportedKind
	}
	if err != nil {
		return nil, &PackagingFailedError{Path: local.Path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &PackagingFailedError{Path: local.Path, Err: fmt.Errorf("failed to stat package: %w", err)}
	}

	archive := &Archive{
		Path:              path,
		SizeBytes:         info.Size(),
		DeleteAfterUpload: true,
	}

	p.logger.Info().
		Str("component", "packaging").
		Str("archive", archive.Path).
		Int64("bytes", archive.SizeBytes).
		Msg("package created")

	events.PostStatus(p.sink, fmt.Sprintf("📦 Package created: %s", filepath.Base(archive.Path)))
	events.PostStatus(p.sink, fmt.Sprintf("📦 Package size: %.2f MB", archive.SizeMB()))

	return archive, nil
}

// ensureSpace fails when the temp directory cannot hold a package about the
// size of the source. Sources that cannot be measured are not checked.
func (p *Pipeline) ensureSpace(local selection.LocalSelection) error {
	var size int64
	switch local.Kind {
	case selection.KindFile:
		info, err := os.Stat(local.Path)
		if err != nil {
			return nil
		}
		size = info.Size()
	case selection.KindDirectory:
		result, err := localfs.WalkCollect(local.Path, localfs.WalkOptions{IncludeHidden: true})
		if err != nil {
			return nil
		}
		size = result.TotalBytes
	default:
		return nil
	}
	return p.checkSpace(p.tempDir, size, diskspace.DefaultSafetyMargin)
}

// ArchivePath returns where the archive for dir is written. The directory's
// own name is the base name, so packaging the same directory again
// overwrites the previous archive.
func (p *Pipeline) ArchivePath(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == string(filepath.Separator) || base == "." || base == "" {
		base = "archive"
	}
	return filepath.Join(p.tempDir, base+".zip")
}
