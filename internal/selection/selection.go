// Package selection holds the operator's current local path and target
// folder, and validates the pair before an upload may start.
package selection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

// Kind classifies a local path.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	// KindOther covers anything that is neither a regular file nor a
	// directory (devices, sockets, paths that vanished).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "other"
	}
}

// LocalSelection is a local path captured at selection time.
type LocalSelection struct {
	Path string
	Kind Kind
}

// Classify stats path and returns its kind.
func Classify(path string) Kind {
	info, err := os.Stat(path)
	if err != nil {
		return KindOther
	}
	switch {
	case info.IsDir():
		return KindDirectory
	case info.Mode().IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// NewLocalSelection captures path with its current kind.
func NewLocalSelection(path string) LocalSelection {
	return LocalSelection{Path: path, Kind: Classify(path)}
}

// Validation failures.
var (
	ErrMissingLocalSelection = errors.New("Please select a local file or folder first")
	ErrMissingRemoteFolder   = errors.New("Please select a Preservica folder first")
)

// ValidationError reports why a pair cannot be submitted.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ValidatedJob is a frozen selection pair for one upload run.
type ValidatedJob struct {
	Local  LocalSelection
	Folder remotetree.Folder
}

// TrySubmit validates the pair. A nil local or folder fails with the
// matching sentinel wrapped in *ValidationError.
func TrySubmit(local *LocalSelection, folder *remotetree.Folder) (ValidatedJob, error) {
	if local == nil || local.Path == "" {
		return ValidatedJob{}, &ValidationError{Err: ErrMissingLocalSelection}
	}
	if folder == nil || folder.Ref == "" {
		return ValidatedJob{}, &ValidationError{Err: ErrMissingRemoteFolder}
	}
	return ValidatedJob{Local: *local, Folder: *folder}, nil
}

// FolderResolver maps tree nodes to folders. *remotetree.Cache implements it.
type FolderResolver interface {
	FolderFor(id remotetree.NodeID) (remotetree.Folder, bool)
}

// State is the live selection driven by UI interaction.
type State struct {
	mu     sync.Mutex
	local  *LocalSelection
	folder *remotetree.Folder
}

// SelectLocal records a local path and returns the captured selection.
func (s *State) SelectLocal(path string) LocalSelection {
	sel := NewLocalSelection(path)
	s.mu.Lock()
	s.local = &sel
	s.mu.Unlock()
	return sel
}

// Highlight records the tree node the operator last chose. A node that is
// not a folder clears the folder choice and returns false.
func (s *State) Highlight(resolver FolderResolver, id remotetree.NodeID) (remotetree.Folder, bool) {
	folder, ok := resolver.FolderFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.folder = nil
		return remotetree.Folder{}, false
	}
	s.folder = &folder
	return folder, true
}

// ClearFolder forgets the folder choice, e.g. after the tree is refreshed.
func (s *State) ClearFolder() {
	s.mu.Lock()
	s.folder = nil
	s.mu.Unlock()
}

// Snapshot returns copies of the current choices; either may be nil.
func (s *State) Snapshot() (*LocalSelection, *remotetree.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var local *LocalSelection
	if s.local != nil {
		l := *s.local
		local = &l
	}
	var folder *remotetree.Folder
	if s.folder != nil {
		f := *s.folder
		folder = &f
	}
	return local, folder
}

// Submit validates the current choices.
func (s *State) Submit() (ValidatedJob, error) {
	local, folder := s.Snapshot()
	return TrySubmit(local, folder)
}

// Describe returns the status line shown after a local selection.
func (l LocalSelection) Describe() string {
	switch l.Kind {
	case KindDirectory:
		return fmt.Sprintf("Selected local folder: %s", filepath.Base(l.Path))
	case KindFile:
		return fmt.Sprintf("Selected local file: %s", filepath.Base(l.Path))
	default:
		return fmt.Sprintf("Selected local path: %s", l.Path)
	}
}
