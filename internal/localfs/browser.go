package localfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileEntry represents a file or directory in the local filesystem.
type FileEntry struct {
	Path    string      // Full path to the file
	Name    string      // Base name of the file
	Size    int64       // Size in bytes (0 for directories)
	IsDir   bool        // True if this is a directory
	ModTime time.Time   // Last modification time
	Mode    fs.FileMode // File mode/permissions
}

// ListDirectory returns the contents of a directory, filtered and sorted by
// options. Symlinks are resolved so a link to a directory lists as a directory.
func ListDirectory(ctx context.Context, path string, opts ListOptions) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()

		if !opts.IncludeHidden && IsHiddenName(name) {
			continue
		}

		full := filepath.Join(path, name)
		info, err := os.Stat(full)
		if err != nil {
			// Skip entries we can't stat (broken links, permission issues)
			continue
		}

		size := info.Size()
		if info.IsDir() {
			size = 0
		}

		result = append(result, FileEntry{
			Path:    full,
			Name:    name,
			Size:    size,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if opts.DirsFirst && result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})

	return result, nil
}

// WalkFunc is the callback signature for Walk.
// Return filepath.SkipDir to skip a directory, or any other error to stop walking.
type WalkFunc func(entry FileEntry) error

// Walk traverses a directory tree, calling fn for each file and directory.
// It respects WalkOptions for hidden file/directory filtering.
//
// The walk is depth-first and lexical. Directories are visited before their
// contents. Unreadable entries are skipped. The root itself is always visited.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		name := d.Name()

		if path != root && !opts.IncludeHidden && IsHiddenName(name) {
			if d.IsDir() && opts.SkipHiddenDirs {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		entry := FileEntry{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			IsDir:   d.IsDir(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		}
		if entry.IsDir {
			entry.Size = 0
		}

		return fn(entry)
	})
}

// WalkFiles is a convenience wrapper around Walk that only visits regular files
// (not directories).
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return Walk(root, opts, func(entry FileEntry) error {
		if entry.IsDir || !entry.Mode.IsRegular() {
			return nil
		}
		return fn(entry)
	})
}

// WalkResult holds everything found under a root.
type WalkResult struct {
	Files       []FileEntry
	Directories []FileEntry
	TotalBytes  int64
}

// WalkCollect walks root and returns files and directories separately along
// with the total size of the regular files. The root is not included.
func WalkCollect(root string, opts WalkOptions) (*WalkResult, error) {
	result := &WalkResult{}
	err := Walk(root, opts, func(entry FileEntry) error {
		if entry.Path == root {
			return nil
		}
		if entry.IsDir {
			result.Directories = append(result.Directories, entry)
			return nil
		}
		if entry.Mode.IsRegular() {
			result.Files = append(result.Files, entry)
			result.TotalBytes += entry.Size
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
