package packaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/preservica-tools/preservica-upload/internal/localfs"
)

// zipDirectory writes dir into ArchivePath(dir). Entry names are relative
// to dir's parent, so the archive unpacks into a single top-level folder
// named after dir. Hidden files are included.
func (p *Pipeline) zipDirectory(ctx context.Context, dir string) (string, error) {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	dest := p.ArchivePath(dir)

	walkOpts := localfs.WalkOptions{IncludeHidden: true}
	contents, err := localfs.WalkCollect(dir, walkOpts)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	p.tracker.Start(contents.TotalBytes, "Zipping "+filepath.Base(dir))
	var written int64

	err = localfs.Walk(dir, walkOpts, func(entry localfs.FileEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(parent, entry.Path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if entry.IsDir {
			_, err := zw.CreateHeader(&zip.FileHeader{
				Name:     name + "/",
				Method:   zip.Store,
				Modified: entry.ModTime,
			})
			return err
		}
		if !entry.Mode.IsRegular() {
			return nil
		}

		n, err := addFile(zw, entry, name)
		written += n
		p.tracker.Update(written)
		return err
	})
	if err != nil {
		p.tracker.Error(err)
		_ = zw.Close()
		return "", fmt.Errorf("failed to zip %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	p.tracker.Finish()

	return dest, nil
}

func addFile(zw *zip.Writer, entry localfs.FileEntry, name string) (int64, error) {
	f, err := os.Open(entry.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, f)
}
