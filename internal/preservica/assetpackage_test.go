package preservica

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preservica-tools/preservica-upload/internal/config"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

func TestPackageSingleFile(t *testing.T) {
	tempDir := t.TempDir()
	c, err := NewClient(&config.Config{Server: "example.preservica.com"}, logging.NewNopLogger(), WithTempDir(tempDir))
	require.NoError(t, err)

	content := []byte("minutes of the 1923 committee meeting")
	src := filepath.Join(t.TempDir(), "minutes.txt")
	require.NoError(t, os.WriteFile(src, content, 0644))

	folder := remotetree.Folder{Ref: "so-7", Title: "Committee"}
	pkg, err := c.PackageSingleFile(context.Background(), src, folder)
	require.NoError(t, err)
	assert.Equal(t, tempDir, filepath.Dir(pkg))
	assert.True(t, strings.HasSuffix(pkg, ".zip"))

	zr, err := zip.OpenReader(pkg)
	require.NoError(t, err)
	defer zr.Close()

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = data
	}

	assert.Equal(t, content, files["content/minutes.txt"])
	require.Contains(t, files, "metadata.xml")

	var doc xipDocument
	require.NoError(t, xml.Unmarshal(files["metadata.xml"], &doc))

	sum := sha1.Sum(content)
	assert.Equal(t, "so-7", doc.InformationObject.Parent)
	assert.Equal(t, "minutes", doc.InformationObject.Title)
	assert.Equal(t, doc.InformationObject.Ref, doc.ContentObject.Parent)
	assert.Equal(t, doc.InformationObject.Ref, doc.Representation.InformationObject)
	assert.Equal(t, []string{doc.ContentObject.Ref}, doc.Representation.ContentObjects)
	assert.Equal(t, doc.ContentObject.Ref, doc.Generation.ContentObject)
	assert.Equal(t, int64(len(content)), doc.Bitstream.FileSize)
	require.Len(t, doc.Bitstream.Fixities, 1)
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.Bitstream.Fixities[0].Value)
	assert.Equal(t, doc.InformationObject.Ref+".zip", filepath.Base(pkg))
}

func TestPackageSingleFileRejectsDirectory(t *testing.T) {
	c, err := NewClient(&config.Config{Server: "example.preservica.com"}, nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	_, err = c.PackageSingleFile(context.Background(), t.TempDir(), remotetree.Folder{Ref: "so-1"})
	assert.Error(t, err)
}

func TestPackageSingleFileCancelled(t *testing.T) {
	c, err := NewClient(&config.Config{Server: "example.preservica.com"}, nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.PackageSingleFile(ctx, src, remotetree.Folder{Ref: "so-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
