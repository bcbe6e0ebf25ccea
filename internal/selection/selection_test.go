package selection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

type mapResolver map[remotetree.NodeID]remotetree.Folder

func (m mapResolver) FolderFor(id remotetree.NodeID) (remotetree.Folder, bool) {
	f, ok := m[id]
	return f, ok
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.Equal(t, KindDirectory, Classify(dir))
	assert.Equal(t, KindFile, Classify(file))
	assert.Equal(t, KindOther, Classify(filepath.Join(dir, "missing")))
}

func TestTrySubmit(t *testing.T) {
	local := &LocalSelection{Path: "/data/report.pdf", Kind: KindFile}
	folder := &remotetree.Folder{Ref: "so-1", Title: "Accessions"}

	_, err := TrySubmit(nil, folder)
	assert.ErrorIs(t, err, ErrMissingLocalSelection)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = TrySubmit(local, nil)
	assert.ErrorIs(t, err, ErrMissingRemoteFolder)

	_, err = TrySubmit(nil, nil)
	assert.ErrorIs(t, err, ErrMissingLocalSelection, "local selection is checked first")

	job, err := TrySubmit(local, folder)
	require.NoError(t, err)
	assert.Equal(t, *local, job.Local)
	assert.Equal(t, *folder, job.Folder)

	// The job is frozen: later changes to the inputs don't leak in
	local.Path = "/other"
	folder.Ref = "so-9"
	assert.Equal(t, "/data/report.pdf", job.Local.Path)
	assert.Equal(t, "so-1", job.Folder.Ref)
}

func TestHighlightAssetClearsFolder(t *testing.T) {
	resolver := mapResolver{1: {Ref: "so-1", Title: "Accessions"}}
	var s State

	folder, ok := s.Highlight(resolver, 1)
	require.True(t, ok)
	assert.Equal(t, "so-1", folder.Ref)

	s.SelectLocal(t.TempDir())
	_, err := s.Submit()
	require.NoError(t, err)

	// Node 2 is an asset leaf: not in the mapping
	_, ok = s.Highlight(resolver, 2)
	assert.False(t, ok)

	_, err = s.Submit()
	assert.ErrorIs(t, err, ErrMissingRemoteFolder)
}

func TestSelectLocalReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0644))

	var s State
	first := s.SelectLocal(dir)
	assert.Equal(t, KindDirectory, first.Kind)

	second := s.SelectLocal(file)
	assert.Equal(t, KindFile, second.Kind)

	local, folder := s.Snapshot()
	require.NotNil(t, local)
	assert.Equal(t, file, local.Path)
	assert.Nil(t, folder)

	s.ClearFolder()
	_, folder = s.Snapshot()
	assert.Nil(t, folder)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Selected local folder: data", LocalSelection{Path: "/srv/data", Kind: KindDirectory}.Describe())
	assert.Equal(t, "Selected local file: a.txt", LocalSelection{Path: "/srv/a.txt", Kind: KindFile}.Describe())
	assert.Equal(t, "other", KindOther.String())
}
