package report

import (
	"path/filepath"
	"testing"

	"markscan/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unit3.gradereport.json")

	result := &pipeline.Response{
		Summary: pipeline.Summary{TotalPages: 4, Identified: 3, Blank: 1},
	}
	rep := New("a-1", "sec-2", result)
	rep.SetInputs(path, filepath.Join(dir, "scans"), filepath.Join(dir, "quiz.json"), filepath.Join(dir, "roster.json"))
	require.NoError(t, rep.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a-1", loaded.AssignmentID)
	assert.Equal(t, "sec-2", loaded.SectionID)
	assert.Equal(t, 4, loaded.Result.Summary.TotalPages)
	assert.False(t, loaded.Modified.IsZero())
}

func TestInputPathsRelocate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.gradereport.json")

	rep := New("a-1", "", nil)
	rep.SetInputs(path, filepath.Join(dir, "scans"), "", "")

	// Stored relative, resolved against wherever the report lives now
	assert.Equal(t, "scans", rep.SourceDir)
	moved := filepath.Join("/srv/archive", "run.gradereport.json")
	assert.Equal(t, filepath.Join("/srv/archive", "scans"), rep.GetSourceDir(moved))
	assert.Empty(t, rep.GetRosterPath(moved))
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.gradereport.json")

	rep := New("a-1", "", nil)
	rep.Version = 99
	require.NoError(t, rep.Save(path))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
