package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specsDir = "../../testdata/specs"

func TestLoadDir(t *testing.T) {
	specs, err := LoadDir(specsDir)
	require.NoError(t, err)

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	assert.ElementsMatch(t, []string{"User", "Rectangle", "Thermostat", "Display"}, names)
	assert.Empty(t, ValidateAll(specs), "fixture specs must be valid")
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs directory")
}

func TestLoadDirNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.cue")
	require.NoError(t, os.WriteFile(path, []byte("package test"), 0644))

	_, err := LoadDir(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLoadDirNoHosts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("package test\n\nother: 1\n"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hosts found")
}

func TestLoadFilesUnifiesHosts(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte(`host: A: slot: x: {type: "int", initial: 1}`), 0644))
	require.NoError(t, os.WriteFile(b, []byte(`host: B: slot: y: {type: "string", initial: "y"}`), 0644))

	specs, err := LoadFiles([]string{a, b})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "A", specs[0].Name)
	assert.Equal(t, "B", specs[1].Name)
}

func TestLoadFilesConflict(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cue")
	b := filepath.Join(dir, "b.cue")
	require.NoError(t, os.WriteFile(a, []byte(`host: A: slot: x: {type: "int", initial: 1}`), 0644))
	require.NoError(t, os.WriteFile(b, []byte(`host: A: slot: x: {type: "int", initial: 2}`), 0644))

	_, err := LoadFiles([]string{a, b})
	assert.Error(t, err, "conflicting initial values must not unify")
}

func TestLoadFilesSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`host: A: slot: {`), 0644))

	_, err := LoadFiles([]string{path})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Pos.Filename(), "bad.cue")
}

func TestLoadFilesEmpty(t *testing.T) {
	_, err := LoadFiles(nil)
	assert.Error(t, err)
}
