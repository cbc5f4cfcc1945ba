package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/testutil"
)

func TestCompileValidSpecs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{exampleSpecsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 4 host(s), 13 slot(s), 4 reaction(s)")
	assert.Contains(t, output, "User: 5 slot(s), 2 reaction(s)")
	assert.Contains(t, output, "age int (vetoable)")
	assert.Contains(t, output, "area int = product(width, height)")
	assert.Contains(t, output, "label string (vetoable, late)")
	assert.Contains(t, output, "Spec hash: ")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{exampleSpecsDir})

	require.NoError(t, cmd.Execute())

	var result CompilationResult
	status := decodeData(t, buf.String(), &result)
	assert.Equal(t, "ok", status)
	assert.Len(t, result.Hosts, 4)
	assert.NotEmpty(t, result.SpecHash)
}

func TestCompileSpecHashStable(t *testing.T) {
	hash := func() string {
		buf := &bytes.Buffer{}
		cmd := NewCompileCommand(&RootOptions{Format: "json"})
		cmd.SetOut(buf)
		cmd.SetArgs([]string{exampleSpecsDir})
		require.NoError(t, cmd.Execute())
		var result CompilationResult
		decodeData(t, buf.String(), &result)
		return result.SpecHash
	}
	assert.Equal(t, hash(), hash())
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{exampleSpecsDir, "--output", outputFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Hosts, 4)
	assert.NotEmpty(t, result.SpecHash)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileInvalidSpec(t *testing.T) {
	dir := specDir(t, `
host: Broken: slot: n: {
	type: "int"
	initial: 0
	policy: {kind: "vetoable", rules: [{op: "contains", value: "x"}]}
}
`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ Compilation failed")
	assert.Contains(t, buf.String(), compiler.ErrInvalidRule)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileInvalidSpecJSON(t *testing.T) {
	dir := specDir(t, `
host: Broken: {
	slot: n: {type: "int", initial: 0}
	reaction: r: {
		when: {slot: "missing"}
		then: {slot: "n", value: 1}
	}
}
`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownReactionSlot, resp.Error.Code)
}

func TestCompileFloatRejection(t *testing.T) {
	dir := specDir(t, `
host: Sensor: slot: reading: {type: "int", initial: 1.5}
`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "float values are forbidden")
	assert.Contains(t, buf.String(), compiler.ErrInvalidInitial)
}

func TestCompileVerboseOutput(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{exampleSpecsDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Found 2 CUE file(s)")
	assert.Contains(t, errOut.String(), "Compiled host: Thermostat")
	assert.NotContains(t, out.String(), "Found 2 CUE file(s)")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.cue", "package x")
	testutil.WriteFile(t, dir, "b.cue", "package x")
	testutil.WriteFile(t, dir, "notes.txt", "")
	testutil.WriteFile(t, dir, "sub/c.cue", "package x")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2, "only the package directory itself is scanned")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"slot.age.type", compiler.ErrInvalidSlotType},
		{"slot.age.initial", compiler.ErrInvalidInitial},
		{"slot.area.compute.op", compiler.ErrInvalidCompute},
		{"slot.age.policy.kind", compiler.ErrInvalidPolicyKind},
		{"slot.age.policy.rules[0].op", compiler.ErrInvalidRule},
		{"slot.title.policy.transform.name", compiler.ErrInvalidTransform},
		{`reaction."adult".when`, compiler.ErrInvalidOutcome},
		{`reaction."adult".where.rule`, compiler.ErrInvalidCondition},
		{`reaction."adult".then`, compiler.ErrInvalidThenClause},
		{"host", ErrCodeLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	result := &CompilationResult{
		Hosts: []ir.HostSpec{
			{Name: "A", Slots: []ir.SlotSpec{{Name: "x"}, {Name: "y"}}, Reactions: []ir.ReactionSpec{{ID: "r"}}},
			{Name: "B", Slots: []ir.SlotSpec{{Name: "z"}}},
		},
	}

	stats := calculateStats(result)
	assert.Equal(t, 2, stats.HostCount)
	assert.Equal(t, 3, stats.SlotCount)
	assert.Equal(t, 1, stats.ReactionCount)
}
