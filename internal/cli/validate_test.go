package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/testutil"
)

func runValidateCmd(t *testing.T, format, dir string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidSpecs(t *testing.T) {
	out, err := runValidateCmd(t, "text", exampleSpecsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (4 host(s))")
	assert.NotContains(t, out, "warning")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", exampleSpecsDir)
	require.NoError(t, err)

	var result ValidationResult
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.True(t, result.Valid)
	assert.Equal(t, 4, result.Hosts)
	assert.Empty(t, result.Errors)
}

func TestValidateReportsAllErrors(t *testing.T) {
	dir := specDir(t, `
host: Broken: {
	slot: {
		n: {type: "int", initial: "zero"}
		s: {type: "string", initial: "", policy: {kind: "transforming", transform: {name: "clamp", min: 0, max: 1}}}
	}
	reaction: r: {
		when: {slot: "missing"}
		then: {slot: "n", value: 1}
	}
}
`)

	out, err := runValidateCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrInvalidInitial)
	assert.Contains(t, out, compiler.ErrInvalidTransform)
	assert.Contains(t, out, compiler.ErrUnknownReactionSlot)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateErrorsJSON(t *testing.T) {
	dir := specDir(t, `
host: A: {
	slot: x: {type: "int", initial: 0}
	reaction: r: {
		when: {slot: "x"}
		then: {host: "Nowhere", slot: "x", from: "new"}
	}
}
`)

	out, err := runValidateCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, compiler.ErrUnknownReactionHost, resp.Error.Code)
}

func TestValidateCycleWarnings(t *testing.T) {
	dir := specDir(t, testutil.PingPongSpec)

	out, err := runValidateCmd(t, "text", dir)
	require.NoError(t, err, "cycles are warnings")
	assert.Contains(t, out, "✓ All specs valid (2 host(s))")
	assert.Contains(t, out, "1 warning(s):")
	assert.Contains(t, out, "potential reaction cycle: Ping/to-pong → Pong/to-ping → Ping/to-pong")
}

func TestValidateCycleWarningsJSON(t *testing.T) {
	dir := specDir(t, testutil.PingPongSpec)

	out, err := runValidateCmd(t, "json", dir)
	require.NoError(t, err)

	var result ValidationResult
	decodeData(t, out, &result)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, []string{"Ping/to-pong", "Pong/to-ping", "Ping/to-pong"}, result.Warnings[0].Path)
}

func TestValidateLoadError(t *testing.T) {
	out, err := runValidateCmd(t, "text", "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateSpecsDir(t *testing.T) {
	errs, err := ValidateSpecsDir(exampleSpecsDir)
	require.NoError(t, err)
	assert.Empty(t, errs)

	dir := specDir(t, `host: A: slot: x: {type: "float", initial: 0}`)
	errs, err = ValidateSpecsDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, compiler.ErrFloatTypeForbidden, errs[0].Code)
}
