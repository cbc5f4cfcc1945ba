package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/slotbind/internal/testutil"
)

const exampleSpecsDir = "../../testdata/specs"

// specDir writes each source as a file of package specs.
func specDir(t *testing.T, sources ...string) string {
	t.Helper()
	withPkg := make([]string, len(sources))
	for i, src := range sources {
		withPkg[i] = "package specs\n" + src
	}
	return testutil.SpecDir(t, withPkg...)
}

// execute runs the root command with a private journal and returns stdout,
// stderr and the command error.
func execute(t *testing.T, db string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", db}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "journal.db")
}

// decodeData unmarshals the data field of a JSON CLIResponse into v and
// returns the response status.
func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), string(resp.Data))
	}
	return resp.Status
}

func jsonUnmarshal(out string, v any) error {
	return json.Unmarshal([]byte(out), v)
}
