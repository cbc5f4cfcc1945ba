package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/slotbind/internal/ir"
)

// TraceSnapshot is the golden form of a run: a header line followed by one
// canonical JSON line per change.
type TraceSnapshot struct {
	ScenarioName string
	FlowToken    string
	Trace        []TraceEvent
}

// Bytes encodes the snapshot. Every line is RFC 8785 canonical JSON, so the
// output is byte-stable across runs and platforms.
func (s *TraceSnapshot) Bytes() ([]byte, error) {
	header := ir.IRObject{"scenario_name": ir.IRString(s.ScenarioName)}
	if s.FlowToken != "" {
		header["flow_token"] = ir.IRString(s.FlowToken)
	}

	var buf bytes.Buffer
	line, err := ir.MarshalCanonical(header)
	if err != nil {
		return nil, err
	}
	buf.Write(line)
	buf.WriteByte('\n')

	for _, ev := range s.Trace {
		line, err := ir.MarshalCanonical(ev.toIRObject())
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		FlowToken:    scenario.FlowToken,
		Trace:        result.Trace,
	}
	return result, assertSnapshot(t, scenario.Name, &snapshot)
}

// AssertGolden compares an existing result's trace with the golden file
// named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return assertSnapshot(t, scenarioName, &snapshot)
}

func assertSnapshot(t *testing.T, name string, snapshot *TraceSnapshot) error {
	t.Helper()

	data, err := snapshot.Bytes()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
