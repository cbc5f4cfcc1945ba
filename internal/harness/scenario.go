package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a set of hosts: a list of writes and
// reads with expectations, followed by assertions over the journal and the
// final slot values.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description says what the scenario checks.
	Description string `yaml:"description"`

	// Specs lists CUE files or directories of CUE files. Relative paths are
	// resolved against the scenario file's directory.
	Specs []string `yaml:"specs"`

	// FlowToken prefixes the flow tokens of the run: "<token>-1", "<token>-2"...
	// Defaults to "test-flow".
	FlowToken string `yaml:"flow_token,omitempty"`

	// MaxSteps overrides the engine's per-flow step quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps run in order. Each set step starts one flow.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultFlowToken prefixes flow tokens when a scenario sets none.
const DefaultFlowToken = "test-flow"

// Step is either a write (Set) or a read (Get) of one "Host.slot".
type Step struct {
	Set    string        `yaml:"set,omitempty"`
	Get    string        `yaml:"get,omitempty"`
	Value  any           `yaml:"value,omitempty"`
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Ref returns the slot the step touches.
func (s Step) Ref() string {
	if s.Set != "" {
		return s.Set
	}
	return s.Get
}

// ExpectClause checks the outcome of one step. Unset fields are not checked.
type ExpectClause struct {
	// Accepted checks whether the policy accepted the write (set only).
	Accepted *bool `yaml:"accepted,omitempty"`

	// Value is the committed value for a set, or the value read for a get.
	Value any `yaml:"value,omitempty"`

	// Changes is the number of changes the flow applied, reactions included
	// (set only).
	Changes *int `yaml:"changes,omitempty"`

	// Error is the runtime error code the step must fail with, e.g.
	// "QUOTA_EXCEEDED".
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the journal or final state after the run.
type Assertion struct {
	// Type is one of final_value, change_count, rejected_count, trace_order.
	Type string `yaml:"type"`

	// Slot is "Host.slot". Required by final_value; narrows change_count and
	// rejected_count.
	Slot string `yaml:"slot,omitempty"`

	// Value is the expected final value (final_value).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of changes (change_count, rejected_count).
	Count *int `yaml:"count,omitempty"`

	// Slots lists "Host.slot" refs whose first committed changes must appear
	// in this order (trace_order). Other changes may appear in between.
	Slots []string `yaml:"slots,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalValue    = "final_value"
	AssertChangeCount   = "change_count"
	AssertRejectedCount = "rejected_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads a scenario file, resolving spec paths against the
// file's directory. Unknown YAML fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving relative spec
// paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
// Spec paths are not checked.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch {
	case s.Set != "" && s.Get != "":
		return fmt.Errorf("steps[%d]: set and get are mutually exclusive", index)
	case s.Set == "" && s.Get == "":
		return fmt.Errorf("steps[%d]: one of set or get is required", index)
	}
	if _, _, err := splitRef(s.Ref()); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	if s.Set != "" && s.Value == nil {
		return fmt.Errorf("steps[%d]: value is required for set", index)
	}
	if s.Get != "" {
		if s.Value != nil {
			return fmt.Errorf("steps[%d]: value is not allowed for get", index)
		}
		if s.Expect != nil && (s.Expect.Accepted != nil || s.Expect.Changes != nil) {
			return fmt.Errorf("steps[%d]: accepted and changes apply to set only", index)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Slot != "" {
		if _, _, err := splitRef(a.Slot); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	switch a.Type {
	case AssertFinalValue:
		if a.Slot == "" {
			return fmt.Errorf("assertions[%d]: slot is required for final_value", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for final_value", index)
		}
	case AssertChangeCount, AssertRejectedCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Slots) == 0 {
			return fmt.Errorf("assertions[%d]: slots list is required for trace_order", index)
		}
		for _, ref := range a.Slots {
			if _, _, err := splitRef(ref); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitRef splits "Host.slot".
func splitRef(ref string) (host, slot string, err error) {
	host, slot, ok := strings.Cut(ref, ".")
	if !ok || host == "" || slot == "" {
		return "", "", fmt.Errorf("invalid slot reference %q (want Host.slot)", ref)
	}
	return host, slot, nil
}
