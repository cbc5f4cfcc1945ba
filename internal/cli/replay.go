package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/ir"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	FlowToken string // optional - report one flow only
}

// ReplayFlowResult holds the replay result for a single flow.
type ReplayFlowResult struct {
	FlowToken     string            `json:"flow_token"`
	Changes       int               `json:"changes"`
	Rejected      int               `json:"rejected"`
	Deterministic bool              `json:"deterministic"`
	Mismatches    []engine.Mismatch `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Flows            []ReplayFlowResult `json:"flows"`
	TotalFlows       int                `json:"total_flows"`
	Applied          int                `json:"applied"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Replay the journal and verify determinism",
		Long: `Rebuild every host from its initial values and re-apply each journaled
write, in seq order, through the current specs' policies.

Every change must replay to the value and outcome it was journaled with.
A mismatch means the specs changed since the journal was written. The
whole journal is always replayed; --flow only narrows the report.

Exit codes:
  0 - All flows are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (specs or database not found, etc.)`,
		Example: `  slotbind replay ./specs
  slotbind replay ./specs --flow 0192f3c4-...
  slotbind replay ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "report a specific flow only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		code, message := parseCompileError(err)
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	changes, err := st.ReadChanges(ctx, "")
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
	}

	// No journal: replay must not write back what it reads.
	eng, err := engine.New(loaded.Hosts, engine.WithLogger(opts.logger(formatter.GetErrWriter())))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRuntime, "invalid specs", err)
	}
	replayed, err := eng.Replay(ctx, changes)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRuntime, "replay failed", err)
	}

	result := summarizeReplay(changes, replayed, opts.FlowToken)
	if opts.FlowToken != "" && len(result.Flows) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("flow not found: %s", opts.FlowToken), nil)
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// summarizeReplay groups changes and mismatches by flow, in journal order.
func summarizeReplay(changes []ir.Change, replayed *engine.ReplayResult, onlyFlow string) ReplayResult {
	result := ReplayResult{
		Flows:            []ReplayFlowResult{},
		Applied:          replayed.Applied,
		AllDeterministic: true,
	}

	flowOfSeq := make(map[int64]string, len(changes))
	index := make(map[string]int)
	for _, c := range changes {
		flowOfSeq[c.Seq] = c.FlowToken
		if onlyFlow != "" && c.FlowToken != onlyFlow {
			continue
		}
		i, ok := index[c.FlowToken]
		if !ok {
			i = len(result.Flows)
			index[c.FlowToken] = i
			result.Flows = append(result.Flows, ReplayFlowResult{FlowToken: c.FlowToken, Deterministic: true})
		}
		result.Flows[i].Changes++
		if !c.Accepted {
			result.Flows[i].Rejected++
		}
	}

	for _, m := range replayed.Mismatches {
		i, ok := index[flowOfSeq[m.Seq]]
		if !ok {
			continue
		}
		result.Flows[i].Deterministic = false
		result.Flows[i].Mismatches = append(result.Flows[i].Mismatches, m)
		result.AllDeterministic = false
	}

	result.TotalFlows = len(result.Flows)
	return result
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeJSON(formatter.Writer, response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalFlows == 0 {
		fmt.Fprintln(w, "No flows found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d flow(s), %d change(s) applied\n", result.TotalFlows, result.Applied)
	fmt.Fprintln(w)

	for _, flow := range result.Flows {
		status := "✓"
		if !flow.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Flow: %s\n", status, flow.FlowToken)
		fmt.Fprintf(w, "  Changes: %d (%d rejected)\n", flow.Changes, flow.Rejected)

		for _, m := range flow.Mismatches {
			fmt.Fprintf(w, "  [%d] %s.%s recorded %s (%s), replayed %s (%s)\n",
				m.Seq, m.Host, m.Slot,
				formatValue(ir.ToGo(m.Recorded)), outcome(m.RecordedAccepted),
				formatValue(ir.ToGo(m.Replayed)), outcome(m.ReplayedAccepted))
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All flows verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}

func outcome(accepted bool) string {
	if accepted {
		return "committed"
	}
	return "rejected"
}
