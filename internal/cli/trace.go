package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	FlowToken string
	Slot      string // optional "Host.slot" filter
}

// TraceResult holds the complete trace of one flow.
type TraceResult struct {
	FlowToken string          `json:"flow_token"`
	Timeline  []ChangeView    `json:"timeline"`
	Reactions []ReactionCount `json:"reactions"`
	Stats     TraceStats      `json:"stats"`
}

// ReactionCount is how many writes one reaction made in a flow.
type ReactionCount struct {
	Reaction string `json:"reaction"` // "Host/id"
	Writes   int    `json:"writes"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Changes        int `json:"changes"`
	Committed      int `json:"committed"`
	Rejected       int `json:"rejected"`
	ExternalWrites int `json:"external_writes"`
	ReactionWrites int `json:"reaction_writes"`
}

// FlowList is the trace output when no flow is given.
type FlowList struct {
	Flows []store.FlowSummary `json:"flows"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled flows",
		Long: `Show the changes journaled for a flow.

Without --flow, lists every flow with its seq range and how many of its
writes were rejected. With --flow, prints the flow's changes in seq order,
the reactions that wrote during it, and summary counts.`,
		Example: `  slotbind trace
  slotbind trace --flow 0192f3c4-...
  slotbind trace --flow 0192f3c4-... --slot Thermostat.heating --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Slot, "slot", "", "filter the timeline to one Host.slot")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.Slot != "" {
		if _, _, err := parseSlotRef(opts.Slot); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "invalid --slot", err)
		}
		if opts.FlowToken == "" {
			return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "--slot requires --flow; use 'slotbind history' for a slot across flows", nil)
		}
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if opts.FlowToken == "" {
		flows, err := st.ListFlows(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list flows", err)
		}
		return outputFlowList(formatter, FlowList{Flows: flows})
	}

	changes, err := st.ReadFlow(ctx, opts.FlowToken)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read flow", err)
	}

	result := buildTrace(opts.FlowToken, changes, opts.Slot)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if len(changes) == 0 {
		fmt.Fprintf(formatter.Writer, "No changes found for flow: %s\n", opts.FlowToken)
		return nil
	}
	return outputTraceText(formatter.Writer, result, formatter.Verbose)
}

// buildTrace computes the timeline and stats of one flow. Stats and
// reaction counts cover the whole flow; slotFilter only narrows the
// timeline.
func buildTrace(flow string, changes []ir.Change, slotFilter string) TraceResult {
	result := TraceResult{
		FlowToken: flow,
		Timeline:  []ChangeView{},
		Reactions: []ReactionCount{},
	}

	counts := make(map[string]int)
	var order []string
	for _, c := range changes {
		result.Stats.Changes++
		if c.Accepted {
			result.Stats.Committed++
		} else {
			result.Stats.Rejected++
		}
		if reaction, ok := strings.CutPrefix(c.Cause, "reaction:"); ok {
			result.Stats.ReactionWrites++
			if counts[reaction] == 0 {
				order = append(order, reaction)
			}
			counts[reaction]++
		} else {
			result.Stats.ExternalWrites++
		}

		if slotFilter == "" || slotFilter == c.Host+"."+c.Slot {
			result.Timeline = append(result.Timeline, newChangeView(c))
		}
	}

	for _, reaction := range order {
		result.Reactions = append(result.Reactions, ReactionCount{Reaction: reaction, Writes: counts[reaction]})
	}
	return result
}

func outputFlowList(formatter *OutputFormatter, list FlowList) error {
	if formatter.Format == "json" {
		return formatter.Success(list)
	}

	w := formatter.Writer
	if len(list.Flows) == 0 {
		fmt.Fprintln(w, "No flows recorded.")
		return nil
	}
	fmt.Fprintf(w, "%d flow(s):\n", len(list.Flows))
	for _, f := range list.Flows {
		fmt.Fprintf(w, "  %s  seq %d-%d  %d change(s)", f.FlowToken, f.FirstSeq, f.LastSeq, f.Changes)
		if f.Rejected > 0 {
			fmt.Fprintf(w, ", %d rejected", f.Rejected)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no changes)")
	}
	for _, c := range result.Timeline {
		formatChangeLine(w, c, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Reactions ===")
	if len(result.Reactions) == 0 {
		fmt.Fprintln(w, "  (none fired)")
	}
	for _, r := range result.Reactions {
		fmt.Fprintf(w, "  %s: %d write(s)\n", r.Reaction, r.Writes)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Changes:         %d\n", result.Stats.Changes)
	fmt.Fprintf(w, "  Committed:       %d\n", result.Stats.Committed)
	fmt.Fprintf(w, "  Rejected:        %d\n", result.Stats.Rejected)
	fmt.Fprintf(w, "  External writes: %d\n", result.Stats.ExternalWrites)
	fmt.Fprintf(w, "  Reaction writes: %d\n", result.Stats.ReactionWrites)
	return nil
}
