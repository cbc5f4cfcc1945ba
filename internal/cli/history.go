package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/store"
)

// HistoryResult lists every journaled change of one slot.
type HistoryResult struct {
	Slot    string       `json:"slot"`
	Changes []ChangeView `json:"changes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit   int
		outcome string
	)

	cmd := &cobra.Command{
		Use:   "history <Host.slot>",
		Short: "Show every journaled write of a slot",
		Long: `Show the change history of one slot, oldest first, across all flows.

Rejected writes are listed too: they record what was proposed and the
value the slot kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], limit, outcome, cmd)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n changes (0 = all)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only committed or only rejected writes (committed|rejected)")

	return cmd
}

func runHistory(opts *RootOptions, ref string, limit int, outcome string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	host, slotName, err := parseSlotRef(ref)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "invalid slot reference", err)
	}
	if limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("--limit must not be negative, got %d", limit), nil)
	}
	if outcome != store.OutcomeAny && outcome != store.OutcomeCommitted && outcome != store.OutcomeRejected {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, fmt.Sprintf("--outcome must be committed or rejected, got %q", outcome), nil)
	}

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	changes, err := st.QueryChanges(cmd.Context(), store.Query{
		Host:    host,
		Slot:    slotName,
		Outcome: outcome,
		Last:    limit,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
	}

	result := HistoryResult{Slot: ref, Changes: changeViews(changes)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Changes) == 0 {
		fmt.Fprintf(formatter.Writer, "No changes recorded for %s\n", ref)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "History of %s (%d change(s)):\n", ref, len(result.Changes))
	for _, c := range result.Changes {
		formatChangeLine(formatter.Writer, c, formatter.Verbose)
	}
	return nil
}
