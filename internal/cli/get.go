package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/ir"
)

// GetResult is a slot value or, for a bare host, every slot of the host.
type GetResult struct {
	Host  string         `json:"host"`
	Slot  string         `json:"slot,omitempty"`
	Value any            `json:"value,omitempty"`
	Slots map[string]any `json:"slots,omitempty"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <specs-dir> <Host.slot|Host>",
		Short: "Read a slot, or every slot of a host",
		Long: `Read slot values after replaying the journal.

Values are read through the slot's policy, so presenting policies format
what is printed. Reading never changes state and is not journaled.`,
		Example: `  slotbind get ./specs User.name
  slotbind get ./specs User --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, specsDir, ref string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(cmd.Context(), opts, specsDir, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to start", err)
	}
	defer func() {
		if cerr := sess.close(opts); cerr != nil {
			formatter.VerboseLog("close: %v", cerr)
		}
	}()
	if !sess.replay.OK() {
		fmt.Fprintf(formatter.GetErrWriter(), "warning: journal has %d replay mismatch(es); values may differ from the recorded run\n",
			len(sess.replay.Mismatches))
	}

	if !strings.Contains(ref, ".") {
		snap, err := sess.engine.Snapshot(ref)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRuntime, "get failed", err)
		}
		return outputSnapshot(formatter, ref, snap)
	}

	host, slotName, err := parseSlotRef(ref)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "invalid slot reference", err)
	}
	value, err := sess.engine.Get(host, slotName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRuntime, "get failed", err)
	}

	result := GetResult{Host: host, Slot: slotName, Value: ir.ToGo(value)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, formatValue(result.Value))
	return nil
}

func outputSnapshot(formatter *OutputFormatter, host string, snap ir.IRObject) error {
	slots := make(map[string]any, len(snap))
	for k, v := range snap {
		slots[k] = ir.ToGo(v)
	}
	if formatter.Format == "json" {
		return formatter.Success(GetResult{Host: host, Slots: slots})
	}

	names := make([]string, 0, len(slots))
	for k := range slots {
		names = append(names, k)
	}
	slices.Sort(names)
	fmt.Fprintf(formatter.Writer, "%s:\n", host)
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s = %s\n", name, formatValue(slots[name]))
	}
	return nil
}
