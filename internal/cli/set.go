package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/ir"
)

// SetResult is the outcome of one set command.
type SetResult struct {
	FlowToken string       `json:"flow_token"`
	Accepted  bool         `json:"accepted"`
	Value     any          `json:"value"` // committed value of the direct write
	Changes   []ChangeView `json:"changes"`
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [flags] <specs-dir> <Host.slot> <value>",
		Short: "Write a slot and run its reactions",
		Long: `Write a value to a slot through its policy.

State is restored by replaying the journal, then the write starts a new
flow: every reaction it triggers runs, and every change is journaled.
The value is parsed as JSON; anything that is not valid JSON is taken
as a string, so 'set specs User.name Ada' works without quotes.

Flags go before the specs directory. Everything after it is positional,
so negative numbers need no quoting: 'set specs User.age -5'.

A rejected write is reported but is not an error.`,
		Example: `  slotbind set ./specs User.age 30
  slotbind set ./specs User.age -5
  slotbind set ./specs User.name '"Ada"'
  slotbind --format json set ./specs Thermostat.temperature 19`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(rootOpts, args[0], args[1], args[2], cmd)
		},
	}
	// "-5" would otherwise parse as a shorthand flag.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func runSet(opts *RootOptions, specsDir, ref, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	host, slotName, err := parseSlotRef(ref)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "invalid slot reference", err)
	}
	value, err := parseValue(raw)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadArgument, "invalid value", err)
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx, opts, specsDir, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to start", err)
	}
	defer func() {
		if cerr := sess.close(opts); cerr != nil {
			formatter.VerboseLog("close: %v", cerr)
		}
	}()
	if !sess.replay.OK() {
		return formatter.Fail(ExitCommandError, ErrCodeStore,
			fmt.Sprintf("journal does not replay against these specs (%d mismatch(es)); run 'slotbind replay'", len(sess.replay.Mismatches)), nil)
	}
	formatter.VerboseLog("Restored %d change(s) from %s", sess.replay.Applied, opts.dbPath())

	res, setErr := sess.engine.Set(ctx, host, slotName, value)
	if res == nil {
		// Nothing was applied: unknown host or slot, or a type mismatch.
		return formatter.Fail(ExitCommandError, ErrCodeRuntime, "set failed", setErr)
	}

	result := SetResult{
		FlowToken: res.FlowToken,
		Changes:   changeViews(res.Changes),
	}
	if len(res.Changes) > 0 {
		result.Accepted = res.Changes[0].Accepted
		result.Value = ir.ToGo(res.Changes[0].Committed)
	}

	if setErr != nil {
		return outputSetPartial(formatter, result, setErr)
	}
	return outputSetSuccess(formatter, result)
}

func outputSetSuccess(formatter *OutputFormatter, result SetResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	switch {
	case result.Accepted:
		fmt.Fprintf(w, "✓ Committed %s\n", formatValue(result.Value))
	case result.Value == nil:
		fmt.Fprintln(w, "✗ Rejected (slot stays unset)")
	default:
		fmt.Fprintf(w, "✗ Rejected (value stays %s)\n", formatValue(result.Value))
	}
	fmt.Fprintf(w, "Flow: %s, %d change(s)\n", result.FlowToken, len(result.Changes))
	for _, c := range result.Changes {
		formatChangeLine(w, c, formatter.Verbose)
	}
	return nil
}

// outputSetPartial reports a flow that stopped early. The changes applied
// before the stop are committed and journaled, so they are printed too.
func outputSetPartial(formatter *OutputFormatter, result SetResult, flowErr error) error {
	code := ErrCodeRuntime
	var re *engine.RuntimeError
	if errors.As(flowErr, &re) {
		code = string(re.Code)
	}
	exitErr := WrapExitError(ExitFailure, "flow stopped early", flowErr)

	if formatter.Format == "json" {
		if err := writeJSON(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: flowErr.Error(), Details: re},
		}); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ Flow stopped after %d change(s): %v\n", len(result.Changes), flowErr)
	fmt.Fprintf(w, "Flow: %s\n", result.FlowToken)
	for _, c := range result.Changes {
		formatChangeLine(w, c, formatter.Verbose)
	}
	return exitErr
}

// parseSlotRef splits "Host.slot". Slot names may not contain dots, host
// names may not either, so exactly one dot is required.
func parseSlotRef(ref string) (host, slotName string, err error) {
	host, slotName, ok := strings.Cut(ref, ".")
	if !ok || host == "" || slotName == "" || strings.Contains(slotName, ".") {
		return "", "", fmt.Errorf("expected Host.slot, got %q", ref)
	}
	return host, slotName, nil
}

// parseValue reads a command-line value. Valid JSON is decoded (floats and
// null are rejected); anything else is a string.
func parseValue(raw string) (ir.IRValue, error) {
	if !json.Valid([]byte(raw)) {
		return ir.IRString(raw), nil
	}
	return ir.UnmarshalIRValue([]byte(raw))
}
