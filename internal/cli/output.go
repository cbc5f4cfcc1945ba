package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failure, validation failure, replay divergence, flow stopped early
	ExitCommandError = 2 // Bad arguments, missing paths, unreadable journal
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output; defaults to Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return writeJSON(f.Writer, CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return writeJSON(f.Writer, CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports an error and returns the ExitError the command should exit with.
func (f *OutputFormatter) Fail(exitCode int, code, message string, err error) error {
	var details any
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		details = re
	}
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, msg, details)
	return WrapExitError(exitCode, message, err)
}

// VerboseLog writes a diagnostic line when verbose mode is on. It goes to
// ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// ChangeView is the display form of a journaled change.
type ChangeView struct {
	ID        string `json:"id"`
	FlowToken string `json:"flow_token"`
	Seq       int64  `json:"seq"`
	Slot      string `json:"slot"` // "Host.slot"
	Old       any    `json:"old"`
	Proposed  any    `json:"proposed"`
	Committed any    `json:"committed"`
	Accepted  bool   `json:"accepted"`
	Cause     string `json:"cause"`
}

func newChangeView(c ir.Change) ChangeView {
	return ChangeView{
		ID:        c.ID,
		FlowToken: c.FlowToken,
		Seq:       c.Seq,
		Slot:      c.Host + "." + c.Slot,
		Old:       ir.ToGo(c.Old),
		Proposed:  ir.ToGo(c.Proposed),
		Committed: ir.ToGo(c.Committed),
		Accepted:  c.Accepted,
		Cause:     c.Cause,
	}
}

func changeViews(changes []ir.Change) []ChangeView {
	out := make([]ChangeView, len(changes))
	for i, c := range changes {
		out[i] = newChangeView(c)
	}
	return out
}

// formatChangeLine renders one change for text output:
//
//	[3] User.age 25 -> 25 (rejected, external)
func formatChangeLine(w io.Writer, c ChangeView, verbose bool) {
	status := "committed"
	if !c.Accepted {
		status = "rejected"
	}
	fmt.Fprintf(w, "  [%d] %s %s -> %s (%s, %s)\n",
		c.Seq, c.Slot, formatValue(c.Proposed), formatValue(c.Committed), status, c.Cause)
	if verbose {
		fmt.Fprintf(w, "       old: %s  flow: %s  id: %s\n", formatValue(c.Old), c.FlowToken, truncateID(c.ID))
	}
}

// formatValue renders a plain Go value as compact JSON.
func formatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
