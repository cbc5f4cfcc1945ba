package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Hosts    int                        `json:"hosts"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate host specs",
		Long: `Validate CUE host specs without running them.

Checks slot types and initial values, policy kinds, rule and transform
operands, and that every reaction names slots and hosts that exist.
Reactions that can trigger each other are reported as warnings: the
engine stops such loops at run time, but they are usually a mistake.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		code, message := parseCompileError(err)
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)

	for _, h := range loaded.Hosts {
		formatter.VerboseLog("Validating host: %s", h.Name)
	}

	result := ValidationResult{
		Valid:    true,
		Hosts:    len(loaded.Hosts),
		Errors:   compiler.ValidateAll(loaded.Hosts),
		Warnings: compiler.AnalyzeCycles(loaded.Hosts),
	}
	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d host(s))\n", result.Hosts)
	printCycleWarnings(formatter, result.Warnings)
	return nil
}

// outputValidationErrors reports every schema error. Invalid specs are a
// validation failure (exit 1), not a command error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := writeJSON(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	printCycleWarnings(formatter, result.Warnings)
	return exitErr
}

func printCycleWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  ! %s\n", w.Message)
	}
}

// ValidateSpecsDir validates all specs in a directory for callers outside
// the command tree.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return nil, err
	}
	return compiler.ValidateAll(loaded.Hosts), nil
}
