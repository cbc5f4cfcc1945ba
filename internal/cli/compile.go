package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled hosts and their spec hash.
type CompilationResult struct {
	SpecHash string        `json:"spec_hash"`
	Hosts    []ir.HostSpec `json:"hosts"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	HostCount     int
	SlotCount     int
	ReactionCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE host specs to canonical IR",
		Long: `Compile CUE host specs to the IR the engine runs.

The compiler parses the CUE package, validates every host against the
IR schema and prints the hosts with a hash identifying the spec set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, specsDir)

	if verrs := compiler.ValidateAll(loaded.Hosts); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return outputCompileErrors(formatter, errs)
	}

	hash, err := ir.SpecHash(loaded.Hosts)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	result := &CompilationResult{SpecHash: hash, Hosts: loaded.Hosts}
	for _, h := range result.Hosts {
		formatter.VerboseLog("Compiled host: %s", h.Name)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, calculateStats(result), opts.Output)
}

func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{HostCount: len(result.Hosts)}
	for _, h := range result.Hosts {
		stats.SlotCount += len(h.Slots)
		stats.ReactionCount += len(h.Reactions)
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d host(s), %d slot(s), %d reaction(s)\n\n",
		stats.HostCount, stats.SlotCount, stats.ReactionCount)

	fmt.Fprintln(w, "Hosts:")
	for _, h := range result.Hosts {
		fmt.Fprintf(w, "  %s: %d slot(s), %d reaction(s)\n", h.Name, len(h.Slots), len(h.Reactions))
		for _, s := range h.Slots {
			kind := s.Policy.Kind
			if kind == "" {
				kind = ir.PolicyPlain
			}
			switch {
			case s.IsComputed():
				fmt.Fprintf(w, "    %s %s = %s(%s)\n", s.Name, s.Type, s.Compute.Op, strings.Join(s.Compute.Args, ", "))
			case s.IsLate():
				fmt.Fprintf(w, "    %s %s (%s, late)\n", s.Name, s.Type, kind)
			default:
				fmt.Fprintf(w, "    %s %s (%s)\n", s.Name, s.Type, kind)
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Spec hash: %s\n", result.SpecHash)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	firstCode, firstMessage := parseCompileError(errs[0])
	exitErr := NewExitError(ExitCommandError,
		fmt.Sprintf("compilation failed with %d error(s): %s: %s", len(errs), firstCode, firstMessage))

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := writeJSON(formatter.Writer, CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return exitErr
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, verr.Field + ": " + verr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the result as indented JSON. Canonical JSON is only
// used for hashing.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
