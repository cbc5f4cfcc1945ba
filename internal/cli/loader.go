package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/slotbind/internal/compiler"
	"github.com/roach88/slotbind/internal/engine"
	"github.com/roach88/slotbind/internal/ir"
	"github.com/roach88/slotbind/internal/metrics"
	"github.com/roach88/slotbind/internal/store"
)

// LoadResult contains the hosts compiled from a specs directory.
type LoadResult struct {
	Hosts     []ir.HostSpec
	FileCount int
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs compiles every host in the CUE package in dir. It does not run
// schema validation; callers that build an engine get that from engine.New.
func LoadSpecs(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	hosts, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Hosts: hosts, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, the same set the
// CUE loader reads for a package.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants shared by all commands. Schema validation codes
// (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Journal open/read/write failed
	ErrCodeBadArgument = "E009" // Malformed slot reference or value
	ErrCodeRuntime     = "E010" // Engine rejected the operation
)

// MapFieldToErrorCode maps a compiler error field path such as
// "slot.age.policy.rules[0].op" to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.Contains(field, ".where"):
		return compiler.ErrInvalidCondition
	case strings.Contains(field, ".then"):
		return compiler.ErrInvalidThenClause
	case strings.Contains(field, ".when"):
		return compiler.ErrInvalidOutcome
	case strings.Contains(field, ".transform"):
		return compiler.ErrInvalidTransform
	case strings.Contains(field, ".rules"):
		return compiler.ErrInvalidRule
	case strings.Contains(field, ".compute"):
		return compiler.ErrInvalidCompute
	case strings.Contains(field, ".initial"):
		return compiler.ErrInvalidInitial
	case strings.Contains(field, ".policy"):
		return compiler.ErrInvalidPolicyKind
	case strings.HasSuffix(field, ".type"):
		return compiler.ErrInvalidSlotType
	default:
		return ErrCodeLoadFailed
	}
}

// session is an engine restored from the journal: specs from a directory,
// every journaled change replayed, new changes journaled to the same store.
type session struct {
	store    *store.Store
	engine   *engine.Engine
	replay   *engine.ReplayResult
	recorder *metrics.Recorder
}

// openSession loads specs, opens the journal and replays it. The caller
// must call close.
func openSession(ctx context.Context, opts *RootOptions, specsDir string, errOut io.Writer) (*session, error) {
	loaded, err := LoadSpecs(specsDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load specs", err)
	}

	st, err := store.Open(opts.dbPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	rec := metrics.New()
	eng, err := engine.New(loaded.Hosts, opts.engineOptions(errOut, st, rec)...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid specs", err)
	}

	changes, err := st.ReadChanges(ctx, "")
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	res, err := eng.Replay(ctx, changes)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore state from journal", err)
	}

	return &session{store: st, engine: eng, replay: res, recorder: rec}, nil
}

// close flushes metrics, if configured, and closes the store.
func (s *session) close(opts *RootOptions) error {
	var errs []error
	if opts.MetricsFile != "" {
		if err := s.recorder.WriteTextfile(opts.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
