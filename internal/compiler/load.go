package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/slotbind/internal/ir"
)

// LoadDir loads the CUE package in dir and compiles every host under the
// top-level "host" field.
func LoadDir(dir string) ([]ir.HostSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("specs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileAll(value)
}

// LoadFiles compiles each file on its own and unifies the results, so
// hosts may be split across files without sharing a package clause.
func LoadFiles(paths []string) ([]ir.HostSpec, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CUE files given")
	}

	ctx := cuecontext.New()
	var value cue.Value
	for i, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(src, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			value = v
		} else {
			value = value.Unify(v)
		}
	}
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileAll(value)
}

// CompileAll compiles every host under root's "host" field, in source order.
func CompileAll(root cue.Value) ([]ir.HostSpec, error) {
	hostsVal := root.LookupPath(cue.ParsePath("host"))
	if !hostsVal.Exists() {
		return nil, &CompileError{Field: "host", Message: "no hosts found", Pos: root.Pos()}
	}

	iter, err := hostsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.HostSpec
	for iter.Next() {
		spec, err := CompileHost(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", unquote(iter.Selector().String()), err)
		}
		specs = append(specs, *spec)
	}
	if len(specs) == 0 {
		return nil, &CompileError{Field: "host", Message: "no hosts found", Pos: hostsVal.Pos()}
	}
	return specs, nil
}
