// Package compiler defines the boundary to the external toolchain: it
// receives a unit set and an output location and reports success plus
// diagnostics. The engine never interprets diagnostics, it only relays them.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the collaborator's verdict for one invocation.
type Result struct {
	Success     bool
	Diagnostics string
}

// Options carries the output location and the search path for already-built
// artifacts.
type Options struct {
	ArtifactDir string
}

// Compiler compiles a set of unit paths. A false Success with nil error means
// the toolchain ran and rejected the input; a non-nil error means the
// toolchain could not be invoked at all.
type Compiler interface {
	Compile(ctx context.Context, unitPaths []string, opts Options) (Result, error)
}

// Exec invokes an external compiler binary, javac-style: configured args,
// then -d <artifactDir> -cp <artifactDir>, then the unit paths. The artifact
// dir doubles as the classpath so units already built in earlier runs
// resolve without recompilation.
type Exec struct {
	Command string
	Args    []string
}

func (e *Exec) Compile(ctx context.Context, unitPaths []string, opts Options) (Result, error) {
	if len(unitPaths) == 0 {
		return Result{Success: true}, nil
	}

	args := make([]string, 0, len(e.Args)+4+len(unitPaths))
	args = append(args, e.Args...)
	args = append(args, "-d", opts.ArtifactDir, "-cp", opts.ArtifactDir)
	args = append(args, unitPaths...)

	cmd := exec.CommandContext(ctx, e.Command, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return Result{Success: true, Diagnostics: output.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The toolchain ran and reported failure; that is a build result,
		// not an invocation error.
		return Result{Success: false, Diagnostics: output.String()}, nil
	}
	return Result{}, fmt.Errorf("invoke compiler %s: %w", e.Command, err)
}
