// Package compiler is the in-process Pipeline orchestrator: it binds
// lexing/parsing through every transform pass and codegen into one
// Compile call, wrapping each stage in a telemetry span the way the
// teacher's runtime.Runtime wraps each workflow step (SPEC_FULL.md §1.1,
// "per-pass-span convention").
//
// This is the in-process driver; the out-of-scope CLI (spec.md §1,
// Non-goals) would be a thin client of rpcapi.Service, which in turn wraps
// a Pipeline.
package compiler

import (
	"context"

	"github.com/plutolang/pluto/ast"
	"github.com/plutolang/pluto/codegen/emit"
	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
	"github.com/plutolang/pluto/effects"
	"github.com/plutolang/pluto/flatten"
	"github.com/plutolang/pluto/internal/diag"
	"github.com/plutolang/pluto/internal/telemetry"
	"github.com/plutolang/pluto/parser"
	"github.com/plutolang/pluto/transform/closure"
	"github.com/plutolang/pluto/transform/di"
	"github.com/plutolang/pluto/transform/mono"
	"github.com/plutolang/pluto/transform/spawn"
	"github.com/plutolang/pluto/typeck"
	"github.com/plutolang/pluto/xref"
)

// Pipeline runs the full compile sequence spec.md's modules describe, in
// the fixed order SPEC_FULL.md §4 names: lex/parse, xref, flatten, typeck,
// effects, closure lift, monomorphization, DI wiring, spawn desugaring, IR
// lowering, emit.
type Pipeline struct {
	Tracer telemetry.Tracer
	Logger telemetry.Logger
}

// New returns a Pipeline using the default Clue-backed telemetry
// implementations, scoped under "github.com/plutolang/pluto/compiler".
func New() *Pipeline {
	return &Pipeline{
		Tracer: telemetry.NewClueTracer("github.com/plutolang/pluto/compiler"),
		Logger: telemetry.NewClueLogger(),
	}
}

// Result is the product of a successful Compile: the lowered program, its
// container, and the program as it stood after every transform (useful to
// callers, e.g. rpcapi, that want the declaration index without
// re-decoding the container).
type Result struct {
	Program   *ast.Program
	Container *container.Container
}

// Compile runs every pass in order over src, stopping at the first pass
// that reports diagnostics or fails outright. Each stage is wrapped in a
// telemetry.PassSpan named "pass.<stage>" (SPEC_FULL.md §1.1).
func (p *Pipeline) Compile(ctx context.Context, src []byte) (*Result, error) {
	var prog *ast.Program

	if err := telemetry.PassSpan(ctx, p.Tracer, "parse", func(ctx context.Context) error {
		parsed, err := parser.Parse(src)
		if err != nil {
			return err
		}
		prog = parsed
		return nil
	}); err != nil {
		return nil, err
	}

	stages := []struct {
		name string
		run  func(*ast.Program) error
	}{
		{"xref", xref.Resolve},
		{"flatten", flatten.Flatten},
		{"typeck", typeck.Check},
		{"effects", effects.Infer},
		{"closure", closure.Lift},
		{"mono", mono.Monomorphize},
		{"di", di.Wire},
		{"spawn", spawn.Desugar},
	}

	for _, stage := range stages {
		stage := stage
		if err := telemetry.PassSpan(ctx, p.Tracer, stage.name, func(ctx context.Context) error {
			return stage.run(prog)
		}); err != nil {
			p.Logger.Error(ctx, "compile pass failed", "pass", stage.name, "error", err)
			return nil, err
		}
	}

	var cont *container.Container
	if err := telemetry.PassSpan(ctx, p.Tracer, "emit", func(ctx context.Context) error {
		built, err := emit.Build(prog, src)
		if err != nil {
			return err
		}
		cont = built
		return nil
	}); err != nil {
		return nil, err
	}

	return &Result{Program: prog, Container: cont}, nil
}

// Lower runs every pass through IR lowering without emitting a container,
// for callers (tests, rpcapi's Run path) that only need the IR.
func (p *Pipeline) Lower(ctx context.Context, src []byte) (*ast.Program, *ir.Module, error) {
	var prog *ast.Program
	if err := telemetry.PassSpan(ctx, p.Tracer, "parse", func(ctx context.Context) error {
		parsed, err := parser.Parse(src)
		if err != nil {
			return err
		}
		prog = parsed
		return nil
	}); err != nil {
		return nil, nil, err
	}

	stages := []struct {
		name string
		run  func(*ast.Program) error
	}{
		{"xref", xref.Resolve},
		{"flatten", flatten.Flatten},
		{"typeck", typeck.Check},
		{"effects", effects.Infer},
		{"closure", closure.Lift},
		{"mono", mono.Monomorphize},
		{"di", di.Wire},
		{"spawn", spawn.Desugar},
	}
	for _, stage := range stages {
		stage := stage
		if err := telemetry.PassSpan(ctx, p.Tracer, stage.name, func(ctx context.Context) error {
			return stage.run(prog)
		}); err != nil {
			return nil, nil, err
		}
	}

	var mod *ir.Module
	if err := telemetry.PassSpan(ctx, p.Tracer, "ir", func(ctx context.Context) error {
		lowered, err := ir.Lower(prog)
		if err != nil {
			return err
		}
		mod = lowered
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return prog, mod, nil
}

// DiagnosticsOf extracts a renderable diag.Bag from a pass error, if the
// error is (or wraps) one; used by callers that want
// SPEC_FULL.md §3's deterministic diagnostic rendering rather than a bare
// Go error string.
func DiagnosticsOf(err error) *diag.Bag {
	if err == nil {
		return nil
	}
	if b, ok := err.(*diag.Bag); ok {
		return b
	}
	if d := diag.FromError(err); d != nil {
		return &diag.Bag{Items: []*diag.Diagnostic{d}}
	}
	return nil
}
