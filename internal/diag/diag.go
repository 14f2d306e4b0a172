// Package diag provides the structured diagnostic type shared by every
// front-end and transform pass (spec.md §7, "Compile-time diagnostic").
//
// Diagnostic is modeled on the teacher's runtime/agent/toolerrors.ToolError:
// a chain-of-Cause error that keeps errors.Is/errors.As working across
// wrapped diagnostics, generalized here to additionally carry a source Span
// and a Kind so callers can group and sort diagnostics without string
// sniffing.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/plutolang/pluto/token"
)

// Kind classifies a Diagnostic by the pass that raised it.
type Kind string

const (
	LexError      Kind = "lex_error"
	ParseError    Kind = "parse_error"
	XrefError     Kind = "xref_error"
	FlattenError  Kind = "flatten_error"
	TypeError     Kind = "type_error"
	EffectError   Kind = "effect_error"
	ContractError Kind = "contract_error"
	DIError       Kind = "di_error"
	CodegenError  Kind = "codegen_error"
)

// Diagnostic is a single structured compiler diagnostic.
type Diagnostic struct {
	Span    token.Span
	Kind    Kind
	Message string
	Cause   *Diagnostic
}

// New constructs a Diagnostic with no cause.
func New(kind Kind, span token.Span, message string) *Diagnostic {
	return &Diagnostic{Span: span, Kind: kind, Message: message}
}

// Newf formats message the way fmt.Errorf does.
func Newf(kind Kind, span token.Span, format string, args ...any) *Diagnostic {
	return New(kind, span, fmt.Sprintf(format, args...))
}

// Wrap constructs a Diagnostic that wraps an underlying error, converting it
// into a Diagnostic chain so metadata survives while errors.Is/As keep
// working through Unwrap.
func Wrap(kind Kind, span token.Span, message string, cause error) *Diagnostic {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Diagnostic{Span: span, Kind: kind, Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a Diagnostic chain, reusing an
// existing *Diagnostic in the chain verbatim where one is found.
func FromError(err error) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return &Diagnostic{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Span.Start, d.Span.End, d.Kind, d.Message)
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (d *Diagnostic) Unwrap() error {
	if d == nil || d.Cause == nil {
		return nil
	}
	return d.Cause
}

// Bag accumulates diagnostics across a pass so the pass can keep surfacing
// further problems instead of stopping at the first one found, mirroring
// goa.design/goa/v3/eval.ValidationErrors' accumulate-then-report shape.
type Bag struct {
	Items []*Diagnostic
}

// Add appends a pre-built Diagnostic.
func (b *Bag) Add(d *Diagnostic) {
	if d != nil {
		b.Items = append(b.Items, d)
	}
}

// Addf constructs and appends a Diagnostic in one call.
func (b *Bag) Addf(kind Kind, span token.Span, format string, args ...any) {
	b.Add(Newf(kind, span, format, args...))
}

// Merge appends every item of other into b.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.Items = append(b.Items, other.Items...)
}

// HasErrors reports whether any diagnostic was recorded.
func (b *Bag) HasErrors() bool { return len(b.Items) > 0 }

// Sorted returns the diagnostics ordered by span start, stable among equal
// spans, for deterministic rendering and golden-file tests.
func (b *Bag) Sorted() []*Diagnostic {
	out := make([]*Diagnostic, len(b.Items))
	copy(out, b.Items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}

// Error implements the error interface so a non-empty Bag can be returned
// directly as the error result of a pass.
func (b *Bag) Error() string {
	var sb strings.Builder
	for i, d := range b.Sorted() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.Error())
	}
	return sb.String()
}

// AsError returns b as an error if it has any items, or nil otherwise; this
// is the idiomatic way for a pass to return `(*ast.Program, error)`.
func (b *Bag) AsError() error {
	if b == nil || !b.HasErrors() {
		return nil
	}
	return b
}

// String renders every diagnostic in span order as one line per
// diagnostic, "line:col: kind: message", with byte offsets resolved
// against src. There is no path component: the compiler core operates on
// in-memory source, not files (the CLI driver that would own file paths is
// out of scope, spec.md §1). Intended for golden-file-style tests asserting
// on full diagnostic output, independent of any CLI formatting front end.
func (b *Bag) String(src []byte) string {
	var sb strings.Builder
	for i, d := range b.Sorted() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		line, col := lineCol(src, d.Span.Start)
		fmt.Fprintf(&sb, "%d:%d: %s: %s", line, col, d.Kind, d.Message)
	}
	return sb.String()
}

// lineCol converts a byte offset into 1-based line and column numbers.
func lineCol(src []byte, offset int) (line, col int) {
	line, col = 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
