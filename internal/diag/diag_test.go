package diag

import (
	"errors"
	"testing"

	"github.com/plutolang/pluto/token"
	"github.com/stretchr/testify/require"
)

func TestBagAccumulatesAndSorts(t *testing.T) {
	var b Bag
	b.Addf(TypeError, token.Span{Start: 10, End: 12}, "second")
	b.Addf(TypeError, token.Span{Start: 1, End: 2}, "first")

	require.True(t, b.HasErrors())
	sorted := b.Sorted()
	require.Equal(t, "first", sorted[0].Message)
	require.Equal(t, "second", sorted[1].Message)
}

func TestDiagnosticChainSupportsErrorsAs(t *testing.T) {
	cause := New(LexError, token.Span{}, "bad byte")
	wrapped := Wrap(ParseError, token.Span{}, "while parsing", cause)

	var d *Diagnostic
	require.True(t, errors.As(wrapped, &d))
	require.Same(t, cause, wrapped.Cause)
}

func TestEmptyBagAsErrorIsNil(t *testing.T) {
	var b Bag
	require.NoError(t, b.AsError())
}

func TestBagStringRendersLineAndColumn(t *testing.T) {
	src := []byte("line one\nline two\n")
	var b Bag
	// "two" starts at byte 14 (line 2, column 6).
	b.Addf(TypeError, token.Span{Start: 14, End: 17}, "bad thing")
	require.Equal(t, "2:6: type_error: bad thing", b.String(src))
}
