package lexer

import (
	"testing"

	"github.com/plutolang/pluto/token"
	"github.com/stretchr/testify/require"
)

func allTokens(src string) []token.Token {
	l := New([]byte(src))
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexKeywordsAndIdents(t *testing.T) {
	toks := allTokens("fn main mut self")
	require.Equal(t, []token.Kind{token.KwFn, token.Ident, token.KwMut, token.KwSelf, token.EOF}, kinds(toks))
}

func TestLexNumbers(t *testing.T) {
	toks := allTokens("42 3.14")
	require.Equal(t, token.Int, toks[0].Kind)
	require.Equal(t, "42", toks[0].Lit)
	require.Equal(t, token.Float, toks[1].Kind)
	require.Equal(t, "3.14", toks[1].Lit)
}

func TestLexPlainString(t *testing.T) {
	toks := allTokens(`"hi\n"`)
	require.Equal(t, token.String, toks[0].Kind)
	require.Equal(t, "hi\n", toks[0].Lit)
}

func TestLexFStringDoublesBraceEscape(t *testing.T) {
	toks := allTokens(`f"{{literal}} {expr}"`)
	require.Equal(t, token.FString, toks[0].Kind)
	require.Equal(t, "{literal} {expr}", toks[0].Lit)
}

func TestLexTwoCharOperators(t *testing.T) {
	toks := allTokens("a == b != c <= d")
	require.Equal(t, token.EqEq, toks[1].Kind)
	require.Equal(t, token.NotEq, toks[3].Kind)
	require.Equal(t, token.LtEq, toks[5].Kind)
}

func TestLexUnknownCharacterRecordsDiagnosticAndResyncs(t *testing.T) {
	l := New([]byte("a $ b"))
	var got []token.Kind
	for {
		tk := l.Next()
		got = append(got, tk.Kind)
		if tk.Kind == token.EOF {
			break
		}
	}
	require.True(t, l.Diagnostics().HasErrors())
	require.Contains(t, got, token.Ident)
	require.Contains(t, got, token.Invalid)
}

func TestLexLineComment(t *testing.T) {
	toks := allTokens("a // comment\nb")
	require.Equal(t, []token.Kind{token.Ident, token.Ident, token.EOF}, kinds(toks))
}
