// Package token defines the lexical token kinds produced by the Pluto lexer.
package token

// Kind identifies the lexical category of a Token.
type Kind int

const (
	// Invalid marks a token the lexer could not classify; always accompanied
	// by a diagnostic and never silently ignored by the parser.
	Invalid Kind = iota
	EOF

	Ident
	Int
	Float
	String    // plain "..."
	FString   // f"..." with interior {expr} segments
	FStrStart // leading text chunk of an f-string, up to the first '{'
	FStrMid   // text chunk between two interpolated expressions
	FStrEnd   // trailing text chunk, after the last '}'
	Bool
	None

	// Keywords
	KwFn
	KwClass
	KwTrait
	KwEnum
	KwError
	KwApp
	KwStage
	KwSystem
	KwTest
	KwLet
	KwMut
	KwSelf
	KwIf
	KwElse
	KwWhile
	KwFor
	KwIn
	KwMatch
	KwReturn
	KwRaise
	KwCatch
	KwSpawn
	KwScope
	KwYield
	KwPub
	KwImport
	KwModule
	KwTrue
	KwFalse
	KwNone
	KwImpl
	KwInvariant
	KwRequires
	KwSender
	KwReceiver
	KwTask
	KwStream
	KwChan
	KwNullable

	// Operators and punctuation
	Plus
	Minus
	Star
	Slash
	Percent
	Eq
	EqEq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	AndAnd
	OrOr
	Bang
	Question
	Arrow    // ->
	LArrow   // <-
	FatArrow // =>
	Dot
	DotDot
	Comma
	Colon
	ColonColon
	Semi
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	LAngle
	RAngle
	Pipe
	Amp
	At
)

var names = map[Kind]string{
	Invalid: "INVALID", EOF: "EOF",
	Ident: "IDENT", Int: "INT", Float: "FLOAT", String: "STRING",
	FString: "FSTRING", FStrStart: "FSTR_START", FStrMid: "FSTR_MID", FStrEnd: "FSTR_END",
	Bool: "BOOL", None: "NONE",
	KwFn: "fn", KwClass: "class", KwTrait: "trait", KwEnum: "enum", KwError: "error",
	KwApp: "app", KwStage: "stage", KwSystem: "system", KwTest: "test",
	KwLet: "let", KwMut: "mut", KwSelf: "self", KwIf: "if", KwElse: "else",
	KwWhile: "while", KwFor: "for", KwIn: "in", KwMatch: "match", KwReturn: "return",
	KwRaise: "raise", KwCatch: "catch", KwSpawn: "spawn", KwScope: "scope",
	KwYield: "yield", KwPub: "pub", KwImport: "import", KwModule: "module",
	KwTrue: "true", KwFalse: "false", KwNone: "none", KwImpl: "impl",
	KwInvariant: "invariant", KwRequires: "requires",
	KwSender: "Sender", KwReceiver: "Receiver", KwTask: "Task", KwStream: "Stream",
	KwChan: "chan", KwNullable: "Nullable",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Eq: "=", EqEq: "==", NotEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=",
	AndAnd: "&&", OrOr: "||", Bang: "!", Question: "?", Arrow: "->", LArrow: "<-", FatArrow: "=>",
	Dot: ".", DotDot: "..", Comma: ",", Colon: ":", ColonColon: "::", Semi: ";",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	LAngle: "<", RAngle: ">", Pipe: "|", Amp: "&", At: "@",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Keywords maps the literal spelling of each reserved word to its Kind.
var Keywords = map[string]Kind{
	"fn": KwFn, "class": KwClass, "trait": KwTrait, "enum": KwEnum, "error": KwError,
	"app": KwApp, "stage": KwStage, "system": KwSystem, "test": KwTest,
	"let": KwLet, "mut": KwMut, "self": KwSelf, "if": KwIf, "else": KwElse,
	"while": KwWhile, "for": KwFor, "in": KwIn, "match": KwMatch, "return": KwReturn,
	"raise": KwRaise, "catch": KwCatch, "spawn": KwSpawn, "scope": KwScope,
	"yield": KwYield, "pub": KwPub, "import": KwImport, "module": KwModule,
	"true": KwTrue, "false": KwFalse, "none": KwNone, "impl": KwImpl,
	"invariant": KwInvariant, "requires": KwRequires,
	"Sender": KwSender, "Receiver": KwReceiver, "Task": KwTask, "Stream": KwStream,
	"chan": KwChan, "Nullable": KwNullable,
}

// Span is a half-open byte-offset range [Start, End) into the source text.
// Every AST node carries one; it is the sole positional information the
// compiler needs (line/column are derived on demand for diagnostics).
type Span struct {
	Start int
	End   int
}

// Join returns the smallest span covering both a and b.
func (a Span) Join(b Span) Span {
	s := a
	if b.Start < s.Start {
		s.Start = b.Start
	}
	if b.End > s.End {
		s.End = b.End
	}
	return s
}

// Token is a single lexical unit together with its literal text and span.
type Token struct {
	Kind Kind
	Lit  string
	Span Span
}
