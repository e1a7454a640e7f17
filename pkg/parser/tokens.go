package parser

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenWord   // user.name, 2, true, lower
	TokenString // "a:b" or 'a:b'

	// Symbols
	TokenPipe  // |
	TokenColon // :
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "(eof)",
	TokenError:  "(error)",
	TokenWord:   "(word)",
	TokenString: "(string)",
	TokenPipe:   "|",
	TokenColon:  ":",
}

// String returns a readable name of the token type.
func (tt TokenType) String() string {
	if s, ok := tokenNames[tt]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", tt)
}

// Token is a lexical unit of an expression body.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// String returns a debug representation of the token.
func (t Token) String() string {
	if t.Value == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s %q", t.Type, t.Value)
}

func lookupSymbol(r rune) TokenType {
	switch r {
	case '|':
		return TokenPipe
	case ':':
		return TokenColon
	}
	return 0
}
