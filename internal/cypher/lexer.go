package cypher

import (
	"fmt"
	"strings"
)

// TokenType classifies a lexer token.
type TokenType int

const (
	TokMatch TokenType = iota
	TokWhere
	TokReturn
	TokOrder
	TokBy
	TokLimit
	TokAnd
	TokOr
	TokAs
	TokDistinct
	TokCount
	TokContains
	TokStarts
	TokWith
	TokNot
	TokAsc
	TokDesc
	TokSkip

	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokDash
	TokGT
	TokLT
	TokColon
	TokDot
	TokLBrace
	TokRBrace
	TokStar
	TokComma
	TokEQ
	TokRegex
	TokGTE
	TokLTE
	TokNEQ
	TokPipe
	TokDotDot

	TokIdent
	TokString
	TokNumber

	TokEOF
)

// Token is one lexeme with its byte offset in the query.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q, pos=%d)", t.Type, t.Value, t.Pos)
}

var keywords = map[string]TokenType{
	"MATCH":    TokMatch,
	"WHERE":    TokWhere,
	"RETURN":   TokReturn,
	"ORDER":    TokOrder,
	"BY":       TokBy,
	"LIMIT":    TokLimit,
	"AND":      TokAnd,
	"OR":       TokOr,
	"AS":       TokAs,
	"DISTINCT": TokDistinct,
	"COUNT":    TokCount,
	"CONTAINS": TokContains,
	"STARTS":   TokStarts,
	"WITH":     TokWith,
	"NOT":      TokNot,
	"ASC":      TokAsc,
	"DESC":     TokDesc,
	"SKIP":     TokSkip,
}

// operators is searched in order, so two-character forms come first.
var operators = []struct {
	text string
	typ  TokenType
}{
	{"<>", TokNEQ},
	{">=", TokGTE},
	{"<=", TokLTE},
	{"=~", TokRegex},
	{"..", TokDotDot},
	{"(", TokLParen},
	{")", TokRParen},
	{"[", TokLBracket},
	{"]", TokRBracket},
	{"{", TokLBrace},
	{"}", TokRBrace},
	{"-", TokDash},
	{">", TokGT},
	{"<", TokLT},
	{":", TokColon},
	{".", TokDot},
	{"*", TokStar},
	{",", TokComma},
	{"=", TokEQ},
	{"|", TokPipe},
}

type scanner struct {
	src string
	off int
}

// Lex splits a query into tokens. The last token is always TokEOF.
// Keywords are case-insensitive and reported upper-cased; identifiers may be
// quoted with backticks.
func Lex(input string) ([]Token, error) {
	s := &scanner{src: input}
	var out []Token
	for {
		s.skipSpace()
		if s.off >= len(s.src) {
			return append(out, Token{Type: TokEOF, Pos: s.off}), nil
		}
		tok, err := s.scan()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
}

// skipSpace consumes whitespace and // or /* */ comments.
func (s *scanner) skipSpace() {
	for s.off < len(s.src) {
		rest := s.src[s.off:]
		switch {
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r':
			s.off++
		case strings.HasPrefix(rest, "//"):
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				s.off += i + 1
			} else {
				s.off = len(s.src)
			}
		case strings.HasPrefix(rest, "/*"):
			if i := strings.Index(rest[2:], "*/"); i >= 0 {
				s.off += i + 4
			} else {
				s.off = len(s.src)
			}
		default:
			return
		}
	}
}

func (s *scanner) scan() (Token, error) {
	start := s.off
	c := s.src[start]
	switch {
	case c == '"' || c == '\'':
		return s.scanString(c)
	case c == '`':
		end := strings.IndexByte(s.src[start+1:], '`')
		if end < 0 {
			return Token{}, fmt.Errorf("unterminated identifier at pos %d", start)
		}
		s.off = start + end + 2
		return Token{Type: TokIdent, Value: s.src[start+1 : start+1+end], Pos: start}, nil
	case isDigit(c):
		return s.scanNumber(), nil
	case isIdentStart(c):
		for s.off < len(s.src) && isIdentPart(s.src[s.off]) {
			s.off++
		}
		word := s.src[start:s.off]
		if typ, ok := keywords[strings.ToUpper(word)]; ok {
			return Token{Type: typ, Value: strings.ToUpper(word), Pos: start}, nil
		}
		return Token{Type: TokIdent, Value: word, Pos: start}, nil
	}
	for _, op := range operators {
		if strings.HasPrefix(s.src[start:], op.text) {
			s.off += len(op.text)
			return Token{Type: op.typ, Value: op.text, Pos: start}, nil
		}
	}
	return Token{}, fmt.Errorf("unexpected char %q at pos %d", string(c), start)
}

// scanString reads a quoted literal; a backslash escapes the next byte.
func (s *scanner) scanString(quote byte) (Token, error) {
	start := s.off
	var sb strings.Builder
	for i := start + 1; i < len(s.src); i++ {
		switch c := s.src[i]; {
		case c == '\\' && i+1 < len(s.src):
			i++
			sb.WriteByte(s.src[i])
		case c == quote:
			s.off = i + 1
			return Token{Type: TokString, Value: sb.String(), Pos: start}, nil
		default:
			sb.WriteByte(c)
		}
	}
	return Token{}, fmt.Errorf("unterminated string at pos %d", start)
}

// scanNumber reads digits with an optional fraction. "1..3" stays a range.
func (s *scanner) scanNumber() Token {
	start := s.off
	s.digits()
	if s.off+1 < len(s.src) && s.src[s.off] == '.' && isDigit(s.src[s.off+1]) {
		s.off++
		s.digits()
	}
	return Token{Type: TokNumber, Value: s.src[start:s.off], Pos: start}
}

func (s *scanner) digits() {
	for s.off < len(s.src) && isDigit(s.src[s.off]) {
		s.off++
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
