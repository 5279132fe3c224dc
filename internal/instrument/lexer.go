package instrument

import "strings"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokChar
	tokPunct
)

// token is one lexical element of the submitted source. pos and end are byte
// offsets into the original text, so edits can be spliced in without
// disturbing anything the tokenizer skipped.
type token struct {
	kind tokenKind
	text string
	pos  int
	end  int
}

// directive is a preprocessor line, kept whole and never instrumented.
type directive struct {
	text string
	pos  int
}

// Longest first within each length so a greedy scan picks the right one.
var punctuators = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "##",
}

type lexer struct {
	src        string
	pos        int
	lineStart  bool
	tokens     []token
	directives []directive
}

func tokenize(src string) ([]token, []directive) {
	lx := &lexer{src: src, lineStart: true}
	lx.run()
	return lx.tokens, lx.directives
}

func (lx *lexer) peek(n int) byte {
	if lx.pos+n < len(lx.src) {
		return lx.src[lx.pos+n]
	}
	return 0
}

func (lx *lexer) run() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			lx.lineStart = true
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
		case c == '\\' && lx.peek(1) == '\n':
			lx.pos += 2
		case c == '/' && lx.peek(1) == '/':
			lx.skipLineComment()
		case c == '/' && lx.peek(1) == '*':
			lx.skipBlockComment()
		case c == '#' && lx.lineStart:
			lx.readDirective()
		default:
			lx.lineStart = false
			lx.readToken()
		}
	}
}

func (lx *lexer) skipLineComment() {
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		if lx.src[lx.pos] == '\\' && lx.peek(1) == '\n' {
			lx.pos += 2
			continue
		}
		lx.pos++
	}
}

func (lx *lexer) skipBlockComment() {
	end := strings.Index(lx.src[lx.pos+2:], "*/")
	if end < 0 {
		lx.pos = len(lx.src)
		return
	}
	lx.pos += end + 4
}

// readDirective consumes a preprocessor line including backslash
// continuations. The terminating newline is left for run.
func (lx *lexer) readDirective() {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == '\\' && lx.peek(1) == '\n' {
			lx.pos += 2
			continue
		}
		if c == '/' && lx.peek(1) == '*' {
			lx.skipBlockComment()
			continue
		}
		if c == '\n' {
			break
		}
		lx.pos++
	}
	lx.directives = append(lx.directives, directive{text: lx.src[start:lx.pos], pos: start})
}

func (lx *lexer) readToken() {
	start := lx.pos
	c := lx.src[lx.pos]

	switch {
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.pos++
		}
		lx.emit(tokIdent, start)
	case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
		lx.readNumber()
		lx.emit(tokNumber, start)
	case c == '"':
		lx.readQuoted('"')
		lx.emit(tokString, start)
	case c == '\'':
		lx.readQuoted('\'')
		lx.emit(tokChar, start)
	default:
		for _, p := range punctuators {
			if strings.HasPrefix(lx.src[lx.pos:], p) {
				lx.pos += len(p)
				lx.emit(tokPunct, start)
				return
			}
		}
		lx.pos++
		lx.emit(tokPunct, start)
	}
}

func (lx *lexer) readNumber() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case isIdentPart(c) || c == '.':
			lx.pos++
		case (c == '+' || c == '-') && lx.pos > 0 && strings.ContainsRune("eEpP", rune(lx.src[lx.pos-1])):
			lx.pos++
		default:
			return
		}
	}
}

// readQuoted consumes a string or character literal. An unterminated literal
// stops at the end of the line, which is where the compiler will complain.
func (lx *lexer) readQuoted(quote byte) {
	lx.pos++
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\' && lx.pos+1 < len(lx.src):
			lx.pos += 2
		case c == quote:
			lx.pos++
			return
		case c == '\n':
			return
		default:
			lx.pos++
		}
	}
}

func (lx *lexer) emit(kind tokenKind, start int) {
	lx.tokens = append(lx.tokens, token{kind: kind, text: lx.src[start:lx.pos], pos: start, end: lx.pos})
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
