package instrument

import "github.com/SachiinVishwakarma/CodeBasse/internal/tracelog"

// varKind says how a variable's value is printed, if at all.
type varKind int

const (
	kindOpaque varKind = iota
	kindSigned
	kindUnsigned
	kindReal
)

func (k varKind) traceable() bool {
	return k != kindOpaque
}

type symbol struct {
	name string
	kind varKind
	addr uint32
}

// traceable reports whether writes to s are reported. Names the trace line
// format cannot carry, such as UTF-8 identifiers, are skipped.
func (s *symbol) traceable() bool {
	return s.kind.traceable() && tracelog.ValidName(s.name)
}

// scope holds the names declared in one block. Variables and typedef names
// live in separate maps, as they do in C.
type scope struct {
	id    int
	vars  map[string]*symbol
	types map[string]varKind
}

// builtinTypes are typedef names from the standard headers a snippet is likely
// to use without them ever appearing in the submitted source.
var builtinTypes = map[string]varKind{
	"size_t":    kindUnsigned,
	"ssize_t":   kindSigned,
	"ptrdiff_t": kindSigned,
	"intptr_t":  kindSigned,
	"uintptr_t": kindUnsigned,
	"intmax_t":  kindSigned,
	"uintmax_t": kindUnsigned,
	"int8_t":    kindSigned,
	"int16_t":   kindSigned,
	"int32_t":   kindSigned,
	"int64_t":   kindSigned,
	"uint8_t":   kindUnsigned,
	"uint16_t":  kindUnsigned,
	"uint32_t":  kindUnsigned,
	"uint64_t":  kindUnsigned,
	"off_t":     kindSigned,
	"time_t":    kindSigned,
	"clock_t":   kindSigned,
	"wchar_t":   kindSigned,
	"FILE":      kindOpaque,
	"va_list":   kindOpaque,
}

var typeKeywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "_Complex": true, "__int128": true,
}

var qualifierKeywords = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "static": true,
	"extern": true, "register": true, "auto": true, "inline": true,
	"typedef": true, "_Thread_local": true, "__thread": true, "_Atomic": true,
	"_Noreturn": true, "__inline": true, "__inline__": true, "__restrict": true,
	"__extension__": true, "__const": true, "__volatile__": true,
}

var tagKeywords = map[string]bool{"struct": true, "union": true, "enum": true}

var attributeKeywords = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true,
	"_Alignas": true, "alignas": true, "asm": true, "__asm__": true,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

// statementKeywords can start a statement that is not a declaration even when
// an identifier follows them.
var statementKeywords = map[string]bool{
	"return": true, "goto": true, "break": true, "continue": true, "sizeof": true,
	"else": true, "case": true, "default": true, "do": true, "while": true,
	"for": true, "if": true, "switch": true, "_Static_assert": true,
	"static_assert": true, "asm": true, "__asm__": true, "typeof": true,
	"__typeof__": true, "_Generic": true, "_Alignof": true,
}

var scanfFuncs = map[string]bool{"scanf": true, "fscanf": true, "sscanf": true}

// declSpec is what the leading specifiers of a declaration resolve to.
type declSpec struct {
	kind    varKind
	typedef bool
	static  bool
}

// declarator is one name introduced by a declaration.
type declarator struct {
	name     string
	kind     varKind
	init     bool
	function bool
}

// parseDeclaration splits a declaration into its specifiers and declarators.
// toks must not include the terminating semicolon.
func (t *transformer) parseDeclaration(toks []token) (declSpec, []declarator) {
	var (
		spec                                  declSpec
		sawBase, sawInt, sawUnsigned, sawReal bool
		sawBool, sawTag, sawVoid              bool
		tagKind                               = kindOpaque
		named                                 = kindOpaque
		sawNamed                              bool
	)

	i := 0
specifiers:
	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok.kind != tokIdent:
			break specifiers
		case typeKeywords[tok.text]:
			sawBase = true
			switch tok.text {
			case "float", "double":
				sawReal = true
			case "unsigned":
				sawUnsigned = true
				sawInt = true
			case "_Bool", "bool":
				sawBool = true
			case "void":
				sawVoid = true
			case "_Complex":
				sawTag = true
			default:
				sawInt = true
			}
			i++
		case qualifierKeywords[tok.text]:
			switch tok.text {
			case "typedef":
				spec.typedef = true
			case "static", "extern", "_Thread_local", "__thread":
				spec.static = true
			}
			i++
		case attributeKeywords[tok.text]:
			i = skipGroup(toks, i+1)
		case tagKeywords[tok.text]:
			sawBase, sawTag = true, true
			if tok.text == "enum" {
				tagKind = kindSigned
			}
			i++
			if i < len(toks) && toks[i].kind == tokIdent && !attributeKeywords[toks[i].text] {
				i++
			}
			if i < len(toks) && toks[i].text == "{" {
				i = skipGroup(toks, i)
			}
		case !sawBase:
			if k, ok := t.lookupType(tok.text); ok {
				named = k
			}
			sawBase, sawNamed = true, true
			i++
		default:
			break specifiers
		}
	}

	switch {
	case sawTag:
		spec.kind = tagKind
	case sawNamed:
		spec.kind = named
	case sawReal:
		spec.kind = kindReal
	case sawBool || sawUnsigned:
		spec.kind = kindUnsigned
	case sawInt:
		spec.kind = kindSigned
	case sawVoid:
		spec.kind = kindOpaque
	default:
		// implicit int
		spec.kind = kindSigned
	}

	var decls []declarator
	for _, part := range splitTopLevel(toks[i:], ",") {
		if d, ok := parseDeclarator(part, spec.kind); ok {
			decls = append(decls, d)
		}
	}
	return spec, decls
}

func parseDeclarator(toks []token, base varKind) (declarator, bool) {
	d := declarator{kind: base}
	parenthesized := false
	i := 0
	for i < len(toks) && (toks[i].text == "*" || qualifierKeywords[toks[i].text]) {
		if toks[i].text == "*" {
			d.kind = kindOpaque
		}
		i++
	}
	if i >= len(toks) {
		return d, false
	}

	switch {
	case toks[i].text == "(":
		// (*fp)(int), (*arr)[3] and friends: never traced.
		end := skipGroup(toks, i)
		for _, tok := range toks[i:end] {
			if tok.kind == tokIdent && !qualifierKeywords[tok.text] && !attributeKeywords[tok.text] {
				d.name = tok.text
				break
			}
		}
		d.kind = kindOpaque
		parenthesized = true
		i = end
	case toks[i].kind == tokIdent:
		d.name = toks[i].text
		i++
	default:
		return d, false
	}
	if d.name == "" {
		return d, false
	}

	for i < len(toks) {
		switch text := toks[i].text; {
		case text == "[":
			d.kind = kindOpaque
			i = skipGroup(toks, i)
		case text == "(":
			if !parenthesized {
				d.function = true
			}
			i = skipGroup(toks, i)
		case attributeKeywords[text]:
			i = skipGroup(toks, i+1)
		case text == "=":
			d.init = true
			return d, true
		default:
			i++
		}
	}
	return d, true
}

// skipGroup returns the index just past the bracketed group opening at
// toks[i]. If toks[i] does not open a group, i is returned unchanged.
func skipGroup(toks []token, i int) int {
	if i >= len(toks) || !isOpen(toks[i].text) {
		return i
	}
	depth := 0
	for ; i < len(toks); i++ {
		switch {
		case isOpen(toks[i].text):
			depth++
		case isClose(toks[i].text):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(toks)
}

// splitTopLevel splits toks on sep where no bracket is open.
func splitTopLevel(toks []token, sep string) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i, tok := range toks {
		switch {
		case isOpen(tok.text):
			depth++
		case isClose(tok.text):
			depth--
		case tok.text == sep && depth == 0:
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts
}

func isOpen(s string) bool  { return s == "(" || s == "[" || s == "{" }
func isClose(s string) bool { return s == ")" || s == "]" || s == "}" }
