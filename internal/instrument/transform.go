// Package instrument rewrites a C translation unit so every write to a traced
// scalar variable is followed by a call that prints the variable's name, new
// value and synthetic address on stdout.
//
// The pass is lexical. It tokenizes the source, tracks block scopes and
// declarations, and splices trace calls in after statements; it never
// reformats or reorders what the user wrote. Trace calls go on the same line
// as the statement they follow, so compiler diagnostics keep the user's line
// numbers.
package instrument

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SachiinVishwakarma/CodeBasse/internal/tracelog"
)

// Transform returns src with trace calls inserted and the helper prologue
// prepended. It is pure: every call starts from an empty symbol table and
// address counter. The only error is a *DirectiveError for source that tries
// to pull host files into the build.
func Transform(src string) (string, error) {
	toks, directives := tokenize(src)
	if err := checkDirectives(src, toks, directives); err != nil {
		return "", err
	}

	t := &transformer{
		src:      src,
		toks:     toks,
		nextAddr: tracelog.BaseAddress,
	}
	t.translationUnit()
	return prologue + t.apply(), nil
}

type edit struct {
	pos  int
	text string
}

type transformer struct {
	src       string
	toks      []token
	i         int
	scopes    []*scope
	nextScope int
	nextAddr  uint32
	edits     []edit
}

func (t *transformer) eof() bool {
	return t.i >= len(t.toks)
}

func (t *transformer) is(text string) bool {
	return !t.eof() && t.toks[t.i].text == text
}

func (t *transformer) isAt(i int, text string) bool {
	return i < len(t.toks) && t.toks[i].text == text
}

// ──────────────────────────────────────────────────────
// Scopes
// ──────────────────────────────────────────────────────

func (t *transformer) pushScope() *scope {
	s := &scope{
		id:    t.nextScope,
		vars:  make(map[string]*symbol),
		types: make(map[string]varKind),
	}
	t.nextScope++
	t.scopes = append(t.scopes, s)
	return s
}

func (t *transformer) popScope() {
	if len(t.scopes) > 1 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

func (t *transformer) current() *scope {
	return t.scopes[len(t.scopes)-1]
}

func (t *transformer) lookupVar(name string) *symbol {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if s, ok := t.scopes[i].vars[name]; ok {
			return s
		}
	}
	return nil
}

func (t *transformer) lookupType(name string) (varKind, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if k, ok := t.scopes[i].types[name]; ok {
			return k, true
		}
		if _, ok := t.scopes[i].vars[name]; ok {
			return kindOpaque, false
		}
	}
	k, ok := builtinTypes[name]
	return k, ok
}

// declare registers the declarators of one declaration in the current scope.
// When eager is false, traced variables get their address on first write
// instead of here.
func (t *transformer) declare(spec declSpec, decls []declarator, eager bool) []*symbol {
	sc := t.current()
	var syms []*symbol
	for _, d := range decls {
		if d.function {
			continue
		}
		if spec.typedef {
			sc.types[d.name] = d.kind
			delete(sc.vars, d.name)
			continue
		}
		sym := &symbol{name: d.name, kind: d.kind}
		sc.vars[d.name] = sym
		delete(sc.types, d.name)
		if eager && sym.traceable() {
			t.addressOf(sym)
		}
		syms = append(syms, sym)
	}
	return syms
}

func (t *transformer) addressOf(sym *symbol) uint32 {
	if sym.addr == 0 {
		sym.addr = t.nextAddr
		t.nextAddr += tracelog.AddressStride
	}
	return sym.addr
}

// ──────────────────────────────────────────────────────
// File scope
// ──────────────────────────────────────────────────────

func (t *transformer) translationUnit() {
	t.pushScope()
	for !t.eof() {
		t.externalDeclaration()
	}
}

// externalDeclaration consumes one file-scope declaration or function
// definition.
func (t *transformer) externalDeclaration() {
	start := t.i
	depth := 0
	for !t.eof() {
		text := t.toks[t.i].text
		switch {
		case text == "(" || text == "[":
			depth++
		case text == ")" || text == "]":
			depth--
		case text == ";" && depth <= 0:
			spec, decls := t.parseDeclaration(t.toks[start:t.i])
			t.declare(spec, decls, true)
			t.i++
			return
		case text == "}" && depth <= 0:
			// Unbalanced close brace; let the compiler report it.
			t.i++
			return
		case text == "{" && depth <= 0:
			header := t.toks[start:t.i]
			if isFunctionHeader(header) {
				t.functionDefinition(header)
				return
			}
			t.i = skipGroup(t.toks, t.i)
			continue
		}
		t.i++
	}
}

func isFunctionHeader(header []token) bool {
	if len(header) < 3 || header[len(header)-1].text != ")" {
		return false
	}
	depth := 0
	for _, tok := range header {
		switch {
		case isOpen(tok.text):
			depth++
		case isClose(tok.text):
			depth--
		case tok.text == "=" && depth == 0:
			return false
		}
	}
	return true
}

func (t *transformer) functionDefinition(header []token) {
	t.pushScope()
	defer t.popScope()

	open := lastGroupStart(header)
	if open >= 0 {
		params := header[open+1 : len(header)-1]
		for _, p := range splitTopLevel(params, ",") {
			if len(p) == 0 || p[0].text == "..." || (len(p) == 1 && p[0].text == "void") {
				continue
			}
			spec, decls := t.parseDeclaration(p)
			t.declare(spec, decls, false)
		}
	}
	t.block()
}

// lastGroupStart returns the index of the '(' matching the final ')' of
// header, or -1.
func lastGroupStart(header []token) int {
	depth := 0
	for i := len(header) - 1; i >= 0; i-- {
		switch {
		case isClose(header[i].text):
			depth++
		case isOpen(header[i].text):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ──────────────────────────────────────────────────────
// Statements
// ──────────────────────────────────────────────────────

// block consumes a brace-delimited compound statement starting at '{'.
func (t *transformer) block() {
	t.i++
	t.pushScope()
	defer t.popScope()

	for !t.eof() && !t.is("}") {
		t.statement(false)
	}
	if !t.eof() {
		t.i++
	}
}

// statement consumes one statement. braceless is set when the statement is
// the body of a control statement written without braces.
func (t *transformer) statement(braceless bool) {
	if t.eof() {
		return
	}
	tok := t.toks[t.i]

	switch {
	case tok.text == "{":
		t.block()
	case tok.text == ";":
		t.i++
	case tok.text == "if":
		t.i++
		t.skipParens()
		t.statement(true)
		if t.is("else") {
			t.i++
			t.statement(true)
		}
	case tok.text == "while" || tok.text == "switch":
		t.i++
		t.skipParens()
		t.statement(true)
	case tok.text == "for":
		t.i++
		t.pushScope()
		t.forHeader()
		t.statement(true)
		t.popScope()
	case tok.text == "do":
		t.i++
		t.statement(true)
		if t.is("while") {
			t.i++
			t.skipParens()
			if t.is(";") {
				t.i++
			}
		}
	case tok.text == "case" || (tok.text == "default" && t.isAt(t.i+1, ":")):
		t.skipCaseLabel()
		t.statement(braceless)
	case tok.kind == tokIdent && t.isAt(t.i+1, ":"):
		t.i += 2
		t.statement(braceless)
	default:
		t.simpleStatement(braceless)
	}
}

func (t *transformer) skipParens() {
	if t.is("(") {
		t.i = skipGroup(t.toks, t.i)
	}
}

// forHeader consumes the parenthesised header of a for loop, declaring any
// variables its init clause introduces in the loop's own scope.
func (t *transformer) forHeader() {
	if !t.is("(") {
		return
	}
	end := skipGroup(t.toks, t.i)
	inner := t.toks[t.i+1 : max(end-1, t.i+1)]
	clauses := splitTopLevel(inner, ";")
	if len(clauses) > 0 && t.isDeclaration(clauses[0]) {
		spec, decls := t.parseDeclaration(clauses[0])
		t.declare(spec, decls, false)
	}
	t.i = end
}

func (t *transformer) skipCaseLabel() {
	depth, pending := 0, 0
	for !t.eof() {
		text := t.toks[t.i].text
		t.i++
		switch {
		case isOpen(text):
			depth++
		case isClose(text):
			depth--
		case text == "?":
			pending++
		case text == ":" && depth == 0:
			if pending == 0 {
				return
			}
			pending--
		}
	}
}

// simpleStatement consumes an expression statement or a declaration up to and
// including its semicolon, then splices in trace calls for what it wrote.
func (t *transformer) simpleStatement(braceless bool) {
	start := t.i
	depth := 0
	for !t.eof() {
		text := t.toks[t.i].text
		if isOpen(text) {
			depth++
		} else if isClose(text) {
			if depth == 0 && text == "}" {
				// Missing semicolon before '}'; nothing to anchor a trace to.
				return
			}
			depth = max(depth-1, 0)
		} else if text == ";" && depth == 0 {
			break
		}
		t.i++
	}
	if t.eof() {
		return
	}

	body := t.toks[start:t.i]
	semi := t.toks[t.i]
	t.i++

	syms := t.writtenBy(body)
	if braceless && len(syms) > 0 {
		t.edits = append(t.edits, edit{pos: body[0].pos, text: "{ "})
	}
	if uncheckedScanf(body) {
		t.edits = append(t.edits, edit{pos: body[0].pos, text: checkedPrefix})
	}
	if len(syms) == 0 {
		return
	}

	var calls strings.Builder
	for _, sym := range syms {
		calls.WriteByte(' ')
		calls.WriteString(t.traceCall(sym))
	}
	if braceless {
		calls.WriteString(" }")
	}
	t.edits = append(t.edits, edit{pos: semi.end, text: calls.String()})
}

// uncheckedScanf reports a statement that is a bare scanf call whose result is
// discarded. Such calls are routed through the checked wrapper in the
// prologue, which ends the program when stdin runs out before every
// conversion is filled.
func uncheckedScanf(body []token) bool {
	return len(body) >= 2 && body[0].kind == tokIdent && body[0].text == "scanf" &&
		body[1].text == "(" && skipGroup(body, 1) == len(body)
}

// writtenBy returns the traced variables a statement writes, in the order the
// writes complete: scanf operands first, then assignment targets.
func (t *transformer) writtenBy(body []token) []*symbol {
	if len(body) == 0 {
		return nil
	}

	var targets []*symbol
	if t.isDeclaration(body) {
		spec, decls := t.parseDeclaration(body)
		syms := t.declare(spec, decls, true)
		targets = append(t.scanfTargets(body), initialized(spec, decls, syms)...)
	} else {
		targets = append(t.scanfTargets(body), t.assignmentTargets(body)...)
	}

	seen := make(map[*symbol]bool, len(targets))
	out := targets[:0]
	for _, sym := range targets {
		if sym == nil || !sym.traceable() || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// initialized pairs declarators that carry an initializer with the symbols
// declare produced for them. Static storage is initialised once, before main,
// so those declarations are not traced.
func initialized(spec declSpec, decls []declarator, syms []*symbol) []*symbol {
	if spec.static || spec.typedef {
		return nil
	}
	var out []*symbol
	j := 0
	for _, d := range decls {
		if d.function {
			continue
		}
		if d.init && j < len(syms) {
			out = append(out, syms[j])
		}
		j++
	}
	return out
}

// assignmentTargets recognises x = e, x op= e, a = b = e, x++, ++x and their
// decrement forms. Anything else (array elements, members, dereferences) is
// not a write to a named scalar.
func (t *transformer) assignmentTargets(body []token) []*symbol {
	if len(body) == 2 {
		switch {
		case (body[0].text == "++" || body[0].text == "--") && body[1].kind == tokIdent:
			return []*symbol{t.lookupVar(body[1].text)}
		case body[0].kind == tokIdent && (body[1].text == "++" || body[1].text == "--"):
			return []*symbol{t.lookupVar(body[0].text)}
		}
	}

	var out []*symbol
	for i := 0; i+1 < len(body) && body[i].kind == tokIdent && assignOps[body[i+1].text]; i += 2 {
		out = append(out, t.lookupVar(body[i].text))
	}
	return out
}

// scanfTargets returns the variables passed as &name to any scanf family call
// in the statement.
func (t *transformer) scanfTargets(body []token) []*symbol {
	var out []*symbol
	for i := 0; i+1 < len(body); i++ {
		if body[i].kind != tokIdent || !scanfFuncs[body[i].text] || body[i+1].text != "(" {
			continue
		}
		end := skipGroup(body, i+1)
		args := body[i+2 : max(end-1, i+2)]
		for _, arg := range splitTopLevel(args, ",") {
			if len(arg) == 2 && arg[0].text == "&" && arg[1].kind == tokIdent {
				out = append(out, t.lookupVar(arg[1].text))
			}
		}
		i = end - 1
	}
	return out
}

// isDeclaration decides whether a statement declares something.
func (t *transformer) isDeclaration(body []token) bool {
	if len(body) == 0 || body[0].kind != tokIdent {
		return false
	}
	first := body[0].text
	if statementKeywords[first] {
		return false
	}
	if typeKeywords[first] || qualifierKeywords[first] || tagKeywords[first] {
		return true
	}
	if first == "__attribute__" || first == "_Alignas" {
		return true
	}
	if _, ok := t.lookupType(first); ok {
		return true
	}
	if t.lookupVar(first) != nil {
		return false
	}
	if len(body) >= 2 && body[1].kind == tokIdent {
		return true
	}
	// T *name = ..., an unknown typedef used through a pointer.
	if len(body) >= 3 && body[1].text == "*" && body[2].kind == tokIdent {
		return len(body) == 3 || body[3].text == "=" || body[3].text == "," || body[3].text == "["
	}
	return false
}

func (t *transformer) traceCall(sym *symbol) string {
	addr := t.addressOf(sym)
	switch sym.kind {
	case kindReal:
		return fmt.Sprintf("__cb_trace_real(%q, (double)(%s), 0x%Xu);", sym.name, sym.name, addr)
	case kindUnsigned:
		return fmt.Sprintf("__cb_trace_uint(%q, (unsigned long long)(%s), 0x%Xu);", sym.name, sym.name, addr)
	default:
		return fmt.Sprintf("__cb_trace_int(%q, (long long)(%s), 0x%Xu);", sym.name, sym.name, addr)
	}
}

// apply splices the collected edits into the original source.
func (t *transformer) apply() string {
	sort.SliceStable(t.edits, func(a, b int) bool { return t.edits[a].pos < t.edits[b].pos })

	var b strings.Builder
	b.Grow(len(t.src) + 64*len(t.edits))
	last := 0
	for _, e := range t.edits {
		b.WriteString(t.src[last:e.pos])
		b.WriteString(e.text)
		last = e.pos
	}
	b.WriteString(t.src[last:])
	return b.String()
}
