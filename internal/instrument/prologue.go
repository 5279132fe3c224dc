package instrument

import (
	"fmt"
	"strings"

	"github.com/SachiinVishwakarma/CodeBasse/internal/tracelog"
)

// prologue defines the trace helpers once, ahead of the user's code. stdout is
// switched to line buffering before main runs so trace lines and ordinary
// output interleave exactly as written, even through a pipe. The closing #line
// directive restores the user's own line numbering.
//
// __cb_checked_scanf stands in for scanf calls whose result the program
// ignores. When stdin ends before every conversion in the format is filled it
// prints InputExhaustedMessage to stderr and exits with status 1.
const prologue = `#include <stdio.h>
__attribute__((unused)) static void __cb_trace_int(const char *name, long long value, unsigned int addr)
{
	printf("` + tracelog.Prefix + `{ %s: %lld } at 0x%X\n", name, value, addr);
	fflush(stdout);
}
__attribute__((unused)) static void __cb_trace_uint(const char *name, unsigned long long value, unsigned int addr)
{
	printf("` + tracelog.Prefix + `{ %s: %llu } at 0x%X\n", name, value, addr);
	fflush(stdout);
}
__attribute__((unused)) static void __cb_trace_real(const char *name, double value, unsigned int addr)
{
	printf("` + tracelog.Prefix + `{ %s: %g } at 0x%X\n", name, value, addr);
	fflush(stdout);
}
__attribute__((unused)) static int __cb_scanf_wanted(const char *f)
{
	int n = 0;
	for (; *f; f++) {
		if (*f != '%')
			continue;
		f++;
		if (!*f)
			break;
		if (*f == '%' || *f == '*')
			continue;
		while (*f >= '0' && *f <= '9')
			f++;
		while (*f == 'h' || *f == 'l' || *f == 'j' || *f == 'z' || *f == 't' || *f == 'L' || *f == 'q')
			f++;
		if (*f == '[') {
			f++;
			if (*f == '^')
				f++;
			if (*f == ']')
				f++;
			while (*f && *f != ']')
				f++;
		}
		if (!*f)
			break;
		if (*f != 'n')
			n++;
	}
	return n;
}
__attribute__((unused, format(scanf, 1, 2))) static int __cb_checked_scanf(const char *fmt, ...)
{
	__builtin_va_list ap;
	__builtin_va_start(ap, fmt);
	int got = vscanf(fmt, ap);
	__builtin_va_end(ap);
	if (got == EOF || (got < __cb_scanf_wanted(fmt) && feof(stdin))) {
		fflush(stdout);
		fputs("` + InputExhaustedMessage + `\n", stderr);
		__builtin_exit(1);
	}
	return got;
}
__attribute__((constructor)) static void __cb_trace_init(void)
{
	setvbuf(stdout, NULL, _IOLBF, 0);
}
#line 1 "main.c"
`

// InputExhaustedMessage is written to stderr by a program that asked for more
// input than it was given.
const InputExhaustedMessage = "Input error: the program needs more input than was provided"

// checkedPrefix turns a scanf call into a call of the checked wrapper.
const checkedPrefix = "__cb_checked_"

// DirectiveError reports source that asks the compiler to read a file outside
// the standard include paths.
type DirectiveError struct {
	Line   int
	Reason string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("main.c:%d: error: %s", e.Line, e.Reason)
}

var includeDirectives = map[string]bool{
	"include": true, "include_next": true, "import": true, "embed": true,
}

// checkDirectives rejects includes of absolute or parent-relative paths,
// computed includes, and inline assembly that embeds a file.
func checkDirectives(src string, toks []token, directives []directive) error {
	for _, d := range directives {
		name, operand := splitDirective(d.text)
		if !includeDirectives[name] {
			continue
		}
		path, ok := includePath(operand)
		if !ok {
			return &DirectiveError{Line: lineOf(src, d.pos), Reason: "computed #" + name + " is not allowed"}
		}
		if strings.HasPrefix(path, "/") || strings.Contains(path, "..") || strings.HasPrefix(path, "~") {
			return &DirectiveError{Line: lineOf(src, d.pos), Reason: fmt.Sprintf("#%s of %q is not allowed", name, path)}
		}
	}
	for _, tok := range toks {
		if tok.kind == tokString && strings.Contains(tok.text, ".incbin") {
			return &DirectiveError{Line: lineOf(src, tok.pos), Reason: ".incbin is not allowed"}
		}
	}
	return nil
}

// splitDirective returns the directive name and the rest of the line.
func splitDirective(text string) (string, string) {
	rest := strings.TrimLeft(strings.TrimPrefix(text, "#"), " \t")
	end := 0
	for end < len(rest) && isIdentPart(rest[end]) {
		end++
	}
	return rest[:end], strings.TrimSpace(rest[end:])
}

func includePath(operand string) (string, bool) {
	operand = strings.ReplaceAll(operand, "\\\n", "")
	if len(operand) < 2 {
		return "", false
	}
	var closer byte
	switch operand[0] {
	case '<':
		closer = '>'
	case '"':
		closer = '"'
	default:
		return "", false
	}
	end := strings.IndexByte(operand[1:], closer)
	if end < 0 {
		return "", false
	}
	return operand[1 : end+1], true
}

func lineOf(src string, pos int) int {
	return strings.Count(src[:pos], "\n") + 1
}
