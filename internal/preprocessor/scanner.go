package preprocessor

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

const (
	includeDirective   = "~include"
	parameterDirective = "~parameter"
	sigil              = '~'
)

// ---------------- Line classification ----------------

type LineKind int

const (
	Plain LineKind = iota
	Include
	Define
	Usage
)

func (k LineKind) String() string {
	switch k {
	case Include:
		return "include"
	case Define:
		return "define"
	case Usage:
		return "usage"
	default:
		return "plain"
	}
}

// Line is the classification of one source line. Path is set for Include,
// Name and Type for Define.
type Line struct {
	Kind LineKind
	Path string
	Name string
	Type ParamType
}

// Classify decides what the expander does with a raw line. Directives must
// start the line (leading blanks are allowed); a malformed directive is an
// error rather than a plain line.
func Classify(line string) (Line, error) {
	trim := strings.TrimRight(trimLeftSpaceTab(line), " \t\r")

	if arg, ok := cutDirective(trim, includeDirective); ok {
		path, err := parseIncludeArg(arg)
		if err != nil {
			return Line{}, err
		}
		return Line{Kind: Include, Path: path}, nil
	}
	if arg, ok := cutDirective(trim, parameterDirective); ok {
		typ, name, err := parseParameterArgs(arg)
		if err != nil {
			return Line{}, err
		}
		return Line{Kind: Define, Name: name, Type: typ}, nil
	}
	if HasReference(line) {
		return Line{Kind: Usage}, nil
	}
	return Line{Kind: Plain}, nil
}

// cutDirective reports whether s starts with the directive keyword as a whole
// word, so "~includes" stays an ordinary reference.
func cutDirective(s, directive string) (string, bool) {
	rest, ok := strings.CutPrefix(s, directive)
	if !ok {
		return "", false
	}
	if rest != "" && isIdentPart(rest[0]) {
		return "", false
	}
	return rest, true
}

// ---------------- Directive parsing helpers ----------------

var (
	errIncludeSyntax   = errors.New(`expected ~include "<path>"`)
	errParameterSyntax = errors.New("expected ~parameter <type> <name>")
)

func parseIncludeArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if len(arg) < 2 || arg[0] != '"' {
		return "", errIncludeSyntax
	}
	end := strings.IndexByte(arg[1:], '"')
	if end < 0 {
		return "", fmt.Errorf("%w: missing closing quote", errIncludeSyntax)
	}
	path := arg[1 : 1+end]
	if rest := strings.TrimSpace(arg[2+end:]); rest != "" {
		return "", fmt.Errorf("%w: unexpected %q after path", errIncludeSyntax, rest)
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path", errIncludeSyntax)
	}
	return path, nil
}

func parseParameterArgs(arg string) (ParamType, string, error) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("%w: got %d operands", errParameterSyntax, len(fields))
	}
	typ, ok := ParseParamType(fields[0])
	if !ok {
		return 0, "", fmt.Errorf("unknown parameter type %q (want %s or %s)", fields[0], Scalar, Vector3)
	}
	name := fields[1]
	if !isIdent(name) {
		return 0, "", fmt.Errorf("invalid parameter name %q", name)
	}
	return typ, name, nil
}

func trimLeftSpaceTab(s string) string {
	return strings.TrimLeft(s, " \t")
}

// ---------------- Reference tokenizer ----------------

// Segment is one piece of a usage line: either literal text (Ref == "") or a
// parameter reference, in which case Text holds the original "~name" spelling.
// Col is the 1-based byte column where the segment starts.
type Segment struct {
	Text string
	Ref  string
	Col  int
}

// Segments splits line into literal text and "~name" references, left to
// right. A sigil that is not followed by an identifier stays in the text.
func Segments(line string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		start := 0
		for i := 0; i < len(line); i++ {
			if line[i] != sigil || i+1 >= len(line) || !isIdentStart(line[i+1]) {
				continue
			}
			name, _, _ := splitIdentPrefix(line[i+1:])
			if i > start {
				if !yield(Segment{Text: line[start:i], Col: start + 1}) {
					return
				}
			}
			end := i + 1 + len(name)
			if !yield(Segment{Text: line[i:end], Ref: name, Col: i + 1}) {
				return
			}
			start = end
			i = end - 1
		}
		if start < len(line) {
			yield(Segment{Text: line[start:], Col: start + 1})
		}
	}
}

// HasReference reports whether line contains at least one "~name".
func HasReference(line string) bool {
	for seg := range Segments(line) {
		if seg.Ref != "" {
			return true
		}
	}
	return false
}

func splitIdentPrefix(s string) (name string, rest string, ok bool) {
	if s == "" || !isIdentStart(s[0]) {
		return "", "", false
	}
	i := 1
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return s[:i], s[i:], true
}

func isIdent(s string) bool {
	name, rest, ok := splitIdentPrefix(s)
	return ok && name != "" && rest == ""
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
