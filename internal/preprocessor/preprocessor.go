package preprocessor

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	floatBufferName = "float_params"
	vec3BufferName  = "vec3_params"

	// UndefinedPrefix starts the placeholder written for an unresolved
	// reference. It is not a declared identifier, so the downstream compiler
	// rejects the file and names the parameter.
	UndefinedPrefix = "UNDEFINED_PARAMETER_"
)

// ---------------- Preprocessor ----------------

// Bindings places the two shared parameter buffers in the shader's
// descriptor layout.
type Bindings struct {
	Set   int
	Float int
	Vec3  int
}

var DefaultBindings = Bindings{Set: 0, Float: 0, Vec3: 1}

// Declarations returns the buffer declaration lines injected once per file
// that defines parameters.
func (b Bindings) Declarations() []string {
	return []string{
		fmt.Sprintf("layout(set = %d, binding = %d, std430) readonly buffer FloatParams { float data[]; } %s;", b.Set, b.Float, floatBufferName),
		fmt.Sprintf("layout(set = %d, binding = %d, std430) readonly buffer Vec3Params { vec4 data[]; } %s;", b.Set, b.Vec3, vec3BufferName),
	}
}

// Preprocessor expands one batch of shader units. Units must be processed one
// after another: offsets depend on the order definitions are seen.
//
// By default the marker after an include repeats the directive's own line
// and consumed definitions are not compensated. With TrackLines set, markers
// follow GLSL 3.30+ semantics (the line after "#line N" is line N) and one is
// emitted wherever the output numbering departs from the source, so compiler
// diagnostics name the original line.
type Preprocessor struct {
	IncludeDirs []string
	Bindings    Bindings
	TrackLines  bool
	symbols     *SymbolTable
	undefined   []*UndefinedParameterError
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		Bindings: DefaultBindings,
		symbols:  NewSymbolTable(),
	}
}

func (p *Preprocessor) Symbols() *SymbolTable { return p.symbols }

// Diagnostics returns every unresolved reference seen so far, in source order.
func (p *Preprocessor) Diagnostics() []*UndefinedParameterError {
	return p.undefined
}

// Process expands the unit read from r and writes it to w. Parameter keys use
// the base name of filename; includes are resolved against its directory.
// Nothing is written to w unless the whole unit expanded.
func (p *Preprocessor) Process(filename string, r io.Reader, w io.Writer) error {
	unit := shortPath(filename)

	var out bytes.Buffer
	lr := newLineReader(r)

	lineNo := 0
	next := 1 // line the compiler assigns to the next output line
	endsWithText := false
	for {
		line, _, ok, err := lr.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return &UnreadableFileError{Path: filename, Err: err}
		}
		if !ok {
			break
		}
		lineNo++

		l, err := Classify(line)
		if err != nil {
			return &DirectiveError{File: unit, Line: lineNo, Text: strings.TrimSpace(line), Err: err}
		}

		endsWithText = false
		switch l.Kind {
		case Include:
			marker := lineNo
			if p.TrackLines {
				marker = lineNo + 1
			}
			if err := p.inline(&out, l.Path, filename, lineNo, marker); err != nil {
				return err
			}
			next = marker
		case Define:
			first, err := p.symbols.Define(unit, l.Name, l.Type, lineNo)
			if err != nil {
				return err
			}
			if first {
				decls := p.Bindings.Declarations()
				for _, decl := range decls {
					out.WriteString(decl)
					out.WriteByte('\n')
				}
				next += len(decls)
			}
		case Usage, Plain:
			if p.TrackLines && next != lineNo {
				fmt.Fprintf(&out, "#line %d\n", lineNo)
			}
			if l.Kind == Usage {
				line = p.substitute(unit, lineNo, line)
			}
			out.WriteString(line)
			out.WriteByte('\n')
			next = lineNo + 1
			endsWithText = true
		}
	}

	if endsWithText && !lr.lastHasNL {
		out.Truncate(out.Len() - 1)
	}
	_, err := w.Write(out.Bytes())
	return err
}

// inline copies the include target verbatim between two blank lines and then
// resets the compiler's line counter with "#line marker". The included text is
// not scanned for directives.
func (p *Preprocessor) inline(out *bytes.Buffer, path, includingFile string, lineNo, marker int) error {
	bs, _, err := p.readInclude(path, includingFile)
	if err != nil {
		return &UnreadableFileError{Path: path, From: shortPath(includingFile), Line: lineNo, Err: err}
	}
	out.WriteByte('\n')
	lr := newLineReader(bytes.NewReader(bs))
	for {
		line, _, ok, err := lr.next()
		if err != nil || !ok {
			break
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
	fmt.Fprintf(out, "#line %d\n", marker)
	return nil
}

func (p *Preprocessor) substitute(unit string, lineNo int, line string) string {
	var b strings.Builder
	for seg := range Segments(line) {
		if seg.Ref == "" {
			b.WriteString(seg.Text)
			continue
		}
		entry, err := p.symbols.Resolve(unit, seg.Ref)
		if err != nil {
			undef := err.(*UndefinedParameterError)
			undef.Line, undef.Col = lineNo, seg.Col
			p.undefined = append(p.undefined, undef)
			b.WriteString(UndefinedPrefix + seg.Ref)
			continue
		}
		b.WriteString(entry.Access())
	}
	return b.String()
}

// ---------------- Line reader ----------------

type lineReader struct {
	r         *bufio.Reader
	lastHasNL bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) next() (line string, hasNL bool, ok bool, err error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, false, err
	}
	if len(s) == 0 && err == io.EOF {
		return "", false, false, io.EOF
	}
	hasNL = strings.HasSuffix(s, "\n")
	if hasNL {
		s = s[:len(s)-1]
	}
	lr.lastHasNL = hasNL
	return s, hasNL, true, nil
}

// ---------------- Include resolution ----------------

func (p *Preprocessor) readInclude(path string, includingFile string) ([]byte, string, error) {
	resolved, err := p.resolveAsFile(path, includingFile)
	if err != nil {
		return nil, "", err
	}
	bs, err := os.ReadFile(resolved)
	return bs, resolved, err
}

// resolveAsFile looks for path relative to the including file, then in each
// include directory, then relative to the working directory.
func (p *Preprocessor) resolveAsFile(path string, includingFile string) (string, error) {
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return filepath.Clean(path), nil
		}
		return "", os.ErrNotExist
	}

	if includingFile != "" && includingFile != "<stdin>" {
		cand := filepath.Join(filepath.Dir(includingFile), path)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}

	for _, dir := range p.IncludeDirs {
		cand := filepath.Join(dir, path)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}

	if fileExists(path) {
		return filepath.Clean(path), nil
	}
	return "", fmt.Errorf("cannot resolve include %q: %w", path, os.ErrNotExist)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func shortPath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Base(p)
}
