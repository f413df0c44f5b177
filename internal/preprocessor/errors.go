package preprocessor

import "fmt"

// DuplicateParameterError aborts the batch: a (file, name) pair was defined
// twice.
type DuplicateParameterError struct {
	Key       Key
	Line      int
	FirstLine int
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("%s:%d: parameter %q already defined at line %d", e.Key.File, e.Line, e.Key.Name, e.FirstLine)
}

// UndefinedParameterError is recoverable. The reference is replaced by a
// placeholder and the error is kept as a diagnostic.
type UndefinedParameterError struct {
	Key  Key
	Line int
	Col  int
}

func (e *UndefinedParameterError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: undefined parameter %q", e.Key.File, e.Key.Name)
	}
	return fmt.Sprintf("%s:%d:%d: undefined parameter %q", e.Key.File, e.Line, e.Col, e.Key.Name)
}

// UnreadableFileError reports an input or include target that could not be
// read. From and Line locate the include directive, if any.
type UnreadableFileError struct {
	Path string
	From string
	Line int
	Err  error
}

func (e *UnreadableFileError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("%s:%d: include %q: %v", e.From, e.Line, e.Path, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// DirectiveError is a malformed ~include or ~parameter line.
type DirectiveError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s:%d: bad directive %q: %v", e.File, e.Line, e.Text, e.Err)
}

func (e *DirectiveError) Unwrap() error { return e.Err }
