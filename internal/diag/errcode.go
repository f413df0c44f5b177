package diag

import (
	"context"
	"errors"
	"io/fs"

	"github.com/fwessels/shader-pp/internal/compiler"
	"github.com/fwessels/shader-pp/internal/preprocessor"
)

// Code is a coarse error class used in log attributes; it is independent of
// the exit status.
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeDuplicate Code = "duplicate"
	CodeUndefined Code = "undefined"
	CodeDirective Code = "directive"
	CodeIO        Code = "io"
	CodeCompile   Code = "compile"
	CodeCancel    Code = "cancel"
)

// Classify relies on error types only, never on message text.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	var dup *preprocessor.DuplicateParameterError
	if errors.As(err, &dup) {
		return CodeDuplicate
	}
	var undef *preprocessor.UndefinedParameterError
	if errors.As(err, &undef) {
		return CodeUndefined
	}
	var dir *preprocessor.DirectiveError
	if errors.As(err, &dir) {
		return CodeDirective
	}
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		return CodeCompile
	}
	var unreadable *preprocessor.UnreadableFileError
	if errors.As(err, &unreadable) {
		return CodeIO
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
