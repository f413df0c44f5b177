// Package compiler runs the downstream shader compiler over preprocessed
// sources. It only shells out; the compiler's diagnostics are returned as-is.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBin       = "glslangValidator"
	DefaultTargetEnv = "vulkan1.3"
)

// Compiler invokes Bin as
//
//	<Bin> <Args...> --target-env <TargetEnv> -o <OutputDir>/<name>.spv <source>
type Compiler struct {
	Bin         string
	Args        []string
	TargetEnv   string
	OutputDir   string
	Concurrency int
	Logger      *slog.Logger

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func New(outputDir string) *Compiler {
	return &Compiler{
		Bin:         DefaultBin,
		TargetEnv:   DefaultTargetEnv,
		OutputDir:   outputDir,
		Concurrency: 1,
		command:     exec.CommandContext,
	}
}

// Error is a failed compilation. Output holds the compiler's combined
// stdout and stderr, which carries the file:line diagnostics.
type Error struct {
	Source string
	Output string
	Err    error
}

func (e *Error) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("compile %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("compile %s: %v\n%s", e.Source, e.Err, out)
}

func (e *Error) Unwrap() error { return e.Err }

// OutputPath is where the artifact for source is written.
func (c *Compiler) OutputPath(source string) string {
	return filepath.Join(c.OutputDir, filepath.Base(source)+".spv")
}

func (c *Compiler) args(source string) []string {
	args := append([]string{}, c.Args...)
	if c.TargetEnv != "" {
		args = append(args, "--target-env", c.TargetEnv)
	}
	return append(args, "-o", c.OutputPath(source), source)
}

// Compile compiles a single preprocessed source.
func (c *Compiler) Compile(ctx context.Context, source string) error {
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return &Error{Source: source, Err: err}
	}
	command := c.command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, c.Bin, c.args(source)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	if c.Logger != nil {
		c.Logger.Debug("compile finished", "comp", "compiler", "file", filepath.Base(source),
			"dur_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	}
	if err != nil {
		return &Error{Source: source, Output: out.String(), Err: err}
	}
	return nil
}

// CompileAll compiles every source, at most Concurrency at a time. A failing
// file does not stop the others; all failures are joined in source order.
func (c *Compiler) CompileAll(ctx context.Context, sources []string) error {
	errs := make([]error, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			errs[i] = c.Compile(ctx, src)
			if errs[i] != nil && c.Logger != nil {
				c.Logger.Error("compile failed", "comp", "compiler", "file", filepath.Base(src), "code", "compile")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
