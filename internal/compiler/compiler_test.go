package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestHelperProcess is not a real test. It stands in for the shader compiler
// when the test binary is re-executed by fakeCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SHADERPP_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:] // drop "--"
	args = args[1:] // drop the binary name

	var out, src, env string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			i++
			out = args[i]
		case "--target-env":
			i++
			env = args[i]
		default:
			src = args[i]
		}
	}
	content, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot open %s\n", src)
		os.Exit(2)
	}
	if i := strings.Index(string(content), "UNDEFINED_PARAMETER_"); i >= 0 {
		line := strings.Count(string(content[:i]), "\n") + 1
		fmt.Printf("ERROR: %s:%d: 'UNDEFINED_PARAMETER_' : undeclared identifier\n", src, line)
		os.Exit(2)
	}
	if err := os.WriteFile(out, []byte("SPIRV "+env), 0o644); err != nil {
		os.Exit(3)
	}
	os.Exit(0)
}

func fakeCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "SHADERPP_WANT_HELPER_PROCESS=1")
	return cmd
}

func newTestCompiler(t *testing.T) (*Compiler, string) {
	t.Helper()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "spirv"))
	c.command = fakeCommand
	c.Concurrency = 2
	return c, dir
}

func TestArgs(t *testing.T) {
	c := New("out")
	c.Args = []string{"-V"}
	got := c.args(filepath.Join("meta", "a.rgen"))
	want := []string{"-V", "--target-env", "vulkan1.3", "-o", filepath.Join("out", "a.rgen.spv"), filepath.Join("meta", "a.rgen")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileAll(t *testing.T) {
	c, dir := newTestCompiler(t)
	var sources []string
	for _, name := range []string{"a.rgen", "b.rchit", "c.rmiss"} {
		src := filepath.Join(dir, name)
		if err := os.WriteFile(src, []byte("void main() {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, src)
	}
	if err := c.CompileAll(context.Background(), sources); err != nil {
		t.Fatal(err)
	}
	for _, src := range sources {
		got, err := os.ReadFile(c.OutputPath(src))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "SPIRV vulkan1.3" {
			t.Errorf("%s: got %q", src, got)
		}
	}
}

func TestCompileAllCollectsFailures(t *testing.T) {
	c, dir := newTestCompiler(t)
	files := map[string]string{
		"ok.rgen":   "void main() {}\n",
		"bad.rchit": "void main() {\n  float f = UNDEFINED_PARAMETER_x;\n}\n",
		"bad.rmiss": "UNDEFINED_PARAMETER_y;\n",
	}
	var sources []string
	for _, name := range []string{"bad.rchit", "ok.rgen", "bad.rmiss"} {
		src := filepath.Join(dir, name)
		if err := os.WriteFile(src, []byte(files[name]), 0o644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, src)
	}

	err := c.CompileAll(context.Background(), sources)
	if err == nil {
		t.Fatal("expected failure")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("want *Error, got %T", err)
	}
	if cerr.Source != sources[0] {
		t.Errorf("first failure should be %s, got %s", sources[0], cerr.Source)
	}
	if !strings.Contains(cerr.Output, "bad.rchit:2:") {
		t.Errorf("compiler diagnostics not kept: %q", cerr.Output)
	}
	if !strings.Contains(err.Error(), "bad.rmiss:1:") {
		t.Errorf("second failure missing from %v", err)
	}
	if _, err := os.Stat(c.OutputPath(sources[1])); err != nil {
		t.Errorf("good file should still compile: %v", err)
	}
}

func TestCompileMissingBinary(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	c.Bin = filepath.Join(dir, "no-such-compiler")
	err := c.Compile(context.Background(), filepath.Join(dir, "a.rgen"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("want *Error, got %v", err)
	}
}
