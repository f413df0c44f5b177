package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const fakeCompilerEnv = "SHADERPP_TEST_FAKE_COMPILER"

// TestMain lets the test binary stand in for the shader compiler: with
// fakeCompilerEnv set it copies its source to the -o path, failing for
// sources that contain "FAIL".
func TestMain(m *testing.M) {
	if os.Getenv(fakeCompilerEnv) == "1" {
		os.Exit(fakeCompiler(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeCompiler(args []string) int {
	var out, src string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			i++
			out = args[i]
		case "--target-env":
			i++
		default:
			src = args[i]
		}
	}
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if bytes.Contains(data, []byte("FAIL")) {
		fmt.Fprintf(os.Stderr, "ERROR: %s:1: 'FAIL' : undeclared identifier\n", src)
		return 2
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type cli struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCLI(t *testing.T, files map[string]string) *cli {
	t.Helper()
	c := &cli{dir: t.TempDir()}
	for name, content := range files {
		path := filepath.Join(c.dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func (c *cli) path(elem ...string) string {
	return filepath.Join(append([]string{c.dir}, elem...)...)
}

func (c *cli) run(environ []string, args ...string) int {
	c.stdout.Reset()
	c.stderr.Reset()
	return run(context.Background(), args, environ, &c.stdout, &c.stderr)
}

func (c *cli) outArgs() []string {
	return []string{"-o", c.path("meta"), "-manifest", c.path("meta", "parameters.json"), "-log-level", "error"}
}

func TestRunSuccess(t *testing.T) {
	c := newCLI(t, map[string]string{
		"src/foo.rgen":  "~parameter float bar\nvec3 v = vec3(~bar);\n",
		"src/b.rchit":   "~parameter vec3 tint\nvec3 t = ~tint;\n",
		"src/notes.txt": "~not a shader",
	})
	if code := c.run(nil, append(c.outArgs(), c.path("src"))...); code != exitOK {
		t.Fatalf("exit %d: %s", code, c.stderr.String())
	}
	got, err := os.ReadFile(c.path("meta", "parameters.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n" +
		"  \"b.rchit:tint\": {\"type\":\"vec3\",\"offset\":0},\n" +
		"  \"foo.rgen:bar\": {\"type\":\"float\",\"offset\":0}\n" +
		"}\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(c.path("meta", "notes.txt")); err == nil {
		t.Error("files without a shader extension must be skipped")
	}
	if diff := cmp.Diff(c.path("meta", "parameters.json")+"\n", c.stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(c.stderr.String(), "preprocessed 2 file(s), 2 parameter(s), 0 warning(s)") {
		t.Errorf("missing summary: %s", c.stderr.String())
	}
}

func TestRunUndefined(t *testing.T) {
	c := newCLI(t, map[string]string{"a.rgen": "float f = ~ghost;\n"})
	in := c.path("a.rgen")

	if code := c.run(nil, append(c.outArgs(), in)...); code != exitOK {
		t.Fatalf("exit %d: %s", code, c.stderr.String())
	}
	if !strings.Contains(c.stderr.String(), `warning: a.rgen:1:11: undefined parameter "ghost"`) {
		t.Errorf("missing warning: %s", c.stderr.String())
	}

	if code := c.run(nil, append(c.outArgs(), "-strict", in)...); code != exitFailed {
		t.Errorf("-strict: exit %d, want %d", code, exitFailed)
	}
	if code := c.run([]string{"SHADERPP_STRICT=true"}, append(c.outArgs(), "-strict=false", in)...); code != exitOK {
		t.Errorf("-strict=false must override the environment: exit %d", code)
	}
}

func TestRunFatal(t *testing.T) {
	c := newCLI(t, map[string]string{
		"dup.rgen": "~parameter float x\n~parameter vec3 x\n",
		"bad.rgen": "~parameter half x\n",
		"inc.rgen": "~include \"missing.glsl\"\n",
	})
	for _, name := range []string{"dup.rgen", "bad.rgen", "inc.rgen"} {
		if code := c.run(nil, append(c.outArgs(), c.path(name))...); code != exitProcess {
			t.Errorf("%s: exit %d, want %d", name, code, exitProcess)
		}
		if !strings.Contains(c.stderr.String(), "error: ") {
			t.Errorf("%s: no error printed: %s", name, c.stderr.String())
		}
	}
}

func TestRunUsage(t *testing.T) {
	c := newCLI(t, map[string]string{"a.rgen": "int a;\n", "empty/readme.md": ""})
	for name, args := range map[string][]string{
		"no inputs":         c.outArgs(),
		"unknown flag":      {"-frobnicate", c.path("a.rgen")},
		"missing input":     append(c.outArgs(), c.path("nope.rgen")),
		"nothing found":     append(c.outArgs(), c.path("empty")),
		"equal bindings":    append(c.outArgs(), "-float-binding", "1", c.path("a.rgen")),
		"bad config":        append(c.outArgs(), "-config", c.path("nope.json"), c.path("a.rgen")),
		"output over input": {"-o", c.dir, "-manifest", c.path("meta", "parameters.json"), c.dir},
	} {
		if code := c.run(nil, args...); code != exitUsage {
			t.Errorf("%s: exit %d, want %d", name, code, exitUsage)
		}
	}
	if got, _ := os.ReadFile(c.path("a.rgen")); string(got) != "int a;\n" {
		t.Errorf("input rewritten: %q", got)
	}
	if code := c.run([]string{"SHADERPP_BINDING_SET=x"}, append(c.outArgs(), c.path("a.rgen"))...); code != exitUsage {
		t.Errorf("bad environment: exit %d, want %d", code, exitUsage)
	}
}

func TestRunConfigLayers(t *testing.T) {
	c := newCLI(t, map[string]string{
		"a.rgen":         "~parameter float x\n",
		"shader-pp.json": `{"bindings": {"set": 2, "float_binding": 5, "vec3_binding": 6}}`,
	})
	env := []string{"SHADERPP_CONFIG=" + c.path("shader-pp.json"), "SHADERPP_VEC3_BINDING=7"}
	args := append(c.outArgs(), "-float-binding", "0", c.path("a.rgen"))
	if code := c.run(env, args...); code != exitOK {
		t.Fatalf("exit %d: %s", code, c.stderr.String())
	}
	got, err := os.ReadFile(c.path("meta", "a.rgen"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"set = 2, binding = 0", "set = 2, binding = 7"} {
		if !strings.Contains(string(got), want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestRunCompile(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Skip(err)
	}
	t.Setenv(fakeCompilerEnv, "1")

	c := newCLI(t, map[string]string{
		"a.rgen":  "~parameter float x\nfloat a = ~x;\n",
		"b.rmiss": "int b;\n",
	})
	compileArgs := []string{"-compile", "-compiler", self, "-spirv-dir", c.path("spirv"), "-j", "2"}
	args := append(append(c.outArgs(), compileArgs...), c.path("a.rgen"), c.path("b.rmiss"))
	if code := c.run(nil, args...); code != exitOK {
		t.Fatalf("exit %d: %s", code, c.stderr.String())
	}
	for _, name := range []string{"a.rgen.spv", "b.rmiss.spv"} {
		if _, err := os.Stat(c.path("spirv", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	if err := os.WriteFile(c.path("b.rmiss"), []byte("int FAIL;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := c.run(nil, args...); code != exitFailed {
		t.Fatalf("exit %d, want %d", code, exitFailed)
	}
	if !strings.Contains(c.stderr.String(), "undeclared identifier") {
		t.Errorf("compiler output not reported: %s", c.stderr.String())
	}
}

func TestRunTrackLines(t *testing.T) {
	c := newCLI(t, map[string]string{"a.rgen": "~parameter float x\nfloat a = ~x;\n"})
	for _, tt := range []struct {
		args []string
		want string
	}{
		{nil, "float a = float_params.data[0];"},
		{[]string{"-track-lines"}, "#line 2\nfloat a = float_params.data[0];"},
	} {
		args := append(append(c.outArgs(), tt.args...), c.path("a.rgen"))
		if code := c.run(nil, args...); code != exitOK {
			t.Fatalf("exit %d: %s", code, c.stderr.String())
		}
		got, err := os.ReadFile(c.path("meta", "a.rgen"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(string(got), "std430) readonly buffer Vec3Params { vec4 data[]; } vec3_params;\n"+tt.want+"\n") {
			t.Errorf("%v: unexpected output:\n%s", tt.args, got)
		}
	}
}
