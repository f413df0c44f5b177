package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fwessels/shader-pp/internal/compiler"
	"github.com/fwessels/shader-pp/internal/diag"
	"github.com/fwessels/shader-pp/internal/preprocessor"
)

const envPrefix = "SHADERPP_"

// DefaultFile is read from the working directory when no config is named.
const DefaultFile = "shader-pp.json"

// DefaultExtensions are the shader stages picked up when a directory is
// given as input.
var DefaultExtensions = []string{".rgen", ".rchit", ".rmiss", ".rahit", ".rint", ".rcall", ".comp", ".vert", ".frag"}

// Defaults returns a Config with every field set to its default.
func Defaults() Config {
	set := preprocessor.DefaultBindings.Set
	fb := preprocessor.DefaultBindings.Float
	vb := preprocessor.DefaultBindings.Vec3
	no := false
	return Config{
		Extensions: cloneStrings(DefaultExtensions),
		OutputDir:  "shaders/meta",
		Manifest:   "shaders/meta/parameters.json",
		Strict:     &no,
		Bindings:   Bindings{Set: &set, FloatBinding: &fb, Vec3Binding: &vb},
		Compile: Compile{
			Enabled:     &no,
			Bin:         compiler.DefaultBin,
			TargetEnv:   compiler.DefaultTargetEnv,
			OutputDir:   "shaders/spirv",
			Concurrency: 4,
		},
		Logging: Logging{Level: "info"},
	}
}

// LoadJSON parses a Config from raw JSON or, if raw is empty, from path.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge layers over on top of base. Set fields replace, nothing is merged
// deeply.
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if len(over.Extensions) > 0 {
		out.Extensions = cloneStrings(over.Extensions)
	}
	if s := strings.TrimSpace(over.OutputDir); s != "" {
		out.OutputDir = s
	}
	if s := strings.TrimSpace(over.Manifest); s != "" {
		out.Manifest = s
	}
	if len(over.IncludeDirs) > 0 {
		out.IncludeDirs = cloneStrings(over.IncludeDirs)
	}
	if over.Strict != nil {
		out.Strict = over.Strict
	}
	if over.TrackLines != nil {
		out.TrackLines = over.TrackLines
	}

	if over.Bindings.Set != nil {
		out.Bindings.Set = over.Bindings.Set
	}
	if over.Bindings.FloatBinding != nil {
		out.Bindings.FloatBinding = over.Bindings.FloatBinding
	}
	if over.Bindings.Vec3Binding != nil {
		out.Bindings.Vec3Binding = over.Bindings.Vec3Binding
	}

	if over.Compile.Enabled != nil {
		out.Compile.Enabled = over.Compile.Enabled
	}
	if s := strings.TrimSpace(over.Compile.Bin); s != "" {
		out.Compile.Bin = s
	}
	if len(over.Compile.Args) > 0 {
		out.Compile.Args = cloneStrings(over.Compile.Args)
	}
	if s := strings.TrimSpace(over.Compile.TargetEnv); s != "" {
		out.Compile.TargetEnv = s
	}
	if s := strings.TrimSpace(over.Compile.OutputDir); s != "" {
		out.Compile.OutputDir = s
	}
	if over.Compile.Concurrency != 0 {
		out.Compile.Concurrency = over.Compile.Concurrency
	}

	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Format); s != "" {
		out.Logging.Format = s
	}
	return out
}

// EnvOverlay builds an override Config from SHADERPP_* variables. Unknown
// keys are ignored; malformed values are errors.
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		switch strings.TrimPrefix(key, envPrefix) {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "EXTENSIONS":
			over.Extensions = splitComma(val)
		case "OUTPUT_DIR":
			over.OutputDir = val
		case "MANIFEST":
			over.Manifest = val
		case "INCLUDE_DIRS":
			over.IncludeDirs = splitComma(val)
		case "STRICT":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Strict = &b
		case "TRACK_LINES":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.TrackLines = &b
		case "BINDING_SET":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Bindings.Set = &v
		case "FLOAT_BINDING":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Bindings.FloatBinding = &v
		case "VEC3_BINDING":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Bindings.Vec3Binding = &v
		case "COMPILE":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Compile.Enabled = &b
		case "COMPILER":
			over.Compile.Bin = val
		case "TARGET_ENV":
			over.Compile.TargetEnv = val
		case "SPIRV_DIR":
			over.Compile.OutputDir = val
		case "COMPILE_CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%s: %w", key, err)
			}
			over.Compile.Concurrency = v
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_FORMAT":
			over.Logging.Format = val
		}
	}
	return over, nil
}

// Validate checks a fully merged Config.
func Validate(c Config) error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir must not be empty")
	}
	if strings.TrimSpace(c.Manifest) == "" {
		return errors.New("manifest must not be empty")
	}
	b := c.PreprocessorBindings()
	if b.Set < 0 || b.Float < 0 || b.Vec3 < 0 {
		return errors.New("bindings must not be negative")
	}
	if b.Float == b.Vec3 {
		return fmt.Errorf("float_binding and vec3_binding are both %d", b.Float)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with '.'", ext)
		}
	}
	if c.CompileEnabled() {
		if strings.TrimSpace(c.Compile.Bin) == "" {
			return errors.New("compile.bin must not be empty")
		}
		if c.Compile.Concurrency < 0 {
			return errors.New("compile.concurrency must not be negative")
		}
	}
	if _, err := diag.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// PreprocessorBindings resolves unset bindings to their defaults.
func (c Config) PreprocessorBindings() preprocessor.Bindings {
	b := preprocessor.DefaultBindings
	if c.Bindings.Set != nil {
		b.Set = *c.Bindings.Set
	}
	if c.Bindings.FloatBinding != nil {
		b.Float = *c.Bindings.FloatBinding
	}
	if c.Bindings.Vec3Binding != nil {
		b.Vec3 = *c.Bindings.Vec3Binding
	}
	return b
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
