package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	shader_pp "github.com/fwessels/shader-pp"
	"github.com/fwessels/shader-pp/internal/compiler"
	cfgpkg "github.com/fwessels/shader-pp/internal/config"
	"github.com/fwessels/shader-pp/internal/diag"
)

const (
	exitOK      = 0
	exitFailed  = 1 // undefined references under -strict, compile failures
	exitUsage   = 2
	exitProcess = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Environ(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// optBool records whether a boolean flag was given at all so that an
// explicit -strict=false can override a config file.
type optBool struct {
	set   bool
	value bool
}

func (b *optBool) String() string {
	if !b.set {
		return ""
	}
	return fmt.Sprint(b.value)
}

func (b *optBool) Set(s string) error {
	v, err := parseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optBool) IsBoolFlag() bool { return true }

func (b *optBool) ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "t", "true", "yes":
		return true, nil
	case "0", "f", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// optInt is an int flag that distinguishes "not given" from 0.
type optInt struct {
	set   bool
	value int
}

func (i *optInt) String() string {
	if !i.set {
		return ""
	}
	return fmt.Sprint(i.value)
}

func (i *optInt) Set(s string) error {
	var v int
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	i.set, i.value = true, v
	return nil
}

func (i *optInt) ptr() *int {
	if !i.set {
		return nil
	}
	v := i.value
	return &v
}

func run(ctx context.Context, args, environ []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shader-pp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shader-pp [flags] <file|dir>...\n\n")
		fs.PrintDefaults()
	}

	var (
		flagConfig    string
		flagOutput    string
		flagManifest  string
		flagIncludes  listFlag
		flagExts      string
		flagStrict    optBool
		flagTrack     optBool
		flagCompile   optBool
		flagCompiler  string
		flagTargetEnv string
		flagSpirvDir  string
		flagJobs      int
		flagSet       optInt
		flagFloat     optInt
		flagVec3      optInt
		flagLogLevel  string
		flagLogFormat string
	)
	fs.StringVar(&flagConfig, "config", "", "JSON config file (default ./"+cfgpkg.DefaultFile+" if present)")
	fs.StringVar(&flagOutput, "o", "", "output directory for rewritten shaders")
	fs.StringVar(&flagManifest, "manifest", "", "path of the parameter manifest")
	fs.Var(&flagIncludes, "I", "add an include search directory (repeatable)")
	fs.StringVar(&flagExts, "ext", "", "comma separated extensions picked up from directories")
	fs.Var(&flagStrict, "strict", "fail when a parameter reference is undefined")
	fs.Var(&flagTrack, "track-lines", "emit #line markers that keep compiler line numbers on the source lines")
	fs.Var(&flagCompile, "compile", "compile rewritten shaders to SPIR-V")
	fs.StringVar(&flagCompiler, "compiler", "", "shader compiler binary")
	fs.StringVar(&flagTargetEnv, "target-env", "", "compiler target environment")
	fs.StringVar(&flagSpirvDir, "spirv-dir", "", "output directory for SPIR-V modules")
	fs.IntVar(&flagJobs, "j", 0, "number of concurrent compiler processes")
	fs.Var(&flagSet, "set", "descriptor set of the parameter buffers")
	fs.Var(&flagFloat, "float-binding", "binding of the float parameter buffer")
	fs.Var(&flagVec3, "vec3-binding", "binding of the vec3 parameter buffer")
	fs.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&flagLogFormat, "log-format", "", "text or json (default text on a terminal)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig(flagConfig, environ)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}

	var over cfgpkg.Config
	over.Inputs = fs.Args()
	over.OutputDir = flagOutput
	over.Manifest = flagManifest
	over.IncludeDirs = flagIncludes
	if flagExts != "" {
		for _, e := range strings.Split(flagExts, ",") {
			if e = strings.TrimSpace(e); e != "" {
				over.Extensions = append(over.Extensions, e)
			}
		}
	}
	over.Strict = flagStrict.ptr()
	over.TrackLines = flagTrack.ptr()
	over.Bindings = cfgpkg.Bindings{Set: flagSet.ptr(), FloatBinding: flagFloat.ptr(), Vec3Binding: flagVec3.ptr()}
	over.Compile.Enabled = flagCompile.ptr()
	over.Compile.Bin = flagCompiler
	over.Compile.TargetEnv = flagTargetEnv
	over.Compile.OutputDir = flagSpirvDir
	over.Compile.Concurrency = flagJobs
	over.Logging = cfgpkg.Logging{Level: flagLogLevel, Format: flagLogFormat}
	cfg = cfgpkg.Merge(cfg, over)

	if err := cfgpkg.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	if len(cfg.Inputs) == 0 {
		fs.Usage()
		return exitUsage
	}

	logger := diag.NewLogger(stderr, cfg.Logging.Level, cfg.Logging.Format)
	term := diag.NewTerminal(stderr)

	inputs, err := shader_pp.ListInputs(cfg.Inputs, cfg.Extensions)
	if err != nil {
		term.Error(err)
		return exitUsage
	}
	if len(inputs) == 0 {
		fmt.Fprintf(stderr, "no shader files found in %s\n", strings.Join(cfg.Inputs, ", "))
		return exitUsage
	}
	logger.Debug("inputs resolved", "comp", "cli", "count", len(inputs))

	report, err := shader_pp.Run(shader_pp.Options{
		Inputs:       inputs,
		OutputDir:    cfg.OutputDir,
		ManifestPath: cfg.Manifest,
		IncludeDirs:  cfg.IncludeDirs,
		Bindings:     cfg.PreprocessorBindings(),
		TrackLines:   cfg.LineTracking(),
		Logger:       logger,
	})
	if err != nil {
		term.Error(err)
		logger.Error("preprocessing failed", "comp", "cli", "code", string(diag.Classify(err)))
		var overwrite *shader_pp.OverwriteInputError
		if errors.As(err, &overwrite) {
			return exitUsage
		}
		return exitProcess
	}
	for _, d := range report.Diagnostics {
		term.Warning(d)
	}
	term.Summary(len(report.Outputs), len(report.Symbols), len(report.Diagnostics))
	fmt.Fprintln(stdout, report.Manifest)

	if cfg.IsStrict() && len(report.Diagnostics) > 0 {
		return exitFailed
	}
	if !cfg.CompileEnabled() {
		return exitOK
	}
	if err := compile(ctx, cfg, report.Outputs, logger); err != nil {
		term.Error(err)
		return exitFailed
	}
	return exitOK
}

// loadConfig layers defaults, the config file and SHADERPP_* variables.
func loadConfig(path string, environ []string) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	if path == "" {
		path = lookupEnv(environ, "SHADERPP_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(cfgpkg.DefaultFile); err == nil {
			path = cfgpkg.DefaultFile
		}
	}
	if path != "" {
		base, err := cfgpkg.LoadJSON(path, nil)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	over, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, over), nil
}

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func compile(ctx context.Context, cfg cfgpkg.Config, sources []string, logger *slog.Logger) error {
	c := compiler.New(cfg.Compile.OutputDir)
	c.Bin = cfg.Compile.Bin
	c.Args = cfg.Compile.Args
	c.TargetEnv = cfg.Compile.TargetEnv
	if cfg.Compile.Concurrency > 0 {
		c.Concurrency = cfg.Compile.Concurrency
	}
	c.Logger = logger
	return c.CompileAll(ctx, sources)
}
