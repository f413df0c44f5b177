package config

// Config is read once at startup and not changed afterwards. JSON keys are
// snake_case and unknown keys are rejected.
type Config struct {
	Inputs      []string `json:"inputs"`
	Extensions  []string `json:"extensions"`
	OutputDir   string   `json:"output_dir"`
	Manifest    string   `json:"manifest"`
	IncludeDirs []string `json:"include_dirs"`
	Strict      *bool    `json:"strict,omitempty"`
	TrackLines  *bool    `json:"track_lines,omitempty"`
	Bindings    Bindings `json:"bindings"`
	Compile     Compile  `json:"compile"`
	Logging     Logging  `json:"logging"`
}

// Bindings place the shared parameter buffers. Pointers distinguish an
// explicit 0 from "not set" when layers are merged.
type Bindings struct {
	Set          *int `json:"set,omitempty"`
	FloatBinding *int `json:"float_binding,omitempty"`
	Vec3Binding  *int `json:"vec3_binding,omitempty"`
}

// Compile configures the optional downstream compiler run.
type Compile struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	Bin         string   `json:"bin"`
	Args        []string `json:"args"`
	TargetEnv   string   `json:"target_env"`
	OutputDir   string   `json:"output_dir"`
	Concurrency int      `json:"concurrency"`
}

type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// IsStrict reports whether undefined parameter references fail the run.
func (c Config) IsStrict() bool { return c.Strict != nil && *c.Strict }

// LineTracking reports whether line markers keep compiler diagnostics on
// the original source lines.
func (c Config) LineTracking() bool { return c.TrackLines != nil && *c.TrackLines }

// CompileEnabled reports whether the compile stage runs after preprocessing.
func (c Config) CompileEnabled() bool { return c.Compile.Enabled != nil && *c.Compile.Enabled }
