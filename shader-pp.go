/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shader_pp

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fwessels/shader-pp/internal/artifact"
	"github.com/fwessels/shader-pp/internal/diag"
	"github.com/fwessels/shader-pp/internal/manifest"
	"github.com/fwessels/shader-pp/internal/preprocessor"
)

// Options describe one batch.
type Options struct {
	Inputs       []string
	OutputDir    string
	ManifestPath string
	IncludeDirs  []string
	Bindings     preprocessor.Bindings
	TrackLines   bool
	Logger       *slog.Logger
}

// Report is the outcome of a successful batch.
type Report struct {
	Outputs     []string
	Symbols     []preprocessor.Symbol
	Diagnostics []*preprocessor.UndefinedParameterError
	Manifest    string
}

// DuplicateUnitError means two inputs share a base name. Their outputs would
// overwrite each other and their parameters would share manifest keys.
type DuplicateUnitError struct {
	Name  string
	First string
	Again string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("inputs %s and %s share the name %q", e.First, e.Again, e.Name)
}

// OverwriteInputError means an output of the batch would replace one of its
// inputs, typically because the output directory is a source directory.
type OverwriteInputError struct {
	Input  string
	Output string
}

func (e *OverwriteInputError) Error() string {
	return fmt.Sprintf("output %s would overwrite input %s", e.Output, e.Input)
}

// Run preprocesses the inputs in order and, once every unit has expanded,
// writes one output per input into OutputDir followed by the manifest. A
// fatal error leaves all previous outputs and the previous manifest as they
// were. Undefined parameter references are not fatal and are returned in the
// report.
func Run(opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = diag.Discard()
	}

	seen := map[string]string{}
	for _, in := range opts.Inputs {
		name := filepath.Base(in)
		if prev, ok := seen[name]; ok {
			return nil, &DuplicateUnitError{Name: name, First: prev, Again: in}
		}
		seen[name] = in
	}
	if err := checkOverwrites(opts); err != nil {
		return nil, err
	}

	p := preprocessor.NewPreprocessor()
	p.IncludeDirs = opts.IncludeDirs
	p.TrackLines = opts.TrackLines
	if opts.Bindings != (preprocessor.Bindings{}) {
		p.Bindings = opts.Bindings
	}

	units := make([][]byte, len(opts.Inputs))
	for i, in := range opts.Inputs {
		out, err := expandUnit(p, logger, in)
		if err != nil {
			return nil, err
		}
		units[i] = out
	}

	report := &Report{
		Symbols:     p.Symbols().Snapshot(),
		Diagnostics: p.Diagnostics(),
		Manifest:    opts.ManifestPath,
	}
	for i, in := range opts.Inputs {
		out := outputPath(opts.OutputDir, in)
		if err := artifact.WriteFile(out, units[i]); err != nil {
			logger.Error(err.Error(), "comp", "expander", "file", filepath.Base(in), "code", string(diag.Classify(err)))
			return nil, err
		}
		report.Outputs = append(report.Outputs, out)
	}

	tm := diag.Start(logger, "manifest", filepath.Base(opts.ManifestPath), "write manifest")
	entries := manifest.FromSymbols(report.Symbols)
	if err := artifact.Write(opts.ManifestPath, func(w io.Writer) error {
		return manifest.Write(w, entries)
	}); err != nil {
		tm.Fail(err)
		return nil, err
	}
	tm.Finish("manifest written", len(entries))
	return report, nil
}

func outputPath(outDir, in string) string {
	return filepath.Join(outDir, filepath.Base(in))
}

// checkOverwrites rejects a batch whose outputs or manifest land on one of
// its inputs.
func checkOverwrites(opts Options) error {
	for _, in := range opts.Inputs {
		for _, out := range []string{outputPath(opts.OutputDir, in), opts.ManifestPath} {
			if out != "" && sameFile(in, out) {
				return &OverwriteInputError{Input: in, Output: out}
			}
		}
	}
	return nil
}

// sameFile compares absolute paths and, when both exist, file identity so
// that symlinks and hard links are caught too.
func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	stA, errA := os.Stat(a)
	stB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(stA, stB)
}

func expandUnit(p *preprocessor.Preprocessor, logger *slog.Logger, in string) ([]byte, error) {
	name := filepath.Base(in)
	tm := diag.Start(logger, "expander", name, "expand")

	src, err := os.ReadFile(in)
	if err != nil {
		err = &preprocessor.UnreadableFileError{Path: in, Err: err}
		tm.Fail(err)
		return nil, err
	}
	warned := len(p.Diagnostics())
	var buf bytes.Buffer
	if err := p.Process(in, bytes.NewReader(src), &buf); err != nil {
		tm.Fail(err)
		return nil, err
	}
	for _, d := range p.Diagnostics()[warned:] {
		logger.Warn(d.Error(), "comp", "expander", "file", name, "code", string(diag.Classify(d)))
	}
	tm.Finish("expanded", bytes.Count(buf.Bytes(), []byte{'\n'}))
	return buf.Bytes(), nil
}
