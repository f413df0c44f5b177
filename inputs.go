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
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ListInputs expands the given paths into an ordered list of shader files.
// Files are kept as given; a directory contributes its regular files whose
// extension is in exts, sorted by name. Symbolic links to regular files count
// as files. Subdirectories are not descended.
func ListInputs(paths []string, exts []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			path := filepath.Join(p, e.Name())
			if e.Type()&fs.ModeSymlink != 0 {
				// Follow links; dangling ones and links to directories are skipped.
				if st, err := os.Stat(path); err != nil || !st.Mode().IsRegular() {
					continue
				}
			} else if !e.Type().IsRegular() {
				continue
			}
			out = append(out, path)
		}
	}
	return out, nil
}
