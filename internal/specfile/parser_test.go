/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package specfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herixworkbench/internal/workbench"
)

func TestParseFile_Sample(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "sample.spec"))
	require.NoError(t, err)

	require.Len(t, f.Headers, 1)
	h := f.Headers[0]
	assert.Equal(t, "sample.spec", h.File)
	assert.Equal(t, int64(1318862186), h.Epoch)
	assert.Equal(t, []string{"Two Theta", "Theta", "Chi", "Phi", "mr", "mr2"}, h.Motors)
	assert.Equal(t, []string{"herix  User = tester"}, h.Comments)

	require.Len(t, f.Scans, 4)
	s1 := f.Scans[0]
	assert.Equal(t, "1", s1.Key)
	assert.Equal(t, "ascan  mr 0 1 10 1", s1.Command)
	assert.Equal(t, "Mon Oct 17 09:40:01 2011", s1.Date)
	assert.Equal(t, []string{"mr", "Monitor", "Detector"}, s1.Labels)
	assert.Equal(t, [][]float64{{0, 1000, 12}, {0.1, 1001, 15}, {0.2, 998, 40}}, s1.Points)
	assert.Equal(t, 10.0, s1.Positions["Two Theta"])
	assert.Equal(t, 0.25, s1.Positions["mr2"])

	assert.Equal(t, []string{"mesh aborted"}, f.Scans[1].Comments)
	assert.Len(t, f.Scans[2].Points, 2, "MCA lines are skipped")

	// repeated scan numbers get suffixed keys
	assert.Equal(t, "3", f.Scans[2].Key)
	assert.Equal(t, "3.2", f.Scans[3].Key)
	assert.Equal(t, 3, f.Scans[3].Number)

	s, ok := f.Scan("3.2")
	require.True(t, ok)
	assert.Len(t, s.Points, 1)
}

func TestLoader_BuildsCatalog(t *testing.T) {
	cat, err := Loader{}.Parse(filepath.Join("testdata", "sample.spec"))
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
	assert.Equal(t, []string{"ascan", "mesh"}, workbench.DeriveTypes(cat))

	r, ok := cat.Get("2")
	require.True(t, ok)
	assert.Equal(t, "mesh", r.Type())
	assert.Equal(t, "x", r.Axis())
	assert.Equal(t, []string{"y", "Monitor", "Detector"}, r.Detectors())
}

func TestLoader_Errors(t *testing.T) {
	_, err := Loader{}.Parse(filepath.Join("testdata", "broken.spec"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 8, pe.Line)
	assert.Contains(t, err.Error(), `bad number "abc"`)

	_, err = Loader{}.Parse(filepath.Join(t.TempDir(), "missing.spec"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParse_Table(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		scans   int
		rows    int
		wantErr string
	}{
		{name: "header only", in: "#F x.spec\n#E 1\n", scans: 0},
		{name: "not spec", in: "hello\nworld\n", wantErr: "data outside of a scan"},
		{name: "empty", in: "", wantErr: ErrNotSpec.Error()},
		{name: "comments only", in: "# just a note\n", wantErr: ErrNotSpec.Error()},
		{name: "bad scan header", in: "#S x ascan\n", wantErr: "malformed #S line"},
		{name: "label count mismatch", in: "#S 1 ascan\n#N 3\n#L a  b\n", wantErr: "#N says 3"},
		{name: "row width mismatch", in: "#S 1 ascan\n#L a  b\n1 2 3\n", wantErr: "row has 3 values"},
		{name: "labels outside scan", in: "#F f\n#L a  b\n", wantErr: "#L outside of a scan"},
		{name: "bad epoch", in: "#F f\n#E soon\n", wantErr: "bad epoch"},
		{name: "scan without data", in: "#S 9 timescan 1\n", scans: 1},
		{name: "crlf", in: "#S 1 ascan th 0 1 1 1\r\n#L th  det\r\n0 1\r\n1 2\r\n", scans: 1, rows: 2},
		{name: "mca continuation", in: "#S 1 ascan th 0 1 1 1\n#L th  det\n@A 1 2 3 4\\\n 5 6 7 8\\\n 9 10\n0 1\n@A 4 3\n1 2\n", scans: 1, rows: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse(strings.NewReader(tc.in))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.Scans, tc.scans)
			if tc.scans > 0 {
				assert.Len(t, f.Scans[0].Points, tc.rows)
			}
		})
	}
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"Two Theta", "Theta"}, splitNames("Two Theta  Theta"))
	assert.Equal(t, []string{"a", "b"}, splitNames("a\tb"))
	assert.Equal(t, []string{}, splitNames("   "))
}

func TestParse_MotorIndexGap(t *testing.T) {
	in := "#F gap.spec\n#E 1\n#O2 c  d\n#O0 a  b\n#S 1 ascan a 0 1 1 1\n#P0 1 2\n#P1 3 4\n#L a  det\n0 1\n"
	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f.Headers, 1)
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.Headers[0].Motors)
	assert.Equal(t, 4.0, f.Scans[0].Positions["d"])
}
