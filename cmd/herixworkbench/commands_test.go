/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"herixworkbench/internal/config"
	"herixworkbench/internal/crash"
)

var sample = filepath.Join("..", "..", "internal", "specfile", "testdata", "sample.spec")

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv(config.EnvPostgresDSN, "")
	t.Setenv(config.EnvIndexPath, "")
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut, &crash.Session{})
	return code, out.String(), errOut.String()
}

func TestVersionAndUsage(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Herix Workbench")

	code, out, _ = runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage:")

	code, _, _ = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)

	code, _, errOut := runCLI(t, "types")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "types requires <file>")
}

func TestTypesAndScans(t *testing.T) {
	code, out, _ := runCLI(t, "types", sample)
	require.Equal(t, 0, code)
	assert.Equal(t, "ascan\nmesh\n", out)

	code, out, _ = runCLI(t, "scans", sample)
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	keys := make([]string, len(lines))
	for i, ln := range lines {
		keys[i] = strings.SplitN(ln, "\t", 2)[0]
	}
	assert.Equal(t, []string{"1", "2", "3", "3.2"}, keys)

	code, out, _ = runCLI(t, "scans", sample, "mesh")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "2\tmesh"), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLoadFailureWarnsOnce(t *testing.T) {
	broken := filepath.Join("..", "..", "internal", "specfile", "testdata", "broken.spec")
	code, out, errOut := runCLI(t, "types", broken)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Equal(t, 1, strings.Count(errOut, "Loading error:"))
	assert.Contains(t, errOut, "line 8")
}

func TestPlotCommand(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "scan1.png")
	code, _, errOut := runCLI(t, "plot", sample, "1", png)
	require.Equal(t, 0, code, errOut)
	b, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))

	pdf := filepath.Join(dir, "scan1.pdf")
	code, _, errOut = runCLI(t, "plot", sample, "1", pdf, "Monitor", "Detector")
	require.Equal(t, 0, code, errOut)
	b, err = os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	code, _, errOut = runCLI(t, "plot", sample, "99", png)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown scan "99"`)

	code, _, _ = runCLI(t, "plot", sample, "1", png, "NoSuchDetector")
	assert.Equal(t, 1, code)
}

func TestExportAndSearch(t *testing.T) {
	idx := filepath.Join(t.TempDir(), "index.sqlite")
	code, out, errOut := runCLI(t, "export", sample, idx)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Indexed 4 scans")

	code, out, errOut = runCLI(t, "search", "mesh", idx)
	require.Equal(t, 0, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "\t2\tmesh")
}

func TestPushWithoutArchive(t *testing.T) {
	code, _, errOut := runCLI(t, "push", sample)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no archive DSN configured")
}

func TestLoginStoresPassword(t *testing.T) {
	keyring.MockInit()
	code, out, errOut := runCLI(t, "login", "s3cret")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "keyring")
	pw, err := config.ArchivePassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwb", "config.yaml")
	t.Setenv(config.EnvConfigPath, path)
	t.Setenv(config.EnvPostgresDSN, "")
	t.Setenv(config.EnvIndexPath, "")
	t.Setenv(config.EnvPlotWidth, "1200")
	cli := func(args ...string) (int, string, string) {
		var out, errOut bytes.Buffer
		code := run(args, &out, &errOut, &crash.Session{})
		return code, out.String(), errOut.String()
	}

	code, out, _ := cli("config", "init")
	require.Equal(t, 0, code)
	assert.Contains(t, out, path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "width: 900")
	assert.NotContains(t, string(b), "1200")

	code, _, errOut := cli("config", "init")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")
	code, _, _ = cli("config", "init", "--force")
	assert.Equal(t, 0, code)

	code, out, _ = cli("config")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "plot.width = 1200\t(from HWB_PLOT_WIDTH)\n")
	assert.Contains(t, out, "plot.default_mode = Single\n")
	assert.Contains(t, out, "archive.postgres_dsn = \n")
}
