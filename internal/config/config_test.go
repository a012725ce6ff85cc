/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"herixworkbench/internal/workbench"
)

// isolate points the config path at an empty temp file location.
func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	return p
}

func TestEnvOverridesPlot(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPlotWidth, "1280")
	t.Setenv(EnvPlotHeight, "nope")
	t.Setenv(EnvPlotMode, "multi")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Plot.Width != 1280 {
		t.Fatalf("Plot.Width = %d, want 1280", cfg.Plot.Width)
	}
	if cfg.Plot.Height != Defaults().Plot.Height {
		t.Fatalf("Plot.Height = %d, want default for unparsable env", cfg.Plot.Height)
	}
	if cfg.Plot.Mode() != workbench.PlotMulti {
		t.Fatalf("Plot.Mode() = %v, want Multi", cfg.Plot.Mode())
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
	if name, ok := EnvOverrideFor("general.telemetry_opt_in"); !ok || name != EnvTelemetryOptIn {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("archive.user"); ok {
		t.Fatalf("archive.user should not be reported as overridden")
	}
}

func TestLoadMergesFileThenEnv(t *testing.T) {
	p := isolate(t)
	yml := "config_version: 1\nplot:\n  width: 700\n  default_mode: Multi\narchive:\n  postgres_dsn: postgres://db.lab/scans\n  user: beam\n"
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvArchiveUser, "operator")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Plot.Width != 700 || cfg.Plot.Height != 600 || cfg.Plot.DefaultMode != "Multi" {
		t.Fatalf("plot not merged: %#v", cfg.Plot)
	}
	if cfg.Archive.PostgresDSN != "postgres://db.lab/scans" || cfg.Archive.User != "operator" {
		t.Fatalf("archive not merged: %#v", cfg.Archive)
	}
}

func TestLoadRejectsBadPlotMode(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("plot:\n  default_mode: Waterfall\n  width: 800\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() error = %v, want ErrInvalid", err)
	}
	if cfg.Plot.DefaultMode != "Single" || cfg.Plot.Width != 900 {
		t.Fatalf("invalid file must not be merged: %#v", cfg.Plot)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yml  string
		ok   bool
	}{
		{"empty", "", true},
		{"full", "general:\n  telemetry_opt_in: true\nplot:\n  cache_size: 8\nlogging:\n  level: debug\n  format: json\n", true},
		{"opt-in not a bool", "general:\n  telemetry_opt_in: maybe\n", false},
		{"bad width type", "plot:\n  width: wide\n", false},
		{"tiny height", "plot:\n  height: 3\n", false},
		{"not yaml", "plot: [", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate([]byte(c.yml))
			if c.ok && err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if !c.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/hwb.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/hwb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/hwb.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/hwb.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Plot.Width = 1024
	cfg.Archive.IndexPath = "/tmp/idx.sqlite"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Plot.Width != 1024 || got.Archive.IndexPath != "/tmp/idx.sqlite" {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	idx, err := got.Archive.IndexFile("scan-index.sqlite")
	if err != nil || idx != "/tmp/idx.sqlite" {
		t.Fatalf("IndexFile() = %q, %v", idx, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, ".env")
	if err := os.WriteFile(f, []byte("HWB_TEST_DOTENV=from-file\nHWB_TEST_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HWB_TEST_DOTENV", "")
	os.Unsetenv("HWB_TEST_DOTENV")
	t.Setenv("HWB_TEST_DOTENV_KEEP", "from-env")
	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), f); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv("HWB_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("HWB_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("HWB_TEST_DOTENV_KEEP"); got != "from-env" {
		t.Fatalf("existing env was overwritten: %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "none")); err != nil {
		t.Fatalf("missing files should be ignored: %v", err)
	}
}

func TestArchivePasswordKeyring(t *testing.T) {
	keyring.MockInit()
	if _, err := ArchivePassword(); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("ArchivePassword() on empty keyring = %v, want ErrNoSecret", err)
	}
	if err := SetArchivePassword("s3cret"); err != nil {
		t.Fatalf("SetArchivePassword() error: %v", err)
	}
	pw, err := ArchivePassword()
	if err != nil || pw != "s3cret" {
		t.Fatalf("ArchivePassword() = %q, %v", pw, err)
	}
	if err := SetArchivePassword(""); err != nil {
		t.Fatalf("clearing password: %v", err)
	}
	if err := SetArchivePassword(""); err != nil {
		t.Fatalf("clearing twice should be a no-op: %v", err)
	}
	if _, err := ArchivePassword(); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("password still present after clear: %v", err)
	}
}

func TestSettingsMarksEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPlotMode, "multi")
	t.Setenv(EnvArchiveUser, "")
	cfg := Defaults()
	cfg.Plot.DefaultMode = "multi"
	cfg.Archive.PostgresDSN = "postgres://beam:secret@db/scans"

	byKey := map[string]Setting{}
	for _, s := range cfg.Settings() {
		byKey[s.Key] = s
	}
	if s := byKey["plot.default_mode"]; s.Value != "multi" || s.Env != EnvPlotMode {
		t.Fatalf("plot.default_mode = %+v", s)
	}
	if s := byKey["archive.user"]; s.Env != "" {
		t.Fatalf("archive.user reported as overridden: %+v", s)
	}
	if s := byKey["archive.postgres_dsn"]; s.Value != "<set>" {
		t.Fatalf("dsn leaked: %+v", s)
	}
}

func TestInitRefusesExistingFile(t *testing.T) {
	p := isolate(t)
	path, err := Init(false)
	if err != nil || path != p {
		t.Fatalf("Init() = %q, %v", path, err)
	}
	if _, err := Init(false); !errors.Is(err, ErrExists) {
		t.Fatalf("second Init() = %v, want ErrExists", err)
	}
	if _, err := Init(true); err != nil {
		t.Fatalf("forced Init() = %v", err)
	}
	cfg, err := Load()
	if err != nil || cfg.Plot.Width != 900 {
		t.Fatalf("Load() after Init = %+v, %v", cfg.Plot, err)
	}
}
