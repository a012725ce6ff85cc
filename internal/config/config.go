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
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"herixworkbench/internal/workbench"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type PlotConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	CacheSize   int    `yaml:"cache_size"`
	DefaultMode string `yaml:"default_mode"` // "Single" | "Multi"
}

type ArchiveConfig struct {
	IndexPath   string `yaml:"index_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	User        string `yaml:"user"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Plot          PlotConfig    `yaml:"plot"`
	Archive       ArchiveConfig `yaml:"archive"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Plot:          PlotConfig{Width: 900, Height: 600, CacheSize: 64, DefaultMode: "Single"},
		Archive:       ArchiveConfig{},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "HWB_CONFIG"
	EnvTelemetryOptIn = "HWB_TELEMETRY_OPT_IN"
	EnvPlotWidth      = "HWB_PLOT_WIDTH"
	EnvPlotHeight     = "HWB_PLOT_HEIGHT"
	EnvPlotCache      = "HWB_PLOT_CACHE"
	EnvPlotMode       = "HWB_PLOT_MODE"
	EnvIndexPath      = "HWB_INDEX_PATH"
	EnvPostgresDSN    = "HWB_PG_DSN"
	EnvArchiveUser    = "HWB_ARCHIVE_USER"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "HWB_LOG_LEVEL"
	EnvLogFormat = "HWB_LOG_FORMAT"
	EnvLogSource = "HWB_LOG_SOURCE"
	EnvLogFile   = "HWB_LOG_FILE"
)

//go:embed config.schema.json
var schemaJSON []byte

// ErrInvalid wraps schema violations found in the config file.
var ErrInvalid = errors.New("invalid config")

// ConfigDir returns the per-user config directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "HerixWorkbench")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "HerixWorkbench")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "herixworkbench")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "herixworkbench")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path. HWB_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored; variables that are
// already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads the user config file (if present), validates it, applies
// defaults, and merges environment overrides. A file that fails validation
// yields the defaults plus env overrides together with an ErrInvalid error.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		if fileCfg, err := Parse(data); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			loadErr = fmt.Errorf("%s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, loadErr
}

// Parse validates YAML config bytes against the embedded schema and decodes them.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := Validate(data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate checks YAML config bytes against the embedded JSON schema.
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if doc == nil {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	_ = enc.Close()
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	// plot
	if src.Plot.Width > 0 {
		dst.Plot.Width = src.Plot.Width
	}
	if src.Plot.Height > 0 {
		dst.Plot.Height = src.Plot.Height
	}
	if src.Plot.CacheSize > 0 {
		dst.Plot.CacheSize = src.Plot.CacheSize
	}
	if strings.TrimSpace(src.Plot.DefaultMode) != "" {
		dst.Plot.DefaultMode = strings.TrimSpace(src.Plot.DefaultMode)
	}
	// archive
	if strings.TrimSpace(src.Archive.IndexPath) != "" {
		dst.Archive.IndexPath = strings.TrimSpace(src.Archive.IndexPath)
	}
	if strings.TrimSpace(src.Archive.PostgresDSN) != "" {
		dst.Archive.PostgresDSN = strings.TrimSpace(src.Archive.PostgresDSN)
	}
	if strings.TrimSpace(src.Archive.User) != "" {
		dst.Archive.User = strings.TrimSpace(src.Archive.User)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	envInt(EnvPlotWidth, &cfg.Plot.Width)
	envInt(EnvPlotHeight, &cfg.Plot.Height)
	envInt(EnvPlotCache, &cfg.Plot.CacheSize)
	if v := strings.TrimSpace(os.Getenv(EnvPlotMode)); v != "" {
		if _, err := workbench.ParsePlotMode(v); err == nil {
			cfg.Plot.DefaultMode = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexPath)); v != "" {
		cfg.Archive.IndexPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Archive.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvArchiveUser)); v != "" {
		cfg.Archive.User = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"plot.width":               EnvPlotWidth,
		"plot.height":              EnvPlotHeight,
		"plot.cache_size":          EnvPlotCache,
		"plot.default_mode":        EnvPlotMode,
		"archive.index_path":       EnvIndexPath,
		"archive.postgres_dsn":     EnvPostgresDSN,
		"archive.user":             EnvArchiveUser,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	if name, ok := names[key]; ok && os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

// Setting is one effective configuration value.
type Setting struct {
	Key   string
	Value string
	Env   string // overriding variable, empty when the value comes from file or defaults
}

// Settings lists the effective values in file order. The archive DSN may
// carry credentials and is only reported as set.
func (c AppConfig) Settings() []Setting {
	dsn := ""
	if c.Archive.PostgresDSN != "" {
		dsn = "<set>"
	}
	out := []Setting{
		{Key: "general.telemetry_opt_in", Value: strconv.FormatBool(c.General.TelemetryOptIn)},
		{Key: "plot.width", Value: strconv.Itoa(c.Plot.Width)},
		{Key: "plot.height", Value: strconv.Itoa(c.Plot.Height)},
		{Key: "plot.cache_size", Value: strconv.Itoa(c.Plot.CacheSize)},
		{Key: "plot.default_mode", Value: c.Plot.DefaultMode},
		{Key: "archive.index_path", Value: c.Archive.IndexPath},
		{Key: "archive.postgres_dsn", Value: dsn},
		{Key: "archive.user", Value: c.Archive.User},
		{Key: "logging.level", Value: c.Logging.Level},
		{Key: "logging.format", Value: c.Logging.Format},
		{Key: "logging.source", Value: strconv.FormatBool(c.Logging.Source)},
		{Key: "logging.file", Value: c.Logging.File},
	}
	for i := range out {
		out[i].Env, _ = EnvOverrideFor(out[i].Key)
	}
	return out
}

// ErrExists is returned by Init when a config file is already present.
var ErrExists = errors.New("config file already exists")

// Init writes the defaults to the user config file and returns its path.
// An existing file is only replaced when force is set.
func Init(force bool) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w: %s", ErrExists, path)
	}
	return path, Save(Defaults())
}

// Mode returns the configured default plot mode, falling back to Single.
func (p PlotConfig) Mode() workbench.PlotMode {
	m, err := workbench.ParsePlotMode(p.DefaultMode)
	if err != nil {
		return workbench.PlotSingle
	}
	return m
}

// IndexFile returns the SQLite scan index path, defaulting into the config dir.
func (a ArchiveConfig) IndexFile(defaultName string) (string, error) {
	if a.IndexPath != "" {
		return a.IndexPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultName), nil
}
