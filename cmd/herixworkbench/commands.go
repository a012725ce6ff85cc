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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"herixworkbench/internal/config"
	"herixworkbench/internal/crash"
	"herixworkbench/internal/export"
	applog "herixworkbench/internal/log"
	"herixworkbench/internal/plot"
	"herixworkbench/internal/specfile"
	"herixworkbench/internal/storage"
	"herixworkbench/internal/telemetry"
	"herixworkbench/internal/ui"
	"herixworkbench/internal/version"
	"herixworkbench/internal/workbench"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Herix Workbench: SPEC scan browser")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  herixworkbench version|-v|--version                       Show version")
	fmt.Fprintln(w, "  herixworkbench types <file>                               List scan types")
	fmt.Fprintln(w, "  herixworkbench scans <file> [type]                        List scans, optionally of one type")
	fmt.Fprintln(w, "  herixworkbench plot <file> <scan> <out.png|out.pdf> [det...]  Plot a scan (detectors select Multi mode)")
	fmt.Fprintln(w, "  herixworkbench export <file> [index.sqlite]               Write the scans to the local scan index")
	fmt.Fprintln(w, "  herixworkbench search <query> [index.sqlite]              Search scan commands in the index")
	fmt.Fprintln(w, "  herixworkbench push <file>                                Write the scans to the PostgreSQL archive")
	fmt.Fprintln(w, "  herixworkbench login <password>                           Store the archive password in the OS keyring")
	fmt.Fprintln(w, "  herixworkbench config [init [--force]]                    Show effective settings, or write a default config file")
	fmt.Fprintln(w, "  herixworkbench ui [<file>]                                Launch desktop UI (build with -tags fyne)")
}

// cliView prints load warnings; the list views are not shown on the CLI.
type cliView struct{ w io.Writer }

func (cliView) LoadScans([]workbench.ScanRecord) {}
func (cliView) LoadTypes([]string) {}
func (v cliView) ShowWarning(title, msg string) { fmt.Fprintf(v.w, "%s: %s\n", title, msg) }

// run executes one CLI command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, sess *crash.Session) int {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File, Writer: stderr})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config file ignored", slog.Any("err", cfgErr))
	}
	l.Debug("start", slog.Int("args", len(args)))

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = cfg.General.TelemetryOptIn
	telemetry.SetDefault(tcfg)
	tel := telemetry.Default()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		tel.Flush(ctx)
	}()

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	fail := func(err error) int {
		l.Error(args[0]+" failed", slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	need := func(n int, what string) bool {
		if len(args) < n+1 {
			fmt.Fprintf(stderr, "%s requires %s\n", args[0], what)
			usage(stderr)
			return false
		}
		return true
	}
	ctx := context.Background()

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, "Herix Workbench")
		fmt.Fprintln(stdout, version.String())
		return 0

	case "types":
		if !need(1, "<file>") {
			return 2
		}
		ctrl, code := openCatalog(args[1], stderr, nil, sess, tel)
		if ctrl == nil {
			return code
		}
		for _, t := range ctrl.State().Types {
			fmt.Fprintln(stdout, t)
		}
		return 0

	case "scans":
		if !need(1, "<file>") {
			return 2
		}
		ctrl, code := openCatalog(args[1], stderr, nil, sess, tel)
		if ctrl == nil {
			return code
		}
		if len(args) > 2 {
			ctrl.SetTypeFilter(args[2])
		}
		for _, r := range ctrl.State().Displayed {
			fmt.Fprintf(stdout, "%s\t%s\n", r.Key, r.Command)
		}
		return 0

	case "plot":
		if !need(3, "<file> <scan> <out.png|out.pdf>") {
			return 2
		}
		if err := plotScan(args[1], args[2], args[3], args[4:], cfg, stderr, sess, tel); err != nil {
			return fail(err)
		}
		fmt.Fprintln(stdout, "Wrote", args[3])
		return 0

	case "export":
		if !need(1, "<file>") {
			return 2
		}
		idx := ""
		if len(args) > 2 {
			idx = args[2]
		}
		if idx == "" {
			p, err := cfg.Archive.IndexFile(storage.DefaultIndexName)
			if err != nil {
				return fail(err)
			}
			idx = p
		}
		st, err := exportIndex(ctx, args[1], idx)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Indexed %d scans, %d detectors into %s\n", st.Scans, st.Detectors, idx)
		return 0

	case "search":
		if !need(1, "<query>") {
			return 2
		}
		idx := ""
		if len(args) > 2 {
			idx = args[2]
		} else if p, err := cfg.Archive.IndexFile(storage.DefaultIndexName); err == nil {
			idx = p
		}
		db, err := storage.OpenIndex(idx)
		if err != nil {
			return fail(err)
		}
		defer db.Close()
		hits, err := storage.Search(ctx, db, args[1], 50)
		if err != nil {
			return fail(err)
		}
		for _, h := range hits {
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", h.Path, h.ScanKey, h.Command)
		}
		return 0

	case "push":
		if !need(1, "<file>") {
			return 2
		}
		st, err := pushArchive(ctx, args[1], cfg.Archive)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "Archived %d scans, %d detectors\n", st.Scans, st.Detectors)
		return 0

	case "login":
		if !need(1, "<password>") {
			return 2
		}
		if err := config.SetArchivePassword(args[1]); err != nil {
			return fail(err)
		}
		fmt.Fprintln(stdout, "Archive password stored in the OS keyring.")
		return 0

	case "config":
		if len(args) >= 2 && args[1] == "init" {
			force := len(args) >= 3 && args[2] == "--force"
			path, err := config.Init(force)
			if err != nil {
				return fail(err)
			}
			fmt.Fprintln(stdout, "Wrote", path)
			return 0
		}
		if path, err := config.ConfigPath(); err == nil {
			fmt.Fprintf(stdout, "# %s\n", path)
		}
		for _, st := range cfg.Settings() {
			if st.Env != "" {
				fmt.Fprintf(stdout, "%s = %s\t(from %s)\n", st.Key, st.Value, st.Env)
				continue
			}
			fmt.Fprintf(stdout, "%s = %s\n", st.Key, st.Value)
		}
		return 0

	case "ui":
		var file string
		if len(args) >= 2 {
			file = args[1]
		}
		if err := ui.Run(file); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
		return 0
	}

	usage(stdout)
	return 2
}

// openCatalog loads path through a controller, the same route the desktop
// browser takes. A nil controller means the load failed; the warning has
// already been printed.
func openCatalog(path string, stderr io.Writer, pl workbench.Plotter, sess *crash.Session, tel *telemetry.Client) (*workbench.Controller, int) {
	abs, _ := filepath.Abs(path)
	ctrl := workbench.NewController(specfile.Loader{}, cliView{w: stderr}, pl)
	if err := ctrl.OpenFile(abs); err != nil {
		return nil, 1
	}
	st := ctrl.State()
	sess.Track(abs, "", st.Mode.String())
	tel.FileOpened(st.Catalog.Len(), len(st.Types))
	return ctrl, 0
}

func plotScan(path, scan, out string, detectors []string, cfg config.AppConfig, stderr io.Writer, sess *crash.Session, tel *telemetry.Client) error {
	rend, err := plot.New(plot.Options{Width: cfg.Plot.Width, Height: cfg.Plot.Height, CacheSize: cfg.Plot.CacheSize}, nil)
	if err != nil {
		return err
	}
	ctrl, _ := openCatalog(path, stderr, rend, sess, tel)
	if ctrl == nil {
		return errors.New("cannot load " + path)
	}
	ctrl.SelectScans([]string{scan})
	if ctrl.State().Focused != scan {
		return fmt.Errorf("unknown scan %q", scan)
	}
	if len(detectors) > 0 {
		ctrl.SetDetectors(detectors)
		ctrl.SetPlotMode(workbench.PlotMulti)
	}
	st := ctrl.State()
	sess.Track(st.Catalog.Path(), st.Focused, st.Mode.String())

	_, req := rend.Last()
	img, err := rend.Render(req)
	if err != nil {
		return fmt.Errorf("plot scan %s: %w", scan, err)
	}
	tel.PlotRendered(req.Mode.String(), len(req.Series()))
	return export.ToFile(img, export.NewReport(st.Catalog.Path(), req.Scan, req.Mode, req.Series()), out)
}

func exportIndex(ctx context.Context, path, index string) (storage.Stats, error) {
	cat, err := specfile.Loader{}.Parse(path)
	if err != nil {
		return storage.Stats{}, err
	}
	db, err := storage.OpenIndex(index)
	if err != nil {
		return storage.Stats{}, err
	}
	defer db.Close()
	return storage.SaveCatalog(ctx, db, storage.SQLite, cat)
}

func pushArchive(ctx context.Context, path string, ac config.ArchiveConfig) (storage.Stats, error) {
	if ac.PostgresDSN == "" {
		return storage.Stats{}, fmt.Errorf("%w: set archive.postgres_dsn or %s", storage.ErrNoArchive, config.EnvPostgresDSN)
	}
	cat, err := specfile.Loader{}.Parse(path)
	if err != nil {
		return storage.Stats{}, err
	}
	pw, err := config.ArchivePassword()
	if err != nil && !errors.Is(err, config.ErrNoSecret) {
		applog.WithComponent("cli").Warn("keyring unavailable", slog.Any("err", err))
	}
	db, err := storage.OpenArchive(ctx, storage.WithCredentials(ac.PostgresDSN, ac.User, pw))
	if err != nil {
		return storage.Stats{}, err
	}
	defer db.Close()
	return storage.SaveCatalog(ctx, db, storage.Postgres, cat)
}
