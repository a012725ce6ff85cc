//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"log/slog"
	"path/filepath"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"herixworkbench/internal/config"
	"herixworkbench/internal/crash"
	"herixworkbench/internal/export"
	applog "herixworkbench/internal/log"
	"herixworkbench/internal/plot"
	"herixworkbench/internal/specfile"
	"herixworkbench/internal/telemetry"
	"herixworkbench/internal/workbench"
)

// window is the scan browser. It implements workbench.View and
// workbench.DetectorView and turns widget callbacks into bus events.
type window struct {
	w     fyne.Window
	bus   *workbench.Bus
	ctrl  *workbench.Controller
	rend  *plot.Renderer
	sess  *crash.Session
	tel   *telemetry.Client
	prefs fyne.Preferences
	log   *slog.Logger

	// refreshRecent rebuilds the Open Recent submenu from preferences.
	refreshRecent func()

	typeSelect *widget.Select
	modeSelect *widget.Select
	scanList   *widget.List
	detectors  *widget.CheckGroup
	plotImage  *canvas.Image
	status     *widget.Label

	scans    []workbench.ScanRecord
	selected []string
	// syncing is set while the controller pushes state into widgets, so
	// their change callbacks do not echo events back onto the bus.
	syncing bool
}

// Run starts the Fyne scan browser. A non-empty file is opened at startup.
func Run(file string) error {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("ui")
	if cfgErr != nil {
		l.Warn("config ignored", slog.Any("err", cfgErr))
	}
	l.Info("starting UI")

	sess := &crash.Session{}
	defer crash.Recover(sess)

	fyneApp := app.NewWithID("io.herix.workbench")
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = cfg.General.TelemetryOptIn
	telemetry.SetDefault(tcfg)
	tel := telemetry.Default()
	defer tel.Close()
	ui, err := newWindow(fyneApp, specfile.Loader{}, cfg.Plot, tel, sess)
	if err != nil {
		return err
	}
	// Restore window size from preferences (with sane minimums)
	winW := max(ui.prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(ui.prefs.IntWithFallback("window.height", 800), 600)
	ui.w.Resize(fyne.NewSize(float32(winW), float32(winH)))
	ui.w.SetOnClosed(func() {
		sz := ui.w.Canvas().Size()
		ui.prefs.SetInt("window.width", int(sz.Width))
		ui.prefs.SetInt("window.height", int(sz.Height))
	})

	if file != "" {
		ui.open(file)
	}
	ui.w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

// newWindow builds the browser window and wires controller, renderer and bus.
func newWindow(a fyne.App, parser workbench.Parser, pc config.PlotConfig, tel *telemetry.Client, sess *crash.Session) (*window, error) {
	ui := &window{
		w:     a.NewWindow("Herix Workbench"),
		bus:   workbench.NewBus(),
		sess:  sess,
		tel:   tel,
		prefs: a.Preferences(),
		log:   applog.WithComponent("ui"),
	}
	ui.plotImage = canvas.NewImageFromImage(plot.Placeholder(pc.Width, pc.Height, plot.HintNoScan))
	ui.plotImage.FillMode = canvas.ImageFillContain
	ui.plotImage.SetMinSize(fyne.NewSize(400, 300))

	rend, err := plot.New(plot.Options{Width: pc.Width, Height: pc.Height, CacheSize: pc.CacheSize}, ui.showImage)
	if err != nil {
		return nil, err
	}
	ui.rend = rend

	ui.ctrl = workbench.NewController(parser, ui, meteredPlotter{next: rend, tel: tel})
	ui.ctrl.Attach(ui.bus)

	ui.w.SetContent(ui.build(pc.Mode()))
	ui.w.SetMainMenu(ui.menu())
	if pc.Mode() != workbench.PlotSingle {
		ui.publish(workbench.PlotModeChanged{Mode: pc.Mode()})
	}
	return ui, nil
}

func (u *window) build(mode workbench.PlotMode) fyne.CanvasObject {
	u.typeSelect = widget.NewSelect(workbench.TypeOptions(nil), func(t string) {
		if u.syncing || t == "" {
			return
		}
		u.publish(workbench.TypeFilterChanged{Type: t})
	})
	u.sync(func() { u.typeSelect.SetSelected(workbench.AllTypes) })

	u.scanList = widget.NewList(
		func() int { return len(u.scans) },
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.CheckButtonIcon()), widget.NewLabel(""))
		},
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < 0 || id >= len(u.scans) {
				return
			}
			row := o.(*fyne.Container)
			r := u.scans[id]
			icon := theme.CheckButtonIcon()
			if contains(u.selected, r.Key) {
				icon = theme.CheckButtonCheckedIcon()
			}
			row.Objects[0].(*widget.Icon).SetResource(icon)
			row.Objects[1].(*widget.Label).SetText(scanLabel(r))
		},
	)
	// Clicking a row toggles it in the selection; the list's own single
	// selection is cleared straight away.
	u.scanList.OnSelected = func(id widget.ListItemID) {
		u.scanList.Unselect(id)
		if id < 0 || id >= len(u.scans) {
			return
		}
		u.selected = toggleSelection(u.selected, u.scans[id].Key)
		u.publish(workbench.ScanSelectionChanged{Keys: u.selected})
		u.selected = u.ctrl.State().Selected
		u.scanList.Refresh()
	}

	u.modeSelect = widget.NewSelect(workbench.PlotModeNames(), func(s string) {
		if u.syncing {
			return
		}
		m, err := workbench.ParsePlotMode(s)
		if err != nil {
			u.log.Warn("unknown plot mode", slog.String("mode", s))
			return
		}
		u.publish(workbench.PlotModeChanged{Mode: m})
	})
	u.sync(func() { u.modeSelect.SetSelected(mode.String()) })

	u.detectors = widget.NewCheckGroup(nil, func(sel []string) {
		if u.syncing {
			return
		}
		u.publish(workbench.DetectorSelectionChanged{Detectors: sel})
	})
	u.status = widget.NewLabel("Open a SPEC file to begin")

	left := container.NewBorder(
		container.NewVBox(widget.NewLabel("Scan type"), u.typeSelect, widget.NewLabel("Scans")),
		nil, nil, nil,
		u.scanList,
	)
	controls := container.NewBorder(nil, nil, widget.NewLabel("Plot type"), nil, u.modeSelect)
	detPane := container.NewBorder(widget.NewLabel("Detectors"), nil, nil, nil, container.NewVScroll(u.detectors))
	right := container.NewBorder(controls, u.status, detPane, nil, u.plotImage)

	split := container.NewHSplit(left, right)
	split.Offset = 0.3
	return split
}

func (u *window) menu() *fyne.MainMenu {
	openItem := fyne.NewMenuItem("Open…", func() {
		u.log.Info("menu: open file")
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				u.log.Error("open dialog error", slog.Any("err", err))
				return
			}
			if rc == nil {
				// cancelled
				u.publish(workbench.FileOpened{Path: ""})
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			u.open(path)
		}, u.w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{specfile.Extension}))
		fd.Show()
	})

	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = fyne.NewMenu("Open Recent")
	refreshRecent := func() {
		items := []*fyne.MenuItem{}
		for _, p := range loadRecentFiles(u.prefs) {
			items = append(items, fyne.NewMenuItem(p, func() { u.open(p) }))
		}
		if len(items) == 0 {
			none := fyne.NewMenuItem("(none)", nil)
			none.Disabled = true
			items = append(items, none)
		}
		recentItem.ChildMenu.Items = items
	}
	refreshRecent()
	u.refreshRecent = refreshRecent

	exportItem := fyne.NewMenuItem("Export Plot…", func() {
		u.log.Info("menu: export plot")
		img, req := u.rend.Last()
		if img == nil || req.Scan.Key == "" {
			dialog.ShowInformation("Export Plot", "Select a scan to plot first.", u.w)
			return
		}
		save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, u.w)
				return
			}
			if wc == nil {
				return
			}
			out := wc.URI().Path()
			_ = wc.Close()
			rep := export.NewReport(u.ctrl.State().Catalog.Path(), req.Scan, req.Mode, req.Series())
			if err := export.ToFile(img, rep, out); err != nil {
				u.log.Error("export failed", slog.Any("err", err), slog.String("path", out))
				dialog.ShowError(err, u.w)
				return
			}
			dialog.ShowInformation("Export Plot", "Exported to "+out, u.w)
		}, u.w)
		save.SetFileName("scan-" + req.Scan.Key + ".png")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".pdf"}))
		save.Show()
	})

	exitItem := fyne.NewMenuItem("Exit", func() { u.w.Close() })
	exitItem.IsQuit = true

	fileMenu := fyne.NewMenu("File", openItem, recentItem, fyne.NewMenuItemSeparator(), exportItem, fyne.NewMenuItemSeparator(), exitItem)
	return fyne.NewMainMenu(fileMenu)
}

// open loads path through the bus. Only a load the controller accepted
// counts as opened: it is reported, remembered and shown in the title.
func (u *window) open(path string) {
	if err := u.publish(workbench.FileOpened{Path: path}); err != nil || path == "" {
		return
	}
	st := u.ctrl.State()
	u.tel.FileOpened(st.Catalog.Len(), len(st.Types))
	addRecentFile(u.prefs, path)
	if u.refreshRecent != nil {
		u.refreshRecent()
	}
	u.w.SetTitle("Herix Workbench - " + filepath.Base(path))
	u.status.SetText(filepath.Base(path) + ": " + strconv.Itoa(st.Catalog.Len()) + " scans")
}

// publish sends ev on the bus and tracks the resulting state for crash reports.
func (u *window) publish(ev workbench.Event) error {
	err := u.bus.Publish(ev)
	if err != nil {
		u.log.Debug("event failed", slog.String("event", ev.Kind().String()), slog.Any("err", err))
	}
	st := u.ctrl.State()
	u.sess.Track(st.Catalog.Path(), st.Focused, st.Mode.String())
	return err
}

func (u *window) sync(fn func()) {
	u.syncing = true
	defer func() { u.syncing = false }()
	fn()
}

func (u *window) showImage(img image.Image) {
	u.plotImage.Image = img
	u.plotImage.Refresh()
}

// LoadScans implements workbench.View.
func (u *window) LoadScans(recs []workbench.ScanRecord) {
	u.scans = recs
	u.selected = u.ctrl.State().Selected
	u.scanList.UnselectAll()
	u.scanList.Refresh()
	u.scanList.ScrollToTop()
}

// LoadTypes implements workbench.View. The sentinel is prepended and the
// selector resets to it, matching the controller's reset filter.
func (u *window) LoadTypes(types []string) {
	u.sync(func() {
		u.typeSelect.SetOptions(workbench.TypeOptions(types))
		u.sync(func() { u.typeSelect.SetSelected(workbench.AllTypes) })
	})
}

// LoadDetectors implements workbench.DetectorView.
func (u *window) LoadDetectors(options, selected []string) {
	u.sync(func() {
		u.detectors.Options = options
		u.detectors.SetSelected(selected)
		u.detectors.Refresh()
	})
}

// ShowWarning implements workbench.View.
func (u *window) ShowWarning(title, msg string) {
	u.log.Warn("warning shown", slog.String("title", title))
	body := container.NewHBox(widget.NewIcon(theme.WarningIcon()), widget.NewLabel(msg))
	dialog.NewCustom(title, "OK", body, u.w).Show()
	u.status.SetText(title)
}
