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

// These tests drive the Fyne scan browser with the in-memory test driver.
// They are gated behind the "fyne" build tag so headless CI does not need Fyne.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herixworkbench/internal/config"
	"herixworkbench/internal/crash"
	"herixworkbench/internal/telemetry"
	"herixworkbench/internal/workbench"
)

func fixtureParser(path string) (*workbench.Catalog, error) {
	if path == "bad.spec" {
		return nil, errors.New("line 3: bad number")
	}
	return workbench.NewCatalog(path, []workbench.ScanRecord{
		workbench.NewScanRecord("1", 1, "ascan th 0 1 2 0.1", "", []string{"Theta", "Monitor", "Detector"}, [][]float64{{0, 1, 2}, {1, 2, 3}}),
		workbench.NewScanRecord("2", 2, "timescan 1", "", []string{"Time", "Detector"}, [][]float64{{0, 5}}),
		workbench.NewScanRecord("3", 3, "ascan tth 0 2 2 0.1", "", []string{"TTheta", "Monitor", "Detector"}, [][]float64{{0, 1, 4}, {1, 2, 5}}),
	})
}

func newTestWindow(t *testing.T) *window {
	t.Helper()
	tel := telemetry.New(telemetry.Config{})
	t.Cleanup(tel.Close)
	return newTestWindowWith(t, workbench.ParserFunc(fixtureParser), tel)
}

func newTestWindowWith(t *testing.T, parser workbench.Parser, tel *telemetry.Client) *window {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	u, err := newWindow(a, parser, config.Defaults().Plot, tel, &crash.Session{})
	require.NoError(t, err)
	return u
}

func TestWindow_OpenPopulatesWidgets(t *testing.T) {
	u := newTestWindow(t)
	u.open("run.spec")

	assert.Len(t, u.scans, 3)
	assert.Equal(t, []string{workbench.AllTypes, "ascan", "timescan"}, u.typeSelect.Options)
	assert.Equal(t, workbench.AllTypes, u.typeSelect.Selected)
	assert.Empty(t, u.detectors.Options)
	assert.Contains(t, u.status.Text, "3 scans")
}

func TestWindow_OpenFailureKeepsCatalog(t *testing.T) {
	u := newTestWindow(t)
	u.open("run.spec")
	u.open("bad.spec")

	assert.Equal(t, "run.spec", u.ctrl.State().Catalog.Path())
	assert.Len(t, u.scans, 3)
	assert.Equal(t, "Loading error", u.status.Text)
	assert.NotNil(t, u.w.Canvas().Overlays().Top(), "warning dialog not shown")
	assert.Equal(t, "Herix Workbench - run.spec", u.w.Title())
}

func TestWindow_ReopenCorruptFileIsNotCounted(t *testing.T) {
	var mu sync.Mutex
	var opened int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev map[string]any
		_ = json.NewDecoder(r.Body).Decode(&ev)
		if ev["name"] == telemetry.EventFileOpened {
			mu.Lock()
			opened++
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	tel := telemetry.New(telemetry.Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	t.Cleanup(tel.Close)

	corrupt := false
	parser := workbench.ParserFunc(func(path string) (*workbench.Catalog, error) {
		if corrupt {
			return nil, errors.New("line 12: row has 4 values")
		}
		return fixtureParser(path)
	})
	u := newTestWindowWith(t, parser, tel)

	u.open("run.spec")
	corrupt = true
	u.open("run.spec")
	tel.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, opened)
	assert.Equal(t, "Loading error", u.status.Text)
	assert.Equal(t, []string{"run.spec"}, loadRecentFiles(u.prefs))
}

func TestWindow_FilterSelectAndPlot(t *testing.T) {
	u := newTestWindow(t)
	u.open("run.spec")

	u.typeSelect.SetSelected("ascan")
	require.Len(t, u.scans, 2)

	u.scanList.Select(1) // scan 3
	st := u.ctrl.State()
	assert.Equal(t, []string{"3"}, st.Selected)
	assert.Equal(t, "3", st.Focused)
	assert.Equal(t, []string{"Monitor", "Detector"}, u.detectors.Options)

	_, req := u.rend.Last()
	assert.Equal(t, workbench.PlotSingle, req.Mode)
	assert.Equal(t, "3", req.Scan.Key)

	u.detectors.SetSelected([]string{"Monitor"})
	u.modeSelect.SetSelected("Multi")
	_, req = u.rend.Last()
	assert.Equal(t, workbench.PlotMulti, req.Mode)
	assert.Equal(t, []string{"Monitor"}, req.Series())

	// clicking the same row again deselects it
	u.scanList.Select(1)
	assert.Empty(t, u.ctrl.State().Selected)
}
