/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package workbench

import (
	"fmt"
	"strings"
)

// PlotMode selects how detector selections are rendered.
type PlotMode int

const (
	// PlotSingle renders one series chosen by the plotter.
	PlotSingle PlotMode = iota
	// PlotMulti renders one series per selected detector.
	PlotMulti
)

// PlotModes lists the modes in selector order.
var PlotModes = []PlotMode{PlotSingle, PlotMulti}

func (m PlotMode) String() string {
	switch m {
	case PlotSingle:
		return "Single"
	case PlotMulti:
		return "Multi"
	default:
		return fmt.Sprintf("PlotMode(%d)", int(m))
	}
}

// ParsePlotMode accepts "Single" or "Multi" in any case.
func ParsePlotMode(s string) (PlotMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return PlotSingle, nil
	case "multi":
		return PlotMulti, nil
	}
	return PlotSingle, fmt.Errorf("unknown plot mode %q", s)
}

// PlotModeNames returns the selector labels in order.
func PlotModeNames() []string {
	out := make([]string, len(PlotModes))
	for i, m := range PlotModes {
		out[i] = m.String()
	}
	return out
}
