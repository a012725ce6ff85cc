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
	"log/slog"

	applog "herixworkbench/internal/log"
	"herixworkbench/internal/workbench"
)

// Loader parses files into workbench catalogs. It satisfies workbench.Parser.
type Loader struct{}

// Parse reads path and builds its catalog.
func (Loader) Parse(path string) (*workbench.Catalog, error) {
	l := applog.WithFile(applog.WithOperation(applog.WithComponent("specfile"), "parse"), path)
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := f.Catalog()
	if err != nil {
		return nil, err
	}
	l.Debug("parsed", slog.Int("scans", cat.Len()), slog.Int("headers", len(f.Headers)))
	return cat, nil
}

// Record converts a scan to an immutable catalog record.
func (s Scan) Record() workbench.ScanRecord {
	return workbench.NewScanRecord(s.Key, s.Number, s.Command, s.Date, s.Labels, s.Points)
}

// Catalog converts all scans in file order.
func (f *File) Catalog() (*workbench.Catalog, error) {
	recs := make([]workbench.ScanRecord, 0, len(f.Scans))
	for _, s := range f.Scans {
		recs = append(recs, s.Record())
	}
	return workbench.NewCatalog(f.Path, recs)
}
