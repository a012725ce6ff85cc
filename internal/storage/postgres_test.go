/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"
)

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("HWB_PG_DSN")
	if dsn == "" {
		t.Skip("HWB_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := OpenArchive(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenArchive_NoDSN(t *testing.T) {
	_, err := OpenArchive(context.Background(), "")
	if !errors.Is(err, ErrNoArchive) {
		t.Fatalf("err = %v, want ErrNoArchive", err)
	}
}

func TestArchive_SaveParity(t *testing.T) {
	db := openPGForTest(t)
	ctx := context.Background()
	path := "/parity/" + time.Now().UTC().Format("20060102150405.000000000") + ".spec"
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM files WHERE path = $1`, path) })

	st, err := SaveCatalog(ctx, db, Postgres, testCatalog(t, path, true))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	scans, dets, err := CountScans(ctx, db, Postgres, path)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if scans != st.Scans || dets != st.Detectors {
		t.Fatalf("stored %d/%d, saved %+v", scans, dets, st)
	}
	got, err := LoadCatalog(ctx, db, Postgres, path)
	if err != nil || got.Len() != 3 {
		t.Fatalf("load: %v len=%d", err, got.Len())
	}
}
