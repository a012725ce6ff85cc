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
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	applog "herixworkbench/internal/log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoArchive is returned when no PostgreSQL DSN is configured.
var ErrNoArchive = errors.New("no archive DSN configured")

// OpenArchive connects to the shared PostgreSQL scan archive and ensures its
// schema exists.
func OpenArchive(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoArchive
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "archive_open")
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := ensureSchema(pctx, db, Postgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("archive ready", slog.String("host", archiveHost(dsn)))
	return db, nil
}

// WithCredentials sets user and password on a postgres DSN. URL-style DSNs
// get userinfo; keyword/value DSNs get user= and password= appended.
func WithCredentials(dsn, user, password string) string {
	if user == "" && password == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		name := user
		if name == "" && u.User != nil {
			name = u.User.Username()
		}
		if password != "" {
			u.User = url.UserPassword(name, password)
		} else {
			u.User = url.User(name)
		}
		return u.String()
	}
	out := strings.TrimSpace(dsn)
	if user != "" {
		out += " user=" + quoteKV(user)
	}
	if password != "" {
		out += " password=" + quoteKV(password)
	}
	return strings.TrimSpace(out)
}

func quoteKV(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// archiveHost returns the host part of a DSN for logging, never credentials.
func archiveHost(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Host != "" {
		return u.Host
	}
	for _, f := range strings.Fields(dsn) {
		if v, ok := strings.CutPrefix(f, "host="); ok {
			return v
		}
	}
	return "?"
}
