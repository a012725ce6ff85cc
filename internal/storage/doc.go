/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists loaded scan catalogs outside the process.
// A local SQLite scan index (pure-Go driver, WAL mode, FTS5 over scan
// commands) makes scans searchable across files; the same logical schema can
// be pushed to a shared PostgreSQL archive.
// Both stores are derived from the data files and can be rebuilt at any time.
package storage
