/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	applog "herixworkbench/internal/log"
	"herixworkbench/internal/telemetry"
	"herixworkbench/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Session carries what the user was looking at, for the report. It is
// updated from the UI thread and read once on panic.
type Session struct {
	mu        sync.Mutex
	file      string
	scan      string
	mode      string
	ReportDir string // empty means os.TempDir()
}

// Track records the currently loaded file, focused scan and plot mode.
func (s *Session) Track(file, scan, mode string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.file, s.scan, s.mode = file, scan, mode
	s.mu.Unlock()
}

func (s *Session) snapshot() (file, scan, mode, dir string) {
	if s == nil {
		return "", "", "", ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file, s.scan, s.mode, s.ReportDir
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file and exits with code 2.
//
// Usage: defer crash.Recover(sess)
func Recover(s *Session) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, report, err := writeReport(s, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		// opt-in; must finish before the process exits
		if err := telemetry.UploadCrash(report); err != nil {
			l.Warn("crash upload failed", slog.Any("err", err))
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func writeReport(s *Session, panicVal any, stack []byte) (string, []byte, error) {
	file, scan, mode, dir := s.snapshot()
	if dir == "" {
		dir = os.TempDir()
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = os.TempDir()
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("%s-crash-%s.log", applog.AppName, stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Herix Workbench Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if file != "" {
		_, _ = fmt.Fprintf(&buf, "ScanFile: %s\n", file)
	}
	if scan != "" {
		_, _ = fmt.Fprintf(&buf, "FocusedScan: %s\n", scan)
	}
	if mode != "" {
		_, _ = fmt.Fprintf(&buf, "PlotMode: %s\n", mode)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), nil
}
