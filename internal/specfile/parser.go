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
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Parse reads SPEC data from r.
//
// Recognized control lines:
//   - #F file name, #E epoch, #D date, #C comment, #O<n> motor names (header)
//   - #S <number> <command> starts a scan; #D, #C, #N, #L, #P<n> inside a scan
//   - other #-lines and MCA lines starting with '@' are ignored, together
//     with the continuation lines of an MCA line ending in a backslash
//
// Data rows are whitespace separated numbers. Labels on #L and #O lines are
// separated by two or more spaces since single spaces occur inside names.
// Repeated scan numbers get keys "n.2", "n.3", ...
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	reScan := regexp.MustCompile(`^#S\s+(\d+)\s*(.*)$`)
	reMotors := regexp.MustCompile(`^#O(\d+)\s*(.*)$`)
	rePositions := regexp.MustCompile(`^#P(\d+)\s*(.*)$`)

	f.Scans = []Scan{}
	var hdr *Header
	var cur *Scan
	var sawSpec bool
	lineNo := 0
	seen := map[int]int{}
	motorsBy := map[int][]string{}

	flushHeader := func() {
		if hdr == nil {
			return
		}
		idx := make([]int, 0, len(motorsBy))
		for i := range motorsBy {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		var motors []string
		for _, i := range idx {
			motors = append(motors, motorsBy[i]...)
		}
		hdr.Motors = motors
		f.Headers = append(f.Headers, *hdr)
		hdr = nil
	}
	flushScan := func() {
		if cur != nil {
			f.Scans = append(f.Scans, *cur)
			cur = nil
		}
	}
	currentMotors := func() []string {
		if len(f.Headers) == 0 {
			return nil
		}
		return f.Headers[len(f.Headers)-1].Motors
	}
	var scanPositions []float64
	inMCA := false

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trim := strings.TrimSpace(line)
		if inMCA || strings.HasPrefix(trim, "@") {
			inMCA = strings.HasSuffix(trim, "\\")
			continue
		}
		if trim == "" {
			continue
		}

		if !strings.HasPrefix(trim, "#") {
			if cur == nil {
				return nil, &ParseError{Line: lineNo, Msg: "data outside of a scan"}
			}
			row, err := parseRow(trim)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			if len(cur.Labels) > 0 && len(row) != len(cur.Labels) {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("row has %d values, #L names %d columns", len(row), len(cur.Labels))}
			}
			cur.Points = append(cur.Points, row)
			continue
		}

		tag, rest := splitTag(trim)
		switch {
		case tag == "F":
			sawSpec = true
			flushScan()
			flushHeader()
			motorsBy = map[int][]string{}
			hdr = &Header{File: rest}
		case tag == "E":
			sawSpec = true
			if cur != nil {
				continue
			}
			if hdr == nil {
				flushHeader()
				hdr = &Header{}
				motorsBy = map[int][]string{}
			}
			if v, err := strconv.ParseInt(rest, 10, 64); err == nil {
				hdr.Epoch = v
			} else {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad epoch %q", rest)}
			}
		case tag == "D":
			if cur != nil {
				cur.Date = rest
			} else if hdr != nil {
				hdr.Date = rest
			}
		case tag == "C":
			if cur != nil {
				cur.Comments = append(cur.Comments, rest)
			} else if hdr != nil {
				hdr.Comments = append(hdr.Comments, rest)
			}
		case tag == "S":
			m := reScan.FindStringSubmatch(trim)
			if m == nil {
				return nil, &ParseError{Line: lineNo, Msg: "malformed #S line"}
			}
			sawSpec = true
			flushScan()
			flushHeader()
			num, _ := strconv.Atoi(m[1])
			seen[num]++
			key := m[1]
			if n := seen[num]; n > 1 {
				key = fmt.Sprintf("%s.%d", m[1], n)
			}
			cur = &Scan{Key: key, Number: num, Command: strings.TrimSpace(m[2]), Line: lineNo, Points: [][]float64{}}
			scanPositions = nil
		case strings.HasPrefix(tag, "O"):
			if cur != nil {
				continue
			}
			m := reMotors.FindStringSubmatch(trim)
			if m == nil {
				continue
			}
			if hdr == nil {
				hdr = &Header{}
			}
			idx, _ := strconv.Atoi(m[1])
			motorsBy[idx] = splitNames(m[2])
		case tag == "N":
			if cur == nil {
				continue
			}
			n, err := strconv.Atoi(strings.Fields(rest + " 0")[0])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad #N value %q", rest)}
			}
			cur.Columns = n
		case tag == "L":
			if cur == nil {
				return nil, &ParseError{Line: lineNo, Msg: "#L outside of a scan"}
			}
			cur.Labels = splitNames(rest)
			if cur.Columns > 0 && len(cur.Labels) != cur.Columns {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("#L names %d columns, #N says %d", len(cur.Labels), cur.Columns)}
			}
		case strings.HasPrefix(tag, "P"):
			if cur == nil || rePositions.FindStringSubmatch(trim) == nil {
				continue
			}
			vals, err := parseRow(rest)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: "bad #P values: " + err.Error()}
			}
			scanPositions = append(scanPositions, vals...)
			motors := currentMotors()
			cur.Positions = make(map[string]float64, len(scanPositions))
			for i, v := range scanPositions {
				if i < len(motors) {
					cur.Positions[motors[i]] = v
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	flushScan()
	flushHeader()
	if !sawSpec {
		return nil, ErrNotSpec
	}
	return f, nil
}

// ParseFile opens and parses path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// splitTag splits "#XYZ rest" into "XYZ" and "rest".
func splitTag(line string) (string, string) {
	body := strings.TrimPrefix(line, "#")
	i := strings.IndexAny(body, " \t")
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

var reMultiSpace = regexp.MustCompile(`\s{2,}|\t`)

func splitNames(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	parts := reMultiSpace.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRow(s string) ([]float64, error) {
	fields := strings.Fields(s)
	row := make([]float64, len(fields))
	for i, fl := range fields {
		v, err := strconv.ParseFloat(fl, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", fl)
		}
		row[i] = v
	}
	return row, nil
}
