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
	"sort"
	"strings"
)

// AllTypes is the type selector sentinel meaning "no filtering".
const AllTypes = "All"

// DeriveTypes returns the distinct scan types of c sorted case-insensitively.
// Tokens equal up to case are ordered by byte value so the result does not
// depend on the order scans appear in the file.
func DeriveTypes(c *Catalog) []string {
	seen := map[string]struct{}{}
	types := []string{}
	for _, r := range c.Records() {
		t := r.Type()
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		a, b := strings.ToLower(types[i]), strings.ToLower(types[j])
		if a != b {
			return a < b
		}
		return types[i] < types[j]
	})
	return types
}

// TypeOptions is what a type selector shows: the sentinel followed by types.
func TypeOptions(types []string) []string {
	out := make([]string, 0, len(types)+1)
	out = append(out, AllTypes)
	return append(out, types...)
}

// Filter returns the scans of c whose type equals selectedType, in catalog
// order. AllTypes returns every scan.
func Filter(c *Catalog, selectedType string) []ScanRecord {
	if selectedType == AllTypes {
		return c.Records()
	}
	out := []ScanRecord{}
	for _, r := range c.Records() {
		if r.Type() == selectedType {
			out = append(out, r)
		}
	}
	return out
}
