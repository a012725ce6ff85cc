/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"os"

	"herixworkbench/internal/config"
	"herixworkbench/internal/crash"
	applog "herixworkbench/internal/log"
)

func main() {
	_ = config.LoadDotEnv()
	// env-only logging until the config file is read
	applog.Init(applog.FromEnv())

	sess := &crash.Session{}
	code := func() int {
		defer crash.Recover(sess)
		return run(os.Args[1:], os.Stdout, os.Stderr, sess)
	}()
	os.Exit(code)
}
