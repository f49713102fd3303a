/*
 * Berth
 * Copyright (C) 2025  Quayside, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package utils

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"
)

// InitCLIParser configures a command line parser the way berth
// binaries expect it: help on -h and usage printed to stderr.
func InitCLIParser(appName, appHelp string) *kingpin.Application {
	app := kingpin.New(appName, appHelp)
	app.UsageWriter(os.Stderr)
	app.HelpFlag.Short('h')
	return app
}

// FatalError prints a clean error message to stderr and exits. CLI
// front-ends call it on unrecoverable startup failures.
func FatalError(err error) {
	fmt.Fprintln(os.Stderr, UserMessageFromError(err))
	os.Exit(1)
}

// UserMessageFromError returns a user friendly message from the error,
// expanding it into a full debug report when trace debugging is on.
func UserMessageFromError(err error) string {
	if err == nil {
		return ""
	}
	if trace.IsDebug() {
		return trace.DebugReport(err)
	}
	return fmt.Sprintf("ERROR: %v", trace.UserMessage(err))
}
