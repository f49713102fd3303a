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
	"io"
	"log/slog"
	"os"

	"github.com/quayside/berth"
	logutils "github.com/quayside/berth/lib/utils/log"
)

// InitLogger configures the default logger for a daemon scenario.
func InitLogger(cfg logutils.Config) error {
	_, _, err := logutils.Initialize(cfg)
	return err
}

// InitLoggerForTests initializes the standard logger for tests. Output is
// discarded unless the BERTH_DEBUG_TESTS environment variable is set.
func InitLoggerForTests() {
	if os.Getenv(berth.DebugOutputEnvVar) != "" {
		logutils.Initialize(logutils.Config{Severity: slog.LevelDebug.String()})
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
