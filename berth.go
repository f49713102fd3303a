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

// Package berth holds constants shared across the whole repository.
package berth

import (
	"io/fs"
	"strings"
)

// Version is reported by "berth version" and in startup logs.
const Version = "0.7.2"

const (
	// SharedDirMode is the mode for directories shared with the group.
	SharedDirMode fs.FileMode = 0o750

	// PrivateDirMode is the mode for directories readable by the owner only.
	PrivateDirMode fs.FileMode = 0o700

	// FileMaskOwnerOnly is the mode for files readable by the owner only.
	FileMaskOwnerOnly fs.FileMode = 0o600
)

const (
	// ComponentKey is the log field under which a component name is reported.
	ComponentKey = "component"

	// ComponentS3 is the S3 front end routing client requests.
	ComponentS3 = "s3"

	// ComponentAuth is the request signature verifier.
	ComponentAuth = "sigv4"

	// ComponentStorage is the filesystem object store.
	ComponentStorage = "storage"

	// ComponentService is the process-level service manager.
	ComponentService = "service"

	// ComponentDiag is the diagnostic HTTP endpoint.
	ComponentDiag = "diag"

	// DebugOutputEnvVar tells tests to emit verbose log output.
	DebugOutputEnvVar = "BERTH_DEBUG_TESTS"
)

// Component generates a "component:sub" string used in log fields.
func Component(components ...string) string {
	return strings.Join(components, ":")
}
