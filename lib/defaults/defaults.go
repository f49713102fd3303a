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

// Package defaults contains default constants set in various parts of
// the berth codebase
package defaults

import "time"

const (
	// DataDir is where objects and multipart scratch data are stored
	// unless the configuration says otherwise.
	DataDir = "/var/lib/berth"

	// ConfigFilePath is the default location of the YAML configuration
	// file, used when --config is not given.
	ConfigFilePath = "/etc/berth.yaml"

	// ListenAddr is the default address the S3 API listens on.
	ListenAddr = "0.0.0.0:9000"

	// MaxRequestSize bounds the declared Content-Length of a single
	// request body. 5 GiB matches the S3 single-PUT object limit.
	MaxRequestSize = 5 * 1024 * 1024 * 1024

	// ClockSkew is the maximum tolerated difference between the
	// request's X-Amz-Date and the server clock for header-signed
	// requests, and the future-dating allowance for presigned URLs.
	ClockSkew = 15 * time.Minute

	// MaxPresignExpires is the upper bound on X-Amz-Expires, matching
	// the AWS ceiling of seven days.
	MaxPresignExpires = 7 * 24 * time.Hour

	// StreamChunkSize is the buffer size used when streaming object
	// bodies to clients.
	StreamChunkSize = 8 * 1024 * 1024

	// UploadIDBytes is the entropy, in bytes, behind a multipart
	// upload ID. IDs render as twice as many lowercase hex digits.
	UploadIDBytes = 16

	// ListMaxKeys is the MaxKeys value declared in list responses.
	// Listings are not paginated, every match is returned.
	ListMaxKeys = 1000

	// GracefulShutdownTimeout is how long the servers wait for inflight
	// requests to drain before closing connections forcefully.
	GracefulShutdownTimeout = 30 * time.Second

	// HTTPIdleTimeout is a default timeout for idle HTTP connections.
	HTTPIdleTimeout = 30 * time.Second

	// ReadHeaderTimeout is how long the servers wait for request
	// headers before giving up on the connection.
	ReadHeaderTimeout = 30 * time.Second

	// DiagnosticListenPort is the suggested port for the diagnostic
	// endpoint. The endpoint stays disabled until an address is
	// configured explicitly.
	DiagnosticListenPort = 3000
)
