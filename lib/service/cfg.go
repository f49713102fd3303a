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

package service

import (
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/quayside/berth/lib/defaults"
	logutils "github.com/quayside/berth/lib/utils/log"
)

// Config holds everything a berth process needs to run. It is usually
// assembled by lib/config from the YAML file and command line flags.
type Config struct {
	// DataDir is the directory holding buckets and multipart scratch
	// space.
	DataDir string
	// ListenAddr is the host:port the S3 API listens on.
	ListenAddr string
	// DiagAddr is the host:port of the diagnostic endpoint. The
	// endpoint stays disabled while this is empty.
	DiagAddr string
	// MaxRequestSize bounds request bodies, declared or streamed.
	MaxRequestSize int64
	// Credentials maps access key IDs to secret keys.
	Credentials map[string]string
	// AllowedAccessKeys lists the keys accepted in legacy
	// access-key-only mode.
	AllowedAccessKeys []string
	// AllowLegacyAccessKeyOnly accepts requests that carry no SigV4
	// material at all, provided they name an allow-listed access key.
	AllowLegacyAccessKeyOnly bool
	// ClockSkew bounds |now - X-Amz-Date| during verification.
	ClockSkew time.Duration
	// MaxPresignExpires caps presigned URL lifetimes.
	MaxPresignExpires time.Duration
	// AllowHostFallbacks admits X-Forwarded-Host and the server's own
	// name as host candidates during signature verification.
	AllowHostFallbacks bool
	// AuthDebugLog is a file path receiving a trace per failed
	// verification attempt. Empty disables tracing.
	AuthDebugLog string
	// Log configures process logging. The main command applies it
	// before the service starts; tests leave it empty.
	Log logutils.Config
	// Clock drives temporal checks. Tests inject a fake one.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
// Credential requirements are enforced by the signature verifier built
// from these values.
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if cfg.MaxRequestSize < 0 {
		return trace.BadParameter("MaxRequestSize cannot be negative")
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = defaults.MaxRequestSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}
