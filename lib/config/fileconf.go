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

package config

import (
	"io"
	"os"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML configuration file, usually /etc/berth.yaml.
// Unknown keys are rejected so typos surface at startup instead of
// silently running with defaults.
type FileConfig struct {
	// ListenAddr is the host:port the S3 API listens on.
	ListenAddr string `yaml:"listen_addr,omitempty"`
	// DiagAddr is the host:port of the diagnostic endpoint. The
	// endpoint stays disabled while this is empty.
	DiagAddr string `yaml:"diag_addr,omitempty"`
	// DataDir is the directory holding buckets and multipart scratch
	// space.
	DataDir string `yaml:"data_dir,omitempty"`
	// MaxRequestSize bounds request bodies. Accepts human friendly
	// units, for example "512MB" or "5GiB".
	MaxRequestSize string `yaml:"max_request_size,omitempty"`
	// Log configures process logging.
	Log Log `yaml:"log,omitempty"`
	// Auth configures request authentication.
	Auth Auth `yaml:"auth,omitempty"`
}

// Log is the logging section of the file configuration.
type Log struct {
	// Output is "stderr", "stdout" or a file path.
	Output string `yaml:"output,omitempty"`
	// Severity is the minimum level emitted: DEBUG, INFO, WARN, ERROR.
	Severity string `yaml:"severity,omitempty"`
	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`
}

// Auth is the authentication section of the file configuration.
type Auth struct {
	// Credentials maps access key IDs to secret keys.
	Credentials map[string]string `yaml:"credentials,omitempty"`
	// CredentialsFile names a separate YAML file holding the same
	// access key to secret key map, keeping secrets out of the main
	// configuration. Entries merge over Credentials.
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	// AllowedAccessKeys lists access keys accepted without a
	// signature when AllowLegacyAccessKeyOnly is set.
	AllowedAccessKeys []string `yaml:"allowed_access_keys,omitempty"`
	// AllowLegacyAccessKeyOnly turns on access-key-only acceptance.
	AllowLegacyAccessKeyOnly bool `yaml:"allow_legacy_access_key_only,omitempty"`
	// ClockSkew is the tolerated difference between request signing
	// time and the server clock, as a duration string like "15m".
	ClockSkew string `yaml:"clock_skew,omitempty"`
	// MaxPresignExpires caps presigned URL lifetimes, as a duration
	// string like "168h".
	MaxPresignExpires string `yaml:"max_presign_expires,omitempty"`
	// AllowHostFallbacks admits X-Forwarded-Host and the server's own
	// name as host candidates during signature verification.
	AllowHostFallbacks bool `yaml:"allow_host_fallbacks,omitempty"`
	// DebugLog is a file path receiving a trace per failed signature
	// verification attempt. Empty disables tracing.
	DebugLog string `yaml:"auth_debug_log,omitempty"`
}

// ReadFromFile loads the file configuration at path.
func ReadFromFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()
	fc, err := ReadConfig(f)
	if err != nil {
		return nil, trace.BadParameter("failed to parse config file %v: %v", path, err)
	}
	return fc, nil
}

// ReadConfig parses the YAML file configuration from reader.
func ReadConfig(reader io.Reader) (*FileConfig, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, trace.Wrap(err, "failed to read configuration")
	}
	var fc FileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return nil, trace.BadParameter("%v", err)
	}
	return &fc, nil
}
