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

// Package config turns the YAML configuration file and command line
// flags into a service configuration.
package config

import (
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gravitational/trace"
	"gopkg.in/yaml.v2"

	"github.com/quayside/berth/lib/defaults"
	"github.com/quayside/berth/lib/service"
	"github.com/quayside/berth/lib/utils"
	logutils "github.com/quayside/berth/lib/utils/log"
)

// CommandLineFlags stores command line flag values, a much smaller
// subset of what the YAML configuration file can express.
type CommandLineFlags struct {
	// --config flag
	ConfigFile string
	// --listen flag
	ListenAddr string
	// --diag-addr flag
	DiagAddr string
	// --data-dir flag
	DataDir string
	// -d flag
	Debug bool
}

// Configure merges the file configuration and the command line flags
// into cfg. Flags win over file values.
func Configure(clf *CommandLineFlags, cfg *service.Config) error {
	fileConf, err := ReadConfigFile(clf.ConfigFile)
	if err != nil {
		return trace.Wrap(err)
	}
	if fileConf != nil {
		if err := ApplyFileConfig(fileConf, cfg); err != nil {
			return trace.Wrap(err)
		}
	}

	if clf.ListenAddr != "" {
		cfg.ListenAddr = clf.ListenAddr
	}
	if clf.DiagAddr != "" {
		cfg.DiagAddr = clf.DiagAddr
	}
	if clf.DataDir != "" {
		cfg.DataDir = clf.DataDir
	}
	if clf.Debug {
		cfg.Log.Severity = "DEBUG"
	}
	return nil
}

// ReadConfigFile loads the file configuration named by the --config
// flag. Without the flag the default location is tried, and a missing
// default file is not an error, the built-in defaults apply.
func ReadConfigFile(cliConfigPath string) (*FileConfig, error) {
	configFilePath := defaults.ConfigFilePath
	if cliConfigPath != "" {
		configFilePath = cliConfigPath
		if !utils.FileExists(configFilePath) {
			return nil, trace.NotFound("config file %v is not found", configFilePath)
		}
	}
	if !utils.FileExists(configFilePath) {
		return nil, nil
	}
	return ReadFromFile(configFilePath)
}

// ApplyFileConfig applies the file configuration onto cfg, validating
// values that need parsing. Only keys present in the file override.
func ApplyFileConfig(fc *FileConfig, cfg *service.Config) error {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.DiagAddr != "" {
		cfg.DiagAddr = fc.DiagAddr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.MaxRequestSize != "" {
		size, err := humanize.ParseBytes(fc.MaxRequestSize)
		if err != nil {
			return trace.BadParameter("invalid max_request_size %q: %v", fc.MaxRequestSize, err)
		}
		if size > math.MaxInt64 {
			return trace.BadParameter("max_request_size %q is too large", fc.MaxRequestSize)
		}
		cfg.MaxRequestSize = int64(size)
	}

	if fc.Log.Output != "" {
		cfg.Log.Output = fc.Log.Output
	}
	if fc.Log.Severity != "" {
		if _, err := logutils.ParseLevel(fc.Log.Severity); err != nil {
			return trace.Wrap(err)
		}
		cfg.Log.Severity = fc.Log.Severity
	}
	if fc.Log.Format != "" {
		cfg.Log.Format = fc.Log.Format
	}

	if err := applyAuthConfig(&fc.Auth, cfg); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

func applyAuthConfig(auth *Auth, cfg *service.Config) error {
	if len(auth.Credentials) > 0 {
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]string)
		}
		for accessKey, secret := range auth.Credentials {
			cfg.Credentials[accessKey] = secret
		}
	}
	if auth.CredentialsFile != "" {
		creds, err := ReadCredentialsFile(auth.CredentialsFile)
		if err != nil {
			return trace.Wrap(err)
		}
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]string)
		}
		for accessKey, secret := range creds {
			cfg.Credentials[accessKey] = secret
		}
	}
	cfg.AllowedAccessKeys = append(cfg.AllowedAccessKeys, auth.AllowedAccessKeys...)
	if auth.AllowLegacyAccessKeyOnly {
		cfg.AllowLegacyAccessKeyOnly = true
	}
	if auth.ClockSkew != "" {
		skew, err := time.ParseDuration(auth.ClockSkew)
		if err != nil {
			return trace.BadParameter("invalid clock_skew %q: %v", auth.ClockSkew, err)
		}
		cfg.ClockSkew = skew
	}
	if auth.MaxPresignExpires != "" {
		expires, err := time.ParseDuration(auth.MaxPresignExpires)
		if err != nil {
			return trace.BadParameter("invalid max_presign_expires %q: %v", auth.MaxPresignExpires, err)
		}
		cfg.MaxPresignExpires = expires
	}
	if auth.AllowHostFallbacks {
		cfg.AllowHostFallbacks = true
	}
	if auth.DebugLog != "" {
		cfg.AuthDebugLog = auth.DebugLog
	}
	return nil
}

// ReadCredentialsFile loads a YAML map of access key IDs to secret
// keys, the format of the credentials_file option.
func ReadCredentialsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	creds := make(map[string]string)
	if err := yaml.UnmarshalStrict(data, &creds); err != nil {
		return nil, trace.BadParameter("failed to parse credentials file %v: %v", path, err)
	}
	return creds, nil
}
