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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/quayside/berth/lib/defaults"
	"github.com/quayside/berth/lib/service"
	"github.com/quayside/berth/lib/utils"
)

func TestMain(m *testing.M) {
	utils.InitLoggerForTests()
	os.Exit(m.Run())
}

const fullConfig = `listen_addr: "0.0.0.0:9100"
diag_addr: "127.0.0.1:3100"
data_dir: /tmp/berth-data
max_request_size: 512MB
log:
  output: stderr
  severity: INFO
  format: json
auth:
  credentials:
    AKIAEXAMPLE000000001: example-secret-1
    AKIAEXAMPLE000000002: example-secret-2
  allowed_access_keys:
    - AKIALEGACY0000000001
  allow_legacy_access_key_only: true
  clock_skew: 5m
  max_presign_expires: 24h
  allow_host_fallbacks: true
  auth_debug_log: /var/log/berth-auth.log
`

func TestReadConfig(t *testing.T) {
	fc, err := ReadConfig(strings.NewReader(fullConfig))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9100", fc.ListenAddr)
	require.Equal(t, "127.0.0.1:3100", fc.DiagAddr)
	require.Equal(t, "/tmp/berth-data", fc.DataDir)
	require.Equal(t, "512MB", fc.MaxRequestSize)
	require.Equal(t, "json", fc.Log.Format)
	require.Equal(t, map[string]string{
		"AKIAEXAMPLE000000001": "example-secret-1",
		"AKIAEXAMPLE000000002": "example-secret-2",
	}, fc.Auth.Credentials)
	require.Equal(t, []string{"AKIALEGACY0000000001"}, fc.Auth.AllowedAccessKeys)
	require.True(t, fc.Auth.AllowLegacyAccessKeyOnly)
}

func TestReadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ReadConfig(strings.NewReader("listen_addr: \"0.0.0.0:9000\"\nlisten_adr: \"oops\"\n"))
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))

	_, err = ReadConfig(strings.NewReader("auth:\n  credentails:\n    AKIA: secret\n"))
	require.Error(t, err)
}

func TestApplyFileConfig(t *testing.T) {
	fc, err := ReadConfig(strings.NewReader(fullConfig))
	require.NoError(t, err)

	var cfg service.Config
	require.NoError(t, ApplyFileConfig(fc, &cfg))
	require.Equal(t, "0.0.0.0:9100", cfg.ListenAddr)
	require.Equal(t, "127.0.0.1:3100", cfg.DiagAddr)
	require.Equal(t, "/tmp/berth-data", cfg.DataDir)
	require.EqualValues(t, 512_000_000, cfg.MaxRequestSize)
	require.Equal(t, "stderr", cfg.Log.Output)
	require.Equal(t, "INFO", cfg.Log.Severity)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, map[string]string{
		"AKIAEXAMPLE000000001": "example-secret-1",
		"AKIAEXAMPLE000000002": "example-secret-2",
	}, cfg.Credentials)
	require.Equal(t, []string{"AKIALEGACY0000000001"}, cfg.AllowedAccessKeys)
	require.True(t, cfg.AllowLegacyAccessKeyOnly)
	require.Equal(t, 5*time.Minute, cfg.ClockSkew)
	require.Equal(t, 24*time.Hour, cfg.MaxPresignExpires)
	require.True(t, cfg.AllowHostFallbacks)
	require.Equal(t, "/var/log/berth-auth.log", cfg.AuthDebugLog)
}

func TestApplyFileConfigEmptyKeepsDefaults(t *testing.T) {
	fc, err := ReadConfig(strings.NewReader(""))
	require.NoError(t, err)

	cfg := service.Config{ListenAddr: "127.0.0.1:9000", DataDir: "/srv/berth"}
	require.NoError(t, ApplyFileConfig(fc, &cfg))
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	require.Equal(t, "/srv/berth", cfg.DataDir)
	require.Zero(t, cfg.MaxRequestSize)
}

func TestApplyFileConfigErrors(t *testing.T) {
	tests := []struct {
		desc string
		fc   FileConfig
	}{
		{desc: "unparsable size", fc: FileConfig{MaxRequestSize: "a lot"}},
		{desc: "unknown severity", fc: FileConfig{Log: Log{Severity: "noisy"}}},
		{desc: "unparsable clock skew", fc: FileConfig{Auth: Auth{ClockSkew: "fast"}}},
		{desc: "unparsable presign cap", fc: FileConfig{Auth: Auth{MaxPresignExpires: "soon"}}},
		{desc: "missing credentials file", fc: FileConfig{Auth: Auth{CredentialsFile: "/does/not/exist.yaml"}}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var cfg service.Config
			require.Error(t, ApplyFileConfig(&tt.fc, &cfg))
		})
	}
}

func TestCredentialsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"AKIAFILE000000000001: file-secret\nAKIASHARED0000000001: file-wins\n",
	), 0o600))

	fc := &FileConfig{Auth: Auth{
		Credentials: map[string]string{
			"AKIASHARED0000000001": "inline-loses",
			"AKIAINLINE0000000001": "inline-secret",
		},
		CredentialsFile: path,
	}}
	var cfg service.Config
	require.NoError(t, ApplyFileConfig(fc, &cfg))
	require.Equal(t, map[string]string{
		"AKIAFILE000000000001": "file-secret",
		"AKIASHARED0000000001": "file-wins",
		"AKIAINLINE0000000001": "inline-secret",
	}, cfg.Credentials)
}

func TestCredentialsFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- one\n- two\n"), 0o600))

	_, err := ReadCredentialsFile(path)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}

func TestReadConfigFile(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := ReadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		require.True(t, trace.IsNotFound(err))
	})
	t.Run("explicit path is read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "berth.yaml")
		require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))
		fc, err := ReadConfigFile(path)
		require.NoError(t, err)
		require.NotNil(t, fc)
		require.Equal(t, "/tmp/berth-data", fc.DataDir)
	})
	t.Run("missing default location is not an error", func(t *testing.T) {
		if utils.FileExists(defaults.ConfigFilePath) {
			t.Skipf("%v exists on this machine", defaults.ConfigFilePath)
		}
		fc, err := ReadConfigFile("")
		require.NoError(t, err)
		require.Nil(t, fc)
	})
}

func TestConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "berth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	clf := CommandLineFlags{
		ConfigFile: path,
		ListenAddr: "127.0.0.1:9200",
		DataDir:    "/srv/berth-flag",
		Debug:      true,
	}
	var cfg service.Config
	require.NoError(t, Configure(&clf, &cfg))

	// Flags win over the file, file values fill the rest.
	require.Equal(t, "127.0.0.1:9200", cfg.ListenAddr)
	require.Equal(t, "/srv/berth-flag", cfg.DataDir)
	require.Equal(t, "127.0.0.1:3100", cfg.DiagAddr)
	require.Equal(t, "DEBUG", cfg.Log.Severity)
	require.Len(t, cfg.Credentials, 2)
}

func TestConfigureBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "berth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [not, a, string]\n"), 0o600))

	var cfg service.Config
	err := Configure(&CommandLineFlags{ConfigFile: path}, &cfg)
	require.Error(t, err)
}
