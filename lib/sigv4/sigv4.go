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

// Package sigv4 verifies AWS Signature Version 4 on incoming S3
// requests, covering both the Authorization header and presigned URL
// modes.
//
// https://docs.aws.amazon.com/AmazonS3/latest/API/sig-v4-authenticating-requests.html
package sigv4

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/quayside/berth"
	"github.com/quayside/berth/lib/defaults"
	logutils "github.com/quayside/berth/lib/utils/log"
)

var log = logutils.NewPackageLogger(berth.ComponentKey, berth.ComponentAuth)

const (
	// AuthorizationPrefix marks an Authorization header produced by the
	// AWS Signature Version 4 algorithm.
	// https://docs.aws.amazon.com/AmazonS3/latest/API/sigv4-auth-using-authorization-header.html
	AuthorizationPrefix = "AWS4-HMAC-SHA256"

	// AmzDateTimeFormat is the time format used in X-Amz-Date.
	AmzDateTimeFormat = "20060102T150405Z"

	// UnsignedPayload is the payload hash placeholder signed into
	// presigned URLs.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// signingService is the only service accepted in credential scopes.
	signingService = "s3"

	// scopeTerminator ends every credential scope.
	scopeTerminator = "aws4_request"
)

// Mode names the entry path that authenticated a request.
type Mode string

const (
	// ModeHeader is full SigV4 with the Authorization header.
	ModeHeader Mode = "header"
	// ModePresign is full SigV4 with query string parameters.
	ModePresign Mode = "presign"
	// ModeLegacy is access-key-only matching against an allow list.
	ModeLegacy Mode = "legacy"
)

// Identity describes the caller of a successfully authenticated request.
type Identity struct {
	// AccessKeyID is the access key that signed the request.
	AccessKeyID string
	// Mode is the entry path that matched.
	Mode Mode
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// Credentials maps access key IDs to secret keys.
	Credentials map[string]string
	// AllowedAccessKeys lists the keys accepted in legacy
	// access-key-only mode.
	AllowedAccessKeys []string
	// AllowLegacyAccessKeyOnly accepts requests that carry no SigV4
	// material at all, provided they name an allow-listed access key.
	AllowLegacyAccessKeyOnly bool
	// ClockSkew bounds |now - X-Amz-Date| for header-signed requests
	// and the future-dating allowance for presigned URLs.
	ClockSkew time.Duration
	// MaxPresignExpires caps the X-Amz-Expires parameter.
	MaxPresignExpires time.Duration
	// AllowHostFallbacks admits X-Forwarded-Host and the server's own
	// name into the host candidate set. Off by default: strict matching.
	AllowHostFallbacks bool
	// ServerName is the server's own host name, used only when
	// AllowHostFallbacks is set.
	ServerName string
	// ServerPort is the port matching ServerName.
	ServerPort string
	// Clock drives all temporal checks.
	Clock clockwork.Clock
	// DebugLog receives a trace per failed verification attempt.
	// Nil disables tracing.
	DebugLog *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *VerifierConfig) CheckAndSetDefaults() error {
	if len(c.Credentials) == 0 && !(c.AllowLegacyAccessKeyOnly && len(c.AllowedAccessKeys) > 0) {
		return trace.BadParameter("no credentials configured and legacy access-key-only mode is not usable")
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaults.ClockSkew
	}
	if c.MaxPresignExpires <= 0 {
		c.MaxPresignExpires = defaults.MaxPresignExpires
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Verifier checks request signatures against configured credentials.
// It is safe for concurrent use.
type Verifier struct {
	cfg         VerifierConfig
	allowedKeys map[string]struct{}
}

// NewVerifier returns a Verifier for the given config.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if cfg.AllowLegacyAccessKeyOnly {
		log.WarnContext(context.Background(), "Legacy access-key-only mode is enabled, allow-listed access keys are accepted without a signature.")
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedAccessKeys))
	for _, key := range cfg.AllowedAccessKeys {
		allowed[key] = struct{}{}
	}
	return &Verifier{cfg: cfg, allowedKeys: allowed}, nil
}

// Verify authenticates r and returns the identity that signed it. Any
// returned error is a *Error carrying the S3 code and HTTP status to
// report.
func (v *Verifier) Verify(r *http.Request) (*Identity, error) {
	switch {
	case isPresigned(r.URL.Query()):
		in, err := parsePresignInputs(r)
		if err != nil {
			return nil, err
		}
		return v.verifySignature(r, in)
	case strings.HasPrefix(r.Header.Get("Authorization"), AuthorizationPrefix):
		in, err := parseHeaderInputs(r)
		if err != nil {
			return nil, err
		}
		return v.verifySignature(r, in)
	default:
		return v.verifyLegacy(r)
	}
}

// isPresigned reports whether the query carries any of the parameters
// that commit the request to presigned verification.
func isPresigned(q url.Values) bool {
	for _, p := range []string{"X-Amz-Algorithm", "X-Amz-Credential", "X-Amz-Signature"} {
		if _, ok := q[p]; ok {
			return true
		}
	}
	return false
}

// verifySignature runs full SigV4 verification for parsed inputs,
// attempting one canonical request per host candidate.
func (v *Verifier) verifySignature(r *http.Request, in *signatureInputs) (*Identity, error) {
	secret, ok := v.cfg.Credentials[in.AccessKeyID]
	if !ok {
		return nil, invalidAccessKeyID()
	}
	if err := v.validateTime(in); err != nil {
		return nil, err
	}

	signingKey := deriveSigningKey(secret, in.Date, in.Region, in.Service)
	uri := canonicalURI(r.URL.EscapedPath())
	query := canonicalQuery(r.URL.RawQuery, in.Presigned)
	signedHeadersLine := strings.Join(in.SignedHeaders, ";")

	// Without host in the signed set there is exactly one canonical
	// request to check.
	candidates := []string{""}
	if slices.Contains(in.SignedHeaders, "host") {
		candidates = v.hostCandidates(r)
	}

	for _, host := range candidates {
		headerBlock, err := canonicalHeaders(r, in.SignedHeaders, host)
		if err != nil {
			return nil, err
		}
		canonicalRequest := buildCanonicalRequest(strings.ToUpper(r.Method), uri, query, headerBlock, signedHeadersLine, in.PayloadHash)
		stringToSign := buildStringToSign(in.AmzDate, in.scope(), canonicalRequest)
		signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

		if hmac.Equal([]byte(signature), []byte(in.Signature)) {
			mode := ModeHeader
			if in.Presigned {
				mode = ModePresign
			}
			return &Identity{AccessKeyID: in.AccessKeyID, Mode: mode}, nil
		}

		if v.cfg.DebugLog != nil {
			v.cfg.DebugLog.Debug("Signature attempt failed.",
				"access_key", in.AccessKeyID,
				"host_candidate", host,
				"canonical_request", canonicalRequest,
				"string_to_sign", stringToSign,
			)
		}
	}
	return nil, signatureDoesNotMatch()
}

// validateTime enforces clock skew and presign expiry windows.
func (v *Verifier) validateTime(in *signatureInputs) error {
	now := v.cfg.Clock.Now()
	if in.Presigned {
		if in.Expires > v.cfg.MaxPresignExpires {
			return queryParametersError("X-Amz-Expires must be less than %d seconds", int64(v.cfg.MaxPresignExpires/time.Second))
		}
		if in.RequestTime.After(now.Add(v.cfg.ClockSkew)) {
			return requestTimeTooSkewed()
		}
		if now.After(in.RequestTime.Add(in.Expires)) {
			return expiredToken()
		}
		return nil
	}
	if d := now.Sub(in.RequestTime); d > v.cfg.ClockSkew || d < -v.cfg.ClockSkew {
		return requestTimeTooSkewed()
	}
	return nil
}

// verifyLegacy accepts unsigned requests naming an allow-listed access
// key when the deployment explicitly opts in.
func (v *Verifier) verifyLegacy(r *http.Request) (*Identity, error) {
	if !v.cfg.AllowLegacyAccessKeyOnly {
		return nil, accessDenied("Access Denied")
	}
	key := legacyAccessKey(r)
	if key == "" {
		return nil, accessDenied("Access Denied")
	}
	if _, ok := v.allowedKeys[key]; !ok {
		return nil, accessDenied("access key is not in the allow list")
	}
	return &Identity{AccessKeyID: key, Mode: ModeLegacy}, nil
}

// legacyAccessKey pulls a bare access key ID out of a pre-SigV4 style
// request: either an "AWS <key>:<signature>" Authorization header or
// the AWSAccessKeyId query parameter.
func legacyAccessKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "AWS ") {
		rest := strings.TrimPrefix(auth, "AWS ")
		key, _, _ := strings.Cut(rest, ":")
		return strings.TrimSpace(key)
	}
	return r.URL.Query().Get("AWSAccessKeyId")
}
