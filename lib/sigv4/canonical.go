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

package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// awsEncode percent-encodes s the way SigV4 canonicalization requires:
// the unreserved set A-Z a-z 0-9 - _ . ~ stays literal, every other
// byte becomes %XX with uppercase hex. Unlike url.QueryEscape, spaces
// are %20 and slashes are %2F.
func awsEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

// canonicalURI rebuilds the canonical form of an escaped request path:
// each slash-separated segment is URL-decoded once and re-encoded with
// the SigV4 alphabet. The result always begins with a slash.
func canonicalURI(escapedPath string) string {
	if escapedPath == "" {
		return "/"
	}
	segments := strings.Split(escapedPath, "/")
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			// not valid percent-encoding, canonicalize the raw bytes
			decoded = segment
		}
		segments[i] = awsEncode(decoded)
	}
	uri := strings.Join(segments, "/")
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}

// canonicalQuery rebuilds the canonical query string from the raw query
// exactly as it appeared on the wire, preserving duplicate keys. Pairs
// are decoded once, re-encoded, and sorted by encoded key with encoded
// value as the tiebreaker. In presigned mode the X-Amz-Signature pair
// is excluded.
func canonicalQuery(rawQuery string, presigned bool) string {
	if rawQuery == "" {
		return ""
	}
	type pair struct {
		key   string
		value string
	}
	var pairs []pair
	for _, component := range strings.Split(rawQuery, "&") {
		if component == "" {
			continue
		}
		k, v, _ := strings.Cut(component, "=")
		decodedKey := decodeQueryOnce(k)
		if presigned && decodedKey == "X-Amz-Signature" {
			continue
		}
		pairs = append(pairs, pair{key: awsEncode(decodedKey), value: awsEncode(decodeQueryOnce(v))})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+p.value)
	}
	return strings.Join(parts, "&")
}

// decodeQueryOnce URL-decodes a query component one time, treating "+"
// as a space. Invalid percent sequences pass through untouched, which
// mirrors how permissive decoders treat them.
func decodeQueryOnce(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// canonicalHeaders renders the canonical header block for the signed
// header names, which must already be sorted. The host line uses the
// supplied candidate value rather than the request header. Values are
// trimmed, internal whitespace runs collapse to single spaces, and
// repeated headers join with commas. The block ends with a newline.
func canonicalHeaders(r *http.Request, signedHeaders []string, host string) (string, error) {
	var b strings.Builder
	for _, name := range signedHeaders {
		var values []string
		switch {
		case name == "host":
			values = []string{host}
		default:
			values = r.Header.Values(name)
			// clients sign content-length from the request itself, it
			// is not always present in the header map
			if len(values) == 0 && name == "content-length" && r.ContentLength > 0 {
				values = []string{strconv.FormatInt(r.ContentLength, 10)}
			}
		}
		if len(values) == 0 {
			return "", accessDenied("request is missing signed header %q", name)
		}
		normalized := make([]string, len(values))
		for i, v := range values {
			normalized[i] = strings.Join(strings.Fields(v), " ")
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(normalized, ","))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// buildCanonicalRequest assembles the six-line canonical request.
func buildCanonicalRequest(method, uri, query, headerBlock, signedHeadersLine, payloadHash string) string {
	return strings.Join([]string{
		method,
		uri,
		query,
		headerBlock,
		signedHeadersLine,
		payloadHash,
	}, "\n")
}

// buildStringToSign assembles the string to sign from the request date,
// the credential scope without the access key, and the canonical
// request hash.
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	digest := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{
		AuthorizationPrefix,
		amzDate,
		scope,
		hex.EncodeToString(digest[:]),
	}, "\n")
}

// deriveSigningKey runs the SigV4 key derivation chain
// kDate, kRegion, kService, kSigning for the scope values.
func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}
