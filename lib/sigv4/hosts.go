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
	"net"
	"net/http"
	"strings"
)

// hostCandidates returns the ordered, deduplicated host values to try
// when the host header is signed. A client may have signed the host
// with or without the scheme's default port, so both spellings of the
// literal Host header are attempted. With fallbacks enabled, proxied
// requests may also match on the first X-Forwarded-Host value or on
// the server's own configured name.
func (v *Verifier) hostCandidates(r *http.Request) []string {
	scheme := requestScheme(r)
	defaultPort := "80"
	if scheme == "https" {
		defaultPort = "443"
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		if candidate == "" {
			return
		}
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	literal := strings.ToLower(strings.TrimSpace(r.Host))
	add(literal)
	if stripped, ok := strings.CutSuffix(literal, ":"+defaultPort); ok {
		add(stripped)
	} else if !hasPort(literal) {
		add(literal + ":" + defaultPort)
	}

	if v.cfg.AllowHostFallbacks {
		if xfh := r.Header.Get("X-Forwarded-Host"); xfh != "" {
			first, _, _ := strings.Cut(xfh, ",")
			add(strings.TrimSpace(first))
		}
		if v.cfg.ServerName != "" {
			add(v.cfg.ServerName)
			if v.cfg.ServerPort != "" {
				add(v.cfg.ServerName + ":" + v.cfg.ServerPort)
			}
		}
	}
	return out
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}

// requestScheme reports the effective scheme of the request, honoring
// X-Forwarded-Proto for requests arriving through a TLS-terminating
// proxy.
func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return "https"
	}
	return "http"
}
