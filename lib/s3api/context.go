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

package s3api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// RequestContext is the parsed view of one S3 request shared by the
// router, the handlers and the log lines they emit.
type RequestContext struct {
	// RequestID tags the x-amz-request-id header and every log line
	// about this request.
	RequestID string
	// Bucket and Key are the URL-decoded path segments.
	Bucket string
	Key    string
	// Query is the decoded query string.
	Query url.Values
	// Operation is the routed S3 operation name, set during dispatch.
	Operation string
	// AccessKeyID identifies the caller once authentication passes.
	AccessKeyID string
}

func newRequestContext(r *http.Request) *RequestContext {
	bucket, key := splitObjectPath(r.URL.EscapedPath())
	return &RequestContext{
		RequestID: uuid.NewString(),
		Bucket:    bucket,
		Key:       key,
		Query:     r.URL.Query(),
		Operation: "Unknown",
	}
}

// Resource renders the request scope the way error documents report it.
func (c *RequestContext) Resource() string {
	if c.Bucket == "" {
		return "/"
	}
	if c.Key == "" {
		return "/" + c.Bucket
	}
	return "/" + c.Bucket + "/" + c.Key
}

// splitObjectPath extracts bucket and key from an escaped URL path. The
// path splits on slashes first and each segment is decoded after, so an
// encoded slash lands inside a key segment instead of splitting it.
func splitObjectPath(escapedPath string) (bucket, key string) {
	trimmed := strings.TrimPrefix(escapedPath, "/")
	if trimmed == "" {
		return "", ""
	}
	segments := strings.Split(trimmed, "/")
	for i, segment := range segments {
		if decoded, err := url.PathUnescape(segment); err == nil {
			segments[i] = decoded
		}
	}
	return segments[0], strings.Join(segments[1:], "/")
}
