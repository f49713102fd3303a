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
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gravitational/trace"
)

func (h *Handler) initiateMultipartUpload(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	uploadID, err := h.cfg.Engine.InitiateUpload(r.Context(), rctx.Bucket, rctx.Key)
	if err != nil {
		return convertMultipartError(err)
	}
	writeXML(w, r, http.StatusOK, &InitiateMultipartUploadResult{
		Bucket:   rctx.Bucket,
		Key:      rctx.Key,
		UploadId: uploadID,
	})
	return nil
}

func (h *Handler) uploadPart(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	partNumber, ok := ParsePartNumber(rctx.Query.Get("partNumber"))
	if !ok {
		return errInvalidPart("Part number must be a positive integer.")
	}
	uploadID := rctx.Query.Get("uploadId")
	etag, err := h.cfg.Engine.UploadPart(r.Context(), rctx.Bucket, rctx.Key, uploadID, partNumber, h.bodyReader(r))
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return errEntityTooLarge()
		}
		return convertMultipartError(err)
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) completeMultipartUpload(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	body, err := io.ReadAll(h.bodyReader(r))
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return errEntityTooLarge()
		}
		return trace.Wrap(err)
	}
	var req completeUploadRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return errMalformedXML()
	}
	partNumbers := make([]int, 0, len(req.Parts))
	for _, part := range req.Parts {
		partNumbers = append(partNumbers, part.PartNumber)
	}

	uploadID := rctx.Query.Get("uploadId")
	if _, err := h.cfg.Engine.CompleteUpload(r.Context(), rctx.Bucket, rctx.Key, uploadID, partNumbers); err != nil {
		return convertMultipartError(err)
	}
	writeXML(w, r, http.StatusOK, &CompleteMultipartUploadResult{
		Location: objectLocation(r, rctx.Bucket, rctx.Key),
		Bucket:   rctx.Bucket,
		Key:      rctx.Key,
		UploadId: uploadID,
	})
	return nil
}

func (h *Handler) abortMultipartUpload(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	uploadID := rctx.Query.Get("uploadId")
	if err := h.cfg.Engine.AbortUpload(r.Context(), rctx.Bucket, rctx.Key, uploadID); err != nil {
		return convertMultipartError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// objectLocation renders the URL a completed object is reachable at,
// honoring the forwarded protocol when a proxy fronts the server.
func objectLocation(r *http.Request, bucket, key string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		if first, _, found := strings.Cut(proto, ","); found {
			proto = first
		}
		scheme = strings.ToLower(strings.TrimSpace(proto))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: "/" + bucket + "/" + key}
	return u.String()
}
