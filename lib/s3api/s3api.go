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

// Package s3api implements the S3 REST front end: path-style routing,
// request validation, signature checks and the XML response documents,
// on top of the storage engine.
package s3api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gravitational/trace"

	"github.com/quayside/berth"
	"github.com/quayside/berth/lib/defaults"
	"github.com/quayside/berth/lib/sigv4"
	"github.com/quayside/berth/lib/storage"
	"github.com/quayside/berth/lib/utils"
	logutils "github.com/quayside/berth/lib/utils/log"
)

var log = logutils.NewPackageLogger(berth.ComponentKey, berth.ComponentS3)

// HandlerConfig configures the S3 front end.
type HandlerConfig struct {
	// Engine stores and serves the objects.
	Engine *storage.Engine
	// Verifier authenticates request signatures.
	Verifier *sigv4.Verifier
	// MaxRequestSize bounds request bodies, both declared and streamed.
	MaxRequestSize int64
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *HandlerConfig) CheckAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("missing parameter Engine")
	}
	if c.Verifier == nil {
		return trace.BadParameter("missing parameter Verifier")
	}
	if c.MaxRequestSize < 0 {
		return trace.BadParameter("MaxRequestSize cannot be negative")
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = defaults.MaxRequestSize
	}
	return nil
}

// Handler routes S3 API requests. It implements http.Handler.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler returns an S3 front end for the given config.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := utils.RegisterPrometheusCollectors(s3Collectors...); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Handler{cfg: cfg}, nil
}

// ServeHTTP dispatches one S3 request. Every response, including every
// failure, leaves through this function so headers, metrics and access
// logs stay consistent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rctx := newRequestContext(r)
	rw := &responseWriter{ResponseWriter: w}
	rw.Header().Set("x-amz-request-id", rctx.RequestID)

	if err := h.serve(rw, r, rctx); err != nil {
		h.writeErrorResponse(rw, r, rctx, err)
	}

	requestsTotal.WithLabelValues(rctx.Operation, strconv.Itoa(rw.statusCode())).Inc()
	requestDuration.WithLabelValues(rctx.Operation).Observe(time.Since(start).Seconds())
	if r.ContentLength > 0 {
		receivedBytes.Add(float64(r.ContentLength))
	}
	sentBytes.Add(float64(rw.bytes))

	log.DebugContext(r.Context(), "Handled S3 request.",
		"request_id", rctx.RequestID,
		"operation", rctx.Operation,
		"method", r.Method,
		"bucket", rctx.Bucket,
		"key", rctx.Key,
		"code", rw.statusCode(),
		"duration", time.Since(start),
	)
}

// serve runs the pre-route checks in their fixed order, bucket and key
// shape, declared body size, then authentication, and hands the request
// to the routed operation.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	if !ValidBucketName(rctx.Bucket) {
		return errInvalidBucketName()
	}
	if !ValidObjectKey(rctx.Key) {
		return errInvalidObjectKey()
	}
	if r.ContentLength > h.cfg.MaxRequestSize {
		return errEntityTooLarge()
	}

	identity, err := h.cfg.Verifier.Verify(r)
	if err != nil {
		var sigErr *sigv4.Error
		if errors.As(err, &sigErr) {
			authFailures.WithLabelValues(sigErr.Code).Inc()
		}
		return trace.Wrap(err)
	}
	rctx.AccessKeyID = identity.AccessKeyID

	return h.route(w, r, rctx)
}

// route picks the S3 operation from the method, the query flags and
// whether the path names a key. Query flags win over the plain verb
// meaning, matching how S3 clients address sub-resources.
func (h *Handler) route(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	q := rctx.Query
	switch r.Method {
	case http.MethodPut:
		if q.Has("uploadId") && q.Has("partNumber") {
			rctx.Operation = "UploadPart"
			if rctx.Key == "" {
				return errInvalidRequest("Part uploads require an object key.")
			}
			return h.uploadPart(w, r, rctx)
		}
		rctx.Operation = "PutObject"
		if rctx.Key == "" {
			return errInvalidRequest("PUT requires an object key.")
		}
		return h.putObject(w, r, rctx)

	case http.MethodPost:
		switch {
		case q.Has("delete"):
			rctx.Operation = "DeleteObjects"
			return h.bulkDelete(w, r, rctx)
		case q.Has("uploads"):
			rctx.Operation = "InitiateMultipartUpload"
			if rctx.Key == "" {
				return errInvalidRequest("Multipart uploads require an object key.")
			}
			return h.initiateMultipartUpload(w, r, rctx)
		case q.Has("uploadId"):
			rctx.Operation = "CompleteMultipartUpload"
			if rctx.Key == "" {
				return errInvalidRequest("Multipart uploads require an object key.")
			}
			return h.completeMultipartUpload(w, r, rctx)
		default:
			rctx.Operation = "InvalidPost"
			return errInvalidRequest("Unsupported POST operation.")
		}

	case http.MethodGet:
		if rctx.Key == "" {
			rctx.Operation = "ListObjects"
			return h.listObjects(w, r, rctx)
		}
		rctx.Operation = "GetObject"
		return h.getObject(w, r, rctx)

	case http.MethodHead:
		if rctx.Key == "" {
			rctx.Operation = "InvalidHead"
			return errInvalidRequest("HEAD requires an object key.")
		}
		rctx.Operation = "HeadObject"
		return h.headObject(w, r, rctx)

	case http.MethodDelete:
		if q.Has("uploadId") {
			rctx.Operation = "AbortMultipartUpload"
			if rctx.Key == "" {
				return errInvalidRequest("Multipart uploads require an object key.")
			}
			return h.abortMultipartUpload(w, r, rctx)
		}
		rctx.Operation = "DeleteObject"
		if rctx.Key == "" {
			return errInvalidRequest("DELETE requires an object key.")
		}
		return h.deleteObject(w, r, rctx)

	default:
		rctx.Operation = "MethodNotAllowed"
		return errMethodNotAllowed()
	}
}

// writeErrorResponse turns err into the S3 error document. Responses
// that already started streaming cannot change status, those failures
// are only logged.
func (h *Handler) writeErrorResponse(w *responseWriter, r *http.Request, rctx *RequestContext, err error) {
	if w.wroteHeader {
		log.WarnContext(r.Context(), "Request failed after the response started.",
			"request_id", rctx.RequestID,
			"operation", rctx.Operation,
			"error", err,
		)
		return
	}
	doc := toErrorDocument(err)
	if doc.Resource == "" {
		doc.Resource = rctx.Resource()
	}
	if doc.HTTPStatus == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "Request failed.",
			"request_id", rctx.RequestID,
			"operation", rctx.Operation,
			"error", err,
		)
	} else {
		log.DebugContext(r.Context(), "Request rejected.",
			"request_id", rctx.RequestID,
			"operation", rctx.Operation,
			"code", doc.Code,
			"error", err,
		)
	}
	writeXML(w, r, doc.HTTPStatus, doc)
}

// responseWriter captures the status and body size of a response for
// metrics and access logs.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *responseWriter) statusCode() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.status
}
