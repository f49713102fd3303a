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
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"sync"

	"github.com/gravitational/trace"

	"github.com/quayside/berth/lib/defaults"
)

const (
	octetStreamContentType = "application/octet-stream"
	storageClassStandard   = "STANDARD"
)

// streamPool recycles the buffers used to stream object bodies.
var streamPool = sync.Pool{
	New: func() any {
		buf := make([]byte, defaults.StreamChunkSize)
		return &buf
	},
}

// errBodyTooLarge reports a streamed body that outgrew the request size
// cap before the server ever saw a length for it.
var errBodyTooLarge = errors.New("request body exceeds the configured size limit")

// capReader fails a stream once more than max bytes pass through. It
// guards uploads that arrive chunked, without a Content-Length the
// pre-route check could bound.
type capReader struct {
	r         io.Reader
	remaining int64
}

func newCapReader(r io.Reader, max int64) *capReader {
	return &capReader{r: r, remaining: max}
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errBodyTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errBodyTooLarge
	}
	return n, err
}

// bodyReader returns the request body, capped when the request did not
// declare its length up front.
func (h *Handler) bodyReader(r *http.Request) io.Reader {
	if r.ContentLength >= 0 {
		return r.Body
	}
	return newCapReader(r.Body, h.cfg.MaxRequestSize)
}

func (h *Handler) putObject(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	etag, err := h.cfg.Engine.PutObject(r.Context(), rctx.Bucket, rctx.Key, h.bodyReader(r))
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return errEntityTooLarge()
		}
		return trace.Wrap(err)
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	obj, err := h.cfg.Engine.OpenObject(rctx.Bucket, rctx.Key)
	if err != nil {
		return convertObjectError(err)
	}
	defer obj.Body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", octetStreamContentType)
	w.Header().Set("Content-Disposition", contentDisposition(rctx.Key))
	w.Header().Set("Last-Modified", obj.Info.ModTime.UTC().Format(http.TimeFormat))

	rng, err := parseRange(r.Header.Get("Range"), obj.Info.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", obj.Info.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	status := http.StatusOK
	offset, length := int64(0), obj.Info.Size
	if rng != nil {
		status = http.StatusPartialContent
		offset, length = rng.start, rng.end-rng.start+1
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, obj.Info.Size))
	}
	if offset > 0 {
		if _, err := obj.Body.Seek(offset, io.SeekStart); err != nil {
			return trace.Wrap(err)
		}
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if err := streamBody(w, obj.Body, length); err != nil {
		// Most stream failures are clients going away mid transfer.
		log.DebugContext(r.Context(), "Aborted object stream.",
			"bucket", rctx.Bucket,
			"key", rctx.Key,
			"error", err,
		)
	}
	return nil
}

func (h *Handler) headObject(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	info, err := h.cfg.Engine.StatObject(rctx.Bucket, rctx.Key)
	if err != nil {
		return convertObjectError(err)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", octetStreamContentType)
	w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) deleteObject(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	if err := h.cfg.Engine.DeleteObject(r.Context(), rctx.Bucket, rctx.Key); err != nil {
		return trace.Wrap(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	prefix := rctx.Query.Get("prefix")
	infos, err := h.cfg.Engine.ListObjects(rctx.Bucket, prefix)
	if err != nil {
		return trace.Wrap(err)
	}
	doc := &ListBucketResult{
		Name:    rctx.Bucket,
		Prefix:  prefix,
		MaxKeys: defaults.ListMaxKeys,
	}
	for _, info := range infos {
		doc.Contents = append(doc.Contents, Contents{
			Key:          info.Key,
			LastModified: formatTimestamp(info.ModTime),
			Size:         info.Size,
			StorageClass: storageClassStandard,
		})
	}
	writeXML(w, r, http.StatusOK, doc)
	return nil
}

// bulkDelete removes every key named in the request body. Failures are
// reported per key, the response status stays 200.
func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request, rctx *RequestContext) error {
	body, err := io.ReadAll(h.bodyReader(r))
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return errEntityTooLarge()
		}
		return trace.Wrap(err)
	}
	var req deleteRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return errMalformedXML()
	}

	result := &DeleteResult{}
	for _, obj := range req.Objects {
		key := obj.Key
		if key == "" || !ValidObjectKey(key) {
			invalid := errInvalidObjectKey()
			result.Errors = append(result.Errors, DeleteError{
				Key:     key,
				Code:    invalid.Code,
				Message: invalid.Message,
			})
			continue
		}
		if err := h.cfg.Engine.DeleteObject(r.Context(), rctx.Bucket, key); err != nil {
			log.WarnContext(r.Context(), "Bulk delete failed for key.",
				"request_id", rctx.RequestID,
				"bucket", rctx.Bucket,
				"key", key,
				"error", err,
			)
			internal := errInternal()
			result.Errors = append(result.Errors, DeleteError{
				Key:     key,
				Code:    internal.Code,
				Message: internal.Message,
			})
			continue
		}
		if !req.Quiet {
			result.Deleted = append(result.Deleted, DeletedObject{Key: key})
		}
	}
	writeXML(w, r, http.StatusOK, result)
	return nil
}

func streamBody(w io.Writer, r io.Reader, length int64) error {
	buf := streamPool.Get().(*[]byte)
	defer streamPool.Put(buf)
	_, err := io.CopyBuffer(w, io.LimitReader(r, length), *buf)
	return err
}

func contentDisposition(key string) string {
	return fmt.Sprintf("attachment; filename=%q", path.Base(key))
}
