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

package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gravitational/trace"

	"github.com/quayside/berth"
	"github.com/quayside/berth/lib/defaults"
)

const (
	// multipartDir is the reserved scratch tree under the data dir. Its
	// dot prefix keeps it out of listings, and bucket names can never
	// collide with it because they must start with a letter or digit.
	multipartDir = ".multipart"

	// rootKeyNamespace stages sessions initiated with an empty key.
	rootKeyNamespace = "_root"
)

// uploadIDPattern matches well-formed upload IDs. IDs arrive from the
// network and become path components, so anything else is treated as an
// unknown session rather than handed to the filesystem.
var uploadIDPattern = regexp.MustCompile(fmt.Sprintf("^[0-9a-f]{%d}$", 2*defaults.UploadIDBytes))

// InitiateUpload opens a multipart session for bucket/key and returns
// its upload ID. Sessions are independent: staged parts live in a
// directory keyed by the upload ID, so concurrent uploads to the same
// key never observe each other.
func (e *Engine) InitiateUpload(ctx context.Context, bucket, key string) (string, error) {
	if bucket == "" {
		return "", trace.BadParameter("missing bucket name")
	}
	buf := make([]byte, defaults.UploadIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", trace.Wrap(err)
	}
	uploadID := hex.EncodeToString(buf)
	if err := os.MkdirAll(e.sessionDir(bucket, key, uploadID), berth.PrivateDirMode); err != nil {
		return "", trace.ConvertSystemError(err)
	}
	log.DebugContext(ctx, "Opened multipart session.",
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
	)
	return uploadID, nil
}

// UploadPart stages one part of an open session and returns the hex MD5
// of the stored bytes. Re-uploading a part number replaces the previous
// bytes atomically.
func (e *Engine) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader) (string, error) {
	if partNumber <= 0 {
		return "", trace.BadParameter("part number %v is not positive", partNumber)
	}
	dir, err := e.statSession(bucket, key, uploadID)
	if err != nil {
		return "", trace.Wrap(err)
	}
	etag, size, err := writeAtomic(filepath.Join(dir, strconv.Itoa(partNumber)), body)
	if err != nil {
		return "", trace.Wrap(err)
	}
	log.DebugContext(ctx, "Staged part.",
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
		"part", partNumber,
		"size", humanize.IBytes(uint64(size)),
	)
	return etag, nil
}

// CompleteUpload concatenates the named parts in ascending part number
// order and publishes the result at bucket/key with the same atomic
// rename as PutObject. The part list is deduplicated; it must be non
// empty, positive, and reference only staged parts. The session is
// removed after the object is visible, and a failure anywhere earlier
// leaves the session intact and reusable.
func (e *Engine) CompleteUpload(ctx context.Context, bucket, key, uploadID string, partNumbers []int) (ObjectInfo, error) {
	dst, err := e.objectPath(bucket, key)
	if err != nil {
		return ObjectInfo{}, trace.Wrap(err)
	}
	dir, err := e.statSession(bucket, key, uploadID)
	if err != nil {
		return ObjectInfo{}, trace.Wrap(err)
	}
	parts, err := normalizeParts(partNumbers)
	if err != nil {
		return ObjectInfo{}, trace.Wrap(err)
	}
	for _, n := range parts {
		if _, err := os.Stat(filepath.Join(dir, strconv.Itoa(n))); err != nil {
			if os.IsNotExist(err) {
				return ObjectInfo{}, trace.BadParameter("part %v was not uploaded", n)
			}
			return ObjectInfo{}, trace.ConvertSystemError(err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), berth.SharedDirMode); err != nil {
		return ObjectInfo{}, trace.ConvertSystemError(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), scratchPrefix+"*")
	if err != nil {
		return ObjectInfo{}, trace.ConvertSystemError(err)
	}
	err = concatParts(ctx, tmp, dir, parts)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return ObjectInfo{}, trace.ConvertSystemError(err)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		return ObjectInfo{}, trace.ConvertSystemError(err)
	}

	// The object is already visible, cleanup is best effort from here.
	if err := os.RemoveAll(dir); err != nil {
		log.WarnContext(ctx, "Failed to remove completed multipart session.",
			"upload_id", uploadID,
			"error", err,
		)
	}
	e.pruneScratch(bucket, key)
	log.DebugContext(ctx, "Completed multipart session.",
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
		"parts", len(parts),
		"size", humanize.IBytes(uint64(fi.Size())),
	)
	return ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// AbortUpload discards an open session and every staged part in it.
func (e *Engine) AbortUpload(ctx context.Context, bucket, key, uploadID string) error {
	dir, err := e.statSession(bucket, key, uploadID)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return trace.ConvertSystemError(err)
	}
	e.pruneScratch(bucket, key)
	log.DebugContext(ctx, "Aborted multipart session.",
		"bucket", bucket,
		"key", key,
		"upload_id", uploadID,
	)
	return nil
}

// sessionDir maps a session to its scratch directory. Keys are hashed
// into a fixed-width namespace so arbitrary key bytes never reach the
// filesystem twice.
func (e *Engine) sessionDir(bucket, key, uploadID string) string {
	return filepath.Join(e.cfg.DataDir, multipartDir, bucket, keyNamespace(key), uploadID)
}

func keyNamespace(key string) string {
	if key == "" {
		return rootKeyNamespace
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// statSession resolves a session directory, returning NotFound for
// malformed IDs and sessions that are already gone.
func (e *Engine) statSession(bucket, key, uploadID string) (string, error) {
	if bucket == "" {
		return "", trace.BadParameter("missing bucket name")
	}
	if !uploadIDPattern.MatchString(uploadID) {
		return "", trace.NotFound("no multipart session %q", uploadID)
	}
	dir := e.sessionDir(bucket, key, uploadID)
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", trace.NotFound("no multipart session %q", uploadID)
		}
		return "", trace.ConvertSystemError(err)
	}
	if !fi.IsDir() {
		return "", trace.NotFound("no multipart session %q", uploadID)
	}
	return dir, nil
}

func normalizeParts(partNumbers []int) ([]int, error) {
	if len(partNumbers) == 0 {
		return nil, trace.BadParameter("empty part list")
	}
	seen := make(map[int]struct{}, len(partNumbers))
	parts := make([]int, 0, len(partNumbers))
	for _, n := range partNumbers {
		if n <= 0 {
			return nil, trace.BadParameter("part number %v is not positive", n)
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		parts = append(parts, n)
	}
	sort.Ints(parts)
	return parts, nil
}

func concatParts(ctx context.Context, dst *os.File, dir string, parts []int) error {
	for _, n := range parts {
		f, err := os.Open(filepath.Join(dir, strconv.Itoa(n)))
		if err != nil {
			return trace.ConvertSystemError(err)
		}
		_, err = io.Copy(dst, f)
		f.Close()
		if err != nil {
			return trace.ConvertSystemError(err)
		}
		if err := ctx.Err(); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// pruneScratch removes scratch directories above a finished session,
// innermost first. Rmdir refuses non-empty directories, so the sweep
// stops at the first level still hosting other sessions and never
// disturbs them.
func (e *Engine) pruneScratch(bucket, key string) {
	for _, dir := range []string{
		filepath.Join(e.cfg.DataDir, multipartDir, bucket, keyNamespace(key)),
		filepath.Join(e.cfg.DataDir, multipartDir, bucket),
		filepath.Join(e.cfg.DataDir, multipartDir),
	} {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
