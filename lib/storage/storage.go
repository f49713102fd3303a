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

// Package storage implements the filesystem store behind the S3 front
// end. An object bucket/key is the regular file DATA_DIR/bucket/key;
// multipart sessions are staged under a reserved dot-prefixed scratch
// tree until they complete. Visible objects only ever change through an
// atomic rename, so a reader observes either the previous bytes or the
// new bytes, never a mix of both.
package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gravitational/trace"

	"github.com/quayside/berth"
	logutils "github.com/quayside/berth/lib/utils/log"
)

var log = logutils.NewPackageLogger(berth.ComponentKey, berth.ComponentStorage)

// scratchPrefix marks in-flight temporary files. Listings skip dot
// prefixed names, so half-written files never show up in them.
const scratchPrefix = ".berth-"

// Config sets up the storage engine.
type Config struct {
	// DataDir is the directory under which buckets, objects and
	// multipart scratch state live.
	DataDir string
}

// CheckAndSetDefaults validates the config.
func (c *Config) CheckAndSetDefaults() error {
	if c.DataDir == "" {
		return trace.BadParameter("missing parameter DataDir")
	}
	return nil
}

// Engine reads and writes objects under a single data directory. It
// keeps no state outside the filesystem and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine rooted at cfg.DataDir, creating the
// directory when it does not exist yet.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := os.MkdirAll(cfg.DataDir, berth.SharedDirMode); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return &Engine{cfg: cfg}, nil
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Key is the object key relative to its bucket.
	Key string
	// Size is the object size in bytes.
	Size int64
	// ModTime is the modification time of the backing file.
	ModTime time.Time
}

// Object couples an open object body with its metadata. The caller owns
// Body and must close it.
type Object struct {
	Body io.ReadSeekCloser
	Info ObjectInfo
}

// PutObject stores the body at bucket/key, replacing any previous
// object, and returns the hex MD5 of the stored bytes. The write lands
// in a temporary file next to the destination and becomes visible only
// through the final rename.
func (e *Engine) PutObject(ctx context.Context, bucket, key string, body io.Reader) (string, error) {
	dst, err := e.objectPath(bucket, key)
	if err != nil {
		return "", trace.Wrap(err)
	}
	etag, size, err := writeAtomic(dst, body)
	if err != nil {
		return "", trace.Wrap(err)
	}
	log.DebugContext(ctx, "Stored object.",
		"bucket", bucket,
		"key", key,
		"size", humanize.IBytes(uint64(size)),
	)
	return etag, nil
}

// OpenObject opens bucket/key for reading.
func (e *Engine) OpenObject(bucket, key string) (*Object, error) {
	path, err := e.objectPath(bucket, key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, trace.ConvertSystemError(err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, trace.NotFound("object %v/%v does not exist", bucket, key)
	}
	return &Object{
		Body: f,
		Info: ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()},
	}, nil
}

// StatObject returns metadata for bucket/key without opening it.
func (e *Engine) StatObject(bucket, key string) (ObjectInfo, error) {
	path, err := e.objectPath(bucket, key)
	if err != nil {
		return ObjectInfo{}, trace.Wrap(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, trace.ConvertSystemError(err)
	}
	if !fi.Mode().IsRegular() {
		return ObjectInfo{}, trace.NotFound("object %v/%v does not exist", bucket, key)
	}
	return ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// DeleteObject unlinks bucket/key. Deleting an object that does not
// exist succeeds.
func (e *Engine) DeleteObject(ctx context.Context, bucket, key string) error {
	path, err := e.objectPath(bucket, key)
	if err != nil {
		return trace.Wrap(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return trace.ConvertSystemError(err)
	}
	if !fi.Mode().IsRegular() {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return trace.ConvertSystemError(err)
	}
	log.DebugContext(ctx, "Deleted object.", "bucket", bucket, "key", key)
	return nil
}

// ListObjects walks the bucket and returns every object whose key
// starts with prefix, sorted ascending by key. Path components starting
// with a dot are invisible to listings, which keeps scratch state and
// in-flight temporary files out of the result. A bucket that was never
// written to lists as empty.
func (e *Engine) ListObjects(bucket, prefix string) ([]ObjectInfo, error) {
	if bucket == "" {
		return nil, trace.BadParameter("missing bucket name")
	}
	root := filepath.Join(e.cfg.DataDir, bucket)
	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trace.ConvertSystemError(err)
	}
	if !fi.IsDir() {
		return nil, nil
	}

	var out []ObjectInfo
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Entries can vanish mid-walk when deletes race a listing.
			if os.IsNotExist(walkErr) {
				return nil
			}
			return trace.ConvertSystemError(walkErr)
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return trace.Wrap(err)
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return trace.ConvertSystemError(err)
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// objectPath maps bucket/key to its backing file. The S3 front end
// validates names before they get here; the checks below are a backstop
// for direct library use.
func (e *Engine) objectPath(bucket, key string) (string, error) {
	if bucket == "" {
		return "", trace.BadParameter("missing bucket name")
	}
	if key == "" {
		return "", trace.BadParameter("missing object key")
	}
	return filepath.Join(e.cfg.DataDir, bucket, filepath.FromSlash(key)), nil
}

// writeAtomic streams src into a temporary file in the destination's
// directory and renames it over dst, returning the hex MD5 and size of
// the written bytes. On failure the temporary file is removed and dst
// is left untouched.
func writeAtomic(dst string, src io.Reader) (string, int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, berth.SharedDirMode); err != nil {
		return "", 0, trace.ConvertSystemError(err)
	}
	f, err := os.CreateTemp(dir, scratchPrefix+"*")
	if err != nil {
		return "", 0, trace.ConvertSystemError(err)
	}
	sum := md5.New()
	size, err := io.Copy(io.MultiWriter(f, sum), src)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(f.Name(), dst)
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, trace.ConvertSystemError(err)
	}
	return hex.EncodeToString(sum.Sum(nil)), size, nil
}
