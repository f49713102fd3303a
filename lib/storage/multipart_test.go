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
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestInitiateUpload(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.InitiateUpload(ctx, "b", "video.mp4")
	require.NoError(t, err)
	second, err := engine.InitiateUpload(ctx, "b", "video.mp4")
	require.NoError(t, err)

	require.Regexp(t, "^[0-9a-f]{32}$", first)
	require.Regexp(t, "^[0-9a-f]{32}$", second)
	require.NotEqual(t, first, second)
}

func TestUploadPartRequiresSession(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.UploadPart(ctx, "b", "k", "0123456789abcdef0123456789abcdef", 1, strings.NewReader("x"))
	require.True(t, trace.IsNotFound(err))

	// Malformed IDs are unknown sessions, never filesystem paths.
	_, err = engine.UploadPart(ctx, "b", "k", "../../escape", 1, strings.NewReader("x"))
	require.True(t, trace.IsNotFound(err))

	uploadID, err := engine.InitiateUpload(ctx, "b", "k")
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, 0, strings.NewReader("x"))
	require.True(t, trace.IsBadParameter(err))
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, -2, strings.NewReader("x"))
	require.True(t, trace.IsBadParameter(err))
}

func TestCompleteUpload(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	uploadID, err := engine.InitiateUpload(ctx, "b", "joined.txt")
	require.NoError(t, err)

	// Parts may arrive in any order and may be re-uploaded.
	parts := map[int]string{2: "part-two", 1: "part-one-"}
	for n, body := range parts {
		etag, err := engine.UploadPart(ctx, "b", "joined.txt", uploadID, n, strings.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, md5hex([]byte(body)), etag)
	}

	// Duplicated part numbers in the completion list collapse.
	info, err := engine.CompleteUpload(ctx, "b", "joined.txt", uploadID, []int{2, 1, 2})
	require.NoError(t, err)
	require.Equal(t, int64(17), info.Size)

	obj, err := engine.OpenObject("b", "joined.txt")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "part-one-part-two", string(data))

	// The session is gone, and the scratch tree pruned with it.
	_, err = engine.CompleteUpload(ctx, "b", "joined.txt", uploadID, []int{1})
	require.True(t, trace.IsNotFound(err))
	_, err = os.Stat(filepath.Join(engine.cfg.DataDir, multipartDir))
	require.True(t, os.IsNotExist(err))
}

func TestUploadPartOverwrite(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	uploadID, err := engine.InitiateUpload(ctx, "b", "k")
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, 1, strings.NewReader("stale bytes"))
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, 1, strings.NewReader("fresh"))
	require.NoError(t, err)

	info, err := engine.CompleteUpload(ctx, "b", "k", uploadID, []int{1})
	require.NoError(t, err)
	require.Equal(t, int64(5), info.Size)
}

func TestCompleteUploadValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	uploadID, err := engine.InitiateUpload(ctx, "b", "k")
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, 1, strings.NewReader("one"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		parts []int
		check func(error) bool
	}{
		{name: "empty list", parts: nil, check: trace.IsBadParameter},
		{name: "zero part", parts: []int{1, 0}, check: trace.IsBadParameter},
		{name: "negative part", parts: []int{-3}, check: trace.IsBadParameter},
		{name: "missing part", parts: []int{1, 2}, check: trace.IsBadParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CompleteUpload(ctx, "b", "k", uploadID, tt.parts)
			require.Error(t, err)
			require.True(t, tt.check(err), "unexpected error %v", err)
		})
	}

	// None of the failures consumed the session.
	_, err = engine.UploadPart(ctx, "b", "k", uploadID, 2, strings.NewReader("-two"))
	require.NoError(t, err)
	info, err := engine.CompleteUpload(ctx, "b", "k", uploadID, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, int64(7), info.Size)

	// Unknown but well-formed IDs are NotFound too.
	_, err = engine.CompleteUpload(ctx, "b", "k", "ffffffffffffffffffffffffffffffff", []int{1})
	require.True(t, trace.IsNotFound(err))
}

// TestConcurrentSessionsSameKey drives two interleaved sessions against
// one key: completing the first must not disturb the second.
func TestConcurrentSessionsSameKey(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	a, err := engine.InitiateUpload(ctx, "b", "shared.key")
	require.NoError(t, err)
	b, err := engine.InitiateUpload(ctx, "b", "shared.key")
	require.NoError(t, err)

	_, err = engine.UploadPart(ctx, "b", "shared.key", a, 1, strings.NewReader("AAA"))
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "shared.key", b, 1, strings.NewReader("BBB"))
	require.NoError(t, err)

	_, err = engine.CompleteUpload(ctx, "b", "shared.key", a, []int{1})
	require.NoError(t, err)

	obj, err := engine.OpenObject("b", "shared.key")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "AAA", string(data))

	// B is still open and can finish on top of the published object.
	_, err = engine.UploadPart(ctx, "b", "shared.key", b, 2, strings.NewReader("-2"))
	require.NoError(t, err)
	_, err = engine.CompleteUpload(ctx, "b", "shared.key", b, []int{1, 2})
	require.NoError(t, err)

	obj, err = engine.OpenObject("b", "shared.key")
	require.NoError(t, err)
	data, err = io.ReadAll(obj.Body)
	obj.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "BBB-2", string(data))
}

func TestAbortUpload(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	keep, err := engine.InitiateUpload(ctx, "b", "k")
	require.NoError(t, err)
	doomed, err := engine.InitiateUpload(ctx, "b", "k")
	require.NoError(t, err)

	_, err = engine.UploadPart(ctx, "b", "k", keep, 1, strings.NewReader("keep"))
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "k", doomed, 1, strings.NewReader("drop"))
	require.NoError(t, err)

	require.NoError(t, engine.AbortUpload(ctx, "b", "k", doomed))
	err = engine.AbortUpload(ctx, "b", "k", doomed)
	require.True(t, trace.IsNotFound(err))

	// The sibling session survived the abort.
	info, err := engine.CompleteUpload(ctx, "b", "k", keep, []int{1})
	require.NoError(t, err)
	require.Equal(t, int64(4), info.Size)
}

func TestScratchStateInvisibleToListings(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.PutObject(ctx, "b", "visible.txt", strings.NewReader("x"))
	require.NoError(t, err)
	uploadID, err := engine.InitiateUpload(ctx, "b", "pending.bin")
	require.NoError(t, err)
	_, err = engine.UploadPart(ctx, "b", "pending.bin", uploadID, 1, strings.NewReader("staged"))
	require.NoError(t, err)

	infos, err := engine.ListObjects("b", "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "visible.txt", infos[0].Key)
	for _, info := range infos {
		require.NotContains(t, info.Key, uploadID)
	}
}

// TestEmptyKeySessions covers multipart state for the empty key, which
// is staged under a fixed namespace instead of a key hash.
func TestEmptyKeySessions(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	uploadID, err := engine.InitiateUpload(ctx, "b", "")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(engine.cfg.DataDir, multipartDir, "b", rootKeyNamespace, uploadID))
	require.NoError(t, err)
	require.NoError(t, engine.AbortUpload(ctx, "b", "", uploadID))
}
