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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	testCases := []struct {
		desc   string
		header string
		size   int64
		want   *byteRange
		err    error
	}{
		{desc: "no header serves the whole object", header: "", size: 17},
		{desc: "foreign unit ignored", header: "items=0-3", size: 17},
		{desc: "missing dash ignored", header: "bytes=5", size: 17},
		{desc: "multi-range ignored", header: "bytes=0-1,3-4", size: 17},
		{desc: "bare dash ignored", header: "bytes=-", size: 17},
		{desc: "non-numeric start ignored", header: "bytes=abc-", size: 17},
		{desc: "non-numeric end ignored", header: "bytes=0-xyz", size: 17},
		{desc: "negative start ignored", header: "bytes=--5", size: 17},

		{desc: "bounded", header: "bytes=0-3", size: 17, want: &byteRange{0, 3}},
		{desc: "bounded single byte", header: "bytes=4-4", size: 17, want: &byteRange{4, 4}},
		{desc: "end clamped to last byte", header: "bytes=5-9999", size: 17, want: &byteRange{5, 16}},
		{desc: "open ended", header: "bytes=5-", size: 17, want: &byteRange{5, 16}},
		{desc: "open ended from zero", header: "bytes=0-", size: 17, want: &byteRange{0, 16}},
		{desc: "suffix", header: "bytes=-5", size: 17, want: &byteRange{12, 16}},
		{desc: "suffix covering everything", header: "bytes=-50", size: 17, want: &byteRange{0, 16}},

		{desc: "start at size", header: "bytes=17-", size: 17, err: errUnsatisfiableRange},
		{desc: "start past size", header: "bytes=99999-100000", size: 17, err: errUnsatisfiableRange},
		{desc: "start after end", header: "bytes=9-5", size: 17, err: errUnsatisfiableRange},
		{desc: "zero length suffix", header: "bytes=-0", size: 17, err: errUnsatisfiableRange},
		{desc: "oversized bound saturates past the end", header: "bytes=99999999999999999999999999-", size: 17, err: errUnsatisfiableRange},

		{desc: "empty object, bounded", header: "bytes=0-5", size: 0, err: errUnsatisfiableRange},
		{desc: "empty object, open ended", header: "bytes=0-", size: 0, err: errUnsatisfiableRange},
		{desc: "empty object, suffix", header: "bytes=-5", size: 0, err: errUnsatisfiableRange},
		{desc: "empty object, malformed still ignored", header: "bytes=oops", size: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := parseRange(tc.header, tc.size)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
