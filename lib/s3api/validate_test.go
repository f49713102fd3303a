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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidBucketName(t *testing.T) {
	testCases := []struct {
		name  string
		valid bool
	}{
		{"data", true},
		{"abc", true},
		{"my-bucket-01", true},
		{"my.bucket", true},
		{"0-9", true},
		{strings.Repeat("a", 63), true},

		{"", false},
		{"ab", false},
		{strings.Repeat("a", 64), false},
		{"Data", false},
		{"my_bucket", false},
		{"-bucket", false},
		{"bucket-", false},
		{".bucket", false},
		{"bucket.", false},
		{"my..bucket", false},
		{"my.-bucket", false},
		{"my-.bucket", false},
		{"192.168.1.20", false},
		{"my bucket", false},
		{"bucket/name", false},
		{"bücket", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.valid, ValidBucketName(tc.name))
		})
	}
}

func TestValidObjectKey(t *testing.T) {
	testCases := []struct {
		desc  string
		key   string
		valid bool
	}{
		{"empty means bucket scope", "", true},
		{"plain", "report.pdf", true},
		{"nested", "logs/2024/06/app.log", true},
		{"spaces and unicode", "résumé (final).docx", true},
		{"dot inside a segment", "archive.tar.gz", true},
		{"dot-prefixed segment", ".hidden", true},
		{"key containing dots mid-segment", "a..b", true},

		{"dot segment", "a/./b", false},
		{"dot-dot segment", "a/../b", false},
		{"leading dot-dot", "../escape", false},
		{"bare dot", ".", false},
		{"bare dot-dot", "..", false},
		{"trailing dot-dot", "a/..", false},
		{"NUL byte", "a\x00b", false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.valid, ValidObjectKey(tc.key))
		})
	}
}

func TestParsePartNumber(t *testing.T) {
	testCases := []struct {
		in    string
		n     int
		valid bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"10000", 10000, true},

		{"", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"+3", 0, false},
		{"3.5", 0, false},
		{"03x", 0, false},
		{"part", 0, false},
		{"999999999999999999999", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			n, ok := ParsePartNumber(tc.in)
			require.Equal(t, tc.valid, ok)
			if tc.valid {
				require.Equal(t, tc.n, n)
			}
		})
	}
}
