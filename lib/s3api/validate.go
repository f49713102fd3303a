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
	"net"
	"regexp"
	"strconv"
	"strings"
)

// bucketNamePattern is the shape of a valid bucket name before the
// length, run and IP address checks: lowercase letters, digits, dots and
// hyphens, starting and ending with a letter or digit.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)

// ValidBucketName reports whether name can be used as a bucket: 3 to 63
// characters matching the S3 naming rules, with no dot-dot, dot-dash or
// dash-dot runs, and not shaped like an IP address. Bucket names become
// directory names, so nothing outside this alphabet ever touches the
// filesystem.
func ValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if !bucketNamePattern.MatchString(name) {
		return false
	}
	for _, run := range []string{"..", ".-", "-."} {
		if strings.Contains(name, run) {
			return false
		}
	}
	return net.ParseIP(name) == nil
}

// ValidObjectKey reports whether key is acceptable. The empty key is
// allowed, bucket-level operations use it. Keys map onto paths below
// the bucket directory, so NUL bytes and dot or dot-dot path segments
// are rejected.
func ValidObjectKey(key string) bool {
	if key == "" {
		return true
	}
	if strings.ContainsRune(key, 0) {
		return false
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

// ParsePartNumber parses a partNumber query value: a positive decimal
// integer with no sign.
func ParsePartNumber(s string) (int, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
