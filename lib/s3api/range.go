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
	"errors"
	"math"
	"strconv"
	"strings"
)

// byteRange is an inclusive byte span within an object.
type byteRange struct {
	start int64
	end   int64
}

// errUnsatisfiableRange reports a well-formed Range the object cannot
// serve, which becomes a bare 416 with a Content-Range summary.
var errUnsatisfiableRange = errors.New("requested range not satisfiable")

// parseRange interprets a Range header against an object of the given
// size. Absent, foreign and malformed headers are ignored, the whole
// object is served with a 200 ((nil, nil) here). Supported forms are
// bytes=N-, bytes=N-M and bytes=-N; multi-range requests are treated as
// malformed. Any well-formed range against an empty object, a start at
// or past the end of the object, a start after the end bound, and an
// empty suffix are unsatisfiable.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}
	if strings.ContainsAny(last, "-,") || strings.Contains(first, ",") {
		return nil, nil
	}

	switch {
	case first == "" && last == "":
		return nil, nil
	case first == "":
		n, ok := parseRangeBound(last)
		if !ok {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, end: size - 1}, nil
	default:
		start, ok := parseRangeBound(first)
		if !ok {
			return nil, nil
		}
		if start >= size {
			return nil, errUnsatisfiableRange
		}
		if last == "" {
			return &byteRange{start: start, end: size - 1}, nil
		}
		end, ok := parseRangeBound(last)
		if !ok {
			return nil, nil
		}
		if start > end {
			return nil, errUnsatisfiableRange
		}
		if end >= size {
			end = size - 1
		}
		return &byteRange{start: start, end: end}, nil
	}
}

// parseRangeBound parses one decimal range bound, saturating values too
// large for an int64 so oversized bounds behave as "past the end"
// rather than as malformed syntax.
func parseRangeBound(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return math.MaxInt64, true
	}
	return n, true
}
