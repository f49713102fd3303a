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

package sigv4

import (
	"fmt"
	"net/http"
)

// Error is an authentication failure tagged with the S3 error code and
// the HTTP status the front end should report. Every failure produced
// by this package is of this type.
type Error struct {
	// Code is the S3 error code, for example "SignatureDoesNotMatch".
	Code string
	// Status is the HTTP status matching Code.
	Status int
	// Message is the human readable detail for the error document.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

func accessDenied(format string, args ...any) *Error {
	return newError("AccessDenied", http.StatusForbidden, format, args...)
}

func invalidAccessKeyID() *Error {
	return newError("InvalidAccessKeyId", http.StatusForbidden,
		"The AWS Access Key Id you provided does not exist in our records.")
}

func signatureDoesNotMatch() *Error {
	return newError("SignatureDoesNotMatch", http.StatusForbidden,
		"The request signature we calculated does not match the signature you provided. Check your key and signing method.")
}

func queryParametersError(format string, args ...any) *Error {
	return newError("AuthorizationQueryParametersError", http.StatusBadRequest, format, args...)
}

func requestTimeTooSkewed() *Error {
	return newError("RequestTimeTooSkewed", http.StatusForbidden,
		"The difference between the request time and the server's time is too large.")
}

func expiredToken() *Error {
	return newError("ExpiredToken", http.StatusForbidden,
		"The provided token has expired.")
}
