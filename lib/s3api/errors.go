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
	"net/http"

	"github.com/gravitational/trace"

	"github.com/quayside/berth/lib/sigv4"
)

// Error is the S3 error document. It travels through the handlers as a
// Go error and encodes to the response body verbatim, so messages must
// never carry paths or other internals.
type Error struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
	// HTTPStatus is the response status Code maps to.
	HTTPStatus int `xml:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code string, status int, message string) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: message}
}

func errInvalidBucketName() *Error {
	return newError("InvalidBucketName", http.StatusBadRequest,
		"The specified bucket is not valid.")
}

func errInvalidObjectKey() *Error {
	return newError("InvalidObjectKey", http.StatusBadRequest,
		"Object key contains forbidden path components.")
}

func errInvalidRequest(message string) *Error {
	return newError("InvalidRequest", http.StatusBadRequest, message)
}

func errInvalidPart(message string) *Error {
	return newError("InvalidPart", http.StatusBadRequest, message)
}

func errMalformedXML() *Error {
	return newError("MalformedXML", http.StatusBadRequest,
		"The XML you provided was not well-formed or did not validate against our published schema.")
}

func errEntityTooLarge() *Error {
	return newError("EntityTooLarge", http.StatusRequestEntityTooLarge,
		"Your proposed upload exceeds the maximum allowed size.")
}

func errMethodNotAllowed() *Error {
	return newError("MethodNotAllowed", http.StatusMethodNotAllowed,
		"The specified method is not allowed against this resource.")
}

func errNoSuchKey() *Error {
	return newError("NoSuchKey", http.StatusNotFound,
		"The specified key does not exist.")
}

func errNoSuchUpload() *Error {
	return newError("NoSuchUpload", http.StatusNotFound,
		"The specified upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed.")
}

func errInternal() *Error {
	return newError("InternalError", http.StatusInternalServerError,
		"We encountered an internal error. Please try again.")
}

// convertObjectError translates storage failures from single-object
// operations. A missing backing file means the key does not exist.
func convertObjectError(err error) error {
	if trace.IsNotFound(err) {
		return errNoSuchKey()
	}
	return trace.Wrap(err)
}

// convertMultipartError translates storage failures from multipart
// operations, where NotFound refers to the session rather than the key
// and parameter problems report the offending part.
func convertMultipartError(err error) error {
	if trace.IsNotFound(err) {
		return errNoSuchUpload()
	}
	if trace.IsBadParameter(err) {
		return errInvalidPart(trace.UserMessage(err))
	}
	return trace.Wrap(err)
}

// toErrorDocument folds any handler error into the document to encode.
// Unrecognized errors collapse into InternalError, no implementation
// detail may leak into a response body.
func toErrorDocument(err error) *Error {
	var s3err *Error
	if errors.As(err, &s3err) {
		return s3err
	}
	var sigErr *sigv4.Error
	if errors.As(err, &sigErr) {
		return newError(sigErr.Code, sigErr.Status, sigErr.Message)
	}
	if errors.Is(err, errBodyTooLarge) {
		return errEntityTooLarge()
	}
	return errInternal()
}
