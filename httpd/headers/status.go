/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package headers

import (
	"errors"
	"fmt"
)

// StatusCode pairs the numeric code with its reason phrase.  The Custom
// constructor exists so CGI scripts can pass through responses the server
// itself never emits.
type StatusCode struct {
	Code   int
	Phrase string
}

var (
	StatusOK                  = StatusCode{200, `OK`}
	StatusCreated             = StatusCode{201, `Created`}
	StatusPartialContent      = StatusCode{206, `Partial Content`}
	StatusMultipleChoices     = StatusCode{300, `Multiple Choices`}
	StatusMovedPermanently    = StatusCode{301, `Moved Permanently`}
	StatusFound               = StatusCode{302, `Found`}
	StatusNotModified         = StatusCode{304, `Not Modified`}
	StatusBadRequest          = StatusCode{400, `Bad Request`}
	StatusUnauthorized        = StatusCode{401, `Unauthorized`}
	StatusForbidden           = StatusCode{403, `Forbidden`}
	StatusNotFound            = StatusCode{404, `Not Found`}
	StatusMethodNotAllowed    = StatusCode{405, `Method Not Allowed`}
	StatusNotAcceptable       = StatusCode{406, `Not Acceptable`}
	StatusRequestTimeout      = StatusCode{408, `Request Timeout`}
	StatusPreconditionFailed  = StatusCode{412, `Precondition Failed`}
	StatusRangeNotSatisfiable = StatusCode{416, `Range Not Satisfiable`}
	StatusInternalError       = StatusCode{500, `Internal Server Error`}
	StatusNotImplemented      = StatusCode{501, `Not Implemented`}
	StatusVersionNotSupported = StatusCode{505, `HTTP Version Not Supported`}
)

var (
	ErrUnknownStatusCode = errors.New("unknown status code")

	statusSet = []StatusCode{
		StatusOK, StatusCreated, StatusPartialContent, StatusMultipleChoices,
		StatusMovedPermanently, StatusFound, StatusNotModified,
		StatusBadRequest, StatusUnauthorized, StatusForbidden,
		StatusNotFound, StatusMethodNotAllowed, StatusNotAcceptable,
		StatusRequestTimeout, StatusPreconditionFailed,
		StatusRangeNotSatisfiable, StatusInternalError,
		StatusNotImplemented, StatusVersionNotSupported,
	}
)

// Custom builds a pass-through status for CGI Status pseudo-headers.
func Custom(phrase string, code int) StatusCode {
	return StatusCode{Code: code, Phrase: phrase}
}

// StatusFromCode maps a numeric code back onto the closed enumeration, it is
// used when loading redirect rules from configuration.
func StatusFromCode(code int) (StatusCode, error) {
	for _, sc := range statusSet {
		if sc.Code == code {
			return sc, nil
		}
	}
	return StatusCode{}, fmt.Errorf("%w: %d", ErrUnknownStatusCode, code)
}

func (sc StatusCode) String() string {
	return fmt.Sprintf("%d %s", sc.Code, sc.Phrase)
}

// Success is true for the 2xx family.
func (sc StatusCode) Success() bool {
	return sc.Code >= 200 && sc.Code < 300
}
