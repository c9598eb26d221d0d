/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package request turns the raw bytes of an HTTP/1.1 request head into a
// typed Request value.  Body bytes are attached later by the connection
// handler once Content-Length is known.
package request

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

var (
	ErrMalformedRequestLine = errors.New("request line is not three tokens")
	ErrBadURL               = errors.New("request URL failed to parse")
	ErrPayloadAlreadySet    = errors.New("payload may only be attached once")
)

// Request is immutable after construction except for the single SetPayload
// call the connection handler makes when body bytes arrive.
type Request struct {
	Method  headers.Method
	Path    string
	Query   string
	Version string
	Headers headers.HeaderList

	payload    []byte
	payloadSet bool
}

// Parse consumes the request text up to and including the blank line
// terminator.  The returned Request carries no payload.
func Parse(text string) (r *Request, err error) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		err = ErrMalformedRequestLine
		return
	}
	verbs := strings.Fields(strings.TrimRight(lines[0], "\r"))
	if len(verbs) != 3 {
		err = fmt.Errorf("%w: %q", ErrMalformedRequestLine, strings.TrimRight(lines[0], "\r"))
		return
	}

	hdrs, err := headers.Parse(strings.Join(lines[1:], "\n"))
	if err != nil {
		return nil, err
	}

	m, err := headers.ParseMethod(verbs[0])
	if err != nil {
		return nil, err
	}

	path, query, err := splitURL(verbs[1], hdrs.Get(headers.Host))
	if err != nil {
		return nil, err
	}

	r = &Request{
		Method:  m,
		Path:    path,
		Query:   query,
		Version: verbs[2],
		Headers: hdrs,
	}
	return
}

// splitURL decodes the request target.  `*` passes through untouched, any
// other form is resolved against the Host header when one was supplied.
func splitURL(raw, host string) (path, query string, err error) {
	if raw == `*` {
		path = `*`
		return
	}
	var u *url.URL
	if host != `` {
		var base, ref *url.URL
		if base, err = url.Parse(`http://` + host + `/`); err != nil {
			err = fmt.Errorf("%w: %v", ErrBadURL, err)
			return
		}
		if ref, err = url.Parse(raw); err != nil {
			err = fmt.Errorf("%w: %v", ErrBadURL, err)
			return
		}
		u = base.ResolveReference(ref)
	} else {
		if u, err = url.Parse(raw); err != nil {
			err = fmt.Errorf("%w: %v", ErrBadURL, err)
			return
		}
	}
	path = u.Path
	query = u.RawQuery
	return
}

// SetPayload attaches length-delimited body bytes, it may be called at most
// once and only by the connection handler.
func (r *Request) SetPayload(b []byte) error {
	if r.payloadSet {
		return ErrPayloadAlreadySet
	}
	r.payload = b
	r.payloadSet = true
	return nil
}

// Payload returns the attached body bytes, nil when the request had none.
func (r *Request) Payload() []byte {
	return r.payload
}

// RequestLine rebuilds the first line from the parsed method, the decoded
// path and the version; the query string is not included.  This is what
// lands in the access log and the TRACE echo.
func (r *Request) RequestLine() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.Path, r.Version)
}

// Format renders the request head back to wire form, TRACE responses echo
// this as a message/http body.
func (r *Request) Format() string {
	var sb strings.Builder
	sb.WriteString(r.RequestLine())
	sb.WriteString("\r\n")
	sb.WriteString(r.Headers.Format())
	sb.WriteString("\r\n")
	return sb.String()
}

func (r *Request) String() string {
	return r.Format()
}
