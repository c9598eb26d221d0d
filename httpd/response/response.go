/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package response composes HTTP responses: status line, headers, body, and
// the two serialisation forms (length-delimited and chunked).  The Builder
// type implements the full decision tree for turning a request plus a
// resolved filesystem path into a Response.
package response

import (
	"fmt"
	"io"
	"strconv"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

// ChunkSize is the chunked-transfer segment size.
const ChunkSize = 2048

// Response is constructed by the builder and consumed exactly once by the
// connection handler when written.  Body and Stream are mutually exclusive;
// a Stream is the streaming producer for large files.
type Response struct {
	Code    headers.StatusCode
	Headers headers.HeaderList
	Body    []byte
	Stream  io.ReadCloser
}

func New(code headers.StatusCode, hl headers.HeaderList) *Response {
	return &Response{Code: code, Headers: hl}
}

// SetBody attaches a fully buffered body and stamps Content-Length unless
// the response is chunked.
func (r *Response) SetBody(b []byte) {
	r.Body = b
	if !r.Headers.Chunked() {
		r.Headers.Set(headers.ContentLength, strconv.Itoa(len(b)))
	}
}

// DropBody strips the payload while leaving the representation headers
// intact, HEAD responses go through here.
func (r *Response) DropBody() {
	if r.Stream != nil {
		r.Stream.Close()
		r.Stream = nil
	}
	r.Body = nil
}

// Write serialises the response.  Chunked responses are framed as hex
// size-prefixed segments terminated by a zero segment; everything else is
// length delimited.  The writer is expected to enforce its own deadline
// budget.
func (r *Response) Write(w io.Writer) (err error) {
	chunked := r.Headers.Chunked()
	if !chunked && r.Body != nil && !r.Headers.Has(headers.ContentLength) {
		r.Headers.Set(headers.ContentLength, strconv.Itoa(len(r.Body)))
	}
	if _, err = fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n%s\r\n", r.Code.Code, r.Code.Phrase, r.Headers.Format()); err != nil {
		return
	}
	if chunked {
		return r.writeChunked(w)
	}
	return r.writePlain(w)
}

func (r *Response) writePlain(w io.Writer) (err error) {
	if r.Stream != nil {
		defer r.Stream.Close()
		_, err = io.Copy(w, r.Stream)
		return
	}
	if len(r.Body) > 0 {
		_, err = w.Write(r.Body)
	}
	return
}

func (r *Response) writeChunked(w io.Writer) (err error) {
	src := r.Stream
	if src == nil {
		src = nopReadCloser{bytesReader(r.Body)}
	}
	defer src.Close()
	buff := make([]byte, ChunkSize)
	for {
		var n int
		n, err = io.ReadFull(src, buff)
		if n > 0 {
			if _, werr := fmt.Fprintf(w, "%x\r\n", n); werr != nil {
				return werr
			}
			if _, werr := w.Write(buff[:n]); werr != nil {
				return werr
			}
			if _, werr := io.WriteString(w, "\r\n"); werr != nil {
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return
		}
	}
	_, err = io.WriteString(w, "0\r\n\r\n")
	return
}

type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error { return nil }

type sliceReader struct {
	b []byte
}

func bytesReader(b []byte) *sliceReader {
	return &sliceReader{b: b}
}

func (sr *sliceReader) Read(p []byte) (n int, err error) {
	if len(sr.b) == 0 {
		return 0, io.EOF
	}
	n = copy(p, sr.b)
	sr.b = sr.b[n:]
	return
}
