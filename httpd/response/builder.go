/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
	"github.com/DavidBittner/http-webserver/wslog"
)

// Gateway is the CGI delegate, the builder hands executables off to it
// instead of serving their bytes.
type Gateway interface {
	Run(req *request.Request, fsPath string) (*Response, error)
}

// Builder turns a request plus a resolved filesystem path into a Response.
// It owns the redirect rules, index list, template store and the CGI
// delegate; the connection handler owns everything socket-shaped.
type Builder struct {
	Root      string
	Indexes   []string
	Redirects RuleSet
	Templates *TemplateStore
	Server    string
	CGI       Gateway
	Lg        *wslog.Logger
}

func (b *Builder) respHeaders() headers.HeaderList {
	return headers.ResponseHeaders(b.Server)
}

// Build runs the full decision tree for a GET/HEAD target.
func (b *Builder) Build(req *request.Request, fsPath string) *Response {
	if loc, code, ok := b.Redirects.Match(req.Path); ok {
		return b.Redirect(loc, code)
	}
	fi, err := os.Stat(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return b.negotiate(req, fsPath)
		}
		return b.FsError(err, req.Path)
	}
	if fi.IsDir() {
		if strings.HasSuffix(req.Path, `/`) {
			for _, idx := range b.Indexes {
				cand := filepath.Join(fsPath, idx)
				if cfi, cerr := os.Stat(cand); cerr == nil && cfi.Mode().IsRegular() {
					return b.serveOrDelegate(req, cand)
				}
			}
			return b.listing(req, fsPath)
		}
		return b.Redirect(req.Path+`/`, headers.StatusMovedPermanently)
	}
	return b.serveOrDelegate(req, fsPath)
}

// Redirect builds a bare redirect response.
func (b *Builder) Redirect(loc string, code headers.StatusCode) *Response {
	hl := b.respHeaders()
	hl.SetLocation(loc)
	return New(code, hl)
}

// Delegate runs the CGI gateway for an executable target; POST dispatch
// comes through here.  Non-executables answer 400.
func (b *Builder) Delegate(req *request.Request, fsPath string) *Response {
	fi, err := os.Stat(fsPath)
	if err != nil {
		return b.FsError(err, req.Path)
	}
	if !executable(fi) {
		return b.ErrorPage(headers.StatusBadRequest, `target is not an executable resource`)
	}
	return b.runGateway(req, fsPath)
}

func (b *Builder) serveOrDelegate(req *request.Request, fsPath string) *Response {
	fi, err := os.Stat(fsPath)
	if err != nil {
		return b.FsError(err, req.Path)
	}
	if executable(fi) {
		return b.runGateway(req, fsPath)
	}
	if rng := req.Headers.Get(headers.Range); rng != `` && req.Method == headers.GET {
		return b.ranged(req, fsPath, rng, fi.Size())
	}
	return b.serveFile(req, fsPath, fi)
}

func (b *Builder) runGateway(req *request.Request, fsPath string) *Response {
	if b.CGI == nil {
		return b.ErrorPage(headers.StatusInternalError, `no gateway configured`)
	}
	resp, err := b.CGI.Run(req, fsPath)
	if err != nil {
		if b.Lg != nil {
			b.Lg.Error("cgi gateway failure", wslog.KV("path", fsPath), wslog.KVErr(err))
		}
		return b.ErrorPage(headers.StatusInternalError, `the gateway process failed`)
	}
	return resp
}

func (b *Builder) serveFile(req *request.Request, fsPath string, fi os.FileInfo) *Response {
	fin, err := os.Open(fsPath)
	if err != nil {
		return b.FsError(err, req.Path)
	}
	desc := Describe(fsPath)
	hl := b.respHeaders()
	hl.SetLastModified(fi.ModTime())
	if tag, terr := FileETag(fsPath); terr == nil {
		hl.SetETag(tag)
	}
	hl.SetContent(MediaTypeFor(fsPath, desc), desc.Charset, fi.Size())
	if desc.Language != `` {
		hl.SetContentLanguage(desc.Language)
	}
	if desc.Encoding != `` {
		hl.SetContentEncoding(desc.Encoding)
	}
	resp := New(headers.StatusOK, hl)
	resp.Stream = fin
	return resp
}

// ranged answers a Range request with a single concatenated body covering
// every requested span.  Suffix ranges seek from the end of the file.
func (b *Builder) ranged(req *request.Request, fsPath, rangeHdr string, size int64) *Response {
	rl, err := headers.ParseRangeList(rangeHdr)
	if err != nil {
		return b.ErrorPage(headers.StatusBadRequest, err.Error())
	}
	fin, err := os.Open(fsPath)
	if err != nil {
		return b.FsError(err, req.Path)
	}
	defer fin.Close()

	var body []byte
	var minStart, maxEnd int64
	first := true
	for _, r := range rl.Ranges {
		start := r.Start
		if start < 0 {
			if start = size + r.Start; start < 0 {
				start = 0
			}
		}
		if start >= size {
			return b.ErrorPage(headers.StatusRangeNotSatisfiable, rangeHdr)
		}
		end := size - 1
		if r.HasEnd && r.End < end {
			end = r.End
		}
		if end < start {
			return b.ErrorPage(headers.StatusRangeNotSatisfiable, rangeHdr)
		}
		span := make([]byte, end-start+1)
		if _, err = fin.ReadAt(span, start); err != nil && err != io.EOF {
			return b.FsError(err, req.Path)
		}
		body = append(body, span...)
		if first || start < minStart {
			minStart = start
		}
		if first || end > maxEnd {
			maxEnd = end
		}
		first = false
	}

	desc := Describe(fsPath)
	hl := b.respHeaders()
	hl.SetContentRange(minStart, maxEnd, size)
	hl.SetContent(MediaTypeFor(fsPath, desc), desc.Charset, int64(len(body)))
	resp := New(headers.StatusPartialContent, hl)
	resp.SetBody(body)
	return resp
}

func (b *Builder) negotiate(req *request.Request, fsPath string) *Response {
	best, alts, err := Negotiate(fsPath, req.Headers)
	switch {
	case errors.Is(err, ErrNotAcceptable):
		return b.ErrorPage(headers.StatusNotAcceptable, `no representation satisfies the request preferences`)
	case errors.Is(err, ErrNoMatches):
		return b.ErrorPage(headers.StatusNotFound, req.Path)
	case errors.Is(err, headers.ErrInvalidRankedEntry):
		return b.ErrorPage(headers.StatusBadRequest, err.Error())
	case err != nil:
		return b.FsError(err, req.Path)
	}
	if best != `` {
		return b.serveOrDelegate(req, best)
	}
	resp := b.ErrorPage(headers.StatusMultipleChoices, `multiple representations are available`)
	resp.Headers.Set(headers.Alternates, FormatAlternates(alts))
	return resp
}

func (b *Builder) listing(req *request.Request, fsPath string) *Response {
	ents, err := os.ReadDir(fsPath)
	if err != nil {
		return b.FsError(err, req.Path)
	}
	if b.Templates == nil {
		return New(headers.StatusInternalError, b.respHeaders())
	}
	body, err := b.Templates.RenderListing(req.Path, ents)
	if err != nil {
		if b.Lg != nil {
			b.Lg.Error("listing render failure", wslog.KV("path", fsPath), wslog.KVErr(err))
		}
		return New(headers.StatusInternalError, b.respHeaders())
	}
	hl := b.respHeaders()
	hl.Set(headers.ContentType, `text/html`)
	hl.SetChunkedEncoding()
	if tag, terr := DirETag(fsPath); terr == nil {
		hl.SetETag(tag)
	}
	resp := New(headers.StatusOK, hl)
	resp.Body = body
	return resp
}

// ErrorPage renders the templated error body for any non-success status.  A
// render failure degrades to a plain 500.
func (b *Builder) ErrorPage(code headers.StatusCode, desc string) *Response {
	hl := b.respHeaders()
	if b.Templates == nil {
		return New(code, hl)
	}
	body, err := b.Templates.RenderError(code.Code, code.Phrase, desc)
	if err != nil {
		if b.Lg != nil {
			b.Lg.Error("error template render failure", wslog.KVErr(err))
		}
		return New(headers.StatusInternalError, b.respHeaders())
	}
	hl.Set(headers.ContentType, `text/html`)
	hl.SetChunkedEncoding()
	resp := New(code, hl)
	resp.Body = body
	return resp
}

// FsError maps a filesystem failure onto its canonical status page.
func (b *Builder) FsError(err error, desc string) *Response {
	switch {
	case os.IsPermission(err):
		return b.ErrorPage(headers.StatusForbidden, desc)
	case os.IsNotExist(err):
		return b.ErrorPage(headers.StatusNotFound, desc)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return b.ErrorPage(headers.StatusRequestTimeout, desc)
	}
	return b.ErrorPage(headers.StatusInternalError, desc)
}

func executable(fi os.FileInfo) bool {
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}
