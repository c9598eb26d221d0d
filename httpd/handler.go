/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package httpd

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/dchest/safefile"
	"github.com/google/uuid"

	"github.com/DavidBittner/http-webserver/httpd/auth"
	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
	"github.com/DavidBittner/http-webserver/httpd/response"
	"github.com/DavidBittner/http-webserver/wslog"
)

// AccessLogPath is the root-relative path the live access log is served on.
const AccessLogPath = `/.well-known/access.log`

// connHandler owns one accepted connection: its buffer, its deadlines, and
// the request/response loop.  Nothing in here is shared except the auth
// cache and the access log, both of which manage their own locking.
type connHandler struct {
	srv    *Server
	c      net.Conn
	id     uuid.UUID
	remote string //client IP without the port
	buf    []byte
	bld    response.Builder
}

func newConnHandler(srv *Server, c net.Conn) *connHandler {
	remote := c.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	h := &connHandler{
		srv:    srv,
		c:      c,
		id:     uuid.New(),
		remote: remote,
		bld:    srv.builderFor(remote),
	}
	return h
}

// run drives the connection loop to completion; per-request errors become
// error responses and the loop continues, per-connection errors end it.
func (h *connHandler) run() {
	defer h.c.Close()
	lg := h.srv.lg
	lg.Debug("connection accepted", wslog.KV("conn", h.id), wslog.KV("remote", h.remote))
	for {
		head, err := h.readRequestHead()
		if err != nil {
			if err == io.EOF {
				lg.Debug("connection closed by peer", wslog.KV("conn", h.id))
			} else if err == ErrTimedOut {
				lg.Debug("connection idle timeout", wslog.KV("conn", h.id))
			} else if err == ErrRequestTooLarge {
				h.respond(nil, ``, h.bld.ErrorPage(headers.StatusBadRequest, `request too large`), headers.ConnClose)
			} else {
				lg.Warn("connection read failure", wslog.KV("conn", h.id), wslog.KVErr(err))
			}
			return
		}

		req, perr := request.Parse(string(head))
		if perr != nil {
			lg.Info("request parse failure", wslog.KV("conn", h.id), wslog.KVErr(perr))
			h.respond(nil, ``, h.bld.ErrorPage(headers.StatusBadRequest, perr.Error()), headers.ConnClose)
			return
		}

		if cl := req.Headers.GetContentLength(); cl > 0 {
			if cl > h.srv.cfg.MaxRequestSize {
				h.respond(req, ``, h.bld.ErrorPage(headers.StatusBadRequest, `payload too large`), headers.ConnClose)
				return
			}
			body, berr := h.readBody(cl)
			if berr != nil {
				lg.Info("payload read failure", wslog.KV("conn", h.id), wslog.KVErr(berr))
				return
			}
			req.SetPayload(body)
		}

		resp, user := h.dispatch(req)
		conn := req.Headers.GetConnection()
		if !h.respond(req, user, resp, conn) {
			return
		}
		if conn == headers.ConnClose {
			return
		}
	}
}

// respond forces the connection disposition, writes the response under the
// write budget, and pushes the access log entry.  It reports whether the
// connection is still healthy.
func (h *connHandler) respond(req *request.Request, user string, resp *response.Response, conn headers.ConnectionOpt) bool {
	resp.Headers.SetConnection(conn)
	bw := budgetWriter{c: h.c, timeout: h.srv.cfg.WriteTimeout}
	err := resp.Write(bw)
	remote := h.remote
	h.srv.accessLog.Append(NewLogEntry(remote, user, req, resp))
	if err != nil {
		h.srv.lg.Warn("response write failure", wslog.KV("conn", h.id), wslog.KVErr(err))
		return false
	}
	return true
}

// readRequestHead accumulates socket reads until the end-of-headers marker
// appears, leaving anything past the marker buffered for the body or the
// next request.
func (h *connHandler) readRequestHead() ([]byte, error) {
	br := budgetReader{c: h.c, timeout: h.srv.cfg.ReadTimeout}
	scratch := make([]byte, scratchSize)
	for {
		if hd, rest := findTerminator(h.buf); hd >= 0 {
			head := make([]byte, hd)
			copy(head, h.buf[:hd])
			h.buf = append(h.buf[:0], h.buf[rest:]...)
			return head, nil
		}
		if int64(len(h.buf)) > h.srv.cfg.MaxRequestSize {
			return nil, ErrRequestTooLarge
		}
		n, err := br.read(scratch)
		if n > 0 {
			h.buf = append(h.buf, scratch[:n]...)
			continue
		}
		if err == io.EOF && len(h.buf) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
}

// readBody satisfies a Content-Length from the buffered tail plus further
// reads until exactly n bytes are collected.
func (h *connHandler) readBody(n int64) ([]byte, error) {
	br := budgetReader{c: h.c, timeout: h.srv.cfg.ReadTimeout}
	body := make([]byte, 0, n)
	if int64(len(h.buf)) >= n {
		body = append(body, h.buf[:n]...)
		h.buf = append(h.buf[:0], h.buf[n:]...)
		return body, nil
	}
	body = append(body, h.buf...)
	h.buf = h.buf[:0]
	scratch := make([]byte, scratchSize)
	for int64(len(body)) < n {
		want := n - int64(len(body))
		if want > int64(len(scratch)) {
			want = int64(len(scratch))
		}
		rn, err := br.read(scratch[:want])
		if rn > 0 {
			body = append(body, scratch[:rn]...)
			continue
		}
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// sterilize joins the request path onto the document root; anything that
// escapes the root is refused outright.
func (h *connHandler) sterilize(reqPath string) (fsPath string, ok bool) {
	root := h.srv.cfg.Root
	if reqPath == `*` {
		return root, true
	}
	fsPath = filepath.Join(root, strings.TrimPrefix(reqPath, `/`))
	if fsPath != root && !strings.HasPrefix(fsPath, root+string(filepath.Separator)) {
		return ``, false
	}
	return fsPath, true
}

// dispatch maps one parsed request to its response, returning the
// authenticated user (if any) for the access log.
func (h *connHandler) dispatch(req *request.Request) (resp *response.Response, user string) {
	if req.Version != `HTTP/1.1` {
		resp = h.bld.ErrorPage(headers.StatusVersionNotSupported, req.Version)
		return
	}

	//the live access log is served before auth runs, deployments that care
	//should firewall it
	if req.Path == AccessLogPath && (req.Method == headers.GET || req.Method == headers.HEAD) {
		resp = h.accessLogResponse(req)
		return
	}

	fsPath, ok := h.sterilize(req.Path)
	if !ok {
		resp = h.bld.ErrorPage(headers.StatusForbidden, req.Path)
		return
	}

	af, err := auth.Discover(fsPath, h.srv.cfg.Root, h.srv.cfg.AuthFileName)
	if err != nil {
		h.srv.lg.Error("access file failure", wslog.KV("path", fsPath), wslog.KVErr(err))
		resp = h.bld.ErrorPage(headers.StatusInternalError, `access control failure`)
		return
	}
	res := auth.Verify(af, req)
	switch res.Verdict {
	case auth.MethodNotAllowed:
		resp = h.bld.ErrorPage(headers.StatusMethodNotAllowed, req.Method.String())
		resp.Headers.SetAllow(af.Methods())
		return
	case auth.Failed:
		if errors.Is(res.Err, auth.ErrUnsupportedQop) {
			h.srv.lg.Info("digest credential with unsupported qop rejected",
				wslog.KV("remote", h.remote), wslog.KVErr(res.Err))
			resp = h.bld.ErrorPage(headers.StatusBadRequest, `unsupported digest qop`)
			return
		}
		h.srv.lg.Debug("authentication failed", wslog.KV("remote", h.remote), wslog.KVErr(res.Err))
		resp = h.bld.ErrorPage(headers.StatusUnauthorized, `authentication is required`)
		resp.Headers.SetAuthenticate(auth.Challenge(af, h.srv.cfg.AuthPrivateKey))
		return
	}
	user = res.User

	switch req.Method {
	case headers.GET, headers.HEAD:
		resp = h.getResponse(req, fsPath)
	case headers.OPTIONS:
		resp = h.optionsResponse(af)
	case headers.TRACE:
		resp = h.traceResponse(req)
	case headers.PUT:
		resp = h.putResponse(req, fsPath)
	case headers.DELETE:
		resp = h.deleteResponse(req, fsPath)
	case headers.POST:
		resp = h.bld.Delegate(req, fsPath)
	default:
		resp = h.bld.ErrorPage(headers.StatusNotImplemented, req.Method.String())
	}
	if res.Info != `` && resp.Code.Success() {
		resp.Headers.SetAuthenticationInfo(res.Info)
	}
	return
}

func (h *connHandler) getResponse(req *request.Request, fsPath string) *response.Response {
	var etag string
	if fi, err := os.Stat(fsPath); err == nil {
		if fi.IsDir() {
			etag, _ = response.DirETag(fsPath)
		} else {
			etag, _ = response.FileETag(fsPath)
		}
	}
	switch headers.CheckPreconditions(req.Headers, fsPath, etag, req.Method) {
	case headers.PrecondNotModified:
		hl := headers.ResponseHeaders(h.srv.cfg.Server)
		if etag != `` {
			hl.SetETag(etag)
		}
		return response.New(headers.StatusNotModified, hl)
	case headers.PrecondFailed:
		return h.bld.ErrorPage(headers.StatusPreconditionFailed, req.Path)
	}
	resp := h.bld.Build(req, fsPath)
	if req.Method == headers.HEAD {
		resp.DropBody()
	}
	return resp
}

func (h *connHandler) optionsResponse(af *auth.AuthFile) *response.Response {
	hl := headers.ResponseHeaders(h.srv.cfg.Server)
	allowed := []headers.Method{headers.POST, headers.GET, headers.TRACE, headers.HEAD}
	if af != nil {
		if af.AllowPut {
			allowed = append(allowed, headers.PUT)
		}
		if af.AllowDelete {
			allowed = append(allowed, headers.DELETE)
		}
	}
	hl.SetAllow(allowed)
	hl.Set(headers.ContentLength, `0`)
	return response.New(headers.StatusOK, hl)
}

func (h *connHandler) traceResponse(req *request.Request) *response.Response {
	hl := headers.ResponseHeaders(h.srv.cfg.Server)
	hl.Set(headers.ContentType, `message/http`)
	resp := response.New(headers.StatusOK, hl)
	resp.SetBody([]byte(req.Format()))
	return resp
}

func (h *connHandler) putResponse(req *request.Request, fsPath string) *response.Response {
	payload := req.Payload()
	if len(payload) == 0 {
		return h.bld.ErrorPage(headers.StatusBadRequest, `a payload is required`)
	}
	_, serr := os.Stat(fsPath)
	existed := serr == nil

	sf, err := safefile.Create(fsPath, 0644)
	if err != nil {
		return h.putError(err, req.Path)
	}
	if _, err = sf.Write(payload); err != nil {
		sf.Close()
		return h.putError(err, req.Path)
	}
	if err = sf.Commit(); err != nil {
		sf.Close()
		return h.putError(err, req.Path)
	}

	code := headers.StatusCreated
	if existed {
		code = headers.StatusOK
	}
	hl := headers.ResponseHeaders(h.srv.cfg.Server)
	hl.Set(headers.ContentLength, `0`)
	return response.New(code, hl)
}

func (h *connHandler) putError(err error, desc string) *response.Response {
	if os.IsPermission(err) {
		return h.bld.ErrorPage(headers.StatusForbidden, desc)
	}
	return h.bld.ErrorPage(headers.StatusInternalError, desc)
}

func (h *connHandler) deleteResponse(req *request.Request, fsPath string) *response.Response {
	err := os.Remove(fsPath)
	switch {
	case err == nil || os.IsNotExist(err):
		hl := headers.ResponseHeaders(h.srv.cfg.Server)
		hl.Set(headers.ContentType, `text/plain`)
		resp := response.New(headers.StatusOK, hl)
		resp.SetBody([]byte("deleted\n"))
		return resp
	case os.IsPermission(err):
		return h.bld.ErrorPage(headers.StatusForbidden, req.Path)
	}
	return h.bld.ErrorPage(headers.StatusInternalError, req.Path)
}

func (h *connHandler) accessLogResponse(req *request.Request) *response.Response {
	hl := headers.ResponseHeaders(h.srv.cfg.Server)
	hl.Set(headers.ContentType, `text/plain`)
	resp := response.New(headers.StatusOK, hl)
	resp.SetBody(h.srv.accessLog.Format())
	if req.Method == headers.HEAD {
		resp.DropBody()
	}
	return resp
}
