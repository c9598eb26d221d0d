/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package cgi treats an executable file as a dynamic resource: it spawns the
// target with a conventional RFC 3875 environment, pipes the request payload
// in, and reads an HTTP-shaped reply back out of its stdout.
package cgi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/DavidBittner/http-webserver/httpd/auth"
	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
	"github.com/DavidBittner/http-webserver/httpd/response"
	"github.com/DavidBittner/http-webserver/wslog"
)

var (
	ErrNoStdin        = errors.New("could not open stdin stream")
	ErrBadHeaderBytes = errors.New("script headers are not valid utf-8")
	ErrInvalidStatus  = errors.New("script returned an invalid status line")
)

// Handler is the per-connection gateway; Remote distinguishes it from the
// otherwise shared configuration.
type Handler struct {
	Root   string
	Port   uint16
	Server string //SERVER_SOFTWARE value
	Name   string //SERVER_NAME value
	Remote string //client address without port
	Lg     *wslog.Logger
}

// Run spawns the executable and converts its output into a Response.
func (h *Handler) Run(req *request.Request, fsPath string) (*response.Response, error) {
	cmd := exec.Command(fsPath)
	cmd.Env = append(os.Environ(), h.environment(req, fsPath)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ErrNoStdin
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if h.Lg != nil {
		h.Lg.Debug("running cgi script", wslog.KV("path", fsPath))
	}
	if err = cmd.Start(); err != nil {
		stdin.Close()
		return nil, err
	}
	if p := req.Payload(); len(p) > 0 {
		if _, err = stdin.Write(p); err != nil {
			stdin.Close()
			cmd.Wait()
			return nil, err
		}
	}
	stdin.Close()
	if err = cmd.Wait(); err != nil {
		return nil, err
	}
	return h.createResponse(req, stdout.Bytes())
}

// createResponse splits the script output at the first blank line, parses
// the header block, and applies the status selection policy.
func (h *Handler) createResponse(req *request.Request, out []byte) (*response.Response, error) {
	headBlock, body := splitOutput(out)
	if !utf8.Valid(headBlock) {
		return nil, ErrBadHeaderBytes
	}
	hl, err := headers.Parse(string(headBlock))
	if err != nil {
		return nil, err
	}

	var status *headers.StatusCode
	if raw := hl.Get(`status`); raw != `` {
		idx := strings.Index(raw, ` `)
		if idx <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
		}
		code, cerr := strconv.Atoi(strings.TrimSpace(raw[:idx]))
		if cerr != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
		}
		sc := headers.Custom(strings.TrimSpace(raw[idx+1:]), code)
		status = &sc
	}
	hl.Delete(`status`)
	hl.SetChunkedEncoding()
	hl.Merge(headers.ResponseHeaders(h.Server))

	switch {
	case hl.Has(headers.Location):
		code := headers.StatusFound
		if req.Method == headers.POST {
			code = headers.StatusCreated
		}
		if status != nil {
			code = *status
		}
		resp := response.New(code, hl)
		resp.Body = body
		return resp, nil
	case !hl.Has(headers.ContentType):
		code := headers.StatusInternalError
		if status != nil {
			code = *status
		}
		return response.New(code, hl), nil
	}
	code := headers.StatusOK
	if status != nil {
		code = *status
	}
	resp := response.New(code, hl)
	resp.Body = body
	return resp, nil
}

// splitOutput divides raw script output into the header block and the body
// at the first blank line, tolerating both CRLF and bare LF scripts.
func splitOutput(out []byte) (head, body []byte) {
	if idx := bytes.Index(out, []byte("\r\n\r\n")); idx >= 0 {
		return out[:idx], out[idx+4:]
	}
	if idx := bytes.Index(out, []byte("\n\n")); idx >= 0 {
		return out[:idx], out[idx+2:]
	}
	return out, nil
}

func (h *Handler) environment(req *request.Request, fsPath string) []string {
	name := filepath.Base(req.Path)
	stemmed := name
	if idx := strings.LastIndexByte(stemmed, '.'); idx > 0 {
		stemmed = stemmed[:idx]
	}
	var authType, remoteUser string
	if raw := req.Headers.Get(headers.Authorization); raw != `` {
		if sa, err := auth.ParseSupplied(raw); err == nil {
			authType, remoteUser = sa.Info()
		}
	}
	return []string{
		`SCRIPT_NAME=` + stemmed,
		`SCRIPT_URI=` + req.Path,
		`SCRIPT_FILENAME=` + name,
		`QUERY_STRING=` + req.Query,
		`CONTENT_LENGTH=` + contentLength(req),
		`CONTENT_TYPE=` + req.Headers.Get(headers.ContentType),
		`PATH_INFO=` + req.Path,
		`PATH_TRANSLATED=` + fsPath,
		`REMOTE_ADDR=` + h.Remote,
		`REMOTE_HOST=` + h.Remote,
		`REQUEST_METHOD=` + req.Method.String(),
		`SERVER_PROTOCOL=HTTP/1.1`,
		`HTTP_USER_AGENT=` + req.Headers.Get(headers.UserAgent),
		`AUTH_TYPE=` + authType,
		`SERVER_PORT=` + strconv.Itoa(int(h.Port)),
		`SERVER_SOFTWARE=` + h.Server,
		`SERVER_NAME=` + h.Name,
		`REMOTE_USER=` + remoteUser,
	}
}

func contentLength(req *request.Request) string {
	if v := req.Headers.Get(headers.ContentLength); v != `` {
		return v
	}
	return `0`
}
