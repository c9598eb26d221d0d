/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cgi

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
)

func testHandler() *Handler {
	return &Handler{
		Root:   `/srv`,
		Port:   8080,
		Server: `webserver-test`,
		Name:   `webserver`,
		Remote: `127.0.0.1`,
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == `windows` {
		t.Skip("shell scripts are not a thing here")
	}
	p := filepath.Join(t.TempDir(), `script`)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func mustRequest(t *testing.T, text string) *request.Request {
	t.Helper()
	r, err := request.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunSimpleScript(t *testing.T) {
	script := writeScript(t, "printf 'Content-Type: text/plain\\n\\nok'")
	req := mustRequest(t, "GET /cgi/hello HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != headers.StatusOK {
		t.Fatalf("got %v", resp.Code)
	}
	if !resp.Headers.Chunked() {
		t.Fatal("cgi responses must be chunked")
	}
	if resp.Headers.Has(headers.ContentLength) {
		t.Fatal("chunked responses must not carry a content length")
	}
	if string(resp.Body) != `ok` {
		t.Fatalf("bad body %q", resp.Body)
	}
	if !resp.Headers.Has(headers.Date) || !resp.Headers.Has(headers.Server) {
		t.Fatal("default headers not merged")
	}
}

func TestRunStatusPassThrough(t *testing.T) {
	script := writeScript(t, "printf 'Status: 404 Gone Fishing\\nContent-Type: text/plain\\n\\nnothing here'")
	req := mustRequest(t, "GET /cgi/x HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code.Code != 404 || resp.Code.Phrase != `Gone Fishing` {
		t.Fatalf("status not passed through: %v", resp.Code)
	}
	if resp.Headers.Has(`status`) {
		t.Fatal("the status pseudo header must not leak into the response")
	}
}

func TestRunLocationPost(t *testing.T) {
	script := writeScript(t, "printf 'Location: /made/thing\\nContent-Type: text/plain\\n\\n'")
	req := mustRequest(t, "POST /cgi/x HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != headers.StatusCreated {
		t.Fatalf("POST with Location must be 201, got %v", resp.Code)
	}

	req = mustRequest(t, "GET /cgi/x HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err = testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != headers.StatusFound {
		t.Fatalf("GET with Location must be 302, got %v", resp.Code)
	}
}

func TestRunNoContentType(t *testing.T) {
	script := writeScript(t, "printf 'X-Whatever: yes\\n\\nbody'")
	req := mustRequest(t, "GET /cgi/x HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Code != headers.StatusInternalError {
		t.Fatalf("no Content-Type must be 500, got %v", resp.Code)
	}
	if resp.Body != nil {
		t.Fatal("no body allowed on the 500 path")
	}
}

func TestRunPayloadPipe(t *testing.T) {
	script := writeScript(t, "printf 'Content-Type: text/plain\\n\\n'; cat")
	req := mustRequest(t, "POST /cgi/x HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\n")
	req.SetPayload([]byte(`hello`))
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != `hello` {
		t.Fatalf("payload did not round trip: %q", resp.Body)
	}
}

func TestRunEnvironment(t *testing.T) {
	script := writeScript(t, "printf 'Content-Type: text/plain\\n\\n'; printf '%s|%s|%s|%s' \"$REQUEST_METHOD\" \"$QUERY_STRING\" \"$SERVER_PROTOCOL\" \"$REMOTE_ADDR\"")
	req := mustRequest(t, "GET /cgi/env?a=1 HTTP/1.1\r\nHost: x\r\n\r\n")
	resp, err := testHandler().Run(req, script)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != `GET|a=1|HTTP/1.1|127.0.0.1` {
		t.Fatalf("environment mangled: %q", resp.Body)
	}
}

func TestRunInvalidStatus(t *testing.T) {
	script := writeScript(t, "printf 'Status: nonsense\\nContent-Type: text/plain\\n\\n'")
	req := mustRequest(t, "GET /cgi/x HTTP/1.1\r\nHost: x\r\n\r\n")
	if _, err := testHandler().Run(req, script); err == nil {
		t.Fatal("a malformed status line must be fatal")
	}
}

func TestSplitOutput(t *testing.T) {
	head, body := splitOutput([]byte("A: 1\r\nB: 2\r\n\r\npayload"))
	if string(head) != "A: 1\r\nB: 2" || string(body) != `payload` {
		t.Fatalf("crlf split broken: %q %q", head, body)
	}
	head, body = splitOutput([]byte("A: 1\n\npayload"))
	if string(head) != `A: 1` || string(body) != `payload` {
		t.Fatalf("lf split broken: %q %q", head, body)
	}
	head, body = splitOutput([]byte("A: 1\n"))
	if body != nil {
		t.Fatal("no blank line means no body")
	}
	if !strings.Contains(string(head), `A: 1`) {
		t.Fatal("head lost")
	}
}
