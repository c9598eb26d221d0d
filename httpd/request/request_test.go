/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package request

import (
	"strings"
	"testing"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

func TestParseSimple(t *testing.T) {
	r, err := Parse("GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if r.Method != headers.GET || r.Path != `/hello.txt` || r.Version != `HTTP/1.1` {
		t.Fatalf("bad parse: %+v", r)
	}
	if r.Headers.Get(headers.Host) != `x` {
		t.Fatal("host header lost")
	}
	if r.Payload() != nil {
		t.Fatal("fresh requests carry no payload")
	}
}

func TestParseQueryAndDecode(t *testing.T) {
	r, err := Parse("GET /a%20dir/file.html?key=val&x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if r.Path != `/a dir/file.html` {
		t.Fatalf("url decoding failed: %q", r.Path)
	}
	if r.Query != `key=val&x=1` {
		t.Fatalf("query lost: %q", r.Query)
	}
}

func TestParseStar(t *testing.T) {
	r, err := Parse("OPTIONS * HTTP/1.1\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if r.Path != `*` || r.Query != `` {
		t.Fatalf("star target mangled: %q %q", r.Path, r.Query)
	}
}

func TestParseAbsoluteForm(t *testing.T) {
	r, err := Parse("GET http://example.com/dir/x.html HTTP/1.1\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if r.Path != `/dir/x.html` {
		t.Fatalf("absolute form mangled: %q", r.Path)
	}
}

func TestParseBadRequestLine(t *testing.T) {
	for _, s := range []string{"GET /\r\n\r\n", "GET / HTTP/1.1 extra\r\n\r\n", "\r\n\r\n"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestParseBadHeaderPropagates(t *testing.T) {
	if _, err := Parse("GET / HTTP/1.1\r\nBroken Header\r\n\r\n"); err == nil {
		t.Fatal("header errors must fail the request parse")
	}
}

func TestPayloadOnce(t *testing.T) {
	r, err := Parse("PUT /up.txt HTTP/1.1\r\nContent-Length: 3\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if err = r.SetPayload([]byte(`abc`)); err != nil {
		t.Fatal(err)
	}
	if err = r.SetPayload([]byte(`def`)); err == nil {
		t.Fatal("payload must only attach once")
	}
	if string(r.Payload()) != `abc` {
		t.Fatal("payload lost")
	}
}

func TestFormatEcho(t *testing.T) {
	r, err := Parse("GET /x HTTP/1.1\r\nHost: h\r\nUser-Agent: t\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	out := r.Format()
	if !strings.HasPrefix(out, "GET /x HTTP/1.1\r\n") {
		t.Fatalf("bad echo prefix: %q", out)
	}
	if !strings.Contains(out, "Host: h\r\n") || !strings.Contains(out, "User-Agent: t\r\n") {
		t.Fatalf("headers missing from echo: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Fatal("echo must end with a blank line")
	}
}
