/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
)

func testBuilder(root string) *Builder {
	return &Builder{
		Root:   root,
		Server: `webserver-test`,
	}
}

func getRequest(t *testing.T, path string, extra ...string) *request.Request {
	t.Helper()
	text := "GET " + path + " HTTP/1.1\r\nHost: x\r\n"
	for _, e := range extra {
		text += e + "\r\n"
	}
	text += "\r\n"
	r, err := request.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func bodyOf(t *testing.T, resp *Response) []byte {
	t.Helper()
	if resp.Stream != nil {
		b, err := io.ReadAll(resp.Stream)
		if err != nil {
			t.Fatal(err)
		}
		resp.Stream.Close()
		return b
	}
	return resp.Body
}

func TestBuildPlainFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `hello.txt`), []byte(`hi`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	resp := b.Build(getRequest(t, `/hello.txt`), filepath.Join(root, `hello.txt`))
	if resp.Code != headers.StatusOK {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.ContentType) != `text/plain` {
		t.Fatalf("bad type %q", resp.Headers.Get(headers.ContentType))
	}
	if resp.Headers.Get(headers.ContentLength) != `2` {
		t.Fatalf("bad length %q", resp.Headers.Get(headers.ContentLength))
	}
	if !resp.Headers.Has(headers.LastModified) || !resp.Headers.Has(headers.ETag) {
		t.Fatal("validators missing")
	}
	if string(bodyOf(t, resp)) != `hi` {
		t.Fatal("body mangled")
	}
}

func TestBuildRanged(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `bin`), []byte(`0123456789`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/bin`, `Range: bytes=0-3,-2`)
	resp := b.Build(req, filepath.Join(root, `bin`))
	if resp.Code != headers.StatusPartialContent {
		t.Fatalf("got %v", resp.Code)
	}
	if string(bodyOf(t, resp)) != `012389` {
		t.Fatalf("bad range body %q", bodyOf(t, resp))
	}
	if resp.Headers.Get(headers.ContentRange) != `bytes 0-9/10` {
		t.Fatalf("bad content range %q", resp.Headers.Get(headers.ContentRange))
	}
}

func TestBuildRangeUnsatisfiable(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `bin`), []byte(`012`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/bin`, `Range: bytes=100-200`)
	resp := b.Build(req, filepath.Join(root, `bin`))
	if resp.Code != headers.StatusRangeNotSatisfiable {
		t.Fatalf("got %v", resp.Code)
	}
}

func TestBuildRangeParseFailure(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `bin`), []byte(`012`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/bin`, `Range: pages=1-2`)
	resp := b.Build(req, filepath.Join(root, `bin`))
	if resp.Code != headers.StatusBadRequest {
		t.Fatalf("got %v", resp.Code)
	}
}

func TestBuildDirRedirect(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, `sub`), 0755); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	resp := b.Build(getRequest(t, `/sub`), filepath.Join(root, `sub`))
	if resp.Code != headers.StatusMovedPermanently {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.Location) != `/sub/` {
		t.Fatalf("bad location %q", resp.Headers.Get(headers.Location))
	}
}

func TestBuildIndexLookup(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, `sub`)
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, `index.html`), []byte(`<html/>`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	b.Indexes = []string{`default.html`, `index.html`}
	resp := b.Build(getRequest(t, `/sub/`), sub)
	if resp.Code != headers.StatusOK {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.ContentType) != `text/html` {
		t.Fatalf("index not served: %q", resp.Headers.Get(headers.ContentType))
	}
	if string(bodyOf(t, resp)) != `<html/>` {
		t.Fatal("index body mangled")
	}
}

func TestBuildMissing(t *testing.T) {
	root := t.TempDir()
	b := testBuilder(root)
	resp := b.Build(getRequest(t, `/nothing`), filepath.Join(root, `nothing`))
	if resp.Code != headers.StatusNotFound {
		t.Fatalf("got %v", resp.Code)
	}
}

func TestBuildNegotiated(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `page.en.html`), []byte(`en`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, `page.es.html`), []byte(`es`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/page`, `Accept-Language: es`)
	resp := b.Build(req, filepath.Join(root, `page`))
	if resp.Code != headers.StatusOK {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.ContentLanguage) != `es` {
		t.Fatalf("bad language %q", resp.Headers.Get(headers.ContentLanguage))
	}
	if string(bodyOf(t, resp)) != `es` {
		t.Fatal("wrong representation served")
	}
}

func TestBuildMultipleChoices(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `page.en.html`), []byte(`en`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, `page.es.html`), []byte(`es`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/page`, `Accept-Language: *`)
	resp := b.Build(req, filepath.Join(root, `page`))
	if resp.Code != headers.StatusMultipleChoices {
		t.Fatalf("got %v", resp.Code)
	}
	if !resp.Headers.Has(headers.Alternates) {
		t.Fatal("alternates header missing")
	}
}

func TestBuildNotAcceptable(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `page.en.html`), []byte(`en`), 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	req := getRequest(t, `/page`, `Accept-Language: en;q=0`)
	resp := b.Build(req, filepath.Join(root, `page`))
	if resp.Code != headers.StatusNotAcceptable {
		t.Fatalf("got %v", resp.Code)
	}
}

func TestBuildRedirectRule(t *testing.T) {
	root := t.TempDir()
	rule, err := NewRule(`^/old(/.*)?$`, `/new$1`, 301)
	if err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	b.Redirects = RuleSet{rule}
	resp := b.Build(getRequest(t, `/old/deep/file.txt`), filepath.Join(root, `old`, `deep`, `file.txt`))
	if resp.Code != headers.StatusMovedPermanently {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.Location) != `/new/deep/file.txt` {
		t.Fatalf("bad substitution %q", resp.Headers.Get(headers.Location))
	}
}

func TestBuildLanguageEncodingHeaders(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, `doc.ja.txt.gz`), []byte{0x1f, 0x8b, 0x08}, 0644); err != nil {
		t.Fatal(err)
	}
	b := testBuilder(root)
	resp := b.Build(getRequest(t, `/doc.ja.txt.gz`), filepath.Join(root, `doc.ja.txt.gz`))
	if resp.Code != headers.StatusOK {
		t.Fatalf("got %v", resp.Code)
	}
	if resp.Headers.Get(headers.ContentLanguage) != `ja` {
		t.Fatalf("bad language %q", resp.Headers.Get(headers.ContentLanguage))
	}
	if resp.Headers.Get(headers.ContentEncoding) != `gzip` {
		t.Fatalf("bad encoding %q", resp.Headers.Get(headers.ContentEncoding))
	}
	if resp.Headers.Get(headers.ContentType) != `text/plain` {
		t.Fatalf("bad type %q", resp.Headers.Get(headers.ContentType))
	}
	bodyOf(t, resp)
}
