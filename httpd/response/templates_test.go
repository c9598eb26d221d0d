/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

const errorTemplate = `<h1>{{ code }} {{ phrase }}</h1><p>{{ description }}</p>`

const listingTemplate = `<h1>{{ dirPath }}</h1>{% for f in files %}<a href="{{ f.Path }}">{{ f.Name }}</a> {{ f.Size }}
{% end %}`

func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ErrorTemplate), []byte(errorTemplate), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ListingTemplate), []byte(listingTemplate), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRenderError(t *testing.T) {
	ts := NewTemplateStore(templateDir(t))
	out, err := ts.RenderError(404, `Not Found`, `/missing.txt`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `404 Not Found`) {
		t.Fatalf("code not rendered: %q", out)
	}
	if !strings.Contains(string(out), `/missing.txt`) {
		t.Fatalf("description not rendered: %q", out)
	}
}

func TestRenderListing(t *testing.T) {
	ts := NewTemplateStore(templateDir(t))
	content := t.TempDir()
	if err := os.WriteFile(filepath.Join(content, `a.txt`), []byte(`aaaa`), 0644); err != nil {
		t.Fatal(err)
	}
	ents, err := os.ReadDir(content)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ts.RenderListing(`/stuff/`, ents)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `/stuff/`) {
		t.Fatalf("path not rendered: %q", out)
	}
	if !strings.Contains(string(out), `a.txt`) {
		t.Fatalf("entry not rendered: %q", out)
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	ts := NewTemplateStore(t.TempDir())
	if _, err := ts.RenderError(500, `Internal Server Error`, ``); err == nil {
		t.Fatal("a missing template file must error")
	}
}

func TestErrorPageFallback(t *testing.T) {
	//with no template store the builder degrades to bare status responses
	b := &Builder{Server: `webserver-test`}
	resp := b.ErrorPage(headers.StatusNotFound, `whatever`)
	if resp.Code != headers.StatusNotFound || resp.Body != nil {
		t.Fatal("no template store means a bare status response")
	}
}
