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
	"regexp"
	"testing"
)

var etagForm = regexp.MustCompile(`^"[0-9a-f]{16}"$`)

func TestFileETagForm(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, `a.txt`)
	if err := os.WriteFile(p, []byte(`hello`), 0644); err != nil {
		t.Fatal(err)
	}
	tag, err := FileETag(p)
	if err != nil {
		t.Fatal(err)
	}
	if !etagForm.MatchString(tag) {
		t.Fatalf("etag is not a quoted hex string: %q", tag)
	}
}

func TestFileETagStability(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, `a.txt`)
	if err := os.WriteFile(p, []byte(`hello`), 0644); err != nil {
		t.Fatal(err)
	}
	tag1, err := FileETag(p)
	if err != nil {
		t.Fatal(err)
	}
	tag2, err := FileETag(p)
	if err != nil {
		t.Fatal(err)
	}
	if tag1 != tag2 {
		t.Fatal("etag must be stable for an unchanged file")
	}
}

func TestFileETagContentSensitivity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, `a.txt`)
	b := filepath.Join(dir, `b.txt`)
	if err := os.WriteFile(a, []byte(`one`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(`two`), 0644); err != nil {
		t.Fatal(err)
	}
	ta, err := FileETag(a)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := FileETag(b)
	if err != nil {
		t.Fatal(err)
	}
	if ta == tb {
		t.Fatal("different files must not share a tag")
	}
}

func TestDirETag(t *testing.T) {
	dir := t.TempDir()
	tag, err := DirETag(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !etagForm.MatchString(tag) {
		t.Fatalf("dir etag is not a quoted hex string: %q", tag)
	}
}

func TestFileETagMissing(t *testing.T) {
	if _, err := FileETag(filepath.Join(t.TempDir(), `nope`)); err == nil {
		t.Fatal("missing files cannot be tagged")
	}
}
