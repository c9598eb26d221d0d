/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/open2b/scriggo"
	"github.com/open2b/scriggo/native"
)

const (
	ErrorTemplate   = `error.html`
	ListingTemplate = `directory.html`
)

// FileInfo is one directory listing row handed to the listing template.
type FileInfo struct {
	Name string
	Path string
	Date string
	Size int64
}

// TemplateStore builds and caches the scriggo templates used for error pages
// and directory listings.  Built programs are immutable, the cache is safe
// for concurrent renders.
type TemplateStore struct {
	dir   string
	mtx   sync.Mutex
	built map[string]*scriggo.Template
}

func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{
		dir:   dir,
		built: make(map[string]*scriggo.Template, 2),
	}
}

// declarations are the globals every template may reference; a template only
// pays for the ones it uses.
func declarations() native.Declarations {
	return native.Declarations{
		"code":        (*int)(nil),
		"phrase":      (*string)(nil),
		"description": (*string)(nil),
		"dirPath":     (*string)(nil),
		"files":       (*[]FileInfo)(nil),
	}
}

func (ts *TemplateStore) get(name string) (t *scriggo.Template, err error) {
	ts.mtx.Lock()
	defer ts.mtx.Unlock()
	if t = ts.built[name]; t != nil {
		return
	}
	opts := scriggo.BuildTemplateOptions{
		Globals: declarations(),
	}
	if t, err = scriggo.BuildTemplate(os.DirFS(ts.dir), name, &opts); err != nil {
		return
	}
	ts.built[name] = t
	return
}

// Render executes the named template with the supplied globals.
func (ts *TemplateStore) Render(name string, vars map[string]interface{}) (out []byte, err error) {
	t, err := ts.get(name)
	if err != nil {
		return
	}
	bb := bytes.NewBuffer(nil)
	if err = t.Run(bb, vars, nil); err != nil {
		return
	}
	out = bb.Bytes()
	return
}

// RenderError produces the error page body.
func (ts *TemplateStore) RenderError(code int, phrase, description string) ([]byte, error) {
	return ts.Render(ErrorTemplate, map[string]interface{}{
		"code":        code,
		"phrase":      phrase,
		"description": description,
	})
}

// RenderListing produces the directory listing body.
func (ts *TemplateStore) RenderListing(dirPath string, ents []os.DirEntry) ([]byte, error) {
	files := make([]FileInfo, 0, len(ents))
	for _, ent := range ents {
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		name := ent.Name()
		if ent.IsDir() {
			name += `/`
		}
		files = append(files, FileInfo{
			Name: name,
			Path: ent.Name(),
			Date: fi.ModTime().UTC().Format(time.RFC1123),
			Size: fi.Size(),
		})
	}
	return ts.Render(ListingTemplate, map[string]interface{}{
		"dirPath": dirPath,
		"files":   files,
	})
}
