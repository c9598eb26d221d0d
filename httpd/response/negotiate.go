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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

var (
	ErrNotAcceptable = errors.New("no candidate is acceptable")
	ErrNoMatches     = errors.New("no candidate matched")
)

// Alternate is one scored negotiation candidate, the 300 response lists
// these in its Alternates header.
type Alternate struct {
	Path  string
	Score uint32
	Desc  Descriptor
}

// Negotiate picks a representation for the missing file at path by scoring
// every sibling whose name stem begins with the missing name against the
// request's Accept* preferences.  A unique best candidate comes back in
// best; a tie comes back as the full scored list with best empty.
func Negotiate(path string, hl headers.HeaderList) (best string, alts []Alternate, err error) {
	types, err := headers.ParseRankedList(hl.Get(headers.Accept))
	if err != nil {
		return
	}
	langs, err := headers.ParseRankedList(hl.Get(headers.AcceptLanguage))
	if err != nil {
		return
	}
	encodings, err := headers.ParseRankedList(hl.Get(headers.AcceptEncoding))
	if err != nil {
		return
	}
	charsets, err := headers.ParseRankedList(hl.Get(headers.AcceptCharset))
	if err != nil {
		return
	}
	if types.HasZeroes() || langs.HasZeroes() || encodings.HasZeroes() || charsets.HasZeroes() {
		err = ErrNotAcceptable
		return
	}

	stub := filepath.Base(path)
	dir := filepath.Dir(path)
	ents, rerr := os.ReadDir(dir)
	if rerr != nil {
		err = rerr
		return
	}
	var cands []headers.ScoredValue
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		if strings.HasPrefix(stem(ent.Name()), stub) {
			cands = append(cands, headers.ScoredValue{Ident: filepath.Join(dir, ent.Name())})
		}
	}
	if len(cands) == 0 {
		err = ErrNoMatches
		return
	}

	cands = types.Filter(cands, func(ident, entry string) bool {
		return typeMatches(entry, MediaTypeFor(ident, Describe(ident)))
	})
	cands = langs.Filter(cands, func(ident, entry string) bool {
		return wildcardMatches(entry, Describe(ident).Language)
	})
	cands = charsets.Filter(cands, func(ident, entry string) bool {
		cs := Describe(ident).Charset
		return cs != `` && wildcardMatches(entry, cs)
	})
	cands = encodings.Filter(cands, func(ident, entry string) bool {
		return wildcardMatches(entry, Describe(ident).Encoding)
	})
	if len(cands) == 0 {
		err = ErrNoMatches
		return
	}

	cands = dedupe(cands)
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score < cands[j].Score
		}
		return cands[i].Ident < cands[j].Ident
	})

	top := cands[len(cands)-1]
	if len(cands) == 1 || cands[len(cands)-2].Score != top.Score {
		best = top.Ident
		return
	}
	for _, c := range cands {
		alts = append(alts, Alternate{
			Path:  c.Ident,
			Score: c.Score,
			Desc:  Describe(c.Ident),
		})
	}
	return
}

// stem strips the final extension the way the candidate scan wants it.
func stem(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

// dedupe folds duplicate candidates together, accumulating their scores;
// overlapping Accept entries may match the same candidate more than once and
// every match adds its rating.
func dedupe(cands []headers.ScoredValue) []headers.ScoredValue {
	seen := make(map[string]uint32, len(cands))
	for _, c := range cands {
		seen[c.Ident] += c.Score
	}
	out := make([]headers.ScoredValue, 0, len(seen))
	for ident, score := range seen {
		out = append(out, headers.ScoredValue{Ident: ident, Score: score})
	}
	return out
}

// typeMatches compares an Accept media-range against a concrete type,
// honoring */* and type/* forms.
func typeMatches(entry, mediaType string) bool {
	entry = strings.ToLower(strings.TrimSpace(entry))
	mediaType = strings.ToLower(mediaType)
	if entry == `*` || entry == `*/*` {
		return true
	}
	ep := strings.SplitN(entry, `/`, 2)
	mp := strings.SplitN(mediaType, `/`, 2)
	if len(ep) != 2 || len(mp) != 2 {
		return entry == mediaType
	}
	if ep[0] != `*` && ep[0] != mp[0] {
		return false
	}
	return ep[1] == `*` || ep[1] == mp[1]
}

// wildcardMatches is the single-token dimension match: exact, or * against
// anything non-empty.
func wildcardMatches(entry, val string) bool {
	if entry == `*` {
		return val != ``
	}
	return strings.EqualFold(entry, val)
}

// FormatAlternates renders the Alternates header of a 300 response.
func FormatAlternates(alts []Alternate) string {
	parts := make([]string, 0, len(alts))
	for _, a := range alts {
		var attrs []string
		attrs = append(attrs, fmt.Sprintf("{type %s}", MediaTypeFor(a.Path, a.Desc)))
		if a.Desc.Language != `` {
			attrs = append(attrs, fmt.Sprintf("{language %s}", a.Desc.Language))
		}
		if a.Desc.Charset != `` {
			attrs = append(attrs, fmt.Sprintf("{charset %s}", a.Desc.Charset))
		}
		if a.Desc.Encoding != `` {
			attrs = append(attrs, fmt.Sprintf("{encoding %s}", a.Desc.Encoding))
		}
		parts = append(parts, fmt.Sprintf("{%q %.3f %s}",
			filepath.Base(a.Path), float64(a.Score)/1000.0, strings.Join(attrs, " ")))
	}
	return strings.Join(parts, ", ")
}
