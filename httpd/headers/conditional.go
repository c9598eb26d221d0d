/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package headers

import (
	"os"
	"strings"
	"time"
)

const (
	PrecondNone Precondition = iota
	PrecondNotModified
	PrecondFailed
)

// Precondition is the verdict of conditional-request evaluation.
type Precondition int

// CheckPreconditions evaluates If-Match, If-Modified-Since,
// If-Unmodified-Since and If-None-Match, in that order, against the file at
// path and the supplied entity tag.  The first decisive answer wins.  etag
// may be empty when the resource has no computable tag, in which case the
// tag-driven fields never match.
func CheckPreconditions(hl HeaderList, path string, etag string, method Method) Precondition {
	fi, statErr := os.Stat(path)

	if hl.Has(IfMatch) {
		if !tagListMatches(hl.Get(IfMatch), etag) {
			return PrecondFailed
		}
	}
	if since, ok := hl.GetDate(IfModifiedSince); ok && statErr == nil {
		//proceed only when the file is strictly newer than the supplied date
		if !fi.ModTime().Truncate(time.Second).After(since) {
			return PrecondNotModified
		}
	}
	if since, ok := hl.GetDate(IfUnmodifiedSince); ok && statErr == nil {
		if fi.ModTime().Truncate(time.Second).After(since) {
			return PrecondFailed
		}
	}
	if hl.Has(IfNoneMatch) {
		if tagListMatches(hl.Get(IfNoneMatch), etag) {
			if method == GET || method == HEAD {
				return PrecondNotModified
			}
			return PrecondFailed
		}
	}
	return PrecondNone
}

// tagListMatches compares the computed tag against one or more quoted tags
// from the request, `*` matches anything with a tag.
func tagListMatches(list, etag string) bool {
	if etag == `` {
		return false
	}
	for _, cand := range strings.Split(list, ",") {
		cand = strings.TrimSpace(cand)
		if cand == `*` {
			return true
		}
		if strings.Trim(cand, `"`) == strings.Trim(etag, `"`) {
			return true
		}
	}
	return false
}
