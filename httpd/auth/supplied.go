/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCredential  = errors.New("empty authorization header")
	ErrMissingAuthField = errors.New("required authorization field not present")
	ErrBadAuthFormat    = errors.New("malformed authorization header")
)

// SuppliedAuth is the parsed Authorization request header.  Basic carries
// only the base64 credential blob, Digest carries the full RFC 2617 field
// set.
type SuppliedAuth struct {
	Scheme Scheme

	//Basic
	Credentials string

	//Digest
	Username string
	Realm    string
	URI      string
	Qop      string
	Nonce    string
	NC       string
	CNonce   string
	Response string
	Opaque   string
}

// ParseSupplied parses an Authorization header value.
func ParseSupplied(s string) (sa *SuppliedAuth, err error) {
	s = strings.TrimSpace(s)
	if s == `` {
		err = ErrEmptyCredential
		return
	}
	fields := strings.SplitN(s, " ", 2)
	if len(fields) != 2 {
		err = fmt.Errorf("%w: %q", ErrBadAuthFormat, s)
		return
	}
	switch strings.ToLower(fields[0]) {
	case `basic`:
		sa = &SuppliedAuth{
			Scheme:      SchemeBasic,
			Credentials: strings.TrimSpace(fields[1]),
		}
		return
	case `digest`:
		return parseDigest(fields[1])
	}
	err = fmt.Errorf("%w: %q", ErrUnknownScheme, fields[0])
	return
}

func parseDigest(s string) (sa *SuppliedAuth, err error) {
	vals := make(map[string]string, 10)
	for _, field := range strings.Split(s, ",") {
		pieces := strings.SplitN(field, "=", 2)
		if len(pieces) != 2 {
			err = fmt.Errorf("%w: %q", ErrBadAuthFormat, strings.TrimSpace(field))
			return
		}
		key := strings.ToLower(strings.TrimSpace(pieces[0]))
		vals[key] = strings.Trim(strings.TrimSpace(pieces[1]), `"`)
	}
	sa = &SuppliedAuth{Scheme: SchemeDigest}
	required := []struct {
		key string
		dst *string
	}{
		{`username`, &sa.Username},
		{`realm`, &sa.Realm},
		{`uri`, &sa.URI},
		{`qop`, &sa.Qop},
		{`nonce`, &sa.Nonce},
		{`nc`, &sa.NC},
		{`cnonce`, &sa.CNonce},
		{`response`, &sa.Response},
	}
	for _, r := range required {
		v, ok := vals[r.key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAuthField, r.key)
		}
		*r.dst = v
	}
	sa.Opaque = vals[`opaque`] //optional
	return
}

// Info returns the (scheme, user) pair exposed to CGI via AUTH_TYPE and
// REMOTE_USER.  The Basic username is unavailable without decoding, that is
// the caller's job when it cares.
func (sa *SuppliedAuth) Info() (scheme, user string) {
	if sa == nil {
		return
	}
	scheme = sa.Scheme.String()
	user = sa.Username
	return
}
