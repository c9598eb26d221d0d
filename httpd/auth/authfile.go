/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package auth implements the per-directory access-control engine: access
// file discovery and caching, Basic and Digest credential verification, and
// challenge construction.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

const (
	SchemeBasic Scheme = iota
	SchemeDigest
)

// Scheme is the authentication scheme an access file declares.
type Scheme int

func (s Scheme) String() string {
	if s == SchemeDigest {
		return `Digest`
	}
	return `Basic`
}

func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case `basic`:
		return SchemeBasic, nil
	case `digest`:
		return SchemeDigest, nil
	}
	return SchemeBasic, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

var (
	ErrUnknownScheme    = errors.New("unknown authorization scheme")
	ErrMissingRealm     = errors.New("access file does not declare a realm")
	ErrMissingType      = errors.New("access file does not declare an authorization type")
	ErrMalformedUser    = errors.New("malformed user record")
	ErrMalformedEntry   = errors.New("malformed access file directive")
	ErrFileTooLarge     = errors.New("access file is unreasonably large")
)

const maxAuthFileSize int64 = 1024 * 1024

// AuthFile is the parsed per-directory access record.  Instances are
// immutable once constructed and shared across connections via the cache.
type AuthFile struct {
	Scheme      Scheme
	Realm       string
	AllowPut    bool
	AllowDelete bool

	//name to stored secret, Basic secrets are MD5(password) hex and Digest
	//secrets are MD5("name:realm:password") hex
	users map[string]string
}

// ParseAuthFile parses access file text.  Hash-prefixed lines are comments,
// key=value lines are directives, bare ALLOW-PUT / ALLOW-DELETE tokens widen
// the method set, everything else is a user record.
func ParseAuthFile(content string) (af *AuthFile, err error) {
	var sawType, sawRealm bool
	af = &AuthFile{users: make(map[string]string, 4)}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == `` || strings.HasPrefix(line, `#`) {
			continue
		}
		switch strings.ToUpper(line) {
		case `ALLOW-PUT`:
			af.AllowPut = true
			continue
		case `ALLOW-DELETE`:
			af.AllowDelete = true
			continue
		}
		if idx := strings.Index(line, `=`); idx >= 0 && !strings.Contains(line[:idx], `:`) {
			key := strings.ToLower(strings.TrimSpace(line[:idx]))
			val := strings.TrimSpace(line[idx+1:])
			switch key {
			case `authorization-type`:
				if af.Scheme, err = ParseScheme(val); err != nil {
					return nil, err
				}
				sawType = true
			case `realm`:
				af.Realm = strings.Trim(val, `"`)
				sawRealm = true
			default:
				return nil, fmt.Errorf("%w: %q", ErrMalformedEntry, line)
			}
			continue
		}
		var name, secret string
		if name, secret, err = parseUser(line); err != nil {
			return nil, err
		}
		af.users[name] = secret
	}
	if !sawRealm {
		return nil, ErrMissingRealm
	}
	if !sawType {
		return nil, ErrMissingType
	}
	return
}

// parseUser accepts "name:secret" (Basic) and "name:realm:secret" (Digest)
// records; the middle realm field is informational, the file realm governs.
func parseUser(line string) (name, secret string, err error) {
	pieces := strings.Split(line, `:`)
	for i := range pieces {
		pieces[i] = strings.TrimSpace(pieces[i])
	}
	switch len(pieces) {
	case 2:
		name, secret = pieces[0], pieces[1]
	case 3:
		name, secret = pieces[0], pieces[2]
	default:
		err = fmt.Errorf("%w: %q", ErrMalformedUser, line)
		return
	}
	if name == `` || secret == `` {
		err = fmt.Errorf("%w: %q", ErrMalformedUser, line)
	}
	return
}

// LoadAuthFile reads and parses the access file at path.
func LoadAuthFile(path string) (*AuthFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxAuthFileSize {
		return nil, ErrFileTooLarge
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAuthFile(string(content))
}

// Secret returns the stored secret for a user.
func (af *AuthFile) Secret(name string) (string, bool) {
	s, ok := af.users[name]
	return s, ok
}

// Users returns the number of user records, handy for log lines.
func (af *AuthFile) Users() int {
	return len(af.users)
}

// Methods is the allowed method set: always the safe set, plus PUT/DELETE
// when the file grants them.
func (af *AuthFile) Methods() (ms []headers.Method) {
	ms = []headers.Method{headers.GET, headers.HEAD, headers.OPTIONS, headers.TRACE, headers.POST}
	if af.AllowPut {
		ms = append(ms, headers.PUT)
	}
	if af.AllowDelete {
		ms = append(ms, headers.DELETE)
	}
	return
}

// Allowed reports whether the realm permits the method.
func (af *AuthFile) Allowed(m headers.Method) bool {
	if m.Safe() {
		return true
	}
	switch m {
	case headers.PUT:
		return af.AllowPut
	case headers.DELETE:
		return af.AllowDelete
	}
	return false
}
