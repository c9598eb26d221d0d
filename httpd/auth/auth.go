/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package auth

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
)

const (
	Passed Verdict = iota
	Failed
	MethodNotAllowed
)

// Verdict is the outcome of verifying a request against a realm.
type Verdict int

var (
	ErrNoCredentials  = errors.New("no credentials supplied")
	ErrUnknownUser    = errors.New("unknown user")
	ErrWrongScheme    = errors.New("credential scheme does not match realm")
	ErrRealmMismatch  = errors.New("digest realm does not match")
	ErrHashMismatch   = errors.New("credential hash mismatch")
	ErrUnsupportedQop = errors.New("unsupported digest qop")
)

// Result carries the verdict plus everything dispatch needs afterwards: the
// authenticated user for logging and CGI, the Authentication-Info value for
// Digest successes, and the error kind behind a Failed verdict.
type Result struct {
	Verdict Verdict
	User    string
	Info    string
	Err     error
}

// Verify checks a request against the realm's access file.  A nil AuthFile
// always passes, the path is simply unprotected.
func Verify(af *AuthFile, req *request.Request) (res Result) {
	if af == nil {
		res.Verdict = Passed
		return
	}
	raw := req.Headers.Get(headers.Authorization)
	if raw == `` {
		res = Result{Verdict: Failed, Err: ErrNoCredentials}
		return
	}
	sa, err := ParseSupplied(raw)
	if err != nil {
		res = Result{Verdict: Failed, Err: err}
		return
	}
	if sa.Scheme != af.Scheme {
		res = Result{Verdict: Failed, Err: ErrWrongScheme}
		return
	}
	switch sa.Scheme {
	case SchemeBasic:
		res = verifyBasic(af, sa)
	case SchemeDigest:
		res = verifyDigest(af, sa, req.Method)
	}
	if res.Verdict == Passed && !af.Allowed(req.Method) {
		res.Verdict = MethodNotAllowed
	}
	return
}

func verifyBasic(af *AuthFile, sa *SuppliedAuth) Result {
	dec, err := base64.StdEncoding.DecodeString(sa.Credentials)
	if err != nil {
		return Result{Verdict: Failed, Err: fmt.Errorf("%w: %v", ErrBadAuthFormat, err)}
	}
	pieces := strings.SplitN(string(dec), ":", 2)
	if len(pieces) != 2 {
		return Result{Verdict: Failed, Err: ErrBadAuthFormat}
	}
	user, pass := pieces[0], pieces[1]
	secret, ok := af.Secret(user)
	if !ok {
		return Result{Verdict: Failed, Err: ErrUnknownUser}
	}
	if md5hex(pass) != strings.ToLower(secret) {
		return Result{Verdict: Failed, Err: ErrHashMismatch}
	}
	return Result{Verdict: Passed, User: user}
}

func verifyDigest(af *AuthFile, sa *SuppliedAuth, m headers.Method) Result {
	if sa.Qop != `auth` {
		//auth-int and anything else is rejected outright, never downgraded
		return Result{Verdict: Failed, Err: fmt.Errorf("%w: %q", ErrUnsupportedQop, sa.Qop)}
	}
	if sa.Realm != af.Realm {
		return Result{Verdict: Failed, Err: ErrRealmMismatch}
	}
	secret, ok := af.Secret(sa.Username)
	if !ok {
		return Result{Verdict: Failed, Err: ErrUnknownUser}
	}
	ha2 := md5hex(m.String() + `:` + sa.URI)
	expect := md5hex(strings.Join([]string{secret, sa.Nonce, sa.NC, sa.CNonce, sa.Qop, ha2}, `:`))
	if expect != strings.ToLower(sa.Response) {
		return Result{Verdict: Failed, Err: ErrHashMismatch}
	}
	info := md5hex(strings.Join([]string{secret, sa.Nonce, sa.NC, sa.CNonce, `auth`, md5hex(`:` + sa.URI)}, `:`))
	return Result{Verdict: Passed, User: sa.Username, Info: info}
}

// Challenge renders the WWW-Authenticate value for a 401.  The nonce is
// MD5(now ":" privateKey); freshness is not tracked, the response hash binds
// the client to whatever nonce it was handed.
func Challenge(af *AuthFile, privateKey string) string {
	if af.Scheme == SchemeBasic {
		return fmt.Sprintf("Basic realm=%q", af.Realm)
	}
	nonce := md5hex(strconv.FormatInt(time.Now().Unix(), 10) + `:` + privateKey)
	return fmt.Sprintf("Digest realm=%q, nonce=%q, algorithm=md5, qop=\"auth\"", af.Realm, nonce)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
