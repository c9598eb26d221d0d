/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package httpd

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
	"github.com/DavidBittner/http-webserver/httpd/response"
)

const clfTimeFormat = `02/Jan/2006:15:04:05 -0700`

// LogEntry is one completed response, recorded at write time.
type LogEntry struct {
	Remote  string
	Ident   string
	User    string
	When    time.Time
	ReqLine string
	Status  int
	Sent    int64
}

// NewLogEntry captures the loggable facts of a request/response pair.  The
// byte count comes from the response Content-Length and falls back to zero
// for chunked or bodiless responses.
func NewLogEntry(remote, user string, req *request.Request, resp *response.Response) LogEntry {
	var sent int64
	if v := resp.Headers.Get(headers.ContentLength); v != `` {
		sent, _ = strconv.ParseInt(v, 10, 64)
	}
	var line string
	if req != nil {
		line = req.RequestLine()
	}
	return LogEntry{
		Remote:  remote,
		User:    user,
		When:    time.Now().UTC(),
		ReqLine: line,
		Status:  resp.Code.Code,
		Sent:    sent,
	}
}

// CLF renders the entry as one Common Log Format line.
func (e LogEntry) CLF() string {
	return fmt.Sprintf("%s %s %s [%s] %q %d %d",
		e.Remote, dashWhenEmpty(e.Ident), dashWhenEmpty(e.User),
		e.When.Format(clfTimeFormat), e.ReqLine, e.Status, e.Sent)
}

func dashWhenEmpty(s string) string {
	if s == `` {
		return `-`
	}
	return s
}

// AccessLog is the process-wide ordered entry list.  Writers push under a
// short write lock, the /.well-known/access.log reader serialises under the
// read lock.
type AccessLog struct {
	mtx     sync.RWMutex
	entries []LogEntry
}

func NewAccessLog() *AccessLog {
	return &AccessLog{}
}

func (al *AccessLog) Append(e LogEntry) {
	al.mtx.Lock()
	al.entries = append(al.entries, e)
	al.mtx.Unlock()
}

func (al *AccessLog) Len() int {
	al.mtx.RLock()
	defer al.mtx.RUnlock()
	return len(al.entries)
}

// Format serialises every entry, one CLF line each.
func (al *AccessLog) Format() []byte {
	al.mtx.RLock()
	defer al.mtx.RUnlock()
	bb := bytes.NewBuffer(nil)
	for _, e := range al.entries {
		bb.WriteString(e.CLF())
		bb.WriteString("\n")
	}
	return bb.Bytes()
}
