/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package httpd

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DavidBittner/http-webserver/httpd/headers"
	"github.com/DavidBittner/http-webserver/httpd/request"
	"github.com/DavidBittner/http-webserver/httpd/response"
)

var clfForm = regexp.MustCompile(`^\S+ \S+ \S+ \[[0-9]{2}/[A-Z][a-z]{2}/[0-9]{4}:[0-9]{2}:[0-9]{2}:[0-9]{2} [+-][0-9]{4}\] "[^"]*" [0-9]{3} [0-9]+$`)

func TestCLFLine(t *testing.T) {
	e := LogEntry{
		Remote:  `10.0.0.1`,
		User:    `bob`,
		When:    time.Date(2020, 4, 2, 11, 30, 15, 0, time.UTC),
		ReqLine: `GET /x HTTP/1.1`,
		Status:  200,
		Sent:    42,
	}
	line := e.CLF()
	if line != `10.0.0.1 - bob [02/Apr/2020:11:30:15 +0000] "GET /x HTTP/1.1" 200 42` {
		t.Fatalf("bad CLF line: %q", line)
	}
	if !clfForm.MatchString(line) {
		t.Fatalf("line does not match CLF shape: %q", line)
	}
}

func TestCLFEmptyFields(t *testing.T) {
	e := LogEntry{Remote: `10.0.0.1`, When: time.Now().UTC(), Status: 404}
	line := e.CLF()
	if !strings.HasPrefix(line, `10.0.0.1 - - [`) {
		t.Fatalf("missing identity and user must render as dashes: %q", line)
	}
}

func TestNewLogEntrySentBytes(t *testing.T) {
	req, err := request.Parse("GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	hl := headers.NewHeaderList()
	resp := response.New(headers.StatusOK, hl)
	resp.SetBody([]byte(`hi`))
	e := NewLogEntry(`1.2.3.4`, ``, req, resp)
	if e.Sent != 2 {
		t.Fatalf("sent bytes should come from Content-Length, got %d", e.Sent)
	}
	if e.ReqLine != `GET /hello.txt HTTP/1.1` {
		t.Fatalf("bad request line %q", e.ReqLine)
	}

	//chunked responses have no content length, the entry records zero
	hl2 := headers.NewHeaderList()
	hl2.SetChunkedEncoding()
	chunked := response.New(headers.StatusOK, hl2)
	chunked.Body = []byte(`data`)
	e = NewLogEntry(`1.2.3.4`, ``, req, chunked)
	if e.Sent != 0 {
		t.Fatalf("chunked entries fall back to zero, got %d", e.Sent)
	}
}

func TestAccessLogAppendFormat(t *testing.T) {
	al := NewAccessLog()
	for i := 0; i < 3; i++ {
		al.Append(LogEntry{Remote: `1.1.1.1`, When: time.Now().UTC(), ReqLine: `GET / HTTP/1.1`, Status: 200})
	}
	if al.Len() != 3 {
		t.Fatalf("got %d entries", al.Len())
	}
	out := string(al.Format())
	if strings.Count(out, "\n") != 3 {
		t.Fatalf("one line per entry expected:\n%s", out)
	}
}
