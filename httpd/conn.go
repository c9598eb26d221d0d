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
	"errors"
	"net"
	"time"
)

const scratchSize = 2048

var (
	ErrTimedOut        = errors.New("connection deadline exceeded")
	ErrRequestTooLarge = errors.New("request exceeds maximum size")
)

// findTerminator scans for the end-of-headers marker and returns the head
// length plus the index of the first byte past the marker.  Both CRLFCRLF
// and bare LFLF clients are tolerated.
func findTerminator(b []byte) (head, rest int) {
	crlf := bytes.Index(b, []byte("\r\n\r\n"))
	lf := bytes.Index(b, []byte("\n\n"))
	switch {
	case crlf < 0 && lf < 0:
		return -1, -1
	case crlf < 0:
		return lf, lf + 2
	case lf < 0 || crlf <= lf:
		return crlf, crlf + 4
	}
	return lf, lf + 2
}

// budgetReader reads from the socket while tracking a last-progress budget:
// every byte of progress resets the deadline, a full budget with no progress
// fails with ErrTimedOut.
type budgetReader struct {
	c       net.Conn
	timeout time.Duration
}

func (br budgetReader) read(p []byte) (n int, err error) {
	last := time.Now()
	for {
		br.c.SetReadDeadline(last.Add(br.timeout))
		if n, err = br.c.Read(p); n > 0 {
			err = nil
			return
		} else if err == nil {
			continue
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			if time.Since(last) >= br.timeout {
				err = ErrTimedOut
				return
			}
			continue
		}
		return
	}
}

// budgetWriter enforces the write-deadline budget: a write that makes no
// progress within the budget fails with ErrTimedOut, partial progress
// resets it.
type budgetWriter struct {
	c       net.Conn
	timeout time.Duration
}

func (bw budgetWriter) Write(p []byte) (written int, err error) {
	for written < len(p) {
		bw.c.SetWriteDeadline(time.Now().Add(bw.timeout))
		var n int
		n, err = bw.c.Write(p[written:])
		written += n
		if err == nil {
			continue
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			if n > 0 {
				//progress resets the budget
				err = nil
				continue
			}
			err = ErrTimedOut
		}
		return
	}
	return written, nil
}
