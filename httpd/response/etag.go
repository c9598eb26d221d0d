/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
)

// FileETag computes a quoted 64-bit entity tag over the canonical path,
// mtime, length, and the file contents.
func FileETag(path string) (string, error) {
	return etag(path, true)
}

// DirETag is the same hash minus the contents pass.
func DirETag(path string) (string, error) {
	return etag(path, false)
}

func etag(path string, contents bool) (tag string, err error) {
	full, err := filepath.EvalSymlinks(path)
	if err != nil {
		return
	}
	if full, err = filepath.Abs(full); err != nil {
		return
	}
	fi, err := os.Stat(full)
	if err != nil {
		return
	}
	h := fnv.New64a()
	io.WriteString(h, full)
	var scratch [16]byte
	binary.BigEndian.PutUint64(scratch[:8], uint64(fi.ModTime().UnixNano()))
	binary.BigEndian.PutUint64(scratch[8:], uint64(fi.Size()))
	h.Write(scratch[:])

	if contents {
		var fin *os.File
		if fin, err = os.Open(full); err != nil {
			return
		}
		defer fin.Close()
		buff := make([]byte, ChunkSize)
		for {
			n, rerr := fin.Read(buff)
			if n > 0 {
				h.Write(buff[:n])
			}
			if rerr == io.EOF {
				break
			} else if rerr != nil {
				err = rerr
				return
			}
		}
	}
	binary.BigEndian.PutUint64(scratch[:8], h.Sum64())
	tag = `"` + hexString(scratch[:8]) + `"`
	return
}

const hexdigits = `0123456789abcdef`

func hexString(b []byte) string {
	out := make([]byte, 0, len(b)*2)
	for _, v := range b {
		out = append(out, hexdigits[v>>4], hexdigits[v&0xf])
	}
	return string(out)
}
