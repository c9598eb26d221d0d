/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Descriptor is the (type, language, encoding, charset) tuple derived from a
// file's extension chain; the negotiator matches Accept* entries against it.
type Descriptor struct {
	MediaType string
	Language  string
	Encoding  string
	Charset   string
}

var languageSet = map[string]string{
	`en`: `en`, `es`: `es`, `de`: `de`, `ja`: `ja`, `ko`: `ko`, `ru`: `ru`,
}

var encodingSet = map[string]string{
	`gz`:  `gzip`,
	`zip`: `compress`,
	`Z`:   `compress`,
}

var charsetSet = map[string]string{
	`jis`:    `iso-2022-jp`,
	`koi8-r`: `koi8-r`,
	`euc-kr`: `euc-kr`,
}

var mediaTypeSet = map[string]string{
	`js`:   `application/javascript`,
	`htm`:  `text/html`,
	`html`: `text/html`,
	`css`:  `text/css`,
	`xml`:  `text/xml`,
	`txt`:  `text/plain`,
	`jpg`:  `image/jpeg`,
	`jpeg`: `image/jpeg`,
	`png`:  `image/png`,
	`gif`:  `image/gif`,
	`pdf`:  `application/pdf`,
	`ppt`:  `application/vnd.ms-powerpoint`,
	`pptx`: `application/vnd.ms-powerpoint`,
	`doc`:  `application/vnd.ms-word`,
	`docx`: `application/vnd.ms-word`,
}

// Describe walks the dot-separated suffix chain right to left.  Each suffix
// may fill exactly one empty descriptor slot, unmatched suffixes expose the
// next one.
func Describe(path string) (d Descriptor) {
	name := filepath.Base(path)
	parts := strings.Split(name, `.`)
	if len(parts) < 2 {
		return
	}
	for i := len(parts) - 1; i >= 1; i-- {
		suffix := parts[i]
		lower := strings.ToLower(suffix)
		if d.Language == `` {
			if v, ok := languageSet[lower]; ok {
				d.Language = v
				continue
			}
		}
		if d.Encoding == `` {
			if v, ok := encodingSet[suffix]; ok {
				d.Encoding = v
				continue
			} else if v, ok = encodingSet[lower]; ok && suffix != `z` {
				d.Encoding = v
				continue
			}
		}
		if d.Charset == `` {
			if v, ok := charsetSet[lower]; ok {
				d.Charset = v
				continue
			}
		}
		if d.MediaType == `` {
			if v, ok := mediaTypeSet[lower]; ok {
				d.MediaType = v
				continue
			}
		}
	}
	return
}

// MediaTypeFor resolves the served Content-Type: the extension chain first,
// then a magic-number sniff, then the octet-stream fallback.
func MediaTypeFor(path string, d Descriptor) string {
	if d.MediaType != `` {
		return d.MediaType
	}
	if t, err := sniffType(path); err == nil && t != `` {
		return t
	}
	return `application/octet-stream`
}

func sniffType(path string) (t string, err error) {
	fin, err := os.Open(path)
	if err != nil {
		return
	}
	defer fin.Close()
	//261 bytes covers every magic number the matcher knows
	head := make([]byte, 261)
	n, _ := fin.Read(head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return
	}
	t = kind.MIME.Value
	return
}
