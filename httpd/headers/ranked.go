/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package headers

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidRankedEntry = errors.New("invalid ranked entry")
)

// RankedEntry is a single Accept* list member.  The rating is the quality
// value stored in parts per thousand, HasRating distinguishes "no q given"
// from q=0.
type RankedEntry struct {
	Value     string
	Rating    uint32
	HasRating bool
}

// RankedEntryList is an ordered, parsed Accept* header.  An empty list means
// the dimension is unconstrained.
type RankedEntryList []RankedEntry

// ParseRankedList parses a comma separated "value[;q=x]" list.  An empty
// input yields an empty list, not an error.
func ParseRankedList(s string) (rel RankedEntryList, err error) {
	s = strings.TrimSpace(s)
	if s == `` {
		return
	}
	for _, piece := range strings.Split(s, ",") {
		piece = strings.TrimSpace(piece)
		if piece == `` {
			err = fmt.Errorf("%w: empty member in %q", ErrInvalidRankedEntry, s)
			return
		}
		var re RankedEntry
		if re, err = parseRankedEntry(piece); err != nil {
			return
		}
		rel = append(rel, re)
	}
	return
}

func parseRankedEntry(s string) (re RankedEntry, err error) {
	pieces := strings.Split(s, ";")
	re.Value = strings.TrimSpace(pieces[0])
	if re.Value == `` {
		err = fmt.Errorf("%w: %q", ErrInvalidRankedEntry, s)
		return
	}
	for _, param := range pieces[1:] {
		param = strings.TrimSpace(param)
		if !strings.HasPrefix(strings.ToLower(param), `q=`) {
			continue
		}
		val, perr := strconv.ParseFloat(param[2:], 32)
		if perr != nil {
			val = 0
		}
		re.Rating = uint32(math.Round(val * 1000.))
		re.HasRating = true
	}
	return
}

// HasZeroes reports whether any entry carries an explicit zero quality, a
// zero anywhere makes the whole negotiation NotAcceptable.
func (rel RankedEntryList) HasZeroes() bool {
	for _, re := range rel {
		if re.HasRating && re.Rating == 0 {
			return true
		}
	}
	return false
}

// Filter runs one negotiation dimension: candidates that match no entry are
// dropped and matching entries add their rating to the candidate's score.
// A candidate that matches several entries comes back once per match, each
// copy carrying that one entry's rating; the copies are not merged here.
// An empty list passes every candidate through untouched.  The ident values
// ride along so callers can keep scores attached to file paths.
func (rel RankedEntryList) Filter(cands []ScoredValue, match func(ident string, entry string) bool) []ScoredValue {
	if len(rel) == 0 {
		return cands
	}
	var ret []ScoredValue
	for _, re := range rel {
		if re.HasRating && re.Rating == 0 {
			continue
		}
		for _, cand := range cands {
			if match(cand.Ident, re.Value) {
				ret = append(ret, ScoredValue{
					Ident: cand.Ident,
					Score: cand.Score + re.Rating,
				})
			}
		}
	}
	return ret
}

// ScoredValue is a negotiation candidate with its accumulated rating.
type ScoredValue struct {
	Ident string
	Score uint32
}
