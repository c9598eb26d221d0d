/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package headers

import (
	"testing"
)

func TestRangeParse(t *testing.T) {
	rl, err := ParseRangeList(`bytes=5-`)
	if err != nil {
		t.Fatal(err)
	}
	if rl.Unit != `bytes` || len(rl.Ranges) != 1 {
		t.Fatal("bad parse")
	}
	if rl.Ranges[0].Start != 5 || rl.Ranges[0].HasEnd {
		t.Fatal("open ended range mangled")
	}

	rl, err = ParseRangeList(`bytes=5-20,10-100, -50, 2-`)
	if err != nil {
		t.Fatal(err)
	}
	expected := []ByteRange{
		{Start: 5, End: 20, HasEnd: true},
		{Start: 10, End: 100, HasEnd: true},
		{Start: -50},
		{Start: 2},
	}
	if len(rl.Ranges) != len(expected) {
		t.Fatalf("got %d ranges", len(rl.Ranges))
	}
	for i := range expected {
		if rl.Ranges[i] != expected[i] {
			t.Fatalf("range %d: %+v != %+v", i, rl.Ranges[i], expected[i])
		}
	}
}

func TestRangeParseFailures(t *testing.T) {
	for _, s := range []string{`lines=1-2`, `bytes=`, `bytes=a-b`, `bytes=1-2,`, `bytes`} {
		if _, err := ParseRangeList(s); err == nil {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	rl, err := ParseRangeList(`bytes=5-20, 2-90, 40-100`)
	if err != nil {
		t.Fatal(err)
	}
	min, max := rl.Bounds()
	if min != 2 || max != 100 {
		t.Fatalf("bounds %d-%d", min, max)
	}
}
