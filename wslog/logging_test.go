/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wslog

import (
	"bytes"
	"strings"
	"testing"
)

type bufCloser struct {
	bytes.Buffer
}

func (b *bufCloser) Close() error { return nil }

func TestLevels(t *testing.T) {
	var bb bufCloser
	l := New(&bb)
	if err := l.SetLevelString(`WARN`); err != nil {
		t.Fatal(err)
	}
	l.Infof("should not appear %d", 1)
	l.Warnf("should appear %d", 2)
	out := bb.String()
	if strings.Contains(out, `should not appear`) {
		t.Fatal("level filter broken")
	}
	if !strings.Contains(out, `should appear 2`) {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestStructured(t *testing.T) {
	var bb bufCloser
	l := New(&bb)
	l.Info("something happened", KV("path", `/x`), KVErr(ErrInvalidLevel))
	out := bb.String()
	if !strings.Contains(out, `something happened`) {
		t.Fatalf("message missing: %q", out)
	}
	if !strings.Contains(out, `path="/x"`) {
		t.Fatalf("structured param missing: %q", out)
	}
	if !strings.Contains(out, `error=`) {
		t.Fatalf("error param missing: %q", out)
	}
}

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]Level{
		`debug`: DEBUG, `INFO`: INFO, ` WARN `: WARN, ``: INFO,
		`ERROR`: ERROR, `critical`: CRITICAL, `FATAL`: FATAL, `off`: OFF,
	} {
		got, err := LevelFromString(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
	if _, err := LevelFromString(`noisy`); err == nil {
		t.Fatal("bogus level parsed")
	}
}

func TestAddDeleteWriter(t *testing.T) {
	var a, b bufCloser
	l := New(&a)
	if err := l.AddWriter(&b); err != nil {
		t.Fatal(err)
	}
	l.Errorf("to both")
	if !strings.Contains(a.String(), `to both`) || !strings.Contains(b.String(), `to both`) {
		t.Fatal("fan out broken")
	}
	if err := l.DeleteWriter(&b); err != nil {
		t.Fatal(err)
	}
	l.Errorf("only one")
	if strings.Contains(b.String(), `only one`) {
		t.Fatal("deleted writer still receiving")
	}
}

func TestRawMode(t *testing.T) {
	var bb bufCloser
	l := New(&bb)
	l.EnableRawMode()
	l.Infof("plain line")
	out := bb.String()
	if strings.HasPrefix(out, `<`) {
		t.Fatalf("raw mode still emitting syslog priority: %q", out)
	}
	if !strings.Contains(out, `INFO plain line`) {
		t.Fatalf("raw form mangled: %q", out)
	}
}
