//go:build !windows
// +build !windows

/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wslog

import (
	"os"
	"syscall"
)

// dupStderr redirects the process stderr file descriptor at the named file so
// that panics and backtraces land somewhere recoverable.
func dupStderr(fp string) error {
	fout, err := os.Create(fp)
	if err != nil {
		return err
	}
	if err = syscall.Dup2(int(fout.Fd()), int(os.Stderr.Fd())); err != nil {
		fout.Close()
		return err
	}
	return nil
}
