/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package version

import (
	"fmt"
	"io"
	"time"
)

const (
	MajorVersion int = 1
	MinorVersion int = 3
	PointVersion int = 0

	ServerName string = `webserver`
)

var (
	BuildDate time.Time = time.Date(2020, 4, 2, 12, 0, 0, 0, time.UTC)
)

func PrintVersion(wtr io.Writer) {
	fmt.Fprintf(wtr, "Version:\t%d.%d.%d\n", MajorVersion, MinorVersion, PointVersion)
	fmt.Fprintf(wtr, "BuildDate:\t%s\n", BuildDate.Format(`2006-01-02 15:04:05`))
}

// GetVersion returns the dotted version form; ServerString embeds it in the
// value used for the Server header and SERVER_SOFTWARE.
func GetVersion() string {
	return fmt.Sprintf("%d.%d.%d", MajorVersion, MinorVersion, PointVersion)
}

// ServerString is the name-version pair handed to clients.
func ServerString() string {
	return fmt.Sprintf("%s-%s", ServerName, GetVersion())
}
