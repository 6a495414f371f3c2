/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package version reports tracev3cat's own build version, independent
// of anything it decodes.
package version

import (
	"fmt"
	"io"
)

const (
	MajorVersion int = 0
	MinorVersion int = 1
	PointVersion int = 0
)

// PrintVersion writes the three-part version number to wtr.
func PrintVersion(wtr io.Writer) {
	fmt.Fprintf(wtr, "tracev3cat %d.%d.%d\n", MajorVersion, MinorVersion, PointVersion)
}
