//go:build linux

/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logging

import "os"

// NewStderrLogger returns a logger writing RFC5424 lines to stderr. If
// fileOverride is non-empty, an additional writer to that file is attached
// -- this is the default bring-up path for cmd/ethercatd, matching the
// Gravwell ingesters' -log-file-override flag.
func NewStderrLogger(fileOverride string) (*Logger, error) {
	l := New(os.Stderr)
	if fileOverride != `` {
		fout, err := os.OpenFile(fileOverride, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
		if err != nil {
			return nil, err
		}
		if err := l.AddWriter(fout); err != nil {
			fout.Close()
			return nil, err
		}
	}
	return l, nil
}
