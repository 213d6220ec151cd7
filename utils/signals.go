/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package utils

import (
	"os"
	"os/signal"
	"syscall"
)

// GetQuitChannel registers and returns a channel notified on receipt of
// SIGHUP, SIGINT, SIGQUIT, or SIGTERM -- the cooperative-termination
// signal set the Cyclic Worker translates into its stop flag (spec §4.1
// "Cooperative termination").
func GetQuitChannel() chan os.Signal {
	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return quitSig
}
