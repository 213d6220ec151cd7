/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command ethercatd runs the Cyclic Worker described in spec §4.1 as a
// standalone, process-isolated realtime runtime: it loads a NetworkConfig,
// brings up logging, constructs the master adapter and transport queues,
// and runs cycles until a termination signal arrives, at which point it
// performs the graceful drive shutdown before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gravwell/ethercat/config"
	"github.com/gravwell/ethercat/logging"
	"github.com/gravwell/ethercat/master"
	"github.com/gravwell/ethercat/transport"
	"github.com/gravwell/ethercat/utils"
	"github.com/gravwell/ethercat/worker"
)

const (
	defaultConfigLoc  = `/opt/ethercatd/etc/ethercatd.conf`
	defaultConfigDLoc = `/opt/ethercatd/etc/ethercatd.conf.d`
)

var (
	configOverride  = flag.String("config-file-override", defaultConfigLoc, "Override location for configuration file")
	confdLoc        = flag.String("config-overlays", defaultConfigDLoc, "Location for configuration overlay files")
	logFileOverride = flag.String("log-file-override", "", "Additional file to mirror log output into")
	ver             = flag.Bool("version", false, "Print the version information and exit")

	version = "dev"

	confLoc string
)

func init() {
	flag.Parse()
	if *ver {
		fmt.Printf("ethercatd version %s\n", version)
		os.Exit(0)
	}
	if *configOverride == "" {
		confLoc = defaultConfigLoc
	} else {
		confLoc = *configOverride
	}
}

func main() {
	debug.SetTraceback("all")

	lg, err := logging.NewStderrLogger(*logFileOverride)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	cfg, err := config.Load(confLoc, *confdLoc)
	if err != nil {
		lg.FatalfCode(1, "failed to load configuration %q: %v", confLoc, err)
		return
	}
	lg.Infof("loaded configuration for %d drive(s) on master %d, cycle %.3fms", len(cfg.Drives), cfg.MasterIndex, cfg.CycleTimeMs)

	// The native EtherCAT master driver (spec §6 "Master Adapter") is an
	// external collaborator out of this repo's scope; SimAdapter stands in
	// for whatever cgo binding a deployment wires to the same interface.
	adapter := master.NewSimAdapter(4096)

	ingress := transport.NewIngress(256)
	egress := transport.NewEgress()

	w, err := worker.New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		lg.FatalfCode(1, "failed to construct worker: %v", err)
		return
	}

	quit := utils.GetQuitChannel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-quit
		lg.Infof("termination signal received, starting graceful shutdown")
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		lg.FatalfCode(1, "worker exited with error: %v", err)
		return
	}
	lg.Infof("ethercatd exited cleanly")
}
