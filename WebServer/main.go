/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/DavidBittner/http-webserver/httpd"
	"github.com/DavidBittner/http-webserver/httpd/auth"
	"github.com/DavidBittner/http-webserver/utils"
	"github.com/DavidBittner/http-webserver/version"
	"github.com/DavidBittner/http-webserver/wslog"
)

const (
	defaultConfigLoc = `/opt/webserver/etc/webserver.conf`
)

var (
	confLoc        = flag.String("config-file", defaultConfigLoc, "Location for configuration file")
	verbose        = flag.Bool("v", false, "Display verbose status updates to stdout")
	ver            = flag.Bool("version", false, "Print the version information and exit")
	stderrOverride = flag.String("stderr", "", "Redirect stderr to a shared memory file")
	lg             *wslog.Logger
	v              bool
)

func init() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		os.Exit(0)
	} else if *verbose {
		v = true
	}
	var fp string
	if *stderrOverride != `` {
		fp = path.Join(`/dev/shm/`, *stderrOverride)
	}
	var err error
	if lg, err = wslog.NewStderrLogger(fp); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stderr logger: %v\n", err)
		os.Exit(-1)
	}
}

func main() {
	cfg, err := GetConfig(*confLoc)
	if err != nil {
		lg.FatalfCode(0, "Failed to load config file %q: %v", *confLoc, err)
	}
	if cfg.Global.Log_File != `` {
		fout, err := os.OpenFile(cfg.Global.Log_File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			lg.FatalfCode(0, "Failed to open log file %s: %v", cfg.Global.Log_File, err)
		}
		if err = lg.AddWriter(fout); err != nil {
			lg.Fatalf("Failed to add a writer: %v", err)
		}
	}
	if cfg.Global.Log_Level != `` {
		if err = lg.SetLevelString(cfg.Global.Log_Level); err != nil {
			lg.FatalfCode(0, "Invalid Log Level %q: %v", cfg.Global.Log_Level, err)
		}
	}

	sc, err := cfg.ServerConfig()
	if err != nil {
		lg.FatalfCode(0, "Failed to resolve server configuration: %v", err)
	}
	debugout("Serving %s on %s\n", sc.Root, sc.BindString)

	if err = auth.StartWatcher(lg); err != nil {
		lg.Warn("access file watcher unavailable", wslog.KVErr(err))
	}

	srv, err := httpd.NewServer(sc, lg)
	if err != nil {
		lg.FatalfCode(0, "Failed to bring up the server: %v", err)
	}
	lg.Info("webserver started", wslog.KV("bind", sc.BindString), wslog.KV("root", sc.Root))
	go func() {
		if err := srv.Serve(); err != nil {
			lg.Error("serve loop failure", wslog.KVErr(err))
		}
	}()

	sig := utils.WaitForQuit()
	debugout("Received signal %v, shutting down\n", sig)
	if err = srv.Close(); err != nil {
		lg.Error("shutdown failure", wslog.KVErr(err))
	}
	auth.StopWatcher()
	lg.Info("webserver exited")
}

func debugout(format string, args ...interface{}) {
	if !v {
		return
	}
	fmt.Printf(format, args...)
}
