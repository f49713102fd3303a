/*
 * Berth
 * Copyright (C) 2025  Quayside, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gravitational/trace"

	"github.com/quayside/berth"
	"github.com/quayside/berth/lib/config"
	"github.com/quayside/berth/lib/defaults"
	"github.com/quayside/berth/lib/service"
	"github.com/quayside/berth/lib/utils"
)

const appHelp = `Berth is an S3 compatible object storage server backed by a plain filesystem.

Objects are regular files under the data directory, so an existing file tree
can be served over the S3 API without an import step and inspected with
ordinary tools while the server runs.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		utils.FatalError(err)
	}
}

func run(args []string) error {
	var clf config.CommandLineFlags

	app := utils.InitCLIParser("berth", appHelp)

	start := app.Command("start", "Start the berth server.")
	start.Flag("config", fmt.Sprintf("Path to a configuration file [%v].", defaults.ConfigFilePath)).
		Short('c').Envar("BERTH_CONFIG_FILE").StringVar(&clf.ConfigFile)
	start.Flag("listen", fmt.Sprintf("Address for the S3 API to listen on [%v].", defaults.ListenAddr)).
		StringVar(&clf.ListenAddr)
	start.Flag("data-dir", fmt.Sprintf("Directory holding object data [%v].", defaults.DataDir)).
		StringVar(&clf.DataDir)
	start.Flag("diag-addr", fmt.Sprintf("Start the diagnostic endpoint on this address, for example 127.0.0.1:%v.", defaults.DiagnosticListenPort)).
		StringVar(&clf.DiagAddr)
	start.Flag("debug", "Verbose logging to stderr.").
		Short('d').BoolVar(&clf.Debug)

	versionCmd := app.Command("version", "Print the version of your berth binary.")

	command, err := app.Parse(args)
	if err != nil {
		app.Usage(args)
		return trace.Wrap(err)
	}

	switch command {
	case start.FullCommand():
		return trace.Wrap(onStart(&clf))
	case versionCmd.FullCommand():
		fmt.Println(berth.Version)
	}
	return nil
}

// onStart assembles the configuration and runs the service until it is
// told to stop.
func onStart(clf *config.CommandLineFlags) error {
	var cfg service.Config
	if err := config.Configure(clf, &cfg); err != nil {
		return trace.Wrap(err)
	}
	if err := utils.InitLogger(cfg.Log); err != nil {
		return trace.Wrap(err)
	}
	svc, err := service.New(cfg)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(svc.Run(context.Background()))
}
