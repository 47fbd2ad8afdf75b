// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Command projectrank runs the project recommendation and trending pipeline.
//
// Subcommands:
//
//	serve      run the scheduler and the read API under a supervisor tree
//	encode     rebuild the feature store from the source database
//	infer      score every user and publish recs:{userIdx}
//	trending   score one day or week window and publish top:{kind}:{id}
//	score      print the ranking of one user without publishing it
//
// Configuration comes from built-in defaults, an optional YAML file
// (--config or CONFIG_PATH) and mapped environment variables.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata" // trending windows need IANA zones on minimal images

	"github.com/tomtom215/projectrank/internal/logging"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
