// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

/*
Package supervisor provides process supervision for Projectrank using suture v4.

The tree has two layers so a failing scheduler never stops the read API:

	RootSupervisor ("projectrank")
	├── PipelineSupervisor ("pipeline-layer")
	│   └── SchedulerService (hourly inference, daily and weekly trending)
	└── APISupervisor ("api-layer")
	    └── APIServerService (if server.enabled)

Supervisor events are logged through sutureslog, backed by zerolog via
logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewSchedulerService(pipe, lock, schedCfg, logger))
	tree.AddAPIService(services.NewAPIServerService(server, server.Addr, 10*time.Second, logger))
	return tree.Serve(ctx)

# Failure Handling

Each layer counts failures independently. Past FailureThreshold (decaying
over FailureDecay seconds) the layer waits FailureBackoff before restarting.
Defaults: 5 failures, 30s decay, 15s backoff, 10s shutdown timeout.

The source database and the score store are not supervised: they are
clients opened once by the command and closed on exit.

If services do not stop in time, UnstoppedServiceReport lists them.
*/
package supervisor
