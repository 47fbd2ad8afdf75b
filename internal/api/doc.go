// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

/*
Package api serves the read side of Projectrank over HTTP using the Chi router.

The API never computes scores. It reads the sorted sets the inference and
trending engines publish to the score store and returns them as JSON.

# Endpoints

	GET /healthz                      liveness, always 200 while the process runs
	GET /readyz                       503 unless the score store (and database, if set) respond
	GET /metrics                      Prometheus exposition
	GET /api/v1/recs/{userIdx}        personalized list for one user index (?limit=)
	GET /api/v1/trending/{window}     day or week ranking (?date=YYYY-MM-DD, ?limit=)

Without a date the trending endpoint returns the last complete window in the
trending timezone, which is the window the scheduler publishes.

# Responses

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "..."}}

# Middleware

Global: request id, real IP, panic recovery, request logging.
Under /api/v1: per-IP rate limiting (go-chi/httprate), security headers,
request metrics labeled by route pattern, and a request timeout.

When Config.CacheTTL is positive, score reads go through an in-process LRU
keyed by store key and limit. Readiness probes always hit the store.
*/
package api
