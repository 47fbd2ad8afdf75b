// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPServer matches the *http.Server lifecycle methods so tests can use a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// APIServerService runs the read API as a supervised service.
//
// ListenAndServe runs in a goroutine. Cancellation of the Serve context
// triggers Shutdown with a fresh context bounded by shutdownTimeout, since
// the Serve context is already done by then.
//
//	server := &http.Server{Addr: ":8089", Handler: router}
//	tree.AddAPIService(services.NewAPIServerService(server, server.Addr, 10*time.Second, logger))
type APIServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	name            string
}

// NewAPIServerService wraps server. A non-positive shutdownTimeout becomes 10s.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAPIServerService(server HTTPServer, addr string, shutdownTimeout time.Duration, logger zerolog.Logger) *APIServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &APIServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("service", "api-server").Logger(),
		name:            "api-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (a *APIServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.logger.Info().Str("addr", a.addr).Msg("Read API listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}
		<-errCh
		a.logger.Info().Msg("Read API stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for logging.
func (a *APIServerService) String() string {
	return a.name
}
