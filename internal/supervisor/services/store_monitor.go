// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package services

import (
	"context"
	"time"

	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/metrics"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreMonitorService checks the marker store on an interval and exports the
// result as markit_store_up. Only transitions are logged.
type StoreMonitorService struct {
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	name     string

	healthy bool
	checked bool
}

// NewStoreMonitorService creates a monitor. A non-positive interval
// defaults to 30s.
func NewStoreMonitorService(store Pinger, interval time.Duration) *StoreMonitorService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &StoreMonitorService{
		store:    store,
		interval: interval,
		timeout:  timeout,
		name:     "store-monitor",
	}
}

// Serve implements suture.Service. A failed check never stops the service.
func (s *StoreMonitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *StoreMonitorService) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.store.Ping(checkCtx)
	if ctx.Err() != nil {
		return
	}
	healthy := err == nil
	metrics.SetStoreUp(healthy)

	if s.checked && healthy == s.healthy {
		return
	}
	switch {
	case healthy && s.checked:
		logging.Info().Msg("Marker store reachable again")
	case !healthy:
		logging.Warn().Err(err).Msg("Marker store unreachable")
	}
	s.healthy = healthy
	s.checked = true
}

// String names the service in supervisor events.
func (s *StoreMonitorService) String() string {
	return s.name
}
