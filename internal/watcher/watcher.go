// Package watcher polls the database for seat revisions so that commits made
// by other processes sharing the database reach local subscribers.
package watcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"seating-backend/config"
)

// Revisions reports the current revision of every event.
type Revisions interface {
	Revisions(ctx context.Context) (map[string]int64, error)
}

// Refresher schedules a snapshot rebuild for an event.
type Refresher interface {
	Refresh(eventID string)
}

// Service compares revisions on an interval and refreshes changed events.
type Service struct {
	cfg    config.WatcherConfig
	source Revisions
	hub    Refresher
	log    *logrus.Entry
	seen   map[string]int64
}

// NewService creates a watcher.
func NewService(cfg config.WatcherConfig, source Revisions, hub Refresher, log *logrus.Entry) *Service {
	return &Service{cfg: cfg, source: source, hub: hub, log: log}
}

// Run polls until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("revision watcher is disabled")
		return
	}
	s.log.WithField("interval", s.cfg.Interval).Info("starting revision watcher")

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("revision watcher shutting down")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// PollOnce reads revisions once and refreshes every event whose revision
// moved since the previous poll. The first poll only records a baseline.
func (s *Service) PollOnce(ctx context.Context) []string {
	revisions, err := s.source.Revisions(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to read seat revisions")
		return nil
	}

	if s.seen == nil {
		s.seen = revisions
		return nil
	}

	var changed []string
	for eventID, rev := range revisions {
		if prev, ok := s.seen[eventID]; ok && prev == rev {
			continue
		}
		changed = append(changed, eventID)
		s.hub.Refresh(eventID)
	}
	s.seen = revisions

	if len(changed) > 0 {
		s.log.WithField("events", changed).Debug("revisions moved")
	}
	return changed
}
