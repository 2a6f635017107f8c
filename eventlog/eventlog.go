// eventlog/eventlog.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package eventlog consumes the simulation's event stream and records it:
// as a human-readable JSON file, as a compressed binary archive, and as a
// running tally for the end-of-run report.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/sim"
)

// Sink is a destination for simulation events.
type Sink interface {
	Write(events []sim.Event) error
	Close() error
}

// Pump moves events from sub to every sink each interval until ctx is
// canceled, then hands over whatever is left. Write errors are logged and
// do not stop the pump; the sinks are not closed.
func Pump(ctx context.Context, sub *sim.EventsSubscription, interval time.Duration, lg *log.Logger,
	sinks ...Sink) error {
	drain := func() error {
		events := sub.Get()
		if len(events) == 0 {
			return nil
		}
		var errs []error
		for _, s := range sinks {
			if err := s.Write(events); err != nil {
				errs = append(errs, fmt.Errorf("%T: %w", s, err))
			}
		}
		return errors.Join(errs...)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return drain()
		case <-ticker.C:
			if err := drain(); err != nil {
				lg.Warn("event sink", slog.Any("error", err))
			}
		}
	}
}

// CloseAll closes each sink and returns the combined error.
func CloseAll(sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Text writes one line per event.
type Text struct {
	W io.Writer
}

func (t Text) Write(events []sim.Event) error {
	for _, e := range events {
		if _, err := fmt.Fprintf(t.W, "%s %s\n", e.Time.Format("15:04:05.000"), e); err != nil {
			return err
		}
	}
	return nil
}

func (t Text) Close() error { return nil }
