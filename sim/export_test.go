// sim/export_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
)

// eventRecorder is an EventPoster that keeps everything posted to it.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) PostEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(typ EventType, callsign string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Type == typ && (callsign == "" || e.Callsign == callsign) {
			n++
		}
	}
	return n
}

// testConfig returns the default configuration with random emergencies
// turned off and fast polling for tests that run the goroutines.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EmergencyChance = 0
	cfg.PilotInterval = time.Millisecond
	cfg.TowerInterval = time.Millisecond
	cfg.ApproachInterval = time.Millisecond
	cfg.RegionInterval = time.Millisecond
	return cfg
}

func testSpec(callsign string, pos math.Point3) AircraftSpec {
	return AircraftSpec{
		Callsign:     callsign,
		CruiseSpeed:  1000,
		TaxiSpeed:    100,
		FuelCapacity: 5000,
		BurnRate:     10,
		Position:     pos,
	}
}

func makeTestAircraft(callsign string, pos math.Point3, events EventPoster) *Aircraft {
	return NewAircraft(testSpec(callsign, pos), testConfig(), log.Discard(), events)
}

func makeTestAirport(name string, pos math.Point3, events EventPoster) *Airport {
	spec := AirportSpec{Name: name, Position: pos, ControlRadius: 15000}
	return NewAirport(spec, testConfig(), log.Discard(), events)
}

func eventTypes(events []Event) []EventType {
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func expectEvent(t *testing.T, events []Event, typ EventType) {
	t.Helper()
	if !slices.Contains(eventTypes(events), typ) {
		t.Errorf("expected a %s event, got %v", typ, eventTypes(events))
	}
}
