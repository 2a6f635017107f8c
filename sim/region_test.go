// sim/region_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"slices"
	"testing"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
)

func cruisingAircraft(r *Region, dest *Airport, callsign string, pos math.Point3) *Aircraft {
	ac := makeTestAircraft(callsign, pos, nil)
	ac.SetDestination(dest)
	r.TakeCharge(ac)
	return ac
}

func TestTakeCharge(t *testing.T) {
	r := NewRegion(testConfig(), log.Discard(), nil)
	dest := makeTestAirport("BBB", math.Point3{100000, 0, 0}, nil)
	ac := cruisingAircraft(r, dest, "TST1", math.Point3{0, 10000, 5000})
	r.TakeCharge(ac)

	if ac.State() != StateCruising {
		t.Errorf("expected cruising, got %s", ac.State())
	}
	if n := len(r.Cruising()); n != 1 {
		t.Errorf("expected one cruising aircraft, got %d", n)
	}
	want := math.Point3{100000, 0, testConfig().CruiseAltitude}
	if wps := ac.Waypoints(); len(wps) != 1 || wps[0] != want {
		t.Errorf("expected to route to %s, got %v", want, wps)
	}

	r.Remove(ac)
	if len(r.Cruising()) != 0 {
		t.Errorf("expected an empty cruising set")
	}
}

func TestSeparationCorrection(t *testing.T) {
	tests := []struct {
		name         string
		a, b         math.Point3
		wantA, wantB float64
	}{
		{"higher climbs", math.Point3{0, 0, 10000}, math.Point3{1000, 0, 10200}, 9500, 10700},
		{"tie first climbs", math.Point3{0, 0, 10000}, math.Point3{1000, 0, 10000}, 10500, 9500},
		{"separated", math.Point3{0, 0, 10000}, math.Point3{6000, 0, 10000}, 10000, 10000},
	}

	for _, test := range tests {
		rec := &eventRecorder{}
		r := NewRegion(testConfig(), log.Discard(), rec)
		dest := makeTestAirport("BBB", math.Point3{100000, 0, 0}, nil)
		a := cruisingAircraft(r, dest, "AAA1", test.a)
		b := cruisingAircraft(r, dest, "BBB1", test.b)

		before := math.Distance(a.Position(), b.Position())
		r.Tick()
		after := math.Distance(a.Position(), b.Position())

		if alt := a.Altitude(); alt != test.wantA {
			t.Errorf("%s: expected AAA1 at %f, got %f", test.name, test.wantA, alt)
		}
		if alt := b.Altitude(); alt != test.wantB {
			t.Errorf("%s: expected BBB1 at %f, got %f", test.name, test.wantB, alt)
		}

		conflict := before < testConfig().MinSeparation
		if conflict && after <= before {
			t.Errorf("%s: separation did not increase: %f -> %f", test.name, before, after)
		}
		if n := rec.count(ConflictAlertEvent, ""); (n == 1) != conflict {
			t.Errorf("%s: got %d conflict alerts", test.name, n)
		}
	}
}

func TestSeparationShiftsWaypoints(t *testing.T) {
	r := NewRegion(testConfig(), log.Discard(), nil)
	dest := makeTestAirport("BBB", math.Point3{100000, 0, 0}, nil)
	a := cruisingAircraft(r, dest, "AAA1", math.Point3{0, 0, 10000})
	cruisingAircraft(r, dest, "BBB1", math.Point3{1000, 0, 10000})

	r.Tick()
	if wps := a.Waypoints(); wps[0].Altitude() != 10500 {
		t.Errorf("expected the climbing aircraft's route to move up, got %v", wps)
	}
}

// fillApproach admits dummy aircraft until the approach is at capacity.
func fillApproach(ap *Airport, n int) []*Aircraft {
	var acs []*Aircraft
	for i := range n {
		ac := makeTestAircraft(fmt.Sprintf("ZON%d", i), math.Point3{0, 3000, 2000}, nil)
		ac.SetState(StateApproaching)
		ap.Approach.Admit(ac)
		acs = append(acs, ac)
	}
	return acs
}

func TestAdmissionBackPressure(t *testing.T) {
	rec := &eventRecorder{}
	cfg := testConfig()
	r := NewRegion(cfg, log.Discard(), rec)
	dest := makeTestAirport("BBB", math.Point3{}, nil)
	zone := fillApproach(dest, cfg.ApproachCapacity)

	ac := cruisingAircraft(r, dest, "ARR1", math.Point3{0, 8000, 10000})
	ac.SetWaypoints()

	r.Tick()
	r.Tick()

	if ac.State() != StateCruising || !slices.Contains(r.Cruising(), ac) {
		t.Errorf("expected the aircraft to stay in cruise, got %s", ac.State())
	}
	if n := dest.Approach.InZoneCount(); n != cfg.ApproachCapacity {
		t.Errorf("zone grew beyond capacity to %d", n)
	}
	if n := rec.count(RegulationEvent, "ARR1"); n != 1 {
		t.Errorf("expected one regulation event, got %d", n)
	}
	if !ac.Looping() {
		t.Errorf("deferred aircraft should hold around the destination")
	}

	// Clearing one zone aircraft frees a slot.
	if !dest.Approach.RequestLandingClearance(zone[0]) {
		t.Fatal("expected clearance")
	}
	r.Tick()
	if ac.State() != StateApproaching {
		t.Errorf("expected hand-off, got %s", ac.State())
	}
	if !slices.Contains(dest.Approach.InZone(), ac) || slices.Contains(r.Cruising(), ac) {
		t.Errorf("hand-off did not move the aircraft to the approach")
	}
	if rec.count(HandoffEvent, "ARR1") != 1 {
		t.Errorf("expected a hand-off event")
	}
}

func TestNoHandoffOutsideControlRadius(t *testing.T) {
	r := NewRegion(testConfig(), log.Discard(), nil)
	dest := makeTestAirport("BBB", math.Point3{}, nil)
	ac := cruisingAircraft(r, dest, "ARR1", math.Point3{0, 30000, 10000})

	r.Tick()
	if ac.State() != StateCruising || dest.Approach.InZoneCount() != 0 {
		t.Errorf("aircraft handed off outside the control radius")
	}
}

func TestEmergencyHandoffIgnoresCapacity(t *testing.T) {
	cfg := testConfig()
	r := NewRegion(cfg, log.Discard(), nil)
	dest := makeTestAirport("BBB", math.Point3{}, nil)
	fillApproach(dest, cfg.ApproachCapacity)

	ac := cruisingAircraft(r, dest, "EMR1", math.Point3{0, 60000, 10000})
	ac.DeclareEmergency(EmergencyEngineFailure)

	r.Tick()
	if ac.State() != StateApproaching {
		t.Errorf("expected immediate hand-off, got %s", ac.State())
	}
	if !dest.Tower.EmergencyInProgress() {
		t.Errorf("expected the destination's emergency latch to be set")
	}
	if wps := ac.Waypoints(); len(wps) != 2 || wps[1] != dest.Tower.Runway() {
		t.Errorf("expected a direct route to the runway, got %v", wps)
	}
}
