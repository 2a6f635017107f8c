// sim/approach_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"slices"
	"testing"

	"github.com/mmp/airspace/math"
)

// holdingAircraft admits a new aircraft to the approach and puts it in
// the holding pattern.
func holdingAircraft(ap *Airport, callsign string, emergency EmergencyKind) *Aircraft {
	ac := makeTestAircraft(callsign, math.Point3{0, 5000, 2000}, nil)
	ac.SetDestination(ap)
	ac.DeclareEmergency(emergency)
	ap.Approach.Admit(ac)
	ap.Approach.HoldAircraft(ac)
	return ac
}

func callsigns(acs []*Aircraft) []string {
	var cs []string
	for _, ac := range acs {
		cs = append(cs, ac.Callsign())
	}
	return cs
}

func TestAdmitIdempotent(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	ac := makeTestAircraft("TST1", math.Point3{}, nil)

	ap.Approach.Admit(ac)
	ap.Approach.Admit(ac)
	if n := ap.Approach.InZoneCount(); n != 1 {
		t.Errorf("expected 1 aircraft in zone, got %d", n)
	}
}

func TestAssignApproachTrajectory(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{1000, 2000, 0}, nil)
	ac := makeTestAircraft("TST1", math.Point3{1000, 15000, 10000}, nil)

	ap.Approach.AssignApproachTrajectory(ac)
	if ac.State() != StateApproaching {
		t.Errorf("expected approaching, got %s", ac.State())
	}
	want := []math.Point3{{1000, 5000, 2000}, {1000, 3000, 1000}, {1000, 2500, 500}}
	if wps := ac.Waypoints(); !slices.Equal(wps, want) {
		t.Errorf("expected fixes %v, got %v", want, wps)
	}
}

func TestHoldAircraft(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	ac := holdingAircraft(ap, "TST1", EmergencyNone)
	ap.Approach.HoldAircraft(ac)

	if ac.State() != StateHoldingPattern || !ac.Looping() {
		t.Errorf("expected a looping holding pattern, got %s", ac.State())
	}
	cfg := testConfig()
	if n := len(ac.Waypoints()); n != cfg.HoldPoints {
		t.Errorf("expected %d circuit points, got %d", cfg.HoldPoints, n)
	}
	if q := ap.Approach.HoldingQueue(); len(q) != 1 || q[0] != ac {
		t.Errorf("expected a single queue entry, got %v", q)
	}
}

func TestClearOrHold(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	blocker := makeTestAircraft("BLK1", math.Point3{}, nil)
	ap.Tower.AuthorizeLanding(blocker)

	ac := makeTestAircraft("TST1", math.Point3{0, 500, 500}, nil)
	ap.Approach.Admit(ac)
	ac.SetState(StateApproaching)

	if ap.Approach.ClearOrHold(ac) {
		t.Fatalf("cleared while the runway is held")
	}
	if ac.State() != StateHoldingPattern {
		t.Errorf("refused aircraft should be holding, got %s", ac.State())
	}
	ap.Approach.ClearOrHold(ac)
	if n := len(ap.Approach.HoldingQueue()); n != 1 {
		t.Errorf("expected one queue entry, got %d", n)
	}

	ap.Tower.ReleaseRunway(blocker)
	if !ap.Approach.ClearOrHold(ac) {
		t.Fatalf("expected clearance with the runway free")
	}
	if ac.State() != StateLanding {
		t.Errorf("expected landing, got %s", ac.State())
	}
	if wps := ac.Waypoints(); len(wps) != 1 || wps[0] != ap.Tower.Runway() {
		t.Errorf("expected touchdown waypoint, got %v", wps)
	}
	if ap.Approach.InZoneCount() != 0 {
		t.Errorf("cleared aircraft should leave the zone")
	}
}

func TestHoldingFIFO(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	first := holdingAircraft(ap, "FST1", EmergencyNone)
	second := holdingAircraft(ap, "SND1", EmergencyNone)

	ap.Approach.Tick()
	if first.State() != StateLanding {
		t.Errorf("expected the head of the queue to be cleared, got %s", first.State())
	}
	if second.State() != StateHoldingPattern {
		t.Errorf("expected the second aircraft to keep holding, got %s", second.State())
	}

	// The runway is busy, so nothing changes.
	ap.Approach.Tick()
	if q := ap.Approach.HoldingQueue(); len(q) != 1 || q[0] != second {
		t.Errorf("unexpected queue %v", q)
	}

	ap.Tower.ReleaseRunway(first)
	ap.Approach.Tick()
	if second.State() != StateLanding {
		t.Errorf("expected the second aircraft to be cleared, got %s", second.State())
	}
	if len(ap.Approach.HoldingQueue()) != 0 {
		t.Errorf("expected an empty queue")
	}
}

func TestStaleHoldingEntries(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	a := holdingAircraft(ap, "AAA1", EmergencyNone)
	b := holdingAircraft(ap, "BBB1", EmergencyNone)

	// a is cleared outside the queue.
	if !ap.Approach.RequestLandingClearance(a) {
		t.Fatal("expected clearance")
	}
	ap.Approach.Tick()
	if q := ap.Approach.HoldingQueue(); len(q) != 1 || q[0] != b {
		t.Errorf("expected the stale entry dropped, got %v", q)
	}

	ap.Tower.ReleaseRunway(a)
	ap.Approach.Tick()
	if b.State() != StateLanding {
		t.Errorf("expected b cleared, got %s", b.State())
	}
}

func TestRequeueAfterLeavingHolding(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	a := holdingAircraft(ap, "AAA1", EmergencyNone)
	b := holdingAircraft(ap, "BBB1", EmergencyNone)
	c := holdingAircraft(ap, "CCC1", EmergencyNone)

	// b is sent down the glideslope, then refused and held again. Its old
	// entry is behind the head, so Tick has not dropped it yet.
	ap.Approach.AssignApproachTrajectory(b)
	ap.Approach.HoldAircraft(b)

	if q := ap.Approach.HoldingQueue(); !slices.Equal(q, []*Aircraft{a, c, b}) {
		t.Errorf("expected the re-held aircraft at the back, got %v", callsigns(q))
	}

	// Holding again while still circling keeps the place.
	ap.Approach.HoldAircraft(a)
	if q := ap.Approach.HoldingQueue(); !slices.Equal(q, []*Aircraft{a, c, b}) {
		t.Errorf("expected the queue unchanged, got %v", callsigns(q))
	}
}

func TestEmergencyPriority(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	normal := holdingAircraft(ap, "NRM1", EmergencyNone)
	emer := holdingAircraft(ap, "EMR1", EmergencyMedical)

	ap.Approach.Tick()

	if ap.Tower.RunwayHolder() != emer {
		t.Errorf("expected the emergency to get the runway ahead of the queue head")
	}
	if normal.State() != StateHoldingPattern {
		t.Errorf("expected the queue head to keep holding, got %s", normal.State())
	}
}

func TestEmergencyPriorityRunwayBusy(t *testing.T) {
	ap := makeTestAirport("AAA", math.Point3{}, nil)
	blocker := makeTestAircraft("BLK1", math.Point3{}, nil)
	ap.Tower.AuthorizeLanding(blocker)

	normal := holdingAircraft(ap, "NRM1", EmergencyNone)
	emer := holdingAircraft(ap, "EMR1", EmergencyMedical)

	// Refused, so the emergency is sent direct to the runway instead.
	ap.Approach.Tick()
	if emer.State() != StateApproaching || !ap.Tower.EmergencyInProgress() {
		t.Fatalf("expected emergency handling, got %s", emer.State())
	}
	if wps := emer.Waypoints(); len(wps) != 2 || wps[1] != ap.Tower.Runway() {
		t.Errorf("expected a direct route to the runway, got %v", wps)
	}
	if slices.Contains(ap.Approach.HoldingQueue(), emer) {
		t.Errorf("emergency should leave the holding queue")
	}

	// With the runway free, the queue still waits for the emergency.
	ap.Tower.ReleaseRunway(blocker)
	ap.Approach.Tick()
	if normal.State() != StateHoldingPattern {
		t.Errorf("queue head cleared ahead of the emergency")
	}

	if !ap.Approach.ClearOrHold(emer) {
		t.Errorf("expected the emergency to get the next clearance")
	}
	if normal.State() != StateHoldingPattern {
		t.Errorf("queue head should still be holding")
	}
}

func TestLowFuelReportedOnce(t *testing.T) {
	rec := &eventRecorder{}
	ap := makeTestAirport("AAA", math.Point3{}, rec)
	ac := makeTestAircraft("TST1", math.Point3{0, 20000, 10000}, rec)

	// Down to 24% of capacity, below the low-fuel mark but above critical.
	ac.AdvanceAirborne(380)
	ap.Approach.Admit(ac)
	ap.Approach.AssignApproachTrajectory(ac)

	ap.Approach.Tick()
	ap.Approach.Tick()

	if n := rec.count(LowFuelEvent, "TST1"); n != 1 {
		t.Errorf("expected one low-fuel report, got %d", n)
	}
	if ac.InEmergency() {
		t.Errorf("low fuel alone is not an emergency")
	}
	if ac.State() != StateApproaching {
		t.Errorf("low fuel report changed state to %s", ac.State())
	}
}

func TestArrivalGivesWayToEmergency(t *testing.T) {
	tests := []struct {
		name string
		// setup leaves an emergency pending with the runway free.
		setup func(t *testing.T, ap *Airport) *Aircraft
	}{
		{"escalated", func(t *testing.T, ap *Airport) *Aircraft {
			blocker := makeTestAircraft("BLK1", math.Point3{}, nil)
			ap.Tower.AuthorizeLanding(blocker)
			emer := holdingAircraft(ap, "EMR1", EmergencyEngineFailure)
			ap.Approach.Tick()
			if emer.State() != StateApproaching || !ap.Tower.EmergencyInProgress() {
				t.Fatalf("expected emergency handling, got %s", emer.State())
			}
			ap.Tower.ReleaseRunway(blocker)
			return emer
		}},
		{"holding", func(t *testing.T, ap *Airport) *Aircraft {
			return holdingAircraft(ap, "EMR1", EmergencyMedical)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap := makeTestAirport("AAA", math.Point3{}, nil)
			emer := tt.setup(t, ap)

			normal := makeTestAircraft("NRM1", math.Point3{0, 2500, 500}, nil)
			normal.SetDestination(ap)
			ap.Approach.Admit(normal)
			ap.Approach.AssignApproachTrajectory(normal)

			if ap.Approach.ClearOrHold(normal) {
				t.Fatalf("arrival cleared ahead of the emergency")
			}
			if ap.Tower.RunwayHolder() == normal {
				t.Errorf("arrival holds the runway")
			}
			if normal.State() != StateHoldingPattern {
				t.Errorf("expected the arrival to hold, got %s", normal.State())
			}

			if !ap.Approach.ClearOrHold(emer) {
				t.Errorf("expected the emergency to be cleared")
			}
		})
	}
}
