// sim/tower.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
	"github.com/mmp/airspace/util"
)

// Tower is the runway and ground authority for one airport. It owns the
// runway token, the airport's gates, and the departure set.
//
// Lock order: a Tower may take an Aircraft's lock while holding its own;
// it never calls into an Approach or the Region. Runway release is always
// its own critical section and is never called with mu held.
type Tower struct {
	mu util.LoggingMutex

	airport string
	actor   string
	runway  math.Point3
	cfg     Config

	// runwayHolder is the aircraft holding the runway token; nil when the
	// runway is free.
	runwayHolder        *Aircraft
	parkings            []*Parking
	departures          []*Aircraft
	emergencyInProgress bool

	lg     *log.Logger
	events EventPoster
}

func NewTower(airport string, runway math.Point3, parkings []*Parking, cfg Config,
	lg *log.Logger, events EventPoster) *Tower {
	return &Tower{
		mu:       util.LoggingMutex{Name: "tower " + airport},
		airport:  airport,
		actor:    "TWR " + airport,
		runway:   runway,
		cfg:      cfg,
		parkings: parkings,
		lg:       lg.With(slog.String("controller", "TWR"), slog.String("airport", airport)),
		events:   events,
	}
}

func (t *Tower) post(typ EventType, ac *Aircraft, detail string) {
	e := Event{Type: typ, Actor: t.actor, Detail: detail}
	if ac != nil {
		e.Callsign = ac.Callsign()
	}
	postEvent(t.events, e)
}

// Runway returns the runway threshold position.
func (t *Tower) Runway() math.Point3 {
	return t.runway
}

func (t *Tower) RunwayFree() bool {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	return t.runwayHolder == nil
}

// RunwayHolder returns the aircraft holding the runway token, if any.
func (t *Tower) RunwayHolder() *Aircraft {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	return t.runwayHolder
}

func (t *Tower) freeParkingCountLocked() int {
	n := 0
	for _, p := range t.parkings {
		if p.occupant == nil {
			n++
		}
	}
	return n
}

func (t *Tower) FreeParkingCount() int {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	return t.freeParkingCountLocked()
}

// AuthorizeLanding grants ac the runway if it is free and either a gate
// is free or ac is in emergency. Emergencies skip the gate check but
// never the runway check. On success ac is Landing and holds the runway.
func (t *Tower) AuthorizeLanding(ac *Aircraft) bool {
	emergency := ac.InEmergency()

	t.mu.Lock(t.lg)
	runwayFree := t.runwayHolder == nil
	parkingFree := t.freeParkingCountLocked() > 0
	granted := runwayFree && (parkingFree || emergency)
	if granted {
		t.runwayHolder = ac
		ac.SetState(StateLanding)
	}
	t.mu.Unlock(t.lg)

	if granted {
		t.lg.Info("landing granted", slog.String("callsign", ac.Callsign()), slog.Bool("emergency", emergency))
		detail := "runway allocated"
		if emergency {
			detail = "priority landing"
		}
		t.post(LandingGrantedEvent, ac, detail)
	} else {
		reason := "runway occupied"
		if runwayFree {
			reason = "no free parking"
		}
		t.lg.Debug("landing refused", slog.String("callsign", ac.Callsign()), slog.String("reason", reason))
		t.post(LandingRefusedEvent, ac, reason)
	}
	return granted
}

// ChooseFreeParking returns the first free gate or nil. It does not
// reserve it; use AssignParking or AllocateParking for that.
func (t *Tower) ChooseFreeParking() *Parking {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)

	for _, p := range t.parkings {
		if p.occupant == nil {
			return p
		}
	}
	return nil
}

// AssignParking reserves p for ac. It fails if p belongs to another
// airport or is already held by a different aircraft.
func (t *Tower) AssignParking(ac *Aircraft, p *Parking) error {
	t.mu.Lock(t.lg)
	err := t.assignParkingLocked(ac, p)
	t.mu.Unlock(t.lg)

	if err != nil {
		return fmt.Errorf("%s: %s: %w", ac.Callsign(), p.Name, err)
	}
	t.lg.Info("parking assigned", slog.String("callsign", ac.Callsign()), slog.String("parking", p.Name))
	t.post(ParkingAssignedEvent, ac, p.Name)
	return nil
}

// AllocateParking picks the first free gate and assigns it to ac in a
// single critical section.
func (t *Tower) AllocateParking(ac *Aircraft) (*Parking, bool) {
	t.mu.Lock(t.lg)
	var assigned *Parking
	for _, p := range t.parkings {
		if p.occupant == nil {
			if err := t.assignParkingLocked(ac, p); err == nil {
				assigned = p
			}
			break
		}
	}
	t.mu.Unlock(t.lg)

	if assigned == nil {
		return nil, false
	}
	t.lg.Info("parking assigned", slog.String("callsign", ac.Callsign()), slog.String("parking", assigned.Name))
	t.post(ParkingAssignedEvent, ac, assigned.Name)
	return assigned, true
}

func (t *Tower) assignParkingLocked(ac *Aircraft, p *Parking) error {
	if !slices.Contains(t.parkings, p) {
		return ErrUnknownParking
	}
	if p.occupant != nil && p.occupant != ac {
		return ErrParkingOccupied
	}

	// An aircraft holds at most one gate.
	if old := ac.Parking(); old != nil && old != p && old.occupant == ac {
		old.occupant = nil
	}
	p.occupant = ac
	ac.setParking(p)

	if ac.InEmergency() && t.emergencyInProgress {
		t.emergencyInProgress = false
		t.lg.Info("emergency handled, maintenance begins", slog.String("callsign", ac.Callsign()))
	}
	return nil
}

// ReleaseParking frees the gate held by ac, if any.
func (t *Tower) ReleaseParking(ac *Aircraft) {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)

	if p := ac.Parking(); p != nil {
		t.lg.Debug("gate released", slog.String("callsign", ac.Callsign()), slog.String("parking", p.Name))
	}
	t.releaseParkingLocked(ac)
}

func (t *Tower) releaseParkingLocked(ac *Aircraft) {
	if p := ac.Parking(); p != nil {
		if p.occupant == ac {
			p.occupant = nil
		}
		ac.setParking(nil)
	}
}

// RouteToGate sends ac taxiing to p. It does not release the runway; the
// caller does that with ReleaseRunway once ac is clear of it.
func (t *Tower) RouteToGate(ac *Aircraft, p *Parking) {
	ac.SetWaypoints(p.Position)
	ac.SetState(StateTaxiingToGate)

	t.lg.Info("taxi to gate", slog.String("callsign", ac.Callsign()), slog.String("parking", p.Name))
	t.post(TaxiToGateEvent, ac, p.Name)
}

// ReleaseRunway frees the runway token if ac holds it. It reports whether
// the token was released.
func (t *Tower) ReleaseRunway(ac *Aircraft) bool {
	t.mu.Lock(t.lg)
	released := t.runwayHolder == ac
	if released {
		t.runwayHolder = nil
	}
	t.mu.Unlock(t.lg)

	if released {
		t.lg.Debug("runway released", slog.String("callsign", ac.Callsign()))
		t.post(RunwayReleasedEvent, ac, "")
	}
	return released
}

// RegisterForDeparture adds ac to the departure set. Registering an
// aircraft that is already in the set does nothing.
func (t *Tower) RegisterForDeparture(ac *Aircraft) {
	t.mu.Lock(t.lg)
	added := !slices.Contains(t.departures, ac)
	if added {
		t.departures = append(t.departures, ac)
		ac.SetState(StateHoldingForDeparture)
	}
	t.mu.Unlock(t.lg)

	if added {
		t.lg.Info("registered for departure", slog.String("callsign", ac.Callsign()))
		t.post(DepartureRegisteredEvent, ac, "")
	}
}

// SelectDepartureCandidate returns the aircraft to clear for takeoff, if
// any. An aircraft holding short wins outright. If one is already taxiing
// to the runway nothing happens. Otherwise the registered aircraft whose
// gate is farthest from the runway is sent taxiing, and nil is returned
// since it is not yet at the threshold.
func (t *Tower) SelectDepartureCandidate() *Aircraft {
	t.mu.Lock(t.lg)

	states := make([]LifecycleState, len(t.departures))
	for i, ac := range t.departures {
		states[i] = ac.State()
		if states[i] == StateHoldingShort {
			t.mu.Unlock(t.lg)
			return ac
		}
	}
	if slices.Contains(states, StateTaxiingToRunway) {
		t.mu.Unlock(t.lg)
		return nil
	}

	var best *Aircraft
	bestDist := -1.
	for i, ac := range t.departures {
		if states[i] != StateHoldingForDeparture {
			continue
		}
		var d float64
		if p := ac.Parking(); p != nil {
			d = p.DistanceTo(t.runway)
		} else {
			d = math.Distance(ac.Position(), t.runway)
		}
		if d > bestDist {
			best, bestDist = ac, d
		}
	}

	if best != nil {
		best.SetWaypoints(t.runway)
		t.releaseParkingLocked(best)
		best.SetState(StateTaxiingToRunway)
	}
	t.mu.Unlock(t.lg)

	if best != nil {
		t.lg.Info("taxi to runway", slog.String("callsign", best.Callsign()), slog.Float64("distance", bestDist))
		t.post(TaxiToRunwayEvent, best, fmt.Sprintf("%.0f from runway", bestDist))
	}
	return nil
}

// AuthorizeTakeoff clears ac for takeoff if it is holding short, the
// runway is free, and no emergency is being handled at the airport.
func (t *Tower) AuthorizeTakeoff(ac *Aircraft) bool {
	t.mu.Lock(t.lg)
	ok := !t.emergencyInProgress && t.runwayHolder == nil && ac.State() == StateHoldingShort
	if ok {
		t.runwayHolder = ac
		ac.SetWaypoints(math.Point3{t.runway[0], t.runway[1] + t.cfg.DepartureClimbDistance,
			t.cfg.DepartureAltitude})
		ac.SetState(StateDeparting)
	}
	t.mu.Unlock(t.lg)

	if ok {
		t.lg.Info("takeoff authorized", slog.String("callsign", ac.Callsign()))
		t.post(TakeoffEvent, ac, "")
	}
	return ok
}

// ReleaseDepartingAircraft removes ac from the departure set and frees the
// runway if ac holds it. It does nothing if ac is not in the set, so
// duplicate calls are harmless.
func (t *Tower) ReleaseDepartingAircraft(ac *Aircraft) bool {
	t.mu.Lock(t.lg)
	idx := slices.Index(t.departures, ac)
	if idx != -1 {
		t.departures = slices.Delete(t.departures, idx, idx+1)
		if t.runwayHolder == ac {
			t.runwayHolder = nil
		}
	}
	t.mu.Unlock(t.lg)

	if idx != -1 {
		t.lg.Info("departure released", slog.String("callsign", ac.Callsign()))
		t.post(DepartureReleasedEvent, ac, "runway free")
	}
	return idx != -1
}

// RetireAircraft drops the claims a finished flight has on the airport
// besides its gate: its departure slot, the runway if held, and the
// emergency latch if ac is the emergency being handled. The gate goes
// back through ReleaseParking.
func (t *Tower) RetireAircraft(ac *Aircraft) {
	emergency := ac.InEmergency()

	t.mu.Lock(t.lg)
	if idx := slices.Index(t.departures, ac); idx != -1 {
		t.departures = slices.Delete(t.departures, idx, idx+1)
	}
	if emergency {
		t.emergencyInProgress = false
	}
	t.mu.Unlock(t.lg)

	t.ReleaseRunway(ac)
}

func (t *Tower) SetEmergencyInProgress(b bool) {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	t.emergencyInProgress = b
}

func (t *Tower) EmergencyInProgress() bool {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	return t.emergencyInProgress
}

// Departures returns the aircraft currently in the departure set.
func (t *Tower) Departures() []*Aircraft {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)
	return slices.Clone(t.departures)
}

// Tick runs one cycle of departure sequencing.
func (t *Tower) Tick() {
	if !t.RunwayFree() {
		return
	}
	if ac := t.SelectDepartureCandidate(); ac != nil {
		t.AuthorizeTakeoff(ac)
	}
}

// Run calls Tick every TowerInterval until ctx is canceled.
func (t *Tower) Run(ctx context.Context) error {
	return runTicker(ctx, t.cfg.TowerInterval, t.Tick)
}

type TowerSnapshot struct {
	RunwayHolder        string
	EmergencyInProgress bool
	Departures          []string
	Parkings            []ParkingSnapshot
}

func (t *Tower) Snapshot() TowerSnapshot {
	t.mu.Lock(t.lg)
	defer t.mu.Unlock(t.lg)

	var snap TowerSnapshot
	if t.runwayHolder != nil {
		snap.RunwayHolder = t.runwayHolder.Callsign()
	}
	snap.EmergencyInProgress = t.emergencyInProgress
	for _, ac := range t.departures {
		snap.Departures = append(snap.Departures, ac.Callsign())
	}
	for _, p := range t.parkings {
		ps := ParkingSnapshot{Name: p.Name, Position: p.Position}
		if p.occupant != nil {
			ps.Occupant = p.occupant.Callsign()
		}
		snap.Parkings = append(snap.Parkings, ps)
	}
	return snap
}

// runTicker calls f every interval until ctx is done.
func runTicker(ctx context.Context, interval time.Duration, f func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f()
		}
	}
}
