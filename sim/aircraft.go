// sim/aircraft.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"

	"github.com/brunoga/deep"
)

// AircraftSpec describes an aircraft's fixed performance at creation.
type AircraftSpec struct {
	Callsign     string
	CruiseSpeed  float64 // units per sim second
	TaxiSpeed    float64
	FuelCapacity float64
	BurnRate     float64 // fuel per sim second airborne
	Position     math.Point3
}

// Aircraft is shared between its pilot goroutine and the controllers; all
// of its mutable state is guarded by mu. Methods never call into other
// components while holding mu.
type Aircraft struct {
	mu sync.Mutex

	callsign     string
	cruiseSpeed  float64
	taxiSpeed    float64
	fuel         float64
	fuelCapacity float64
	burnRate     float64

	position  math.Point3
	waypoints []math.Point3
	// looping is set for holding circuits: reached waypoints go back on
	// the end of the list.
	looping bool

	state     LifecycleState
	emergency EmergencyKind

	parking     *Parking
	destination *Airport
	airport     *Airport

	fuelCriticalFraction float64
	groundIdleFraction   float64

	lg     *log.Logger
	events EventPoster
}

func NewAircraft(spec AircraftSpec, cfg Config, lg *log.Logger, events EventPoster) *Aircraft {
	return &Aircraft{
		callsign:             spec.Callsign,
		cruiseSpeed:          spec.CruiseSpeed,
		taxiSpeed:            spec.TaxiSpeed,
		fuel:                 spec.FuelCapacity,
		fuelCapacity:         spec.FuelCapacity,
		burnRate:             spec.BurnRate,
		position:             spec.Position,
		state:                StateParked,
		fuelCriticalFraction: cfg.FuelCriticalFraction,
		groundIdleFraction:   cfg.GroundIdleFraction,
		lg:                   lg.With(slog.String("callsign", spec.Callsign)),
		events:               events,
	}
}

func (ac *Aircraft) Callsign() string {
	return ac.callsign // immutable
}

func (ac *Aircraft) Position() math.Point3 {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.position
}

func (ac *Aircraft) SetPosition(p math.Point3) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.position = p
}

func (ac *Aircraft) Altitude() float64 {
	return ac.Position().Altitude()
}

func (ac *Aircraft) State() LifecycleState {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.state
}

func (ac *Aircraft) SetState(s LifecycleState) {
	ac.mu.Lock()
	old := ac.state
	ac.state = s
	ac.mu.Unlock()

	if old != s {
		ac.lg.Debug("state change", slog.String("from", old.String()), slog.String("to", s.String()))
	}
}

func (ac *Aircraft) Fuel() float64 {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.fuel
}

func (ac *Aircraft) FuelCapacity() float64 {
	return ac.fuelCapacity // immutable
}

// FuelFraction returns the remaining fuel as a fraction of capacity.
func (ac *Aircraft) FuelFraction() float64 {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.fuelCapacity <= 0 {
		return 0
	}
	return ac.fuel / ac.fuelCapacity
}

func (ac *Aircraft) Emergency() EmergencyKind {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.emergency
}

func (ac *Aircraft) InEmergency() bool {
	return ac.Emergency() != EmergencyNone
}

// Waypoints returns a copy of the remaining waypoints.
func (ac *Aircraft) Waypoints() []math.Point3 {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return slices.Clone(ac.waypoints)
}

func (ac *Aircraft) HasWaypoints() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return len(ac.waypoints) > 0
}

// SetWaypoints replaces the trajectory; the aircraft flies it once.
func (ac *Aircraft) SetWaypoints(wps ...math.Point3) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.waypoints = slices.Clone(wps)
	ac.looping = false
}

// SetHoldingCircuit replaces the trajectory with a closed circuit that
// the aircraft flies until it is given a new one.
func (ac *Aircraft) SetHoldingCircuit(wps []math.Point3) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.waypoints = slices.Clone(wps)
	ac.looping = len(wps) > 0
}

func (ac *Aircraft) Looping() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.looping
}

// ShiftAltitude moves the aircraft and its remaining waypoints vertically
// by delta, never below the ground.
func (ac *Aircraft) ShiftAltitude(delta float64) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	shift := func(p math.Point3) math.Point3 {
		return p.WithAltitude(max(0, p.Altitude()+delta))
	}
	ac.position = shift(ac.position)
	for i := range ac.waypoints {
		ac.waypoints[i] = shift(ac.waypoints[i])
	}
}

func (ac *Aircraft) Parking() *Parking {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.parking
}

// setParking is only called by the Tower that owns p, with its lock held.
func (ac *Aircraft) setParking(p *Parking) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.parking = p
}

func (ac *Aircraft) Destination() *Airport {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.destination
}

func (ac *Aircraft) SetDestination(ap *Airport) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.destination = ap
}

// Airport returns the airport the aircraft is on the ground at, or the
// last one it left.
func (ac *Aircraft) Airport() *Airport {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.airport
}

func (ac *Aircraft) SetAirport(ap *Airport) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.airport = ap
}

// AdvanceAirborne moves the aircraft dt sim seconds along its trajectory
// at cruise speed, burning fuel at the full rate.
func (ac *Aircraft) AdvanceAirborne(dt float64) {
	ac.advance(dt, false)
}

// AdvanceGround moves the aircraft dt sim seconds along its taxi route
// at taxi speed, burning fuel at the ground-idle rate.
func (ac *Aircraft) AdvanceGround(dt float64) {
	ac.advance(dt, true)
}

func (ac *Aircraft) advance(dt float64, ground bool) {
	if dt <= 0 {
		return
	}

	ac.mu.Lock()

	speed, burn := ac.cruiseSpeed, ac.burnRate
	if ground {
		speed, burn = ac.taxiSpeed, ac.burnRate*ac.groundIdleFraction
	}

	if len(ac.waypoints) > 0 {
		target := ac.waypoints[0]
		var arrived bool
		ac.position, arrived = math.MoveToward(ac.position, target, speed*dt)
		if arrived {
			ac.waypoints = ac.waypoints[1:]
			if ac.looping {
				ac.waypoints = append(ac.waypoints, target)
			}
		}
	}

	ac.fuel = math.Clamp(ac.fuel-burn*dt, 0, ac.fuelCapacity)

	declared := false
	if ac.emergency == EmergencyNone && ac.fuel < ac.fuelCriticalFraction*ac.fuelCapacity {
		declared = ac.declareEmergencyLocked(EmergencyFuelCritical)
	}
	ac.mu.Unlock()

	if declared {
		ac.reportEmergency(EmergencyFuelCritical)
	}
}

// PerformMaintenance refuels the aircraft to capacity and clears any
// emergency.
func (ac *Aircraft) PerformMaintenance() {
	ac.mu.Lock()
	ac.fuel = ac.fuelCapacity
	cleared := ac.emergency
	ac.emergency = EmergencyNone
	ac.mu.Unlock()

	ac.lg.Info("maintenance complete", slog.String("cleared_emergency", cleared.String()))
	postEvent(ac.events, Event{
		Type:     MaintenanceEvent,
		Actor:    "Ground " + ac.callsign,
		Callsign: ac.callsign,
		Detail:   "refueled",
	})
}

// AircraftSnapshot is a read-only copy of an aircraft's observable state.
type AircraftSnapshot struct {
	Callsign     string
	Position     math.Point3
	Waypoints    []math.Point3
	State        LifecycleState
	Emergency    EmergencyKind
	Fuel         float64
	FuelCapacity float64
	Parking      string
	Airport      string
	Destination  string
}

func (ac *Aircraft) Snapshot() AircraftSnapshot {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	snap := AircraftSnapshot{
		Callsign:     ac.callsign,
		Position:     ac.position,
		Waypoints:    deep.MustCopy(ac.waypoints),
		State:        ac.state,
		Emergency:    ac.emergency,
		Fuel:         ac.fuel,
		FuelCapacity: ac.fuelCapacity,
	}
	if ac.parking != nil {
		snap.Parking = ac.parking.Name
	}
	if ac.airport != nil {
		snap.Airport = ac.airport.Name
	}
	if ac.destination != nil {
		snap.Destination = ac.destination.Name
	}
	return snap
}
