// sim/approach.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
	"github.com/mmp/airspace/util"
)

// Approach is the terminal-area authority for one airport. It tracks the
// aircraft in its zone and a FIFO of aircraft in the holding pattern, and
// asks the airport's Tower for the runway on their behalf.
//
// Lock order: an Approach calls into its Tower and takes Aircraft locks
// while holding its own lock; neither ever calls back into the Approach.
type Approach struct {
	mu util.LoggingMutex

	airport string
	actor   string
	tower   *Tower
	cfg     Config

	inZone  []*Aircraft
	holding []*Aircraft
	// lowFuelReported keeps the low-fuel report to one per aircraft
	// visit.
	lowFuelReported map[*Aircraft]bool

	lg     *log.Logger
	events EventPoster
}

func NewApproach(airport string, tower *Tower, cfg Config, lg *log.Logger, events EventPoster) *Approach {
	return &Approach{
		mu:              util.LoggingMutex{Name: "approach " + airport},
		airport:         airport,
		actor:           "APP " + airport,
		tower:           tower,
		cfg:             cfg,
		lowFuelReported: make(map[*Aircraft]bool),
		lg:              lg.With(slog.String("controller", "APP"), slog.String("airport", airport)),
		events:          events,
	}
}

func (a *Approach) post(typ EventType, ac *Aircraft, detail string) {
	postEvent(a.events, Event{Type: typ, Actor: a.actor, Callsign: ac.Callsign(), Detail: detail})
}

// Admit adds ac to the zone; admitting an aircraft twice does nothing.
func (a *Approach) Admit(ac *Aircraft) {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)

	if !slices.Contains(a.inZone, ac) {
		a.inZone = append(a.inZone, ac)
		a.lg.Info("aircraft admitted", slog.String("callsign", ac.Callsign()), slog.Int("in_zone", len(a.inZone)))
	}
}

func (a *Approach) InZoneCount() int {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	return len(a.inZone)
}

func (a *Approach) InZone() []*Aircraft {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	return slices.Clone(a.inZone)
}

// HoldingQueue returns the holding FIFO, head first.
func (a *Approach) HoldingQueue() []*Aircraft {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	return slices.Clone(a.holding)
}

// approachFixes returns the outer fix, intercept, and short final for
// the runway.
func approachFixes(rwy math.Point3) []math.Point3 {
	return []math.Point3{
		{rwy[0], rwy[1] + 3000, 2000},
		{rwy[0], rwy[1] + 1000, 1000},
		{rwy[0], rwy[1] + 500, 500},
	}
}

// AssignApproachTrajectory sends ac down the glideslope to short final.
func (a *Approach) AssignApproachTrajectory(ac *Aircraft) {
	ac.SetWaypoints(approachFixes(a.tower.Runway())...)
	ac.SetState(StateApproaching)

	a.lg.Info("approach assigned", slog.String("callsign", ac.Callsign()))
	a.post(ApproachAssignedEvent, ac, "glideslope")
}

// HoldAircraft puts ac into the holding circuit around the runway and
// queues it at the back of the holding FIFO unless it is already circling.
func (a *Approach) HoldAircraft(ac *Aircraft) {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	a.holdLocked(ac)
}

func (a *Approach) holdLocked(ac *Aircraft) {
	queued := ac.State() == StateHoldingPattern && slices.Contains(a.holding, ac)
	if !queued {
		a.holding = slices.DeleteFunc(a.holding, func(h *Aircraft) bool { return h == ac })
		a.holding = append(a.holding, ac)
	}

	rwy := a.tower.Runway()
	ac.SetHoldingCircuit(math.CirclePoints(rwy, a.cfg.HoldRadius, a.cfg.HoldAltitude, a.cfg.HoldPoints))
	ac.SetState(StateHoldingPattern)

	a.lg.Info("holding", slog.String("callsign", ac.Callsign()), slog.Int("queue", len(a.holding)))
	if !queued {
		a.post(HoldingEvent, ac, fmt.Sprintf("position %d in holding queue", len(a.holding)))
	}
}

// RequestLandingClearance asks the Tower for the runway. If it is granted
// ac is sent to the touchdown point and leaves the zone.
func (a *Approach) RequestLandingClearance(ac *Aircraft) bool {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	return a.requestLandingClearanceLocked(ac)
}

func (a *Approach) requestLandingClearanceLocked(ac *Aircraft) bool {
	if !a.tower.AuthorizeLanding(ac) {
		return false
	}

	ac.SetWaypoints(a.tower.Runway())
	a.removeLocked(ac)
	a.lg.Info("cleared to land", slog.String("callsign", ac.Callsign()))
	return true
}

// ClearOrHold requests landing clearance for ac and, if it is refused,
// puts ac in the holding pattern. Every refusal goes through here so that
// no aircraft is left without either a clearance or a place in the
// queue.
func (a *Approach) ClearOrHold(ac *Aircraft) bool {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)

	if !a.emergencyPendingLocked(ac) && a.requestLandingClearanceLocked(ac) {
		return true
	}
	if ac.State() != StateHoldingPattern {
		a.holdLocked(ac)
	}
	return false
}

// emergencyPendingLocked reports whether ac must give way to an emergency:
// either one is already being handled at the airport or one in the zone
// is holding or inbound. Emergencies never give way here.
func (a *Approach) emergencyPendingLocked(ac *Aircraft) bool {
	if ac.InEmergency() {
		return false
	}
	if a.tower.EmergencyInProgress() {
		return true
	}
	return slices.ContainsFunc(a.inZone, func(o *Aircraft) bool {
		if o == ac || !o.InEmergency() {
			return false
		}
		st := o.State()
		return st == StateHoldingPattern || st == StateApproaching
	})
}

// HandleEmergency latches the airport emergency and sends ac direct to
// the runway, skipping the glideslope fixes.
func (a *Approach) HandleEmergency(ac *Aircraft) {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)
	a.handleEmergencyLocked(ac)
}

func (a *Approach) handleEmergencyLocked(ac *Aircraft) {
	a.tower.SetEmergencyInProgress(true)

	rwy := a.tower.Runway()
	ac.SetWaypoints(rwy.WithAltitude(1000), rwy)
	ac.SetState(StateApproaching)

	// A direct approach replaces any place in the holding queue.
	a.holding = slices.DeleteFunc(a.holding, func(h *Aircraft) bool { return h == ac })

	kind := ac.Emergency()
	a.lg.Warn("emergency handling", slog.String("callsign", ac.Callsign()), slog.String("kind", kind.String()))
	a.post(EmergencyHandledEvent, ac, "direct to runway: "+kind.String())
}

func (a *Approach) removeLocked(ac *Aircraft) {
	a.inZone = slices.DeleteFunc(a.inZone, func(z *Aircraft) bool { return z == ac })
	delete(a.lowFuelReported, ac)
}

// Tick runs one cycle of approach housekeeping and sequencing. In order:
// an emergency aircraft in the holding pattern gets a clearance attempt
// and ends the cycle if granted; then the head of the holding FIFO is
// serviced unless it must give way to an emergency; then new
// emergencies in the zone are sent direct to the runway.
func (a *Approach) Tick() {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)

	a.reportLowFuelLocked()

	// Emergencies that are holding go first. If one of them was refused
	// the runway is busy and the FIFO waits for the next cycle so that the
	// emergency gets the next clearance.
	emergencyWaiting := false
	for _, ac := range slices.Clone(a.inZone) {
		if ac.InEmergency() && ac.State() == StateHoldingPattern {
			if a.requestLandingClearanceLocked(ac) {
				a.lg.Info("priority clearance", slog.String("callsign", ac.Callsign()))
				return
			}
			emergencyWaiting = true
		}
	}

	// Then the holding FIFO. Entries that are no longer holding were
	// serviced some other way and are dropped.
	for len(a.holding) > 0 && a.holding[0].State() != StateHoldingPattern {
		a.holding = a.holding[1:]
	}
	if len(a.holding) > 0 && !emergencyWaiting {
		head := a.holding[0]
		if !a.emergencyPendingLocked(head) && a.requestLandingClearanceLocked(head) {
			a.holding = a.holding[1:]
		}
	}

	// Finally escalate any emergency not yet being handled.
	if !a.tower.EmergencyInProgress() {
		for _, ac := range slices.Clone(a.inZone) {
			if !ac.InEmergency() {
				continue
			}
			if st := ac.State(); st != StateApproaching && st != StateLanding {
				a.handleEmergencyLocked(ac)
				break
			}
		}
	}
}

func (a *Approach) reportLowFuelLocked() {
	for _, ac := range a.inZone {
		if a.lowFuelReported[ac] || ac.FuelFraction() >= a.cfg.LowFuelFraction {
			continue
		}
		a.lowFuelReported[ac] = true
		a.lg.Warn("low fuel", slog.String("callsign", ac.Callsign()), slog.Float64("fuel", ac.Fuel()))
		a.post(LowFuelEvent, ac, fmt.Sprintf("%.0f remaining", ac.Fuel()))
	}
}

// Run calls Tick every ApproachInterval until ctx is canceled.
func (a *Approach) Run(ctx context.Context) error {
	return runTicker(ctx, a.cfg.ApproachInterval, a.Tick)
}

type ApproachSnapshot struct {
	InZone  []string
	Holding []string
}

func (a *Approach) Snapshot() ApproachSnapshot {
	a.mu.Lock(a.lg)
	defer a.mu.Unlock(a.lg)

	var snap ApproachSnapshot
	for _, ac := range a.inZone {
		snap.InZone = append(snap.InZone, ac.Callsign())
	}
	for _, ac := range a.holding {
		snap.Holding = append(snap.Holding, ac.Callsign())
	}
	return snap
}
