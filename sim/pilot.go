// sim/pilot.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/rand"

	"github.com/goforj/godump"
)

// Pilot drives one Aircraft through its lifecycle, calling into the
// Towers, Approaches and the Region at each transition. It holds no
// controller locks of its own.
type Pilot struct {
	ac        *Aircraft
	region    *Region
	itinerary []*Airport
	// leg indexes the itinerary entry the aircraft is flying to, or will
	// fly to next once it leaves the gate.
	leg    int
	repeat bool

	cfg  Config
	rand *rand.Rand

	// dwell is the sim time spent parked at the gate so far.
	dwell float64
	// evacuation is the remaining grace period once the flight is over.
	evacuation float64

	lg     *log.Logger
	events EventPoster
}

func NewPilot(ac *Aircraft, region *Region, itinerary []*Airport, repeat bool, cfg Config,
	r *rand.Rand, lg *log.Logger, events EventPoster) *Pilot {
	return &Pilot{
		ac:        ac,
		region:    region,
		itinerary: itinerary,
		repeat:    repeat,
		cfg:       cfg,
		rand:      r,
		lg:        lg.With(slog.String("pilot", ac.Callsign())),
		events:    events,
	}
}

func (p *Pilot) Aircraft() *Aircraft {
	return p.ac
}

func (p *Pilot) post(typ EventType, detail string) {
	postEvent(p.events, Event{Type: typ, Actor: "Pilot " + p.ac.Callsign(), Callsign: p.ac.Callsign(), Detail: detail})
}

// Run advances the aircraft every PilotInterval until the flight is over
// or ctx is canceled.
func (p *Pilot) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PilotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.Step(p.cfg.PilotStep) {
				return nil
			}
		}
	}
}

// Step advances the flight by dt sim seconds. It returns true once the
// aircraft is Finished and its evacuation grace period has elapsed.
func (p *Pilot) Step(dt float64) bool {
	ac := p.ac

	switch ac.State() {
	case StateParked:
		p.dwell += dt
		if p.dwell >= p.cfg.TurnaroundTime {
			p.dispatch()
		}

	case StateHoldingForDeparture, StateHoldingShort:
		// Waiting on the Tower.

	case StateTaxiingToRunway:
		ac.AdvanceGround(dt)
		if !ac.HasWaypoints() {
			ac.SetState(StateHoldingShort)
			p.post(HoldingShortEvent, "at runway threshold")
		}

	case StateDeparting:
		ac.AdvanceAirborne(dt)
		if ac.Altitude() >= p.cfg.DepartureAltitude || !ac.HasWaypoints() {
			p.enterCruise()
		}

	case StateCruising, StateHoldingPattern:
		ac.AdvanceAirborne(dt)

	case StateApproaching:
		ac.AdvanceAirborne(dt)
		if !ac.HasWaypoints() {
			if dest := ac.Destination(); dest != nil {
				dest.Approach.ClearOrHold(ac)
			}
		}

	case StateLanding:
		ac.AdvanceAirborne(dt)
		if !ac.HasWaypoints() && ac.Altitude() <= p.cfg.TouchdownAltitude {
			p.touchdown()
		}

	case StateTaxiingToGate:
		ac.AdvanceGround(dt)
		if !ac.HasWaypoints() {
			ac.SetState(StateParked)
			p.dwell = 0
			name := ""
			if pk := ac.Parking(); pk != nil {
				name = pk.Name
			}
			p.post(ParkedEvent, name)
			ac.PerformMaintenance()
		}

	case StateFinished:
		p.evacuation -= dt
		return p.evacuation <= 0
	}

	return false
}

// nextDestination returns the airport the next leg flies to.
func (p *Pilot) nextDestination() (*Airport, bool) {
	if len(p.itinerary) == 0 || (p.leg >= len(p.itinerary) && !p.repeat) {
		return nil, false
	}
	return p.itinerary[p.leg%len(p.itinerary)], true
}

// dispatch ends the turnaround: either the aircraft is registered for
// its next departure or, with the itinerary done, the flight finishes.
func (p *Pilot) dispatch() {
	ac := p.ac
	dest, ok := p.nextDestination()
	if !ok {
		p.finish("route complete", 0)
		return
	}

	ac.SetDestination(dest)
	if ap := ac.Airport(); ap != nil {
		ap.Tower.RegisterForDeparture(ac)
	} else {
		p.lg.Error("parked aircraft has no airport")
		p.finish("no airport", 0)
	}
}

// enterCruise draws the leg's random emergency, hands the aircraft to the
// Region and then gives the runway back. The aircraft must leave
// Departing before the runway token is released.
func (p *Pilot) enterCruise() {
	ac := p.ac

	if RollEmergency(ac, p.rand, p.cfg.EmergencyChance) {
		p.lg.Info("random emergency", slog.String("kind", ac.Emergency().String()))
	}

	p.region.TakeCharge(ac)
	if ap := ac.Airport(); ap != nil {
		ap.Tower.ReleaseDepartingAircraft(ac)
	}
}

func (p *Pilot) touchdown() {
	ac := p.ac
	dest := ac.Destination()
	if dest == nil {
		p.lg.Error("landing without a destination")
		p.finish("no destination", p.cfg.EvacuationTime)
		return
	}

	ac.SetPosition(ac.Position().WithAltitude(0))
	ac.SetAirport(dest)
	p.post(TouchdownEvent, dest.Name)

	tower := dest.Tower
	if pk, ok := tower.AllocateParking(ac); ok {
		tower.RouteToGate(ac, pk)
		tower.ReleaseRunway(ac)
		p.leg++
		return
	}

	// Nowhere to go: the aircraft is evacuated on the runway and removed
	// so that the runway does not stay blocked.
	p.lg.Warn("no parking at touchdown", slog.String("aircraft", godump.DumpStr(ac.Snapshot())))
	p.post(NoParkingEvent, "evacuating on runway "+dest.Name)
	p.finish("no parking", p.cfg.EvacuationTime)
}

// finish marks the aircraft Finished and drops its claims on airports and
// the Region. The pilot exits after grace sim seconds.
func (p *Pilot) finish(reason string, grace float64) {
	ac := p.ac
	ac.SetState(StateFinished)
	p.evacuation = grace

	if ap := ac.Airport(); ap != nil {
		ap.Tower.ReleaseParking(ac)
		ap.Tower.RetireAircraft(ac)
	}
	if dest := ac.Destination(); dest != nil && dest != ac.Airport() {
		dest.Tower.RetireAircraft(ac)
	}
	p.region.Remove(ac)

	p.lg.Info("flight finished", slog.String("reason", reason))
	p.post(FlightFinishedEvent, reason)
}
