// sim/region.go
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

// Region is the en-route authority. It owns every cruising aircraft,
// keeps them separated, and hands them off to their destination's
// Approach when that Approach has room.
//
// Lock order: Region is outermost. Tick holds the Region lock while it
// calls into Approaches (and through them, Towers) and Aircraft.
type Region struct {
	mu util.LoggingMutex

	cfg      Config
	cruising []*Aircraft
	// deferred tracks aircraft currently held in cruise by a full
	// Approach so that the regulation is reported once per episode.
	deferred map[*Aircraft]bool

	lg     *log.Logger
	events EventPoster
}

const regionActor = "CCR"

func NewRegion(cfg Config, lg *log.Logger, events EventPoster) *Region {
	return &Region{
		mu:       util.LoggingMutex{Name: "region"},
		cfg:      cfg,
		deferred: make(map[*Aircraft]bool),
		lg:       lg.With(slog.String("controller", regionActor)),
		events:   events,
	}
}

func (r *Region) post(typ EventType, ac *Aircraft, detail string) {
	postEvent(r.events, Event{Type: typ, Actor: regionActor, Callsign: ac.Callsign(), Detail: detail})
}

// TakeCharge adds ac to the cruising set and routes it toward its
// destination at cruise altitude.
func (r *Region) TakeCharge(ac *Aircraft) {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	if !slices.Contains(r.cruising, ac) {
		r.cruising = append(r.cruising, ac)
	}
	ac.SetState(StateCruising)

	detail := "no destination"
	if dest := ac.Destination(); dest != nil {
		ac.SetWaypoints(dest.Position.WithAltitude(r.cfg.CruiseAltitude))
		detail = "direct " + dest.Name
	} else {
		ac.SetWaypoints()
	}

	r.lg.Info("taking charge", slog.String("callsign", ac.Callsign()), slog.String("route", detail))
	r.post(CruiseEvent, ac, detail)
}

func (r *Region) Cruising() []*Aircraft {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	return slices.Clone(r.cruising)
}

// Remove drops ac from the cruising set without handing it off.
func (r *Region) Remove(ac *Aircraft) {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	r.removeLocked(ac)
}

func (r *Region) removeLocked(ac *Aircraft) {
	r.cruising = slices.DeleteFunc(r.cruising, func(c *Aircraft) bool { return c == ac })
	delete(r.deferred, ac)
}

// Tick enforces separation between all cruising aircraft and then
// evaluates each of them for hand-off, all in one critical section.
func (r *Region) Tick() {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	r.separateLocked()
	r.evaluateHandoffsLocked()
}

func (r *Region) separateLocked() {
	for i := 0; i < len(r.cruising); i++ {
		for j := i + 1; j < len(r.cruising); j++ {
			a, b := r.cruising[i], r.cruising[j]
			pa, pb := a.Position(), b.Position()
			d := math.Distance(pa, pb)
			if d >= r.cfg.MinSeparation {
				continue
			}

			// The higher one climbs and the other descends; on a tie the
			// first one climbs.
			up, down := a, b
			if pb.Altitude() > pa.Altitude() {
				up, down = b, a
			}
			up.ShiftAltitude(r.cfg.SeparationStep)
			down.ShiftAltitude(-r.cfg.SeparationStep)

			r.lg.Warn("separation conflict", slog.String("climb", up.Callsign()),
				slog.String("descend", down.Callsign()), slog.Float64("distance", d))
			detail := fmt.Sprintf("%s/%s at %.0f: %s climbs, %s descends", a.Callsign(), b.Callsign(), d,
				up.Callsign(), down.Callsign())
			postEvent(r.events, Event{Type: ConflictAlertEvent, Actor: regionActor, Callsign: a.Callsign(), Detail: detail})
		}
	}
}

func (r *Region) evaluateHandoffsLocked() {
	for _, ac := range slices.Clone(r.cruising) {
		dest := ac.Destination()
		if dest == nil || ac.State() != StateCruising {
			continue
		}

		if ac.InEmergency() {
			r.handOffLocked(ac, dest.Approach)
			continue
		}

		dist := math.Distance2(ac.Position(), dest.Position)
		if dist > dest.ControlRadius {
			continue
		}

		if n := dest.Approach.InZoneCount(); n < r.cfg.ApproachCapacity {
			r.handOffLocked(ac, dest.Approach)
			continue
		} else if !r.deferred[ac] {
			r.deferred[ac] = true
			r.lg.Info("regulation: approach full", slog.String("callsign", ac.Callsign()),
				slog.String("airport", dest.Name), slog.Int("in_zone", n))
			r.post(RegulationEvent, ac, fmt.Sprintf("%s approach full (%d)", dest.Name, n))
		}

		// Hold around the destination rather than sitting on the fix.
		if !ac.HasWaypoints() {
			ac.SetHoldingCircuit(math.CirclePoints(dest.Position, r.cfg.HoldRadius, r.cfg.CruiseAltitude,
				r.cfg.HoldPoints))
		}
	}
}

// HandOff transfers ac from cruise to the given Approach.
func (r *Region) HandOff(ac *Aircraft, app *Approach) {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	r.handOffLocked(ac, app)
}

func (r *Region) handOffLocked(ac *Aircraft, app *Approach) {
	r.removeLocked(ac)
	app.Admit(ac)

	emergency := ac.InEmergency()
	if emergency {
		app.HandleEmergency(ac)
	} else {
		app.AssignApproachTrajectory(ac)
	}

	r.lg.Info("hand-off", slog.String("callsign", ac.Callsign()), slog.String("to", app.actor),
		slog.Bool("emergency", emergency))
	r.post(HandoffEvent, ac, app.actor)
}

// Run calls Tick every RegionInterval until ctx is canceled.
func (r *Region) Run(ctx context.Context) error {
	return runTicker(ctx, r.cfg.RegionInterval, r.Tick)
}
