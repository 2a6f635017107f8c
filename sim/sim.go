// sim/sim.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/rand"

	"golang.org/x/sync/errgroup"
)

// FlightPlan describes a flight to inject into the world.
type FlightPlan struct {
	Aircraft AircraftSpec
	// Origin is the airport the aircraft starts parked at. It is ignored
	// for InFlight aircraft.
	Origin string
	// Itinerary lists the destination of each leg in order.
	Itinerary []string
	// Repeat cycles through the itinerary indefinitely.
	Repeat bool
	// InFlight aircraft start cruising at Aircraft.Position.
	InFlight bool
	// Emergency, if set, is declared at launch.
	Emergency EmergencyKind
}

// World is the composition root of the engine: the airports, the Region,
// the fleet registry, the event stream, and the goroutines that run them.
type World struct {
	Config   Config
	Region   *Region
	Registry *Registry
	Events   *EventStream

	airports     map[string]*Airport
	airportOrder []string

	mu      sync.Mutex
	pilots  map[*Pilot]any
	pending []*Pilot
	rand    *rand.Rand
	eg      *errgroup.Group
	ctx     context.Context

	lg *log.Logger
}

func NewWorld(cfg Config, airports []AirportSpec, seed int64, lg *log.Logger) (*World, error) {
	if len(airports) == 0 {
		return nil, errors.New("no airports")
	}

	events := NewEventStream(lg)
	w := &World{
		Config:   cfg,
		Region:   NewRegion(cfg, lg, events),
		Registry: NewRegistry(cfg.MaxAircraft, cfg.RecentFlights),
		Events:   events,
		airports: make(map[string]*Airport),
		pilots:   make(map[*Pilot]any),
		rand:     rand.MakeSeeded(seed),
		lg:       lg,
	}

	for _, spec := range airports {
		if _, ok := w.airports[spec.Name]; ok {
			events.Destroy()
			return nil, fmt.Errorf("%s: duplicate airport", spec.Name)
		}
		w.airports[spec.Name] = NewAirport(spec, cfg, lg, events)
		w.airportOrder = append(w.airportOrder, spec.Name)
	}

	return w, nil
}

func (w *World) Airport(name string) (*Airport, bool) {
	ap, ok := w.airports[name]
	return ap, ok
}

// Airports returns the airports in the order they were configured.
func (w *World) Airports() []*Airport {
	aps := make([]*Airport, len(w.airportOrder))
	for i, name := range w.airportOrder {
		aps[i] = w.airports[name]
	}
	return aps
}

// Start launches the controller goroutines and any pilots launched so
// far. Pilots launched afterward start immediately. Wait returns once
// they have all exited after ctx is canceled.
func (w *World) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.eg != nil {
		return
	}
	w.eg, w.ctx = errgroup.WithContext(ctx)

	w.eg.Go(func() error { return w.run(w.Region.Run) })
	for _, ap := range w.Airports() {
		w.eg.Go(func() error { return w.run(ap.Tower.Run) })
		w.eg.Go(func() error { return w.run(ap.Approach.Run) })
	}

	for _, p := range w.pending {
		w.startPilotLocked(p)
	}
	w.pending = nil
}

// run wraps a goroutine body so that a panic is logged along with a
// crash report instead of taking down the process silently.
func (w *World) run(f func(context.Context) error) error {
	defer w.lg.CatchAndReportCrash()
	return f(w.ctx)
}

// Wait blocks until every goroutine started by Start has returned.
func (w *World) Wait() error {
	w.mu.Lock()
	eg := w.eg
	w.mu.Unlock()

	if eg == nil {
		return nil
	}
	return eg.Wait()
}

// Close releases the event stream. The world must not be used afterward.
func (w *World) Close() {
	w.Events.Destroy()
}

// Launch creates the aircraft described by fp and its pilot. A parked
// aircraft is given a gate at its origin; an in-flight one goes straight
// to the Region.
func (w *World) Launch(fp FlightPlan) (*Aircraft, error) {
	if fp.Aircraft.Callsign == "" || len(fp.Itinerary) == 0 {
		return nil, ErrInvalidFlightPlan
	}
	var itinerary []*Airport
	for _, name := range fp.Itinerary {
		ap, ok := w.airports[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknownAirport)
		}
		itinerary = append(itinerary, ap)
	}
	var origin *Airport
	if !fp.InFlight {
		var ok bool
		if origin, ok = w.airports[fp.Origin]; !ok {
			return nil, fmt.Errorf("%s: %w", fp.Origin, ErrUnknownAirport)
		}
	}

	ac := NewAircraft(fp.Aircraft, w.Config, w.lg, w.Events)
	if err := w.Registry.Add(ac); err != nil {
		return nil, err
	}

	w.mu.Lock()
	pr := rand.MakeSeeded(int64(w.rand.Uint32()))
	w.mu.Unlock()
	pilot := NewPilot(ac, w.Region, itinerary, fp.Repeat, w.Config, pr, w.lg, w.Events)

	if fp.InFlight {
		ac.SetDestination(itinerary[0])
		w.Region.TakeCharge(ac)
	} else {
		ac.SetAirport(origin)
		pk, ok := origin.Tower.AllocateParking(ac)
		if !ok {
			w.Registry.Remove(ac)
			return nil, fmt.Errorf("%s: %w", origin.Name, ErrNoFreeParking)
		}
		ac.SetPosition(pk.Position)
		ac.SetState(StateParked)
	}

	if fp.Emergency != EmergencyNone {
		ac.DeclareEmergency(fp.Emergency)
	}

	detail := "parked at " + fp.Origin
	if fp.InFlight {
		detail = "in flight to " + fp.Itinerary[0]
	}
	w.lg.Info("flight launched", slog.String("callsign", ac.Callsign()), slog.String("detail", detail))
	w.Events.PostEvent(Event{Type: FlightLaunchedEvent, Actor: "World", Callsign: ac.Callsign(), Detail: detail})

	w.mu.Lock()
	w.pilots[pilot] = nil
	if w.eg != nil {
		w.startPilotLocked(pilot)
	} else {
		w.pending = append(w.pending, pilot)
	}
	w.mu.Unlock()

	return ac, nil
}

func (w *World) startPilotLocked(p *Pilot) {
	w.eg.Go(func() error {
		err := w.run(p.Run)
		w.retirePilot(p)
		return err
	})
}

func (w *World) retirePilot(p *Pilot) {
	w.Registry.Retire(p.ac)

	w.mu.Lock()
	delete(w.pilots, p)
	w.mu.Unlock()
}

// Step runs every controller and pilot once, synchronously, advancing
// pilots by dt sim seconds. It is an alternative to Start for callers
// that want deterministic stepping; the two must not be mixed.
func (w *World) Step(dt float64) {
	w.Region.Tick()
	for _, ap := range w.Airports() {
		ap.Approach.Tick()
		ap.Tower.Tick()
	}

	w.mu.Lock()
	var pilots []*Pilot
	for p := range w.pilots {
		pilots = append(pilots, p)
	}
	w.mu.Unlock()

	// Deterministic order regardless of map iteration.
	slices.SortFunc(pilots, func(a, b *Pilot) int {
		return cmp.Compare(a.ac.Callsign(), b.ac.Callsign())
	})

	for _, p := range pilots {
		if p.Step(dt) {
			w.retirePilot(p)
		}
	}
}

// WorldSnapshot is a read-only copy of everything observers display.
type WorldSnapshot struct {
	Time     time.Time
	Airports []AirportSnapshot
	Aircraft []AircraftSnapshot
	Cruising []string
}

func (w *World) Snapshot() WorldSnapshot {
	snap := WorldSnapshot{Time: time.Now()}
	for _, ap := range w.Airports() {
		snap.Airports = append(snap.Airports, ap.Snapshot())
	}
	snap.Aircraft = w.Registry.Snapshot()
	for _, ac := range w.Region.Cruising() {
		snap.Cruising = append(snap.Cruising, ac.Callsign())
	}
	return snap
}
