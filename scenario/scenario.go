// scenario/scenario.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package scenario loads the JSON description of a simulation: the
// airports, the initial fleet, timing, limits and random traffic
// generation, and builds a sim.World from it.
package scenario

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
	"github.com/mmp/airspace/sim"
	"github.com/mmp/airspace/util"
)

//go:embed default.json
var defaultScenario []byte

type Scenario struct {
	Name        string        `json:"name"`
	Seed        int64         `json:"seed"`
	Airports    []AirportSpec `json:"airports"`
	Fleet       []FlightSpec  `json:"fleet"`
	Performance Performance   `json:"performance"` // default for the fleet and spawned traffic
	Timing      Timing        `json:"timing"`
	Limits      Limits        `json:"limits"`
	Spawn       *SpawnSpec    `json:"spawn,omitempty"`

	// Set by PostDeserialize.
	config sim.Config
}

type AirportSpec struct {
	Name          string      `json:"name"`
	Position      math.Point3 `json:"position"`
	ControlRadius float64     `json:"control_radius"`
	Gates         []float64   `json:"gates,omitempty"` // x offsets from the runway
}

type FlightSpec struct {
	Callsign  string   `json:"callsign"`
	Origin    string   `json:"origin,omitempty"`
	Itinerary []string `json:"itinerary"`
	Repeat    bool     `json:"repeat,omitempty"`
	// Position is only given for aircraft that start in flight.
	Position    *math.Point3      `json:"position,omitempty"`
	Emergency   sim.EmergencyKind `json:"emergency,omitempty"`
	Performance *Performance      `json:"performance,omitempty"`
}

type Performance struct {
	CruiseSpeed  float64 `json:"cruise_speed"`
	TaxiSpeed    float64 `json:"taxi_speed"`
	FuelCapacity float64 `json:"fuel_capacity"`
	BurnRate     float64 `json:"burn_rate"`
}

type Timing struct {
	PilotInterval    Duration `json:"pilot_interval"`
	PilotStep        float64  `json:"pilot_step"`
	TowerInterval    Duration `json:"tower_interval"`
	ApproachInterval Duration `json:"approach_interval"`
	RegionInterval   Duration `json:"region_interval"`
	Turnaround       float64  `json:"turnaround"`
	Evacuation       float64  `json:"evacuation"`
}

type Limits struct {
	MaxAircraft      int     `json:"max_aircraft"`
	ApproachCapacity int     `json:"approach_capacity"`
	MinSeparation    float64 `json:"min_separation"`
	SeparationStep   float64 `json:"separation_step"`
	CruiseAltitude   float64 `json:"cruise_altitude"`
	RecentFlights    int     `json:"recent_flights"`
	// EmergencyChance is a pointer so that 0 can turn random emergencies
	// off.
	EmergencyChance *float64 `json:"emergency_chance,omitempty"`
}

type SpawnSpec struct {
	Interval         Duration   `json:"interval"`
	InFlightFraction *float64   `json:"in_flight_fraction,omitempty"`
	EntryDistance    [2]float64 `json:"entry_distance"`
	Airlines         []string   `json:"airlines,omitempty"`
	Legs             int        `json:"legs"`
}

// Duration is a time.Duration written in JSON as a string like "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%s: durations are given as strings like \"250ms\"", string(b))
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Load reads and validates the scenario in filename, or the built-in
// scenario if filename is empty. It returns nil if there were errors,
// which are reported to e.
func Load(filename string, e *util.ErrorLogger) *Scenario {
	contents := defaultScenario
	if filename == "" {
		filename = "default.json"
	} else {
		var err error
		if contents, err = os.ReadFile(filename); err != nil {
			e.Error(err)
			return nil
		}
	}

	e.Push("File " + filename)
	defer e.Pop()

	return Parse(contents, e)
}

// Parse decodes and validates a scenario.
func Parse(contents []byte, e *util.ErrorLogger) *Scenario {
	var s Scenario
	if !util.DecodeJSON(contents, &s, e) {
		return nil
	}

	s.PostDeserialize(e)
	if e.HaveErrors() {
		return nil
	}
	return &s
}

// PostDeserialize fills in defaults and checks the scenario for
// consistency.
func (s *Scenario) PostDeserialize(e *util.ErrorLogger) {
	defer e.CheckDepth(e.CurrentDepth())

	if s.Name == "" {
		e.ErrorString("scenario is missing \"name\"")
	}

	s.config = s.makeConfig()
	s.config.Validate(e)

	def := sim.DefaultSpawnConfig().Performance
	s.Performance.fillDefaults(Performance{
		CruiseSpeed:  def.CruiseSpeed,
		TaxiSpeed:    def.TaxiSpeed,
		FuelCapacity: def.FuelCapacity,
		BurnRate:     def.BurnRate,
	})
	e.Push("\"performance\"")
	s.Performance.validate(e)
	e.Pop()

	gates := s.checkAirports(e)
	s.checkFleet(gates, e)

	if s.Spawn != nil {
		e.Push("\"spawn\"")
		s.Spawn.postDeserialize(e)
		e.Pop()
	}
}

func (s *Scenario) makeConfig() sim.Config {
	cfg := sim.Config{
		PilotInterval:    time.Duration(s.Timing.PilotInterval),
		PilotStep:        s.Timing.PilotStep,
		TowerInterval:    time.Duration(s.Timing.TowerInterval),
		ApproachInterval: time.Duration(s.Timing.ApproachInterval),
		RegionInterval:   time.Duration(s.Timing.RegionInterval),
		TurnaroundTime:   s.Timing.Turnaround,
		EvacuationTime:   s.Timing.Evacuation,
		MinSeparation:    s.Limits.MinSeparation,
		SeparationStep:   s.Limits.SeparationStep,
		ApproachCapacity: s.Limits.ApproachCapacity,
		CruiseAltitude:   s.Limits.CruiseAltitude,
		MaxAircraft:      s.Limits.MaxAircraft,
		RecentFlights:    s.Limits.RecentFlights,
	}
	cfg.FillDefaults()

	cfg.EmergencyChance = sim.DefaultConfig().EmergencyChance
	if s.Limits.EmergencyChance != nil {
		cfg.EmergencyChance = *s.Limits.EmergencyChance
	}
	return cfg
}

// checkAirports validates the airports and returns the number of gates
// at each one.
func (s *Scenario) checkAirports(e *util.ErrorLogger) map[string]int {
	e.Push("\"airports\"")
	defer e.Pop()

	if len(s.Airports) == 0 {
		e.ErrorString("at least one airport must be given")
	}

	gates := make(map[string]int)
	for i := range s.Airports {
		ap := &s.Airports[i]
		if ap.Name == "" {
			e.ErrorString("airport %d is missing \"name\"", i)
			continue
		}

		e.Push(ap.Name)
		if _, ok := gates[ap.Name]; ok {
			e.ErrorString("airport defined more than once")
		}
		if ap.ControlRadius <= 0 {
			e.ErrorString("\"control_radius\" must be positive")
		}
		if !ap.Position.IsFinite() {
			e.ErrorString("invalid \"position\" %s", ap.Position)
		}
		if len(ap.Gates) == 0 {
			ap.Gates = slices.Clone(sim.DefaultGateOffsets)
		}
		for _, g := range ap.Gates {
			if g <= 0 {
				e.ErrorString("gate offset %f must be positive", g)
			}
		}
		gates[ap.Name] = len(ap.Gates)
		e.Pop()
	}
	return gates
}

func (s *Scenario) checkFleet(gates map[string]int, e *util.ErrorLogger) {
	e.Push("\"fleet\"")
	defer e.Pop()

	if len(s.Fleet) > s.config.MaxAircraft {
		e.ErrorString("%d aircraft exceeds \"max_aircraft\" %d", len(s.Fleet), s.config.MaxAircraft)
	}

	seen := make(map[string]bool)
	parked := make(map[string]int)
	for i := range s.Fleet {
		f := &s.Fleet[i]
		if f.Callsign == "" {
			e.ErrorString("flight %d is missing \"callsign\"", i)
			continue
		}

		e.Push(f.Callsign)
		if seen[f.Callsign] {
			e.ErrorString("callsign used more than once")
		}
		seen[f.Callsign] = true

		if len(f.Itinerary) == 0 {
			e.ErrorString("\"itinerary\" must list at least one airport")
		}
		for _, name := range f.Itinerary {
			if _, ok := gates[name]; !ok {
				e.ErrorString("%s: unknown airport in \"itinerary\"", name)
			}
		}

		if f.Position != nil {
			if f.Origin != "" {
				e.ErrorString("\"origin\" and \"position\" may not both be given")
			}
			if !f.Position.IsFinite() {
				e.ErrorString("invalid \"position\" %s", *f.Position)
			}
		} else if f.Origin == "" {
			e.ErrorString("one of \"origin\" or \"position\" must be given")
		} else if _, ok := gates[f.Origin]; !ok {
			e.ErrorString("%s: unknown \"origin\" airport", f.Origin)
		} else {
			parked[f.Origin]++
			if parked[f.Origin] > gates[f.Origin] {
				e.ErrorString("%s: more aircraft parked than it has gates", f.Origin)
			}
		}

		if f.Performance != nil {
			f.Performance.fillDefaults(s.Performance)
			e.Push("\"performance\"")
			f.Performance.validate(e)
			e.Pop()
		}
		e.Pop()
	}
}

func (p *Performance) fillDefaults(d Performance) {
	for _, v := range []struct {
		v   *float64
		def float64
	}{{&p.CruiseSpeed, d.CruiseSpeed}, {&p.TaxiSpeed, d.TaxiSpeed},
		{&p.FuelCapacity, d.FuelCapacity}, {&p.BurnRate, d.BurnRate}} {
		if *v.v == 0 {
			*v.v = v.def
		}
	}
}

func (p *Performance) validate(e *util.ErrorLogger) {
	if p.CruiseSpeed <= 0 || p.TaxiSpeed <= 0 {
		e.ErrorString("speeds must be positive")
	}
	if p.FuelCapacity <= 0 {
		e.ErrorString("\"fuel_capacity\" must be positive")
	}
	if p.BurnRate < 0 {
		e.ErrorString("\"burn_rate\" must not be negative")
	}
}

func (sp *SpawnSpec) postDeserialize(e *util.ErrorLogger) {
	def := sim.DefaultSpawnConfig()

	if sp.Interval == 0 {
		sp.Interval = Duration(def.Interval)
	} else if sp.Interval < 0 {
		e.ErrorString("\"interval\" must be positive")
	}
	if sp.InFlightFraction == nil {
		sp.InFlightFraction = &def.InFlightFraction
	} else if f := *sp.InFlightFraction; f < 0 || f > 1 {
		e.ErrorString("\"in_flight_fraction\" must be between 0 and 1")
	}
	if sp.EntryDistance == [2]float64{} {
		sp.EntryDistance = def.EntryDistance
	} else if sp.EntryDistance[0] <= 0 || sp.EntryDistance[0] > sp.EntryDistance[1] {
		e.ErrorString("\"entry_distance\" must be an increasing pair of positive distances")
	}
	if len(sp.Airlines) == 0 {
		sp.Airlines = def.Airlines
	}
	for _, al := range sp.Airlines {
		if al == "" {
			e.ErrorString("empty airline code")
		}
	}
	if sp.Legs == 0 {
		sp.Legs = def.Legs
	} else if sp.Legs < 0 {
		e.ErrorString("\"legs\" must be positive")
	}
}

// Config returns the engine configuration; it is valid after
// PostDeserialize.
func (s *Scenario) Config() sim.Config {
	return s.config
}

// SpawnConfig returns the random traffic configuration and whether
// random traffic is enabled.
func (s *Scenario) SpawnConfig() (sim.SpawnConfig, bool) {
	if s.Spawn == nil {
		return sim.SpawnConfig{}, false
	}
	cfg := sim.SpawnConfig{
		Interval:         time.Duration(s.Spawn.Interval),
		InFlightFraction: *s.Spawn.InFlightFraction,
		EntryDistance:    s.Spawn.EntryDistance,
		Airlines:         s.Spawn.Airlines,
		Performance:      s.Performance.spec(""),
		Legs:             s.Spawn.Legs,
	}
	return cfg, true
}

func (p Performance) spec(callsign string) sim.AircraftSpec {
	return sim.AircraftSpec{
		Callsign:     callsign,
		CruiseSpeed:  p.CruiseSpeed,
		TaxiSpeed:    p.TaxiSpeed,
		FuelCapacity: p.FuelCapacity,
		BurnRate:     p.BurnRate,
	}
}

func (s *Scenario) AirportSpecs() []sim.AirportSpec {
	var specs []sim.AirportSpec
	for _, ap := range s.Airports {
		specs = append(specs, sim.AirportSpec{
			Name:          ap.Name,
			Position:      ap.Position,
			ControlRadius: ap.ControlRadius,
			GateOffsets:   ap.Gates,
		})
	}
	return specs
}

// FlightPlans returns the initial fleet in scenario order.
func (s *Scenario) FlightPlans() []sim.FlightPlan {
	var fps []sim.FlightPlan
	for _, f := range s.Fleet {
		perf := s.Performance
		if f.Performance != nil {
			perf = *f.Performance
		}
		fp := sim.FlightPlan{
			Aircraft:  perf.spec(f.Callsign),
			Origin:    f.Origin,
			Itinerary: f.Itinerary,
			Repeat:    f.Repeat,
			Emergency: f.Emergency,
		}
		if f.Position != nil {
			fp.InFlight = true
			fp.Aircraft.Position = *f.Position
		}
		fps = append(fps, fp)
	}
	return fps
}

// Build creates the world described by the scenario and launches its
// fleet. The world's goroutines are not started.
func (s *Scenario) Build(lg *log.Logger) (*sim.World, error) {
	w, err := sim.NewWorld(s.config, s.AirportSpecs(), s.Seed, lg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	var errs []error
	for _, fp := range s.FlightPlans() {
		if _, err := w.Launch(fp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", fp.Aircraft.Callsign, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		w.Close()
		return nil, err
	}

	lg.Info("scenario built", "name", s.Name, "airports", len(s.Airports), "fleet", len(s.Fleet))
	return w, nil
}
