// sim/config.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"time"

	"github.com/mmp/airspace/util"
)

// Config holds the tunable constants of the engine. Distances and
// altitudes are in simulation units, sim times are in seconds of
// simulated time, and the *Interval fields are wall-clock polling periods.
type Config struct {
	PilotInterval    time.Duration
	PilotStep        float64 // sim seconds advanced per pilot tick
	TowerInterval    time.Duration
	ApproachInterval time.Duration
	RegionInterval   time.Duration

	TurnaroundTime float64
	EvacuationTime float64

	MinSeparation    float64
	SeparationStep   float64
	ApproachCapacity int
	CruiseAltitude   float64

	DepartureAltitude      float64
	DepartureClimbDistance float64
	TouchdownAltitude      float64

	HoldRadius   float64
	HoldAltitude float64
	HoldPoints   int

	FuelCriticalFraction float64
	LowFuelFraction      float64
	GroundIdleFraction   float64
	EmergencyChance      float64

	MaxAircraft   int
	RecentFlights int
}

func DefaultConfig() Config {
	return Config{
		PilotInterval:    100 * time.Millisecond,
		PilotStep:        0.5,
		TowerInterval:    500 * time.Millisecond,
		ApproachInterval: 200 * time.Millisecond,
		RegionInterval:   250 * time.Millisecond,

		TurnaroundTime: 25,
		EvacuationTime: 10,

		MinSeparation:    5000,
		SeparationStep:   500,
		ApproachCapacity: 5,
		CruiseAltitude:   10000,

		DepartureAltitude:      5000,
		DepartureClimbDistance: 10000,
		TouchdownAltitude:      5,

		HoldRadius:   5000,
		HoldAltitude: 2000,
		HoldPoints:   36,

		FuelCriticalFraction: 0.15,
		LowFuelFraction:      0.25,
		GroundIdleFraction:   0.1,
		EmergencyChance:      0.02,

		MaxAircraft:   40,
		RecentFlights: 64,
	}
}

// FillDefaults replaces zero-valued fields with their defaults.
func (c *Config) FillDefaults() {
	d := DefaultConfig()
	setDuration := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}

	setDuration(&c.PilotInterval, d.PilotInterval)
	setFloat(&c.PilotStep, d.PilotStep)
	setDuration(&c.TowerInterval, d.TowerInterval)
	setDuration(&c.ApproachInterval, d.ApproachInterval)
	setDuration(&c.RegionInterval, d.RegionInterval)
	setFloat(&c.TurnaroundTime, d.TurnaroundTime)
	setFloat(&c.EvacuationTime, d.EvacuationTime)
	setFloat(&c.MinSeparation, d.MinSeparation)
	setFloat(&c.SeparationStep, d.SeparationStep)
	setInt(&c.ApproachCapacity, d.ApproachCapacity)
	setFloat(&c.CruiseAltitude, d.CruiseAltitude)
	setFloat(&c.DepartureAltitude, d.DepartureAltitude)
	setFloat(&c.DepartureClimbDistance, d.DepartureClimbDistance)
	setFloat(&c.TouchdownAltitude, d.TouchdownAltitude)
	setFloat(&c.HoldRadius, d.HoldRadius)
	setFloat(&c.HoldAltitude, d.HoldAltitude)
	setInt(&c.HoldPoints, d.HoldPoints)
	setFloat(&c.FuelCriticalFraction, d.FuelCriticalFraction)
	setFloat(&c.LowFuelFraction, d.LowFuelFraction)
	setFloat(&c.GroundIdleFraction, d.GroundIdleFraction)
	setInt(&c.MaxAircraft, d.MaxAircraft)
	setInt(&c.RecentFlights, d.RecentFlights)
}

// Validate reports out-of-range values to e.
func (c *Config) Validate(e *util.ErrorLogger) {
	e.Push("config")
	defer e.Pop()

	for _, d := range []struct {
		name string
		v    time.Duration
	}{{"pilot_interval", c.PilotInterval}, {"tower_interval", c.TowerInterval},
		{"approach_interval", c.ApproachInterval}, {"region_interval", c.RegionInterval}} {
		if d.v <= 0 {
			e.ErrorString("%q must be positive, got %s", d.name, d.v)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"pilot_step", c.PilotStep}, {"min_separation", c.MinSeparation},
		{"separation_step", c.SeparationStep}, {"cruise_altitude", c.CruiseAltitude},
		{"departure_altitude", c.DepartureAltitude}, {"hold_radius", c.HoldRadius},
		{"hold_altitude", c.HoldAltitude}} {
		if f.v <= 0 {
			e.ErrorString("%q must be positive, got %f", f.name, f.v)
		}
	}
	if c.ApproachCapacity < 1 {
		e.ErrorString("\"approach_capacity\" must be at least 1, got %d", c.ApproachCapacity)
	}
	if c.HoldPoints < 3 {
		e.ErrorString("\"hold_points\" must be at least 3, got %d", c.HoldPoints)
	}
	if c.FuelCriticalFraction < 0 || c.FuelCriticalFraction >= 1 {
		e.ErrorString("\"fuel_critical_fraction\" must be in [0, 1), got %f", c.FuelCriticalFraction)
	}
	if c.LowFuelFraction < c.FuelCriticalFraction || c.LowFuelFraction >= 1 {
		e.ErrorString("\"low_fuel_fraction\" must be in [fuel_critical_fraction, 1), got %f", c.LowFuelFraction)
	}
	if c.GroundIdleFraction < 0 || c.GroundIdleFraction > 1 {
		e.ErrorString("\"ground_idle_fraction\" must be in [0, 1], got %f", c.GroundIdleFraction)
	}
	if c.EmergencyChance < 0 || c.EmergencyChance > 1 {
		e.ErrorString("\"emergency_chance\" must be in [0, 1], got %f", c.EmergencyChance)
	}
	if c.TouchdownAltitude < 0 {
		e.ErrorString("\"touchdown_altitude\" must not be negative")
	}
}
