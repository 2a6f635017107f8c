// sim/airport.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"

	"github.com/brunoga/deep"
)

// DefaultGateOffsets are the x offsets of an airport's gates from its
// runway when none are configured.
var DefaultGateOffsets = []float64{100, 300, 600, 800, 1000}

type AirportSpec struct {
	Name          string
	Position      math.Point3
	ControlRadius float64
	// GateOffsets are x offsets from the runway of each gate.
	GateOffsets []float64
}

// Airport binds a Tower, an Approach, and a set of gates at a location.
// Its fields are set at construction and never change.
type Airport struct {
	Name          string
	Position      math.Point3
	ControlRadius float64

	Tower    *Tower
	Approach *Approach
	Parkings []*Parking
}

func NewAirport(spec AirportSpec, cfg Config, lg *log.Logger, events EventPoster) *Airport {
	offsets := spec.GateOffsets
	if len(offsets) == 0 {
		offsets = DefaultGateOffsets
	}

	runway := spec.Position.WithAltitude(0)
	names := gateNames(spec.Name, len(offsets))
	parkings := make([]*Parking, len(offsets))
	for i, dx := range offsets {
		parkings[i] = NewParking(names[i], math.Point3{runway[0] + dx, runway[1], 0})
	}

	tower := NewTower(spec.Name, runway, parkings, cfg, lg, events)
	ap := &Airport{
		Name:          spec.Name,
		Position:      runway,
		ControlRadius: spec.ControlRadius,
		Tower:         tower,
		Approach:      NewApproach(spec.Name, tower, cfg, lg, events),
		Parkings:      parkings,
	}

	lg.Info("airport created", slog.String("airport", spec.Name), slog.Any("position", runway),
		slog.Int("gates", len(parkings)), slog.Float64("control_radius", spec.ControlRadius))
	return ap
}

func (ap *Airport) String() string {
	return ap.Name
}

type AirportSnapshot struct {
	Name          string
	Position      math.Point3
	ControlRadius float64
	Tower         TowerSnapshot
	Approach      ApproachSnapshot
}

// Snapshot returns a copy of the airport's topology and its controllers'
// current state.
func (ap *Airport) Snapshot() AirportSnapshot {
	return deep.MustCopy(AirportSnapshot{
		Name:          ap.Name,
		Position:      ap.Position,
		ControlRadius: ap.ControlRadius,
		Tower:         ap.Tower.Snapshot(),
		Approach:      ap.Approach.Snapshot(),
	})
}
