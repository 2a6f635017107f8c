// sim/parking.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"

	"github.com/mmp/airspace/math"
)

// Parking is a single gate. Its occupant is owned by the Tower of the
// airport the gate belongs to and is only read or written with that
// Tower's lock held.
type Parking struct {
	Name     string
	Position math.Point3

	occupant *Aircraft
}

func NewParking(name string, pos math.Point3) *Parking {
	return &Parking{Name: name, Position: pos}
}

// DistanceTo returns the distance from the gate to p; the departure
// sequencer uses it with the runway threshold.
func (p *Parking) DistanceTo(q math.Point3) float64 {
	return math.Distance(p.Position, q)
}

func (p *Parking) String() string {
	return fmt.Sprintf("%s %s", p.Name, p.Position)
}

type ParkingSnapshot struct {
	Name     string
	Position math.Point3
	Occupant string // callsign, empty when free
}

// gateNames returns n gate names for the airport, "<airport>-G1" and so
// forth.
func gateNames(airport string, n int) []string {
	names := make([]string, n)
	for i := range n {
		names[i] = fmt.Sprintf("%s-G%d", airport, i+1)
	}
	return names
}
