// sim/errors.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrDuplicateCallsign = errors.New("Duplicate callsign")
	ErrFleetFull         = errors.New("Maximum number of aircraft reached")
	ErrInvalidFlightPlan = errors.New("Invalid flight plan")
	ErrNoFreeParking     = errors.New("No free parking")
	ErrParkingOccupied   = errors.New("Parking is already occupied")
	ErrUnknownAirport    = errors.New("Unknown airport")
	ErrUnknownParking    = errors.New("Parking does not belong to this airport")
)
