// sim/state.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"strings"
)

// LifecycleState is where an aircraft is in its gate-to-gate cycle. Only
// the Tower, Approach, Region, and the aircraft's Pilot change it.
type LifecycleState int

const (
	StateParked LifecycleState = iota
	StateHoldingForDeparture
	StateTaxiingToRunway
	StateHoldingShort
	StateDeparting
	StateCruising
	StateApproaching
	StateHoldingPattern
	StateLanding
	StateTaxiingToGate
	StateFinished
	NumLifecycleStates
)

var lifecycleStateNames = [...]string{"Parked", "HoldingForDeparture", "TaxiingToRunway",
	"HoldingShort", "Departing", "Cruising", "Approaching", "HoldingPattern", "Landing",
	"TaxiingToGate", "Finished"}

func (s LifecycleState) String() string {
	if s < 0 || s >= NumLifecycleStates {
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
	return lifecycleStateNames[s]
}

// Airborne reports whether an aircraft in this state is flying.
func (s LifecycleState) Airborne() bool {
	switch s {
	case StateDeparting, StateCruising, StateApproaching, StateHoldingPattern, StateLanding:
		return true
	default:
		return false
	}
}

// OnGround reports whether an aircraft in this state is moving or waiting
// on the airport surface.
func (s LifecycleState) OnGround() bool {
	switch s {
	case StateParked, StateHoldingForDeparture, StateTaxiingToRunway, StateHoldingShort, StateTaxiingToGate:
		return true
	default:
		return false
	}
}

// UsesRunway reports whether an aircraft in this state must hold the
// runway token.
func (s LifecycleState) UsesRunway() bool {
	return s == StateLanding || s == StateDeparting
}

func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LifecycleState) UnmarshalText(b []byte) error {
	for i, n := range lifecycleStateNames {
		if strings.EqualFold(n, string(b)) {
			*s = LifecycleState(i)
			return nil
		}
	}
	return fmt.Errorf("%s: unknown lifecycle state", string(b))
}

///////////////////////////////////////////////////////////////////////////
// EmergencyKind

type EmergencyKind int

const (
	EmergencyNone EmergencyKind = iota
	EmergencyFuelCritical
	EmergencyEngineFailure
	EmergencyMedical
	NumEmergencyKinds
)

var emergencyKindNames = [...]string{"None", "FuelCritical", "EngineFailure", "Medical"}

func (e EmergencyKind) String() string {
	if e < 0 || e >= NumEmergencyKinds {
		return fmt.Sprintf("EmergencyKind(%d)", int(e))
	}
	return emergencyKindNames[e]
}

func (e EmergencyKind) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *EmergencyKind) UnmarshalText(b []byte) error {
	for i, n := range emergencyKindNames {
		if strings.EqualFold(n, string(b)) {
			*e = EmergencyKind(i)
			return nil
		}
	}
	return fmt.Errorf("%s: unknown emergency kind", string(b))
}
