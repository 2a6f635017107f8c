// sim/emergency.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"

	"github.com/mmp/airspace/rand"
)

// DeclareEmergency sets the aircraft's emergency. Only the first
// declaration of a leg has any effect; it returns whether this call was
// the one that set it.
func (ac *Aircraft) DeclareEmergency(kind EmergencyKind) bool {
	if kind == EmergencyNone {
		return false
	}

	ac.mu.Lock()
	declared := ac.declareEmergencyLocked(kind)
	ac.mu.Unlock()

	if declared {
		ac.reportEmergency(kind)
	}
	return declared
}

func (ac *Aircraft) declareEmergencyLocked(kind EmergencyKind) bool {
	if ac.emergency != EmergencyNone {
		return false
	}
	ac.emergency = kind
	return true
}

func (ac *Aircraft) reportEmergency(kind EmergencyKind) {
	ac.lg.Warn("emergency declared", slog.String("kind", kind.String()),
		slog.Float64("fuel", ac.Fuel()))
	postEvent(ac.events, Event{
		Type:     EmergencyDeclaredEvent,
		Actor:    "Pilot " + ac.callsign,
		Callsign: ac.callsign,
		Detail:   kind.String(),
	})
}

// randomEmergencies are the kinds that may be drawn for a leg; fuel
// emergencies come from actual fuel burn instead.
var randomEmergencies = []EmergencyKind{EmergencyEngineFailure, EmergencyMedical}

// RollEmergency declares a random emergency with probability chance.
func RollEmergency(ac *Aircraft, r *rand.Rand, chance float64) bool {
	if !r.Chance(chance) {
		return false
	}
	kind, _ := rand.Sample(r, randomEmergencies)
	return ac.DeclareEmergency(kind)
}
