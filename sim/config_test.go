// sim/config_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"strings"
	"testing"
	"time"

	"github.com/mmp/airspace/util"
)

func TestConfigFillDefaults(t *testing.T) {
	c := Config{TowerInterval: time.Second, ApproachCapacity: 2}
	c.FillDefaults()

	d := DefaultConfig()
	if c.TowerInterval != time.Second || c.ApproachCapacity != 2 {
		t.Errorf("explicit values were overwritten: %+v", c)
	}
	if c.PilotInterval != d.PilotInterval || c.HoldPoints != d.HoldPoints || c.MinSeparation != d.MinSeparation {
		t.Errorf("zero values not defaulted: %+v", c)
	}
	// Zero is a meaningful emergency chance and is left alone.
	if c.EmergencyChance != 0 {
		t.Errorf("expected EmergencyChance to stay 0, got %f", c.EmergencyChance)
	}

	var e util.ErrorLogger
	c.Validate(&e)
	if e.HaveErrors() {
		t.Errorf("filled config should validate: %s", e.String())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		message string
	}{
		{"interval", func(c *Config) { c.PilotInterval = -time.Second }, "\"pilot_interval\" must be positive"},
		{"separation", func(c *Config) { c.MinSeparation = 0 }, "\"min_separation\" must be positive"},
		{"capacity", func(c *Config) { c.ApproachCapacity = 0 }, "\"approach_capacity\""},
		{"hold points", func(c *Config) { c.HoldPoints = 2 }, "\"hold_points\""},
		{"critical fuel", func(c *Config) { c.FuelCriticalFraction = 1 }, "\"fuel_critical_fraction\""},
		{"low fuel", func(c *Config) { c.LowFuelFraction = 0.1 }, "\"low_fuel_fraction\""},
		{"idle", func(c *Config) { c.GroundIdleFraction = 2 }, "\"ground_idle_fraction\""},
		{"emergency", func(c *Config) { c.EmergencyChance = -0.5 }, "\"emergency_chance\""},
		{"touchdown", func(c *Config) { c.TouchdownAltitude = -1 }, "\"touchdown_altitude\""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := DefaultConfig()
			test.modify(&c)

			var e util.ErrorLogger
			c.Validate(&e)
			if !strings.Contains(e.String(), test.message) {
				t.Errorf("expected %q in %q", test.message, e.String())
			}
		})
	}
}
