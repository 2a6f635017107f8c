// scenario/scenario_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/sim"
	"github.com/mmp/airspace/util"
)

func TestLoadDefault(t *testing.T) {
	var e util.ErrorLogger
	s := Load("", &e)
	if s == nil {
		t.Fatalf("default scenario failed to load:\n%s", e.String())
	}

	cfg := s.Config()
	if cfg.PilotInterval != 100*time.Millisecond || cfg.ApproachCapacity != 5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if _, ok := s.SpawnConfig(); !ok {
		t.Errorf("expected random traffic to be enabled")
	}

	fps := s.FlightPlans()
	if len(fps) != len(s.Fleet) {
		t.Fatalf("expected %d flight plans, got %d", len(s.Fleet), len(fps))
	}
	for _, fp := range fps {
		if fp.Aircraft.CruiseSpeed <= 0 || fp.Aircraft.FuelCapacity <= 0 {
			t.Errorf("%s: performance not filled in: %+v", fp.Aircraft.Callsign, fp.Aircraft)
		}
	}
}

func TestBuild(t *testing.T) {
	var e util.ErrorLogger
	s := Load("", &e)
	if s == nil {
		t.Fatal(e.String())
	}

	w, err := s.Build(log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if n := w.Registry.Len(); n != len(s.Fleet) {
		t.Errorf("expected %d aircraft, got %d", len(s.Fleet), n)
	}
	if n := len(w.Airports()); n != len(s.Airports) {
		t.Errorf("expected %d airports, got %d", len(s.Airports), n)
	}

	ezy, ok := w.Registry.Get("EZY250")
	if !ok {
		t.Fatal("EZY250 not launched")
	}
	if ezy.Emergency() != sim.EmergencyMedical || ezy.State() != sim.StateCruising {
		t.Errorf("expected a cruising medical emergency, got %s / %s", ezy.Emergency(), ezy.State())
	}
	if ezy.FuelCapacity() != 4000 {
		t.Errorf("expected per-flight fuel capacity, got %f", ezy.FuelCapacity())
	}
}

func TestDefaults(t *testing.T) {
	const contents = `{
    "name": "minimal",
    "airports": [{ "name": "AAA", "position": [0, 0, 0], "control_radius": 10000 }],
    "fleet": [{ "callsign": "TST1", "origin": "AAA", "itinerary": ["AAA"] }],
    "limits": { "emergency_chance": 0 },
    "spawn": {}
}`
	var e util.ErrorLogger
	s := Parse([]byte(contents), &e)
	if s == nil {
		t.Fatal(e.String())
	}

	def := sim.DefaultConfig()
	cfg := s.Config()
	if cfg.TowerInterval != def.TowerInterval || cfg.MinSeparation != def.MinSeparation {
		t.Errorf("defaults not filled in: %+v", cfg)
	}
	if cfg.EmergencyChance != 0 {
		t.Errorf("expected emergencies turned off, got %f", cfg.EmergencyChance)
	}
	if len(s.Airports[0].Gates) != len(sim.DefaultGateOffsets) {
		t.Errorf("expected default gates, got %v", s.Airports[0].Gates)
	}

	sp, ok := s.SpawnConfig()
	if !ok {
		t.Fatal("expected spawning enabled")
	}
	defSpawn := sim.DefaultSpawnConfig()
	if sp.Interval != defSpawn.Interval || sp.Legs != defSpawn.Legs || len(sp.Airlines) == 0 {
		t.Errorf("spawn defaults not filled in: %+v", sp)
	}
	if sp.Performance.CruiseSpeed != defSpawn.Performance.CruiseSpeed {
		t.Errorf("performance defaults not filled in: %+v", sp.Performance)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		message  string
	}{
		{
			name:     "missing name",
			contents: `{"airports": [{"name": "AAA", "control_radius": 1}], "fleet": []}`,
			message:  "missing \"name\"",
		},
		{
			name:     "no airports",
			contents: `{"name": "x"}`,
			message:  "at least one airport",
		},
		{
			name:     "duplicate airport",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}, {"name": "AAA", "control_radius": 1}]}`,
			message:  "more than once",
		},
		{
			name:     "bad radius",
			contents: `{"name": "x", "airports": [{"name": "AAA"}]}`,
			message:  "\"control_radius\" must be positive",
		},
		{
			name: "unknown itinerary airport",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}],
                "fleet": [{"callsign": "A1", "origin": "AAA", "itinerary": ["ZZZ"]}]}`,
			message: "ZZZ: unknown airport",
		},
		{
			name: "no origin or position",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}],
                "fleet": [{"callsign": "A1", "itinerary": ["AAA"]}]}`,
			message: "one of \"origin\" or \"position\"",
		},
		{
			name: "duplicate callsign",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}],
                "fleet": [{"callsign": "A1", "origin": "AAA", "itinerary": ["AAA"]},
                          {"callsign": "A1", "origin": "AAA", "itinerary": ["AAA"]}]}`,
			message: "callsign used more than once",
		},
		{
			name: "too many parked",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1, "gates": [100]}],
                "fleet": [{"callsign": "A1", "origin": "AAA", "itinerary": ["AAA"]},
                          {"callsign": "A2", "origin": "AAA", "itinerary": ["AAA"]}]}`,
			message: "more aircraft parked than it has gates",
		},
		{
			name: "bad emergency",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}],
                "fleet": [{"callsign": "A1", "origin": "AAA", "itinerary": ["AAA"], "emergency": "Bird"}]}`,
			message: "unknown emergency kind",
		},
		{
			name:     "bad duration",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}], "timing": {"tower_interval": 500}}`,
			message:  "durations are given as strings",
		},
		{
			name:     "negative interval",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}], "timing": {"tower_interval": "-1s"}}`,
			message:  "\"tower_interval\" must be positive",
		},
		{
			name:     "misspelled field",
			contents: `{"name": "x", "airprots": []}`,
			message:  "misspelled",
		},
		{
			name: "bad spawn fraction",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}],
                "spawn": {"in_flight_fraction": 2}}`,
			message: "\"in_flight_fraction\"",
		},
		{
			name: "fleet too large",
			contents: `{"name": "x", "airports": [{"name": "AAA", "control_radius": 1}], "limits": {"max_aircraft": 1},
                "fleet": [{"callsign": "A1", "position": [0, 0, 10000], "itinerary": ["AAA"]},
                          {"callsign": "A2", "position": [0, 9000, 10000], "itinerary": ["AAA"]}]}`,
			message: "exceeds \"max_aircraft\"",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var e util.ErrorLogger
			if s := Parse([]byte(test.contents), &e); s != nil {
				t.Fatalf("expected the scenario to be rejected")
			}
			if !strings.Contains(e.String(), test.message) {
				t.Errorf("expected %q in errors:\n%s", test.message, e.String())
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "test.json")
	contents := `{"name": "file", "seed": 7, "airports": [{"name": "AAA", "control_radius": 5000}]}`
	if err := os.WriteFile(fn, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	var e util.ErrorLogger
	s := Load(fn, &e)
	if s == nil {
		t.Fatal(e.String())
	}
	if s.Name != "file" || s.Seed != 7 {
		t.Errorf("unexpected scenario %+v", s)
	}

	e = util.ErrorLogger{}
	if Load(filepath.Join(dir, "missing.json"), &e) != nil || !e.HaveErrors() {
		t.Errorf("expected an error for a missing file")
	}

	// Errors are reported with the file they came from.
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name": "bad"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e = util.ErrorLogger{}
	Load(bad, &e)
	if !strings.Contains(e.String(), "File "+bad) {
		t.Errorf("expected the file name in %q", e.String())
	}
}
