// scope/scope_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scope

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmp/airspace/math"
	"github.com/mmp/airspace/sim"

	"github.com/gdamore/tcell/v2"
)

type fixedSource struct {
	snap  sim.WorldSnapshot
	calls atomic.Int32
}

func (f *fixedSource) Snapshot() sim.WorldSnapshot {
	f.calls.Add(1)
	return f.snap
}

func testSnapshot() sim.WorldSnapshot {
	return sim.WorldSnapshot{
		Time: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Airports: []sim.AirportSnapshot{{
			Name: "LFPG",
			Tower: sim.TowerSnapshot{
				RunwayHolder:        "AFR12",
				EmergencyInProgress: true,
				Departures:          []string{"AFR13", "AFR14"},
				Parkings: []sim.ParkingSnapshot{
					{Name: "LFPG-G1", Occupant: "BAW3"},
					{Name: "LFPG-G2"},
				},
			},
			Approach: sim.ApproachSnapshot{InZone: []string{"DLH4"}, Holding: []string{"DLH4"}},
		}},
		Aircraft: []sim.AircraftSnapshot{
			{Callsign: "AFR12", State: sim.StateLanding, Position: math.Point3{0, 0, 120},
				Fuel: 100, FuelCapacity: 1000, Airport: "LFPG", Emergency: sim.EmergencyEngineFailure},
			{Callsign: "BAW3", State: sim.StateParked, Fuel: 900, FuelCapacity: 1000, Airport: "LFPG",
				Parking: "LFPG-G1"},
		},
		Cruising: []string{"KLM7"},
	}
}

func makeTestScreen(t *testing.T) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.SetSize(100, 40)
	return s
}

func screenText(s tcell.Screen) string {
	w, h := s.Size()
	var sb strings.Builder
	for y := range h {
		for x := range w {
			r, _, _, _ := s.GetContent(x, y)
			if r == 0 {
				r = ' '
			}
			sb.WriteRune(r)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestDraw(t *testing.T) {
	s := makeTestScreen(t)
	defer s.Fini()

	b := NewBoard(s, &fixedSource{snap: testSnapshot()})
	b.Write([]sim.Event{{Type: sim.TouchdownEvent, Actor: "TWR LFPG", Callsign: "AFR12"}})
	b.Refresh()

	text := screenText(s)
	for _, want := range []string{
		"aircraft 2  cruising 1",
		"LFPG  runway AFR12",
		"EMERGENCY",
		"departures AFR13 AFR14",
		"approach   DLH4  holding DLH4",
		"gates      G1:BAW3 G2:-",
		"EngineFailure",
		"LFPG-G1",
		"TWR LFPG [Touchdown] AFR12",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q on screen:\n%s", want, text)
		}
	}
}

func TestDrawClipsToScreen(t *testing.T) {
	s := makeTestScreen(t)
	defer s.Fini()
	s.SetSize(20, 3)

	b := NewBoard(s, &fixedSource{snap: testSnapshot()})
	b.Refresh() // must not draw outside the screen
	if !strings.HasPrefix(screenText(s), "airspace") {
		t.Errorf("expected the header to be drawn")
	}
}

func TestHandleKey(t *testing.T) {
	s := makeTestScreen(t)
	defer s.Fini()
	src := &fixedSource{snap: testSnapshot()}
	b := NewBoard(s, src)

	tests := []struct {
		key  tcell.Key
		r    rune
		quit bool
	}{
		{tcell.KeyRune, 'x', false},
		{tcell.KeyRune, 'q', true},
		{tcell.KeyEscape, 0, true},
		{tcell.KeyCtrlC, 0, true},
		{tcell.KeyEnter, 0, false},
	}
	for _, test := range tests {
		if quit := b.HandleKey(tcell.NewEventKey(test.key, test.r, tcell.ModNone)); quit != test.quit {
			t.Errorf("key %v %q: expected quit %v", test.key, test.r, test.quit)
		}
	}

	// Paused boards keep showing the last snapshot.
	b.Refresh()
	b.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone))
	src.snap = sim.WorldSnapshot{}
	b.Refresh()
	if text := screenText(s); !strings.Contains(text, "AFR12") || !strings.Contains(text, "PAUSED") {
		t.Errorf("expected the paused snapshot:\n%s", text)
	}

	b.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone))
	b.Refresh()
	if text := screenText(s); strings.Contains(text, "AFR12") {
		t.Errorf("expected a fresh snapshot after unpausing:\n%s", text)
	}
}

func TestMessagesBounded(t *testing.T) {
	b := NewBoard(nil, nil)
	for i := range 2 * maxMessages {
		b.Write([]sim.Event{{Type: sim.HoldingEvent, Actor: "APP", Detail: string(rune('a' + i%26))}})
	}
	if len(b.messages) != maxMessages {
		t.Errorf("expected %d messages, got %d", maxMessages, len(b.messages))
	}
}

func TestRun(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		s := makeTestScreen(t)
		src := &fixedSource{snap: testSnapshot()}
		b := NewBoard(s, src)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- b.Run(ctx, time.Millisecond) }()

		for src.calls.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
		if err := <-done; err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("quit", func(t *testing.T) {
		s := makeTestScreen(t)
		b := NewBoard(s, &fixedSource{snap: testSnapshot()})

		s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.Run(ctx, time.Hour); !errors.Is(err, ErrQuit) {
			t.Errorf("expected ErrQuit, got %v", err)
		}
	})
}
