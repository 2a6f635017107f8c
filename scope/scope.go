// scope/scope.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package scope draws a live status board of the simulation in the
// terminal: each airport's runway, departure queue, approach zone and
// gates, every aircraft in the system, and the most recent controller
// decisions.
package scope

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmp/airspace/sim"

	"github.com/gdamore/tcell/v2"
)

// ErrQuit is returned by Run when the user asks to quit.
var ErrQuit = errors.New("quit requested")

var (
	styleDefault   = tcell.StyleDefault
	styleHeader    = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleAirport   = styleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleLabel     = styleDefault.Foreground(tcell.ColorGray)
	styleRunway    = styleDefault.Foreground(tcell.ColorYellow)
	styleEmergency = styleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed).Bold(true)
	styleLowFuel   = styleDefault.Foreground(tcell.ColorOrangeRed)
	styleLog       = styleDefault.Foreground(tcell.ColorSilver)
	stylePaused    = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
)

const maxMessages = 200

// SnapshotSource is anything that can provide a snapshot of the world;
// *sim.World is the usual one.
type SnapshotSource interface {
	Snapshot() sim.WorldSnapshot
}

type Board struct {
	screen tcell.Screen
	source SnapshotSource

	mu       sync.Mutex
	messages []string
	paused   bool
	showLog  bool
	last     sim.WorldSnapshot
}

func NewBoard(screen tcell.Screen, source SnapshotSource) *Board {
	return &Board{screen: screen, source: source, showLog: true}
}

// Write implements the event sink interface so that the board can show
// the latest controller decisions.
func (b *Board) Write(events []sim.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range events {
		b.messages = append(b.messages, e.Time.Format("15:04:05")+" "+e.String())
	}
	if n := len(b.messages); n > maxMessages {
		b.messages = slices.Delete(b.messages, 0, n-maxMessages)
	}
	return nil
}

func (b *Board) Close() error { return nil }

// HandleKey updates the board for a key press and reports whether the
// user asked to quit.
func (b *Board) HandleKey(ev *tcell.EventKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return true
		case 'p', ' ':
			b.paused = !b.paused
		case 'l':
			b.showLog = !b.showLog
		}
	}
	return false
}

// Refresh takes a new snapshot, unless the display is paused, and draws it.
func (b *Board) Refresh() {
	b.mu.Lock()
	paused := b.paused
	b.mu.Unlock()

	if !paused {
		snap := b.source.Snapshot()
		b.mu.Lock()
		b.last = snap
		b.mu.Unlock()
	}
	b.Draw()
}

// Draw renders the most recent snapshot.
func (b *Board) Draw() {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.screen
	s.Clear()
	width, height := s.Size()
	snap := b.last

	header := fmt.Sprintf("airspace  %s  aircraft %d  cruising %d", snap.Time.Format("15:04:05"),
		len(snap.Aircraft), len(snap.Cruising))
	drawText(s, 0, 0, width, header, styleHeader)
	if b.paused {
		drawText(s, max(0, width-8), 0, width, " PAUSED ", stylePaused)
	}

	logLines := 0
	if b.showLog {
		logLines = min(8, height/4)
	}
	bottom := height - logLines

	y := 2
	for _, ap := range snap.Airports {
		if y >= bottom {
			break
		}
		y = drawAirport(s, y, width, ap)
		y++
	}

	if y < bottom {
		drawText(s, 0, y, width, fmt.Sprintf("%-8s %-19s %-11s %6s %5s %-6s %s",
			"CALLSIGN", "STATE", "FROM/TO", "ALT", "FUEL", "GATE", "EMERGENCY"), styleLabel)
		y++
	}
	for _, ac := range snap.Aircraft {
		if y >= bottom {
			break
		}
		drawAircraft(s, y, width, ac)
		y++
	}

	if logLines > 0 {
		n := min(logLines, len(b.messages))
		for i, msg := range b.messages[len(b.messages)-n:] {
			drawText(s, 0, height-n+i, width, msg, styleLog)
		}
	}

	s.Show()
}

func drawAirport(s tcell.Screen, y, width int, ap sim.AirportSnapshot) int {
	x := drawText(s, 0, y, width, ap.Name, styleAirport)
	x = drawText(s, x+2, y, width, "runway ", styleLabel)
	if ap.Tower.RunwayHolder != "" {
		x = drawText(s, x, y, width, ap.Tower.RunwayHolder, styleRunway)
	} else {
		x = drawText(s, x, y, width, "free", styleDefault)
	}
	if ap.Tower.EmergencyInProgress {
		drawText(s, x+2, y, width, " EMERGENCY ", styleEmergency)
	}
	y++

	drawText(s, 2, y, width, "departures "+list(ap.Tower.Departures), styleDefault)
	y++
	drawText(s, 2, y, width, "approach   "+list(ap.Approach.InZone)+"  holding "+list(ap.Approach.Holding),
		styleDefault)
	y++

	var gates []string
	for _, p := range ap.Tower.Parkings {
		occ := p.Occupant
		if occ == "" {
			occ = "-"
		}
		gates = append(gates, strings.TrimPrefix(p.Name, ap.Name+"-")+":"+occ)
	}
	drawText(s, 2, y, width, "gates      "+strings.Join(gates, " "), styleDefault)
	return y + 1
}

func drawAircraft(s tcell.Screen, y, width int, ac sim.AircraftSnapshot) {
	route := ac.Airport
	if ac.Destination != "" && ac.Destination != ac.Airport {
		route += ">" + ac.Destination
	}
	fuel := 0.
	if ac.FuelCapacity > 0 {
		fuel = 100 * ac.Fuel / ac.FuelCapacity
	}
	style := styleDefault
	if fuel < 25 {
		style = styleLowFuel
	}
	emergency := ""
	if ac.Emergency != sim.EmergencyNone {
		emergency = ac.Emergency.String()
		style = styleEmergency
	}
	drawText(s, 0, y, width, fmt.Sprintf("%-8s %-19s %-11s %6.0f %4.0f%% %-6s %s", ac.Callsign, ac.State,
		route, ac.Position.Altitude(), fuel, ac.Parking, emergency), style)
}

func list(callsigns []string) string {
	if len(callsigns) == 0 {
		return "-"
	}
	return strings.Join(callsigns, " ")
}

// drawText draws text at (x, y), clipped at width, and returns the column
// after the last character drawn.
func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) int {
	for _, r := range text {
		if x >= width {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

// Run redraws the board every refresh interval and handles keyboard input
// until ctx is canceled or the user quits. The screen must already be
// initialized; Run finalizes it before returning.
func (b *Board) Run(ctx context.Context, refresh time.Duration) error {
	events := make(chan tcell.Event)
	go func() {
		for {
			ev := b.screen.PollEvent()
			if ev == nil {
				// The screen was finalized.
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
	}()
	defer b.screen.Fini()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	b.Refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Refresh()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				b.screen.Sync()
				b.Draw()
			case *tcell.EventKey:
				if b.HandleKey(ev) {
					return ErrQuit
				}
				b.Draw()
			}
		}
	}
}
