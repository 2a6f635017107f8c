// eventlog/tally.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package eventlog

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/mmp/airspace/sim"

	"github.com/iancoleman/orderedmap"
)

// Tally counts events as they go by so that a summary of the run can be
// reported at the end.
type Tally struct {
	mu          sync.Mutex
	byType      [sim.NumEventTypes]int
	byActor     map[string]int
	emergencies map[string]string // callsign -> outcome
	first, last time.Time
	total       int
}

func NewTally() *Tally {
	return &Tally{
		byActor:     make(map[string]int),
		emergencies: make(map[string]string),
	}
}

func (t *Tally) Write(events []sim.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range events {
		if e.Type >= 0 && e.Type < sim.NumEventTypes {
			t.byType[e.Type]++
		}
		t.byActor[e.Actor]++
		t.total++

		if t.first.IsZero() || e.Time.Before(t.first) {
			t.first = e.Time
		}
		if e.Time.After(t.last) {
			t.last = e.Time
		}

		switch e.Type {
		case sim.EmergencyDeclaredEvent:
			t.emergencies[e.Callsign] = "declared"
		case sim.EmergencyHandledEvent, sim.TouchdownEvent, sim.FlightFinishedEvent:
			if _, ok := t.emergencies[e.Callsign]; ok {
				t.emergencies[e.Callsign] = e.Type.String()
			}
		}
	}
	return nil
}

func (t *Tally) Close() error { return nil }

// Count returns the number of events of the given type seen so far.
func (t *Tally) Count(typ sim.EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byType[typ]
}

// Report returns the summary with its keys in a fixed order: totals
// first, then counts by event type in lifecycle order, then the busiest
// actors.
func (t *Tally) Report() *orderedmap.OrderedMap {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := orderedmap.New()
	r.Set("events", t.total)
	if !t.first.IsZero() {
		r.Set("span", t.last.Sub(t.first).Round(time.Millisecond).String())
	}
	r.Set("takeoffs", t.byType[sim.TakeoffEvent])
	r.Set("landings", t.byType[sim.TouchdownEvent])
	r.Set("flights_finished", t.byType[sim.FlightFinishedEvent])
	r.Set("conflicts", t.byType[sim.ConflictAlertEvent])

	types := orderedmap.New()
	for i, n := range t.byType {
		if n > 0 {
			types.Set(sim.EventType(i).String(), n)
		}
	}
	r.Set("by_type", types)

	actors := orderedmap.New()
	for actor, n := range t.byActor {
		actors.Set(actor, n)
	}
	actors.SortKeys(func(keys []string) {
		slices.SortFunc(keys, func(a, b string) int {
			if c := cmp.Compare(t.byActor[b], t.byActor[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
	})
	r.Set("by_actor", actors)

	if len(t.emergencies) > 0 {
		em := orderedmap.New()
		for cs, outcome := range t.emergencies {
			em.Set(cs, outcome)
		}
		em.SortKeys(slices.Sort[[]string])
		r.Set("emergencies", em)
	}

	return r
}

// WriteReport writes the report as indented JSON.
func (t *Tally) WriteReport(w io.Writer) error {
	b, err := json.MarshalIndent(t.Report(), "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
