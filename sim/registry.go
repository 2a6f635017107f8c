// sim/registry.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry is the fleet: every live aircraft by callsign, plus snapshots
// of recently finished flights. Observers enumerate aircraft through it.
type Registry struct {
	mu     sync.Mutex
	live   map[string]*Aircraft
	order  []string // launch order
	limit  int      // live aircraft; 0 for no limit
	recent *lru.Cache[string, AircraftSnapshot]
}

func NewRegistry(limit, recent int) *Registry {
	if recent < 1 {
		recent = 1
	}
	cache, err := lru.New[string, AircraftSnapshot](recent)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Registry{
		live:   make(map[string]*Aircraft),
		limit:  limit,
		recent: cache,
	}
}

// Add registers ac. It fails if the callsign is already live or the fleet
// is at its limit.
func (r *Registry) Add(ac *Aircraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := ac.Callsign()
	if _, ok := r.live[cs]; ok {
		return fmt.Errorf("%s: %w", cs, ErrDuplicateCallsign)
	}
	if r.limit > 0 && len(r.live) >= r.limit {
		return ErrFleetFull
	}
	r.live[cs] = ac
	r.order = append(r.order, cs)
	r.recent.Remove(cs)
	return nil
}

// Retire removes ac from the live set and remembers its final state.
func (r *Registry) Retire(ac *Aircraft) {
	snap := ac.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removeLocked(ac) {
		r.recent.Add(ac.Callsign(), snap)
	}
}

// Remove drops ac without recording it as a finished flight.
func (r *Registry) Remove(ac *Aircraft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(ac)
}

func (r *Registry) removeLocked(ac *Aircraft) bool {
	cs := ac.Callsign()
	if r.live[cs] != ac {
		return false
	}
	delete(r.live, cs)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == cs })
	return true
}

func (r *Registry) Get(callsign string) (*Aircraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ac, ok := r.live[callsign]
	return ac, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Live returns the live aircraft in launch order.
func (r *Registry) Live() []*Aircraft {
	r.mu.Lock()
	defer r.mu.Unlock()

	acs := make([]*Aircraft, 0, len(r.order))
	for _, cs := range r.order {
		acs = append(acs, r.live[cs])
	}
	return acs
}

// Snapshot returns snapshots of all live aircraft in launch order.
func (r *Registry) Snapshot() []AircraftSnapshot {
	acs := r.Live()
	snaps := make([]AircraftSnapshot, len(acs))
	for i, ac := range acs {
		snaps[i] = ac.Snapshot()
	}
	return snaps
}

// Recent returns the final snapshots of recently finished flights, oldest
// first.
func (r *Registry) Recent() []AircraftSnapshot {
	return r.recent.Values()
}
