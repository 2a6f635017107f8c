// sim/spawn.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gomath "math"
	"time"

	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/math"
	"github.com/mmp/airspace/rand"

	"golang.org/x/time/rate"
)

// SpawnConfig controls random flight generation.
type SpawnConfig struct {
	// Interval is the average time between new flights.
	Interval time.Duration
	// InFlightFraction of new flights enter the airspace already cruising;
	// the rest start parked at a random airport.
	InFlightFraction float64
	// EntryDistance is how far from its destination an in-flight arrival
	// appears.
	EntryDistance [2]float64
	Airlines      []string
	Performance   AircraftSpec // template; Callsign and Position are ignored
	Legs          int          // legs per generated itinerary
}

func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		Interval:         4 * time.Second,
		InFlightFraction: 0.5,
		EntryDistance:    [2]float64{20000, 40000},
		Airlines:         []string{"AFR", "BAW", "DLH", "KLM", "IBE", "EZY", "SWR", "TAP"},
		Performance: AircraftSpec{
			CruiseSpeed:  1000,
			TaxiSpeed:    100,
			FuelCapacity: 5000,
			BurnRate:     10,
		},
		Legs: 2,
	}
}

// Spawner injects randomly generated flights into a World at a bounded
// rate.
type Spawner struct {
	w       *World
	cfg     SpawnConfig
	limiter *rate.Limiter
	r       *rand.Rand
	serial  int
	lg      *log.Logger
}

func NewSpawner(w *World, cfg SpawnConfig, seed int64, lg *log.Logger) *Spawner {
	return &Spawner{
		w:       w,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		r:       rand.MakeSeeded(seed),
		lg:      lg,
	}
}

// Generate returns a new random flight plan. It does not launch it.
func (s *Spawner) Generate() FlightPlan {
	airports := s.w.Airports()

	spec := s.cfg.Performance
	for {
		s.serial++
		airline, _ := rand.Sample(s.r, s.cfg.Airlines)
		spec.Callsign = fmt.Sprintf("%s%03d", airline, s.serial)
		// Skip callsigns taken by scenario flights.
		if _, ok := s.w.Registry.Get(spec.Callsign); !ok {
			break
		}
	}
	// Some spread in performance so that aircraft don't fly in lockstep.
	spec.CruiseSpeed *= s.r.Uniform(0.8, 1.2)

	fp := FlightPlan{Aircraft: spec}
	for range max(1, s.cfg.Legs) {
		ap, _ := rand.Sample(s.r, airports)
		fp.Itinerary = append(fp.Itinerary, ap.Name)
	}

	if s.r.Chance(s.cfg.InFlightFraction) {
		dest := s.w.airports[fp.Itinerary[0]]
		theta := s.r.Uniform(0, 2*gomath.Pi)
		d := s.r.Uniform(s.cfg.EntryDistance[0], s.cfg.EntryDistance[1])
		fp.InFlight = true
		fp.Aircraft.Position = math.Point3{
			dest.Position[0] + d*gomath.Cos(theta),
			dest.Position[1] + d*gomath.Sin(theta),
			s.w.Config.CruiseAltitude,
		}
	} else {
		origin, _ := rand.Sample(s.r, airports)
		fp.Origin = origin.Name
	}
	return fp
}

// Run launches a generated flight each time the rate limiter allows,
// until ctx is canceled. Flights that can't be launched (a full fleet or
// no free gate) are skipped.
func (s *Spawner) Run(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		fp := s.Generate()
		if _, err := s.w.Launch(fp); err != nil {
			if errors.Is(err, ErrFleetFull) || errors.Is(err, ErrNoFreeParking) || errors.Is(err, ErrDuplicateCallsign) {
				s.lg.Debug("skipped spawn", slog.String("callsign", fp.Aircraft.Callsign), slog.Any("error", err))
			} else {
				s.lg.Warn("spawn failed", slog.String("callsign", fp.Aircraft.Callsign), slog.Any("error", err))
			}
		}
	}
}
