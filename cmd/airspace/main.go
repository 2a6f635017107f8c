// cmd/airspace/main.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// This file contains the implementation of the main() function, which
// loads a scenario, builds the world, and runs the controllers and pilots
// until the fleet is done, the duration expires, or the user interrupts.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmp/airspace/eventlog"
	"github.com/mmp/airspace/log"
	"github.com/mmp/airspace/scenario"
	"github.com/mmp/airspace/scope"
	"github.com/mmp/airspace/sim"
	"github.com/mmp/airspace/util"

	"github.com/apenwarr/fixconsole"
	"github.com/gdamore/tcell/v2"
	"github.com/goforj/godump"
	"golang.org/x/sync/errgroup"
)

var (
	logLevel         = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir           = flag.String("logdir", "", "log file directory")
	scenarioFilename = flag.String("scenario", "", "filename of JSON file with a scenario definition (default: built-in)")
	duration         = flag.Duration("duration", 0, "stop the simulation after this long (0: run until done or interrupted)")
	seed             = flag.Int64("seed", 0, "random seed; overrides the scenario's when non-zero")
	eventsFilename   = flag.String("events", "", "write controller decisions to this JSON file")
	archiveFilename  = flag.String("archive", "", "write all events to this zstd-compressed msgpack file")
	showScope        = flag.Bool("scope", false, "show a live status board in the terminal")
	quiet            = flag.Bool("quiet", false, "don't print events to standard output")
	dumpScenario     = flag.Bool("dump", false, "print the loaded scenario and exit")
	spawnTraffic     = flag.Bool("spawn", true, "generate random traffic if the scenario enables it")
)

// errFleetDone ends the run once every scripted flight has finished.
var errFleetDone = errors.New("all flights finished")

func main() {
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	var e util.ErrorLogger
	scen := scenario.Load(*scenarioFilename, &e)
	if e.HaveErrors() {
		e.PrintErrors(os.Stderr, lg)
		os.Exit(1)
	}
	if *seed != 0 {
		scen.Seed = *seed
	}

	if *dumpScenario {
		godump.Dump(scen)
		return
	}

	if err := run(scen, lg); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(scen *scenario.Scenario, lg *log.Logger) error {
	w, err := scen.Build(lg)
	if err != nil {
		return err
	}
	defer w.Close()

	sub := w.Events.Subscribe()
	defer sub.Unsubscribe()

	tally := eventlog.NewTally()
	sinks := []eventlog.Sink{tally}
	if *eventsFilename != "" {
		j, err := eventlog.CreateJSONFile(*eventsFilename)
		if err != nil {
			return err
		}
		sinks = append(sinks, j)
	}
	if *archiveFilename != "" {
		a, err := eventlog.CreateArchive(*archiveFilename)
		if err != nil {
			eventlog.CloseAll(sinks...)
			return err
		}
		sinks = append(sinks, a)
	}

	var board *scope.Board
	if *showScope {
		screen, err := tcell.NewScreen()
		if err == nil {
			err = screen.Init()
		}
		if err != nil {
			eventlog.CloseAll(sinks...)
			return fmt.Errorf("scope: %w", err)
		}
		board = scope.NewBoard(screen, w)
		sinks = append(sinks, board)
	} else if !*quiet {
		sinks = append(sinks, eventlog.Text{W: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	eg, ctx := errgroup.WithContext(ctx)
	w.Start(ctx)
	eg.Go(w.Wait)

	spawnConfig, spawning := scen.SpawnConfig()
	spawning = spawning && *spawnTraffic
	if spawning {
		sp := sim.NewSpawner(w, spawnConfig, scen.Seed, lg)
		eg.Go(func() error { return sp.Run(ctx) })
	} else {
		eg.Go(func() error { return waitForFleet(ctx, w) })
	}

	eg.Go(func() error { return eventlog.Pump(ctx, sub, 250*time.Millisecond, lg, sinks...) })
	if board != nil {
		eg.Go(func() error { return board.Run(ctx, 200*time.Millisecond) })
	}

	lg.Info("simulation started", "scenario", scen.Name, "aircraft", w.Registry.Len(), "spawning", spawning)
	err = eg.Wait()
	if errors.Is(err, scope.ErrQuit) || errors.Is(err, errFleetDone) {
		err = nil
	}

	err = errors.Join(err, eventlog.CloseAll(sinks...))
	if rerr := tally.WriteReport(os.Stdout); rerr != nil {
		err = errors.Join(err, rerr)
	}
	lg.Info("simulation finished", "flights", len(w.Registry.Recent()), "remaining", w.Registry.Len())
	return err
}

// waitForFleet returns errFleetDone once no aircraft remain, which
// cancels the rest of the run.
func waitForFleet(ctx context.Context, w *sim.World) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.Registry.Len() == 0 {
				return errFleetDone
			}
		}
	}
}
