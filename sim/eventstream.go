// sim/eventstream.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/mmp/airspace/log"
)

// EventPoster is the sink that controllers and aircraft report their
// decisions to.
type EventPoster interface {
	PostEvent(Event)
}

// EventStream provides a basic pub/sub event interface that allows any
// part of the system to post an event to the stream and other parts to
// subscribe and receive messages from the stream. Controllers post every
// state-changing decision here; the event log and the status board
// consume it.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]any
	lastPost      time.Time
	warnedLong    bool
	done          chan struct{}
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is offset in the EventStream stream array up to which the
	// subscriber has consumed events so far.
	offset      int
	source      string
	lastGet     time.Time
	warnedNoGet bool
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("source", e.source),
		slog.Time("last_get", e.lastGet))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subscriptions: make(map[*EventsSubscription]any),
		lastPost:      time.Now(),
		done:          make(chan struct{}),
		lg:            lg,
	}
	go es.monitor()
	return es
}

// Subscribe registers a new subscriber to the stream. Events posted
// before the call are never returned to it.
func (e *EventStream) Subscribe() *EventsSubscription {
	// Record the subscriber's callsite, so that we can more easily debug
	// subscribers that aren't consuming events.
	_, fn, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", fn, line)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream:  e,
		offset:  len(e.events),
		source:  source,
		lastGet: time.Now(),
	}
	e.subscriptions[sub] = nil
	return sub
}

func (e *EventStream) monitor() {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-tick.C:
		}

		e.mu.Lock()

		e.compact()

		if len(e.events) > 10000 && !e.warnedLong {
			// It's likely that one of the subscribers is out to lunch if
			// the stream has grown this long.
			e.lg.Warn("Long EventStream", slog.Int("length", len(e.events)),
				log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
			e.warnedLong = true
		}

		// Only complain about idle subscribers while events are flowing.
		if time.Since(e.lastPost) < 5*time.Second {
			for sub := range e.subscriptions {
				if d := time.Since(sub.lastGet); d > 10*time.Second && !sub.warnedNoGet {
					e.lg.Warn("Subscriber has not called Get() recently",
						slog.Duration("duration", d), slog.Any("subscriber", sub))
					sub.warnedNoGet = true
				}
			}
		}

		e.mu.Unlock()
	}
}

// Unsubscribe removes a subscriber from the subscriber list
func (e *EventsSubscription) Unsubscribe() {
	s := e.stream
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[e]; !ok {
		s.lg.Errorf("Attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(s.subscriptions, e)
	e.stream = nil
}

// Post adds an event to the event stream. Events posted with a zero Time
// are stamped with the current time.
func (e *EventStream) Post(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posted event", slog.Any("event", event))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.lastPost = time.Now()
		e.events = append(e.events, event)
	}
}

// PostEvent implements EventPoster. A nil stream drops the event.
func (e *EventStream) PostEvent(event Event) {
	if e != nil {
		e.Post(event)
	}
}

// Get returns all of the events from the stream since the last time Get
// was called on the subscription.
func (e *EventsSubscription) Get() []Event {
	s := e.stream
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[e]; !ok {
		s.lg.Errorf("Attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	events := slices.Clone(s.events[e.offset:])
	e.offset = len(s.events)
	e.lastGet = time.Now()
	e.warnedNoGet = false

	return events
}

// Destroy stops the monitor goroutine and drops all subscriptions. It is
// safe to call more than once.
func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
	default:
		close(e.done)
	}
	clear(e.subscriptions)
}

// compact reclaims storage for events that all subscribers have seen; it
// is called periodically so that EventStream memory usage doesn't grow
// without bound.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		if sub.offset < minOffset {
			minOffset = sub.offset
		}
	}

	if minOffset > cap(e.events)/2 {
		n := len(e.events) - minOffset

		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]

		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}

		e.warnedLong = false // reset this after a successful compact.
	}
}

// implements slog.LogValuer
func (e *EventStream) LogValue() slog.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := []slog.Attr{slog.Int("len", len(e.events)), slog.Int("cap", cap(e.events))}
	if len(e.events) > 0 {
		items = append(items, slog.Any("last_element", e.events[len(e.events)-1]))
	}
	items = append(items, log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(e.subscriptions))))
	return slog.GroupValue(items...)
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	FlightLaunchedEvent EventType = iota
	DepartureRegisteredEvent
	TaxiToRunwayEvent
	HoldingShortEvent
	TakeoffEvent
	DepartureReleasedEvent
	CruiseEvent
	ConflictAlertEvent
	HandoffEvent
	RegulationEvent
	ApproachAssignedEvent
	HoldingEvent
	LandingGrantedEvent
	LandingRefusedEvent
	EmergencyDeclaredEvent
	EmergencyHandledEvent
	LowFuelEvent
	TouchdownEvent
	ParkingAssignedEvent
	NoParkingEvent
	RunwayReleasedEvent
	TaxiToGateEvent
	ParkedEvent
	MaintenanceEvent
	FlightFinishedEvent
	NumEventTypes
)

var eventTypeNames = [...]string{"FlightLaunched", "DepartureRegistered", "TaxiToRunway",
	"HoldingShort", "Takeoff", "DepartureReleased", "Cruise", "ConflictAlert", "Handoff",
	"Regulation", "ApproachAssigned", "Holding", "LandingGranted", "LandingRefused",
	"EmergencyDeclared", "EmergencyHandled", "LowFuel", "Touchdown", "ParkingAssigned",
	"NoParking", "RunwayReleased", "TaxiToGate", "Parked", "Maintenance", "FlightFinished"}

func (t EventType) String() string {
	if t < 0 || t >= NumEventTypes {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

// Event is a record of one decision: who made it (Actor, e.g. "TWR
// KJFK"), what it was, which aircraft it concerned, and free-form detail.
type Event struct {
	Type     EventType `msgpack:"type"`
	Time     time.Time `msgpack:"time"`
	Actor    string    `msgpack:"actor"`
	Callsign string    `msgpack:"callsign,omitempty"`
	Detail   string    `msgpack:"detail,omitempty"`
}

func (e Event) String() string {
	s := fmt.Sprintf("%s [%s]", e.Actor, e.Type)
	if e.Callsign != "" {
		s += " " + e.Callsign
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", e.Type.String()), slog.String("actor", e.Actor)}
	if e.Callsign != "" {
		attrs = append(attrs, slog.String("callsign", e.Callsign))
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	return slog.GroupValue(attrs...)
}

// postEvent is a nil-tolerant helper so that components may be built
// without an event sink in tests.
func postEvent(p EventPoster, e Event) {
	if p != nil {
		p.PostEvent(e)
	}
}
