package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skylane-uas/skylane/internal/flight"
)

// fakeSink records every published event in order.
type fakeSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *fakeSink) Publish(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, v.(Event))
}

func (s *fakeSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// fakePlans serves one plan and its waypoints.
type fakePlans struct {
	plan      *flight.FlightPlan
	waypoints []flight.Waypoint
}

func (f *fakePlans) Get(ctx context.Context, id int) (*flight.FlightPlan, error) {
	if f.plan == nil || f.plan.ID != id {
		return nil, nil
	}
	return f.plan, nil
}

func (f *fakePlans) GetWaypoints(ctx context.Context, planID int) ([]flight.Waypoint, error) {
	return f.waypoints, nil
}

// fakeCompleter records completion calls and can be told to fail.
type fakeCompleter struct {
	mu       sync.Mutex
	calls    int
	failWith error
}

func (f *fakeCompleter) Complete(ctx context.Context, planID int) (*flight.FlightPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &flight.FlightPlan{ID: planID, Status: flight.StatusCompleted}, nil
}

func (f *fakeCompleter) completions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestSimulator wires a simulator whose sleep returns immediately, so
// a whole flight runs in microseconds.
func newTestSimulator(plans *fakePlans, completer *fakeCompleter, sink *fakeSink) *Simulator {
	sim := NewSimulator(plans, completer, sink, nil)
	sim.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	return sim
}

// twoLegPlan is roughly 1112m north then the same back east, giving
// deterministic step counts at 20 m/s.
func twoLegPlan() *fakePlans {
	return &fakePlans{
		plan: &flight.FlightPlan{ID: 1, DroneID: 5, Status: flight.StatusActive},
		waypoints: []flight.Waypoint{
			{FlightPlanID: 1, Latitude: 40.0000, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 0},
			{FlightPlanID: 1, Latitude: 40.0100, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 1},
		},
	}
}

func TestRunFullTrace(t *testing.T) {
	plans := twoLegPlan()
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	sim.Run(context.Background(), 1)

	events := sink.all()
	if len(events) < 3 {
		t.Fatalf("got %d events, want at least initial + intermediate + terminal", len(events))
	}

	first := events[0]
	if first.Status != StatusOnSchedule {
		t.Errorf("first event status = %s, want %s", first.Status, StatusOnSchedule)
	}
	if first.Latitude != 40.0 || first.Longitude != -74.0 {
		t.Errorf("first event at (%v, %v), want first waypoint", first.Latitude, first.Longitude)
	}
	if first.WaypointIdx == nil || *first.WaypointIdx != 0 {
		t.Errorf("first event WaypointIdx = %v, want 0", first.WaypointIdx)
	}

	// The segment is ~1112m; at 20 m/s and 1s intervals that rounds to 56
	// steps. The 56th step lands on the waypoint, then a WAYPOINT_REACHED
	// marker follows.
	var reached *Event
	for i := range events {
		if events[i].Status == StatusWaypointReached {
			reached = &events[i]
			break
		}
	}
	if reached == nil {
		t.Fatal("no WAYPOINT_REACHED event published")
	}
	if reached.Latitude != 40.01 {
		t.Errorf("WAYPOINT_REACHED at latitude %v, want exact waypoint 40.01", reached.Latitude)
	}
	if reached.WaypointIdx == nil || *reached.WaypointIdx != 1 {
		t.Errorf("WAYPOINT_REACHED WaypointIdx = %v, want 1", reached.WaypointIdx)
	}

	last := events[len(events)-1]
	if last.Status != StatusFlightCompleted {
		t.Errorf("last event status = %s, want %s", last.Status, StatusFlightCompleted)
	}
	if last.FlightID != 1 || last.DroneID != 5 {
		t.Errorf("terminal event identity = flight %d drone %d", last.FlightID, last.DroneID)
	}

	if completer.completions() != 1 {
		t.Errorf("Complete called %d times, want 1", completer.completions())
	}

	// Intermediate samples head toward the next waypoint and stay within
	// the segment's coordinate range.
	for _, ev := range events[1 : len(events)-2] {
		if ev.Status != StatusOnSchedule {
			continue
		}
		if ev.HeadingToWaypointIdx == nil || *ev.HeadingToWaypointIdx != 1 {
			t.Errorf("intermediate event HeadingToWaypointIdx = %v, want 1", ev.HeadingToWaypointIdx)
		}
		if ev.Latitude < 40.0 || ev.Latitude > 40.01 {
			t.Errorf("intermediate latitude %v outside segment", ev.Latitude)
		}
	}
}

func TestRunIntermediatePositionsAdvance(t *testing.T) {
	plans := twoLegPlan()
	sink := &fakeSink{}
	sim := newTestSimulator(plans, &fakeCompleter{}, sink)

	sim.Run(context.Background(), 1)

	prev := -1.0
	for _, ev := range sink.all() {
		if ev.Status != StatusOnSchedule {
			continue
		}
		if ev.Latitude < prev {
			t.Fatalf("latitude went backwards: %v after %v", ev.Latitude, prev)
		}
		prev = ev.Latitude
	}
}

func TestRunZeroDistanceSegment(t *testing.T) {
	// Two identical waypoints: the segment still publishes one sample and
	// one WAYPOINT_REACHED, then completes.
	plans := &fakePlans{
		plan: &flight.FlightPlan{ID: 2, DroneID: 5, Status: flight.StatusActive},
		waypoints: []flight.Waypoint{
			{Latitude: 40.0, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 0},
			{Latitude: 40.0, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 1},
		},
	}
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	sim.Run(context.Background(), 2)

	events := sink.all()
	// initial + 1 step + reached + completed
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].Latitude != 40.0 || events[1].Longitude != -74.0 {
		t.Errorf("zero-distance step moved to (%v, %v)", events[1].Latitude, events[1].Longitude)
	}
	if completer.completions() != 1 {
		t.Errorf("Complete called %d times, want 1", completer.completions())
	}
}

func TestRunSingleWaypoint(t *testing.T) {
	plans := &fakePlans{
		plan: &flight.FlightPlan{ID: 3, DroneID: 5, Status: flight.StatusActive},
		waypoints: []flight.Waypoint{
			{Latitude: 40.0, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 0},
		},
	}
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	sim.Run(context.Background(), 3)

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want initial + terminal", len(events))
	}
	if events[0].Status != StatusOnSchedule || events[1].Status != StatusFlightCompleted {
		t.Errorf("statuses = %s, %s", events[0].Status, events[1].Status)
	}
	if completer.completions() != 1 {
		t.Errorf("Complete called %d times, want 1", completer.completions())
	}
}

func TestRunUnsortedWaypoints(t *testing.T) {
	// Waypoints arrive out of order; traversal must follow SequenceOrder.
	plans := &fakePlans{
		plan: &flight.FlightPlan{ID: 4, DroneID: 5, Status: flight.StatusActive},
		waypoints: []flight.Waypoint{
			{Latitude: 40.02, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 2},
			{Latitude: 40.00, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 0},
			{Latitude: 40.01, Longitude: -74.0, AltitudeM: 100, SequenceOrder: 1},
		},
	}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, &fakeCompleter{}, sink)

	sim.Run(context.Background(), 4)

	events := sink.all()
	if events[0].Latitude != 40.0 {
		t.Errorf("simulation started at latitude %v, want sequence order 0 (40.0)", events[0].Latitude)
	}
	last := events[len(events)-1]
	if last.Latitude != 40.02 || last.Status != StatusFlightCompleted {
		t.Errorf("simulation ended at %v with %s, want 40.02 FLIGHT_COMPLETED", last.Latitude, last.Status)
	}
}

func TestRunNoWaypoints(t *testing.T) {
	plans := &fakePlans{plan: &flight.FlightPlan{ID: 5, Status: flight.StatusActive}}
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	sim.Run(context.Background(), 5)

	if n := len(sink.all()); n != 0 {
		t.Errorf("published %d events for an empty route, want 0", n)
	}
	if completer.completions() != 0 {
		t.Error("empty route must not complete the flight")
	}
}

func TestRunMissingPlan(t *testing.T) {
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(&fakePlans{}, completer, sink)

	sim.Run(context.Background(), 42)

	if n := len(sink.all()); n != 0 {
		t.Errorf("published %d events for a missing plan", n)
	}
	if completer.completions() != 0 {
		t.Error("missing plan must not be completed")
	}
}

func TestRunFailStationaryOnCompleteError(t *testing.T) {
	plans := twoLegPlan()
	completer := &fakeCompleter{failWith: errors.New("database down")}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	sim.Run(context.Background(), 1)

	events := sink.all()
	if len(events) == 0 {
		t.Fatal("no events published")
	}
	// No terminal event when completion fails: the flight stays ACTIVE.
	if events[len(events)-1].Status == StatusFlightCompleted {
		t.Error("FLIGHT_COMPLETED published despite completion failure")
	}
}

func TestRunCancelledContext(t *testing.T) {
	plans := twoLegPlan()
	completer := &fakeCompleter{}
	sink := &fakeSink{}
	sim := newTestSimulator(plans, completer, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim.Run(ctx, 1)

	events := sink.all()
	// The initial position publishes before the first sleep, then the
	// cancelled context stops the loop.
	if len(events) != 1 {
		t.Errorf("got %d events after cancellation, want 1", len(events))
	}
	if completer.completions() != 0 {
		t.Error("cancelled simulation must not complete the flight")
	}
}

func TestSegmentSteps(t *testing.T) {
	tests := []struct {
		name      string
		distanceM float64
		speedMPS  float64
		interval  time.Duration
		want      int
	}{
		{"exact division", 200, 20, time.Second, 10},
		{"rounds nearest", 210, 20, time.Second, 11},
		{"zero distance floors at one", 0, 20, time.Second, 1},
		{"short hop floors at one", 5, 20, time.Second, 1},
		{"half-second interval doubles steps", 200, 20, 500 * time.Millisecond, 20},
		{"invalid speed", 200, 0, time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := segmentSteps(tt.distanceM, tt.speedMPS, tt.interval); got != tt.want {
				t.Errorf("segmentSteps(%v, %v, %v) = %d, want %d",
					tt.distanceM, tt.speedMPS, tt.interval, got, tt.want)
			}
		})
	}
}

func TestSetPace(t *testing.T) {
	sim := NewSimulator(&fakePlans{}, &fakeCompleter{}, &fakeSink{}, nil)

	sim.SetPace(40, 2*time.Second)
	if sim.speedMPS != 40 || sim.interval != 2*time.Second {
		t.Errorf("pace = (%v, %v), want (40, 2s)", sim.speedMPS, sim.interval)
	}

	// Non-positive values keep the current setting.
	sim.SetPace(0, -1)
	if sim.speedMPS != 40 || sim.interval != 2*time.Second {
		t.Errorf("pace changed to (%v, %v) on invalid input", sim.speedMPS, sim.interval)
	}
}
