package telemetry

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/skylane-uas/skylane/internal/flight"
	"github.com/skylane-uas/skylane/pkg/geo"
)

// Default simulation parameters.
const (
	DefaultSpeedMPS = 20.0
	DefaultInterval = time.Second
)

// Publisher is the broadcast sink telemetry events are published to.
// Delivery is best-effort; Publish never fails from the simulator's
// point of view.
type Publisher interface {
	Publish(v any)
}

// PlanSource loads the flight plan and its waypoints at simulation
// start. Get returns (nil, nil) when the plan does not exist.
type PlanSource interface {
	Get(ctx context.Context, id int) (*flight.FlightPlan, error)
	GetWaypoints(ctx context.Context, planID int) ([]flight.Waypoint, error)
}

// Completer performs the system-internal ACTIVE -> COMPLETED transition
// when the simulation reaches the final waypoint.
type Completer interface {
	Complete(ctx context.Context, planID int) (*flight.FlightPlan, error)
}

// Simulator flies one plan at a time along its waypoints at a fixed
// ground speed, publishing an interpolated position every interval.
//
// Failure policy is fail-stationary: any mid-simulation error is logged
// and the simulation halts with the plan left ACTIVE, so an operator can
// see that something went wrong instead of the flight being silently
// marked completed.
type Simulator struct {
	plans     PlanSource
	completer Completer
	sink      Publisher
	logger    *log.Logger

	speedMPS float64
	interval time.Duration

	// sleep is the per-step suspension point. Tests substitute an
	// immediate tick to exercise the full trace without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSimulator creates a simulator with the default speed and interval.
// A nil logger falls back to the default logger.
func NewSimulator(plans PlanSource, completer Completer, sink Publisher, logger *log.Logger) *Simulator {
	if logger == nil {
		logger = log.Default()
	}
	return &Simulator{
		plans:     plans,
		completer: completer,
		sink:      sink,
		logger:    logger,
		speedMPS:  DefaultSpeedMPS,
		interval:  DefaultInterval,
		sleep:     sleepContext,
	}
}

// SetPace overrides the simulation speed and telemetry interval.
// Non-positive values keep the current setting.
func (s *Simulator) SetPace(speedMPS float64, interval time.Duration) {
	if speedMPS > 0 {
		s.speedMPS = speedMPS
	}
	if interval > 0 {
		s.interval = interval
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run simulates the flight for planID until the final waypoint, then
// completes the plan and publishes the terminal event. It blocks for the
// duration of the flight; callers launch it on the Pool.
//
// Run never returns an error: no caller is waiting for one. Problems are
// logged and the plan is left in whatever status it had.
func (s *Simulator) Run(ctx context.Context, planID int) {
	s.logger.Printf("Telemetry simulation started for flight %d", planID)

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		s.logger.Printf("Simulation for flight %d: failed to load plan: %v", planID, err)
		return
	}
	if plan == nil {
		s.logger.Printf("Simulation for flight %d: plan not found", planID)
		return
	}

	waypoints, err := s.plans.GetWaypoints(ctx, planID)
	if err != nil {
		s.logger.Printf("Simulation for flight %d: failed to load waypoints: %v", planID, err)
		return
	}
	sort.Slice(waypoints, func(i, j int) bool {
		return waypoints[i].SequenceOrder < waypoints[j].SequenceOrder
	})

	// Submission enforces a non-empty waypoint list, so this is
	// unreachable through the API. If it happens anyway, halt without
	// completing the flight.
	if len(waypoints) == 0 {
		s.logger.Printf("Simulation for flight %d: no waypoints, aborting", planID)
		return
	}

	first := waypoints[0]
	s.publishAt(plan, first.Latitude, first.Longitude, first.AltitudeM, StatusOnSchedule, at(0), nil)

	for i := 0; i < len(waypoints)-1; i++ {
		start, end := waypoints[i], waypoints[i+1]
		a := geo.Point{Latitude: start.Latitude, Longitude: start.Longitude, AltitudeM: start.AltitudeM}
		b := geo.Point{Latitude: end.Latitude, Longitude: end.Longitude, AltitudeM: end.AltitudeM}

		steps := segmentSteps(geo.HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude), s.speedMPS, s.interval)
		for step := 1; step <= steps; step++ {
			if err := s.sleep(ctx, s.interval); err != nil {
				s.logger.Printf("Simulation for flight %d stopped: %v", planID, err)
				return
			}
			p := geo.Interpolate(a, b, float64(step)/float64(steps))
			s.publishAt(plan, round6(p.Latitude), round6(p.Longitude), round2(p.AltitudeM),
				StatusOnSchedule, nil, at(i+1))
		}

		s.publishAt(plan, end.Latitude, end.Longitude, end.AltitudeM, StatusWaypointReached, at(i+1), nil)
	}

	if _, err := s.completer.Complete(ctx, planID); err != nil {
		// Fail-stationary: leave the plan ACTIVE and stop.
		s.logger.Printf("Simulation for flight %d: failed to complete plan: %v", planID, err)
		return
	}

	last := waypoints[len(waypoints)-1]
	s.publishAt(plan, last.Latitude, last.Longitude, last.AltitudeM, StatusFlightCompleted, at(len(waypoints)-1), nil)
	s.logger.Printf("Telemetry simulation completed for flight %d", planID)
}

func (s *Simulator) publishAt(plan *flight.FlightPlan, lat, lon, alt float64, status string, waypointIdx, headingIdx *int) {
	s.sink.Publish(Event{
		FlightID:             plan.ID,
		DroneID:              plan.DroneID,
		Latitude:             lat,
		Longitude:            lon,
		AltitudeM:            alt,
		Timestamp:            float64(time.Now().UnixNano()) / 1e9,
		Status:               status,
		WaypointIdx:          waypointIdx,
		HeadingToWaypointIdx: headingIdx,
	})
}

// segmentSteps computes how many telemetry ticks a segment takes:
// round(distance / speed / interval), floored at one so a zero-distance
// segment still publishes a single sample.
func segmentSteps(distanceM, speedMPS float64, interval time.Duration) int {
	if speedMPS <= 0 || interval <= 0 {
		return 1
	}
	steps := int(math.Round(distanceM / speedMPS / interval.Seconds()))
	if steps < 1 {
		return 1
	}
	return steps
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
func round2(v float64) float64 { return math.Round(v*1e2) / 1e2 }

func at(i int) *int { return &i }
