package main

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

const (
	DefaultSensorName     = "Tier Nearest Scooter"
	DefaultRadius         = 500.0
	MinTimeBetweenUpdates = 10 * time.Minute

	Attribution = "Data provided by Tier"
	sensorIcon  = "mdi:scooter"
	unitMeters  = "m"

	StateUnknown = "unknown"
	StateKnown   = "known"

	eventResolve = "resolve"
	eventLose    = "lose"
)

var errMissingData = errors.New(`response has no "data" field`)

// SensorOption customises a NearestScooterSensor.
type SensorOption func(*NearestScooterSensor)

// WithClock replaces time.Now, used by the update throttle.
func WithClock(now func() time.Time) SensorOption {
	return func(s *NearestScooterSensor) { s.now = now }
}

// WithDistanceFunc replaces the geodesic distance used to rank vehicles.
func WithDistanceFunc(fn func(a, b Location) float64) SensorOption {
	return func(s *NearestScooterSensor) { s.distance = fn }
}

func WithMinInterval(d time.Duration) SensorOption {
	return func(s *NearestScooterSensor) { s.minInterval = d }
}

func WithSensorLogger(l Logger) SensorOption {
	return func(s *NearestScooterSensor) { s.log = l }
}

// NearestScooterSensor tracks the scooter closest to a fixed location.
//
// Update is throttled: it performs at most one fetch per minimum interval and
// skips calls that arrive while a cycle is still running. Every completed
// cycle overwrites the reading; failed or empty cycles leave it unknown.
type NearestScooterSensor struct {
	api         VehicleFetcher
	name        string
	location    Location
	radius      float64
	log         Logger
	now         func() time.Time
	distance    func(a, b Location) float64
	minInterval time.Duration

	// updateMu serialises update cycles; lastUpdate is only touched under it.
	updateMu   sync.Mutex
	lastUpdate time.Time

	fsm *fsm.FSM

	mu         sync.RWMutex
	state      *int
	attributes *Attributes
	updatedAt  time.Time
}

func NewNearestScooterSensor(api VehicleFetcher, name string, location Location, radius float64, opts ...SensorOption) *NearestScooterSensor {
	if name == "" {
		name = DefaultSensorName
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	s := &NearestScooterSensor{
		api:         api,
		name:        name,
		location:    location,
		radius:      radius,
		log:         NewNopLogger(),
		now:         time.Now,
		distance:    distance,
		minInterval: MinTimeBetweenUpdates,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.fsm = fsm.NewFSM(
		StateUnknown,
		fsm.Events{
			{Name: eventResolve, Src: []string{StateUnknown, StateKnown}, Dst: StateKnown},
			{Name: eventLose, Src: []string{StateUnknown, StateKnown}, Dst: StateUnknown},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.log.Info("Nearest scooter sensor changed state", "from", e.Src, "to", e.Dst)
			},
		},
	)
	nearestKnown.WithLabelValues(s.name).Set(0)
	return s
}

func (s *NearestScooterSensor) Name() string { return s.name }

// Status is StateKnown or StateUnknown.
func (s *NearestScooterSensor) Status() string { return s.fsm.Current() }

// State returns the distance in metres to the nearest scooter, or nil when unknown.
func (s *NearestScooterSensor) State() *int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	v := *s.state
	return &v
}

// Attributes returns the nearest scooter's attributes, or nil when unknown.
func (s *NearestScooterSensor) Attributes() *Attributes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.attributes == nil {
		return nil
	}
	a := *s.attributes
	return &a
}

// Reading returns a consistent snapshot of state, attributes and metadata.
func (s *NearestScooterSensor) Reading() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := Reading{
		Name:              s.name,
		UnitOfMeasurement: unitMeters,
		Icon:              sensorIcon,
	}
	if s.state != nil {
		v := *s.state
		r.State = &v
	}
	if s.attributes != nil {
		a := *s.attributes
		r.Attributes = &a
	}
	if !s.updatedAt.IsZero() {
		t := s.updatedAt
		r.UpdatedAt = &t
	}
	return r
}

// Update runs one cycle unless throttled. It reports whether a cycle ran.
func (s *NearestScooterSensor) Update(ctx context.Context) bool {
	if !s.updateMu.TryLock() {
		updateTotal.WithLabelValues("throttled").Inc()
		return false
	}
	defer s.updateMu.Unlock()

	if !s.lastUpdate.IsZero() && s.now().Sub(s.lastUpdate) <= s.minInterval {
		updateTotal.WithLabelValues("throttled").Inc()
		return false
	}

	s.update(ctx)
	s.lastUpdate = s.now()
	return true
}

func (s *NearestScooterSensor) update(ctx context.Context) {
	s.mu.Lock()
	s.state = nil
	s.attributes = nil
	s.mu.Unlock()

	vehicles := s.vehicles(s.api.Fetch(ctx, s.location.Lat, s.location.Lon, s.radius))
	if len(vehicles) == 0 {
		s.mu.Lock()
		s.updatedAt = s.now()
		s.mu.Unlock()
		s.transition(ctx, eventLose)
		updateTotal.WithLabelValues(StateUnknown).Inc()
		nearestKnown.WithLabelValues(s.name).Set(0)
		nearestDistance.DeleteLabelValues(s.name)
		return
	}

	nearest, dist := s.nearest(vehicles)
	state := int(math.RoundToEven(dist))
	attrs := &Attributes{
		Latitude:     roundTo(nearest.Lat, 5),
		Longitude:    roundTo(nearest.Lon, 5),
		BatteryLevel: int(math.RoundToEven(nearest.BatteryLevel)),
		Attribution:  Attribution,
	}

	s.mu.Lock()
	s.state = &state
	s.attributes = attrs
	s.updatedAt = s.now()
	s.mu.Unlock()

	s.transition(ctx, eventResolve)
	updateTotal.WithLabelValues(StateKnown).Inc()
	nearestKnown.WithLabelValues(s.name).Set(1)
	nearestDistance.WithLabelValues(s.name).Set(float64(state))
	s.log.Debug("Nearest scooter updated", "id", nearest.ID, "distance", state, "candidates", len(vehicles))
}

// vehicles extracts usable records from resp, logging why a cycle yields none.
func (s *NearestScooterSensor) vehicles(resp *VehicleResponse) []Vehicle {
	if resp == nil {
		s.log.Error(nil, "Empty result found when expecting list of vehicles")
		return nil
	}
	if resp.Data == nil {
		s.log.Error(errMissingData, "Erroneous result found when expecting list of vehicles")
		return nil
	}

	raw := *resp.Data
	out := make([]Vehicle, 0, len(raw))
	for i, tv := range raw {
		v, ok := tv.vehicle()
		if !ok {
			s.log.Warn("Skipping vehicle without coordinates", "index", i, "id", rawID(tv.ID))
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		s.log.Error(nil, "No vehicles found around location", "radius", s.radius, "received", len(raw))
	}
	return out
}

// nearest returns the closest vehicle; on equal distance the earlier one wins.
func (s *NearestScooterSensor) nearest(vehicles []Vehicle) (Vehicle, float64) {
	best := vehicles[0]
	bestDist := s.distance(s.location, best.Location())
	for _, v := range vehicles[1:] {
		if d := s.distance(s.location, v.Location()); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, bestDist
}

// transition fires event even when ctx is already cancelled, so the status
// always follows the state that was just stored.
func (s *NearestScooterSensor) transition(ctx context.Context, event string) {
	err := s.fsm.Event(context.WithoutCancel(ctx), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		s.log.Warn("Unexpected sensor state transition failure", "event", event, "error", err)
	}
}
