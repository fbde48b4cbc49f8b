package main

import (
	"context"
	"time"
)

const DefaultScanInterval = 30 * time.Second

// ReadingPublisher receives the reading after every completed update cycle.
type ReadingPublisher interface {
	Publish(ctx context.Context, r Reading)
}

// poller drives the sensor on a fixed scan interval. The sensor's own throttle
// decides which ticks actually reach the Tier API.
type poller struct {
	sensor     *NearestScooterSensor
	interval   time.Duration
	publishers []ReadingPublisher
	log        Logger
}

func newPoller(sensor *NearestScooterSensor, interval time.Duration, log Logger, publishers ...ReadingPublisher) *poller {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &poller{
		sensor:     sensor,
		interval:   interval,
		publishers: publishers,
		log:        log,
	}
}

func (p *poller) run(ctx context.Context) error {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.tick(ctx)
			t.Reset(p.interval)
		}
	}
}

func (p *poller) tick(ctx context.Context) {
	start := time.Now()
	if !p.sensor.Update(ctx) {
		p.log.Debug("update throttled")
		return
	}
	reading := p.sensor.Reading()
	p.log.Info("sensor updated", "state", p.sensor.Status(), "distance", reading.State, "elapsed", time.Since(start))
	for _, pub := range p.publishers {
		pub.Publish(ctx, reading)
	}
}
