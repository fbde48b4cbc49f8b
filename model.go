package main

import "time"

// Location is a point in WGS-84 degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Vehicle is one scooter as reported by the Tier API during a single update cycle.
type Vehicle struct {
	ID           string  `json:"id,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	BatteryLevel float64 `json:"batteryLevel"`
}

func (v Vehicle) Location() Location {
	return Location{Lat: v.Lat, Lon: v.Lon}
}

// Attributes describe the nearest vehicle of the last successful cycle.
type Attributes struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	BatteryLevel int     `json:"battery_level"`
	Attribution  string  `json:"attribution"`
}

// Reading is the snapshot exposed to HTTP, websocket and MQTT consumers.
// State and Attributes are nil while the sensor is unknown.
type Reading struct {
	Name              string      `json:"name"`
	State             *int        `json:"state"`
	UnitOfMeasurement string      `json:"unit_of_measurement"`
	Icon              string      `json:"icon"`
	Attributes        *Attributes `json:"attributes"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`
}

// Known reports whether the reading carries a nearest vehicle.
func (r Reading) Known() bool {
	return r.State != nil
}
