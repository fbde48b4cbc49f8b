package main

import (
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

const (
	gtfsRealtimeVersion = "2.0"
	nearestEntityID     = "nearest"
)

// nearestFeed encodes a reading as a GTFS-Realtime feed holding at most one
// VehiclePosition, the nearest scooter.
func nearestFeed(r Reading, now time.Time) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	if !r.Known() || r.Attributes == nil {
		return feed
	}

	vp := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(nearestEntityID),
			Label: proto.String(r.Name),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(r.Attributes.Latitude)),
			Longitude: proto.Float32(float32(r.Attributes.Longitude)),
		},
	}
	if r.UpdatedAt != nil {
		vp.Timestamp = proto.Uint64(uint64(r.UpdatedAt.Unix()))
	}
	feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
		Id:      proto.String(nearestEntityID),
		Vehicle: vp,
	})
	return feed
}

func handleNearestFeed(sensor *NearestScooterSensor, log Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := proto.Marshal(nearestFeed(sensor.Reading(), time.Now()))
		if err != nil {
			log.Error(err, "Failed to encode GTFS-RT feed")
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}
}
