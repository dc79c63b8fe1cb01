package services

import (
	"context"
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/benmeehan/shuttle-tracker/internal/tracker"
)

const gtfsRealtimeVersion = "2.0"

var now = time.Now // For mocking time.Now() in tests

// VehicleFeed keeps a headless view of the shuttle and exports it as a GTFS-Realtime vehicle position.
type VehicleFeed struct {
	shuttleID string
	label     string
	view      *tracker.View
}

// NewVehicleFeed creates a feed backed by view. The view must not be shared.
func NewVehicleFeed(shuttleID, label string, view *tracker.View) *VehicleFeed {
	return &VehicleFeed{
		shuttleID: shuttleID,
		label:     label,
		view:      view,
	}
}

// Start follows the shuttle record.
func (f *VehicleFeed) Start(ctx context.Context) error {
	if err := f.view.Activate(ctx); err != nil {
		return fmt.Errorf("failed to start vehicle feed: %w", err)
	}
	f.view.MapReady()
	return nil
}

// Stop releases the subscription.
func (f *VehicleFeed) Stop() error {
	return f.view.Deactivate()
}

// FeedMessage builds a full-dataset feed. It has no entity until the first record arrives.
func (f *VehicleFeed) FeedMessage() *gtfs.FeedMessage {
	incrementality := gtfs.FeedHeader_FULL_DATASET
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(now().Unix())),
		},
	}

	state := f.view.State()
	if state.UpdatedAt.IsZero() {
		return msg
	}

	msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
		Id: proto.String(f.shuttleID),
		Vehicle: &gtfs.VehiclePosition{
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(f.shuttleID),
				Label: proto.String(f.label),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(state.Coordinate.Latitude)),
				Longitude: proto.Float32(float32(state.Coordinate.Longitude)),
			},
			Timestamp: proto.Uint64(uint64(state.UpdatedAt.Unix())),
		},
	})
	return msg
}
