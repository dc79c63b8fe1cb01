package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ShuttleRecord is the externally stored current position of the shuttle.
type ShuttleRecord struct {
	Coordinate Coordinate
	UpdatedAt  time.Time
}

// shuttleDocument is the stored shape of a ShuttleRecord, shared with the browser clients.
type shuttleDocument struct {
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON encodes the record as {"lat", "lng", "timestamp"}.
func (r ShuttleRecord) MarshalJSON() ([]byte, error) {
	lat, lng := r.Coordinate.Latitude, r.Coordinate.Longitude
	return json.Marshal(shuttleDocument{Lat: &lat, Lng: &lng, Timestamp: r.UpdatedAt})
}

// UnmarshalJSON decodes a stored record. Both coordinate fields are required.
func (r *ShuttleRecord) UnmarshalJSON(data []byte) error {
	var doc shuttleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Lat == nil || doc.Lng == nil {
		return errors.New("shuttle record is missing lat or lng")
	}
	coordinate := Coordinate{Latitude: *doc.Lat, Longitude: *doc.Lng}
	if !coordinate.Valid() {
		return errors.New("shuttle record holds an invalid coordinate")
	}
	r.Coordinate = coordinate
	r.UpdatedAt = doc.Timestamp
	return nil
}
