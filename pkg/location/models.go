package location

import "github.com/benmeehan/shuttle-tracker/internal/models"

// Location represents the geographical coordinates of the shuttle
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // metres for geolocation, HDOP for GPS fixes
}

// Coordinate drops the accuracy.
func (l Location) Coordinate() models.Coordinate {
	return models.Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}
