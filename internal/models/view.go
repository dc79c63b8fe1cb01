package models

import "time"

// Phase is the lifecycle state of a tracking view.
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseActive   Phase = "active"
	PhaseTornDown Phase = "torn_down"
)

// Marker is a single map marker.
type Marker struct {
	Position Coordinate `json:"position"`
	Icon     string     `json:"icon"`
}

// MapFrame is everything the map widget needs to draw one frame.
type MapFrame struct {
	Center  Coordinate `json:"center"`
	Zoom    int        `json:"zoom"`
	Markers []Marker   `json:"markers"`
}

// ViewState is a snapshot of a tracking view.
type ViewState struct {
	Phase      Phase      `json:"phase"`
	Coordinate Coordinate `json:"coordinate"`
	Address    string     `json:"address"`
	// AddressFor is the coordinate the address was resolved for.
	AddressFor *Coordinate `json:"address_for,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at,omitempty"`
}
