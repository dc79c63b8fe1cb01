package models

// RideRequest is a ride request submitted from the request form.
type RideRequest struct {
	Destination string `json:"destination" validate:"required"`
}

// RideRequestResponse acknowledges a ride request. Nothing is stored.
type RideRequestResponse struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Message     string `json:"message"`
}
