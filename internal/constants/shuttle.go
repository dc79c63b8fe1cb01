package constants

import "time"

// Address texts shown next to the map.
const (
	AddressFetching = "Fetching address..."
	AddressUnknown  = "Unknown location"
	AddressError    = "Error retrieving address"
)

const (
	// DefaultShuttleID identifies the single tracked shuttle.
	DefaultShuttleID = "shuttle-1"

	// DefaultLatitude and DefaultLongitude place the map on campus until the first update arrives.
	DefaultLatitude  = 44.1003
	DefaultLongitude = -70.2148

	// DefaultMapZoom is the zoom level of the tracking map.
	DefaultMapZoom = 15

	// DefaultMarkerIcon is the shuttle marker drawn on the map.
	DefaultMarkerIcon = "https://maps.google.com/mapfiles/kml/shapes/cabs.png"

	// DefaultGeocodeTimeout bounds a single reverse-geocoding request.
	DefaultGeocodeTimeout = 10 * time.Second
)

// PromptSignInRequired is shown when an anonymous user tries to update the location.
const PromptSignInRequired = "You must be logged in to update the location!"
