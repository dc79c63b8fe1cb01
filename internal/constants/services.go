package constants

// Service names used by the service registry.
const (
	HTTPService       = "http"
	DriverFeedService = "driver_feed"
)

// Record store drivers.
const (
	StoreMemory = "memory"
	StoreMQTT   = "mqtt"
	StoreRedis  = "redis"
	StoreNATS   = "nats"
)

// Location providers for the driver feed.
const (
	ProviderStatic      = "static"
	ProviderSensor      = "sensor"
	ProviderGeolocation = "geolocation"
)

// Version of the service, overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// Websocket clients report their version with this query parameter.
const ClientVersionParam = "client_version"
