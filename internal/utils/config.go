package utils

import (
	"fmt"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/pkg/file"
	"github.com/go-playground/validator/v10"
)

// Config represents the structure of the configuration file.
type Config struct {
	Log struct {
		Level      string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"` // Minimum log level
		File       string `yaml:"file"`                                                         // Optional rotating log file, stdout only when empty
		MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`                                 // Size at which the log file is rotated
		MaxBackups int    `yaml:"max_backups" validate:"gte=0"`                                 // Rotated files to keep
		MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`                                // Days to keep rotated files
	} `yaml:"log"`

	Shuttle struct {
		ID               string        `yaml:"id" validate:"required"`                        // Record id of the tracked shuttle
		DefaultLatitude  float64       `yaml:"default_latitude" validate:"gte=-90,lte=90"`    // Coordinate shown until the first update
		DefaultLongitude float64       `yaml:"default_longitude" validate:"gte=-180,lte=180"` // Coordinate shown until the first update
		WriteTimeout     time.Duration `yaml:"write_timeout" validate:"gte=0"`                // Bound on a single location write
	} `yaml:"shuttle"`

	Store struct {
		Backend string `yaml:"backend" validate:"oneof=memory mqtt redis nats"` // Record store implementation

		MQTT struct {
			Broker         string        `yaml:"broker" validate:"required_if=Enabled true"` // MQTT broker address
			ClientID       string        `yaml:"client_id"`                                  // MQTT client ID prefix, a UUID is appended
			CACertificate  string        `yaml:"ca_certificate"`                             // Path to the CA certificate
			Username       string        `yaml:"username"`                                   // Broker username
			PasswordFile   string        `yaml:"password_file"`                              // Path to the broker password
			TopicPrefix    string        `yaml:"topic_prefix"`                               // Records live at <prefix>/<id>
			QOS            int           `yaml:"qos" validate:"gte=0,lte=2"`                 // MQTT QoS level for records
			ConnectTimeout time.Duration `yaml:"connect_timeout"`                            // Timeout for the initial connection
			Enabled        bool          `yaml:"-"`
		} `yaml:"mqtt"`

		Redis struct {
			Address      string `yaml:"address" validate:"required_if=Enabled true"` // host:port of the redis server
			PasswordFile string `yaml:"password_file"`                               // Path to the redis password
			DB           int    `yaml:"db" validate:"gte=0"`                         // Database index
			KeyPrefix    string `yaml:"key_prefix"`                                  // Records live at <prefix>:<id>
			Enabled      bool   `yaml:"-"`
		} `yaml:"redis"`

		NATS struct {
			URL     string `yaml:"url" validate:"required_if=Enabled true"` // NATS server URL
			Bucket  string `yaml:"bucket"`                                  // JetStream key-value bucket
			Enabled bool   `yaml:"-"`
		} `yaml:"nats"`
	} `yaml:"store"`

	Geocode struct {
		APIKeyFile string        `yaml:"api_key_file" validate:"required"`  // Path to the Google Maps API key
		BaseURL    string        `yaml:"base_url" validate:"omitempty,url"` // Override of the Maps API endpoint
		Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`          // Bound on a single reverse geocoding request
	} `yaml:"geocode"`

	Map struct {
		BrowserKey string `yaml:"browser_key"`                          // Maps JavaScript key handed to the browser
		MapID      string `yaml:"map_id"`                               // Styled map id
		Zoom       int    `yaml:"zoom" validate:"gte=0,lte=22"`         // Fixed zoom level
		MarkerIcon string `yaml:"marker_icon" validate:"omitempty,url"` // Shuttle marker icon
	} `yaml:"map"`

	Auth struct {
		SecretFile string        `yaml:"secret_file" validate:"required"` // Path to the session token signing secret
		Issuer     string        `yaml:"issuer"`                          // Issuer claim of session tokens
		TokenTTL   time.Duration `yaml:"token_ttl" validate:"gte=0"`      // Lifetime of issued session tokens
	} `yaml:"auth"`

	Server struct {
		Address          string        `yaml:"address" validate:"required"`       // Listen address of the HTTP server
		MinClientVersion string        `yaml:"min_client_version"`                // Oldest websocket client accepted
		ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" validate:"gte=0"` // Grace period for open requests
		AllowedOrigins   []string      `yaml:"allowed_origins"`                   // Websocket origins, any when empty
	} `yaml:"server"`

	Services struct {
		DriverFeed struct {
			Enabled         bool          `yaml:"enabled"`                                             // Enable/disable driver feed service
			Interval        time.Duration `yaml:"interval" validate:"required_if=Enabled true"`        // Interval between published positions
			Provider        string        `yaml:"provider" validate:"oneof=static sensor geolocation"` // Location provider
			TokenFile       string        `yaml:"token_file" validate:"required_if=Enabled true"`      // Path to the driver session token
			StaticLatitude  float64       `yaml:"static_latitude" validate:"gte=-90,lte=90"`           // Position of the static provider
			StaticLongitude float64       `yaml:"static_longitude" validate:"gte=-180,lte=180"`        // Position of the static provider
			GPSDevicePort   string        `yaml:"gps_device_port"`                                     // UNIX Port where the GPS sensor is mounted
			GPSBaudRate     int           `yaml:"gps_baud_rate" validate:"gte=0"`                      // The Baud rate for GPS sensor
		} `yaml:"driver_feed"`
	} `yaml:"services"`
}

// applyDefaults fills every unset optional field.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Shuttle.ID == "" {
		c.Shuttle.ID = constants.DefaultShuttleID
	}
	if c.Shuttle.DefaultLatitude == 0 && c.Shuttle.DefaultLongitude == 0 {
		c.Shuttle.DefaultLatitude = constants.DefaultLatitude
		c.Shuttle.DefaultLongitude = constants.DefaultLongitude
	}
	if c.Shuttle.WriteTimeout == 0 {
		c.Shuttle.WriteTimeout = 10 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = constants.StoreMemory
	}
	if c.Store.MQTT.ClientID == "" {
		c.Store.MQTT.ClientID = "shuttle-tracker"
	}
	if c.Store.MQTT.TopicPrefix == "" {
		c.Store.MQTT.TopicPrefix = "drivers"
	}
	if c.Store.MQTT.QOS == 0 {
		c.Store.MQTT.QOS = 1
	}
	if c.Store.MQTT.ConnectTimeout == 0 {
		c.Store.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "drivers"
	}
	if c.Store.NATS.Bucket == "" {
		c.Store.NATS.Bucket = "drivers"
	}
	c.Store.MQTT.Enabled = c.Store.Backend == constants.StoreMQTT
	c.Store.Redis.Enabled = c.Store.Backend == constants.StoreRedis
	c.Store.NATS.Enabled = c.Store.Backend == constants.StoreNATS

	if c.Geocode.Timeout == 0 {
		c.Geocode.Timeout = constants.DefaultGeocodeTimeout
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = constants.DefaultMapZoom
	}
	if c.Map.MarkerIcon == "" {
		c.Map.MarkerIcon = constants.DefaultMarkerIcon
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "shuttle-tracker"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Services.DriverFeed.Provider == "" {
		c.Services.DriverFeed.Provider = constants.ProviderStatic
	}
	if c.Services.DriverFeed.StaticLatitude == 0 && c.Services.DriverFeed.StaticLongitude == 0 {
		c.Services.DriverFeed.StaticLatitude = c.Shuttle.DefaultLatitude
		c.Services.DriverFeed.StaticLongitude = c.Shuttle.DefaultLongitude
	}
	if c.Services.DriverFeed.GPSBaudRate == 0 {
		c.Services.DriverFeed.GPSBaudRate = 9600
	}
}

// LoadConfig loads the YAML configuration from the specified file, applies defaults and validates it.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.applyDefaults()

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}

	return &config, nil
}
