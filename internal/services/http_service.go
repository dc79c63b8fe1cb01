package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
)

// Publisher publishes shuttle coordinates on behalf of a session.
type Publisher interface {
	Publish(session models.Session, coordinate models.Coordinate) tracker.PublishResult
}

// HTTPServiceConfig holds the listener settings of the HTTP service.
type HTTPServiceConfig struct {
	Address          string
	ShutdownTimeout  time.Duration
	MinClientVersion string // empty accepts every websocket client
	Map              MapConfig
}

// HTTPService serves the tracking websocket, the JSON API and the GTFS-Realtime feed.
type HTTPService struct {
	config     HTTPServiceConfig
	minVersion *semver.Version
	mapConfig  MapConfig

	hub       *Hub
	feed      *VehicleFeed
	publisher Publisher
	sessions  jwt.SessionManagerInterface
	logger    zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	running  bool
}

// NewHTTPService creates the HTTP service. It fails when the minimum client version cannot be parsed.
func NewHTTPService(config HTTPServiceConfig, hub *Hub, feed *VehicleFeed, publisher Publisher,
	sessions jwt.SessionManagerInterface, logger zerolog.Logger) (*HTTPService, error) {
	s := &HTTPService{
		config:    config,
		mapConfig: config.Map,
		hub:       hub,
		feed:      feed,
		publisher: publisher,
		sessions:  sessions,
		logger:    logger,
	}

	if config.MinClientVersion != "" {
		v, err := semver.NewVersion(config.MinClientVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum client version %q: %w", config.MinClientVersion, err)
		}
		s.minVersion = v
	}
	return s, nil
}

// Handler returns the routes of the service.
func (s *HTTPService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/map-config", s.handleMapConfig)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/shuttle/location", s.handleUpdateLocation)
	mux.HandleFunc("GET /api/destinations", s.handleDestinations)
	mux.HandleFunc("POST /api/ride-requests", s.handleRideRequest)
	mux.HandleFunc("GET /api/gtfs-rt/vehicle-positions", s.handleVehiclePositions)
	mux.Handle("GET /ws/shuttle", s.requireClientVersion(s.hub))
	return s.withLogging(mux)
}

// Start begins following the shuttle record and listening for requests.
func (s *HTTPService) Start() error {
	if s.running {
		s.logger.Warn().Msg("HTTPService is already running")
		return errors.New("http service is already running")
	}

	if err := s.feed.Start(context.Background()); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		_ = s.feed.Stop()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("HTTPService started")
	return nil
}

// Addr returns the listening address once started.
func (s *HTTPService) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains open requests, disconnects every viewer and stops the feed.
func (s *HTTPService) Stop() error {
	if !s.running {
		s.logger.Warn().Msg("HTTPService is not running")
		return errors.New("http service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	s.hub.Close()
	if err := s.feed.Stop(); err != nil {
		errs = append(errs, err)
	}
	s.wg.Wait()

	s.running = false
	s.logger.Info().Msg("HTTPService stopped")
	return errors.Join(errs...)
}

// requireClientVersion refuses websocket clients older than the configured minimum.
func (s *HTTPService) requireClientVersion(next http.Handler) http.Handler {
	if s.minVersion == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get(constants.ClientVersionParam)
		v, err := semver.NewVersion(raw)
		if err != nil || v.LessThan(s.minVersion) {
			s.logger.Info().Str("client_version", raw).Msg("Refusing outdated client")
			writeError(w, http.StatusUpgradeRequired, fmt.Sprintf("client version %s or newer is required", s.minVersion))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status. It keeps websocket upgrades working by
// passing Hijack through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *HTTPService) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
