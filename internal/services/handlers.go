package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/benmeehan/shuttle-tracker/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Viewers int    `json:"viewers"`
}

// MapConfig is handed to the browser so it can load the map widget.
type MapConfig struct {
	BrowserKey    string            `json:"browser_key"`
	MapID         string            `json:"map_id,omitempty"`
	Zoom          int               `json:"zoom"`
	MarkerIcon    string            `json:"marker_icon"`
	DefaultCenter models.Coordinate `json:"default_center"`
}

type sessionResponse struct {
	SignedIn bool         `json:"signed_in"`
	User     *models.User `json:"user,omitempty"`
}

type locationUpdateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type locationUpdateResponse struct {
	Status string               `json:"status"`
	Record models.ShuttleRecord `json:"record"`
}

type destinationsResponse struct {
	Origin       string   `json:"origin"`
	Destinations []string `json:"destinations"`
}

var (
	validate     = validator.New()
	destinations = utils.SliceToSet(constants.RideDestinations)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// session resolves the bearer token of r. Requests without a valid token are anonymous.
func (s *HTTPService) session(r *http.Request) models.Session {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return models.AnonymousSession{}
	}

	session, err := s.sessions.SessionFromToken(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Rejected session token")
		return models.AnonymousSession{}
	}
	return session
}

func (s *HTTPService) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: constants.Version, Viewers: s.hub.Count()})
}

func (s *HTTPService) handleMapConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mapConfig)
}

func (s *HTTPService) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.session(r).CurrentUser()
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, User: &user})
}

func (s *HTTPService) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)

	var req locationUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	coordinate := models.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !coordinate.Valid() {
		writeError(w, http.StatusBadRequest, "invalid coordinate")
		return
	}

	result := s.publisher.Publish(session, coordinate)
	switch result.Status {
	case tracker.PublishUnauthorized:
		writeError(w, http.StatusUnauthorized, result.Prompt)
	case tracker.PublishAccepted:
		writeJSON(w, http.StatusAccepted, locationUpdateResponse{Status: result.Status.String(), Record: result.Record})
	}
}

func (s *HTTPService) handleDestinations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, destinationsResponse{Origin: constants.RideOrigin, Destinations: constants.RideDestinations})
}

func (s *HTTPService) handleRideRequest(w http.ResponseWriter, r *http.Request) {
	var req models.RideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := destinations[req.Destination]; !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown destination %q", req.Destination))
		return
	}

	s.logger.Info().Str("origin", constants.RideOrigin).Str("destination", req.Destination).Msg("Ride request submitted")
	writeJSON(w, http.StatusOK, models.RideRequestResponse{
		Origin:      constants.RideOrigin,
		Destination: req.Destination,
		Message:     fmt.Sprintf("Your ride request to %s has been submitted successfully!", req.Destination),
	})
}

func (s *HTTPService) handleVehiclePositions(w http.ResponseWriter, r *http.Request) {
	feed := s.feed.FeedMessage()

	var (
		body        []byte
		err         error
		contentType string
	)
	if r.URL.Query().Get("format") == "json" {
		body, err = protojson.Marshal(feed)
		contentType = "application/json"
	} else {
		body, err = proto.Marshal(feed)
		contentType = "application/x-protobuf"
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode vehicle positions")
		writeError(w, http.StatusInternalServerError, "failed to encode feed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}
