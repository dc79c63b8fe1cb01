// Package tracker implements the live shuttle tracking view: it follows the shuttle record,
// keeps the map on the latest coordinate, resolves that coordinate to an address and publishes
// new coordinates on behalf of signed-in users.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyActive = errors.New("view is already active")
	ErrNotActive     = errors.New("view is not active")
)

// ViewConfig holds the fixed parameters of a view.
type ViewConfig struct {
	ShuttleID         string
	DefaultCoordinate models.Coordinate
	Zoom              int
	MarkerIcon        string
}

// DefaultViewConfig returns the campus defaults.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		ShuttleID:         constants.DefaultShuttleID,
		DefaultCoordinate: models.Coordinate{Latitude: constants.DefaultLatitude, Longitude: constants.DefaultLongitude},
		Zoom:              constants.DefaultMapZoom,
		MarkerIcon:        constants.DefaultMarkerIcon,
	}
}

// maxPendingRecords bounds the records queued for a busy loop. Older ones are dropped first,
// the latest record is always kept.
const maxPendingRecords = 64

type resolvedEvent struct {
	seq        uint64
	coordinate models.Coordinate
	address    string
}

type mapReadyEvent struct{}

// View is one live tracking page. All state changes happen on its event loop, fed by
// record notifications, resolver completions and the map-ready signal.
//
// Record notifications never block the store: they are queued and the loop drains them in order.
type View struct {
	id       string
	cfg      ViewConfig
	store    recordstore.Store
	resolver *Resolver
	renderer Renderer
	logger   zerolog.Logger

	events chan interface{}

	pendingMu     sync.Mutex
	pending       []*models.ShuttleRecord
	recordsQueued chan struct{}

	mu     sync.Mutex
	state  models.ViewState
	ctx    context.Context
	cancel context.CancelFunc
	sub    recordstore.Subscription
	active bool
	wg     sync.WaitGroup

	// owned by the event loop
	seq           uint64
	resolveCancel context.CancelFunc
	mapReady      bool
}

// NewView creates a view in the Loading phase showing the default coordinate.
// A nil resolver follows the coordinate only, leaving the address untouched.
func NewView(id string, cfg ViewConfig, store recordstore.Store, resolver *Resolver, renderer Renderer, logger zerolog.Logger) *View {
	return &View{
		id:       id,
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		renderer: renderer,
		logger:   logger.With().Str("view_id", id).Logger(),
		events:   make(chan interface{}, 16),

		recordsQueued: make(chan struct{}, 1),
		state: models.ViewState{
			Phase:      models.PhaseLoading,
			Coordinate: cfg.DefaultCoordinate,
			Address:    constants.AddressFetching,
		},
	}
}

// ID returns the view identifier.
func (v *View) ID() string {
	return v.id
}

// Activate starts the event loop and subscribes to the shuttle record.
// A view can be activated once.
func (v *View) Activate(ctx context.Context) error {
	v.mu.Lock()
	if v.active || v.state.Phase == models.PhaseTornDown {
		v.mu.Unlock()
		return ErrAlreadyActive
	}
	v.active = true
	v.ctx, v.cancel = context.WithCancel(context.Background())
	loopCtx := v.ctx
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.run(loopCtx)
	}()

	sub, err := v.store.Subscribe(ctx, v.cfg.ShuttleID, v.onRecord)
	if err != nil {
		v.teardown()
		return fmt.Errorf("failed to subscribe to %s: %w", v.cfg.ShuttleID, err)
	}

	v.mu.Lock()
	v.sub = sub
	v.mu.Unlock()

	v.logger.Info().Str("shuttle_id", v.cfg.ShuttleID).Msg("View activated")
	return nil
}

// MapReady signals that the map widget finished loading. The view becomes Active and renders
// its current state.
func (v *View) MapReady() {
	v.post(mapReadyEvent{})
}

// Deactivate unregisters the subscription and stops the event loop. Events arriving later,
// including in-flight address resolutions, are dropped.
func (v *View) Deactivate() error {
	v.mu.Lock()
	if !v.active {
		v.mu.Unlock()
		return ErrNotActive
	}
	sub := v.sub
	v.mu.Unlock()

	var err error
	v.teardown()
	if sub != nil {
		if err = sub.Unsubscribe(); err != nil {
			v.logger.Warn().Err(err).Msg("Failed to unsubscribe view")
		}
	}

	v.logger.Info().Msg("View deactivated")
	return err
}

// teardown cancels the loop, waits for it and its resolutions, then marks the view torn down.
func (v *View) teardown() {
	v.mu.Lock()
	cancel := v.cancel
	v.active = false
	v.mu.Unlock()

	cancel()
	v.wg.Wait()

	v.mu.Lock()
	v.state.Phase = models.PhaseTornDown
	v.mu.Unlock()
}

// State returns a snapshot of the view.
func (v *View) State() models.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.state
	if v.state.AddressFor != nil {
		addressFor := *v.state.AddressFor
		state.AddressFor = &addressFor
	}
	return state
}

// onRecord is the record store handler. It queues record for the loop without waiting.
func (v *View) onRecord(record *models.ShuttleRecord) {
	v.mu.Lock()
	ctx := v.ctx
	v.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	v.pendingMu.Lock()
	if len(v.pending) == maxPendingRecords {
		v.logger.Warn().Msg("View is falling behind, dropping an old record")
		v.pending = v.pending[1:]
	}
	v.pending = append(v.pending, record)
	v.pendingMu.Unlock()

	select {
	case v.recordsQueued <- struct{}{}:
	default:
	}
}

func (v *View) takePending() []*models.ShuttleRecord {
	v.pendingMu.Lock()
	defer v.pendingMu.Unlock()
	records := v.pending
	v.pending = nil
	return records
}

// post queues an event for the loop, dropping it once the view is torn down.
func (v *View) post(event interface{}) {
	v.mu.Lock()
	ctx := v.ctx
	v.mu.Unlock()
	if ctx == nil {
		return
	}

	select {
	case v.events <- event:
	case <-ctx.Done():
	}
}

func (v *View) run(ctx context.Context) {
	defer func() {
		if v.resolveCancel != nil {
			v.resolveCancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.recordsQueued:
			for _, record := range v.takePending() {
				if ctx.Err() != nil {
					return
				}
				v.handleRecord(ctx, record)
			}
		case event := <-v.events:
			if ctx.Err() != nil {
				return
			}
			switch e := event.(type) {
			case resolvedEvent:
				v.handleResolved(e)
			case mapReadyEvent:
				v.handleMapReady()
			}
		}
	}
}

func (v *View) handleRecord(ctx context.Context, record *models.ShuttleRecord) {
	if record == nil {
		v.logger.Debug().Str("shuttle_id", v.cfg.ShuttleID).Msg("Shuttle record does not exist")
		return
	}

	coordinate := record.Coordinate
	v.mu.Lock()
	v.state.Coordinate = coordinate
	v.state.UpdatedAt = record.UpdatedAt
	v.mu.Unlock()

	v.logger.Debug().Str("coordinate", coordinate.String()).Msg("Live shuttle location")
	if v.mapReady {
		v.renderMap(coordinate)
	}

	if v.resolver != nil {
		v.resolve(ctx, coordinate)
	}
}

// resolve starts resolution of coordinate, cancelling the request it supersedes.
func (v *View) resolve(ctx context.Context, coordinate models.Coordinate) {
	if v.resolveCancel != nil {
		v.resolveCancel()
	}
	v.seq++
	seq := v.seq

	resolveCtx, cancel := context.WithCancel(ctx)
	v.resolveCancel = cancel

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		address := v.resolver.Resolve(resolveCtx, coordinate)
		v.post(resolvedEvent{seq: seq, coordinate: coordinate, address: address})
	}()
}

func (v *View) handleResolved(e resolvedEvent) {
	if e.seq != v.seq {
		v.logger.Debug().
			Uint64("seq", e.seq).
			Uint64("latest_seq", v.seq).
			Msg("Discarding stale address")
		return
	}

	v.resolveCancel()
	v.resolveCancel = nil

	coordinate := e.coordinate
	v.mu.Lock()
	v.state.Address = e.address
	v.state.AddressFor = &coordinate
	v.mu.Unlock()

	if v.mapReady {
		v.renderAddress(e.address)
	}
}

func (v *View) handleMapReady() {
	if v.mapReady {
		return
	}
	v.mapReady = true

	v.mu.Lock()
	v.state.Phase = models.PhaseActive
	coordinate := v.state.Coordinate
	address := v.state.Address
	v.mu.Unlock()

	v.renderMap(coordinate)
	v.renderAddress(address)
}

func (v *View) renderMap(coordinate models.Coordinate) {
	frame := models.MapFrame{
		Center:  coordinate,
		Zoom:    v.cfg.Zoom,
		Markers: []models.Marker{{Position: coordinate, Icon: v.cfg.MarkerIcon}},
	}
	if err := v.renderer.RenderMap(frame); err != nil {
		v.logger.Warn().Err(err).Msg("Failed to render map")
	}
}

func (v *View) renderAddress(address string) {
	if err := v.renderer.RenderAddress(address); err != nil {
		v.logger.Warn().Err(err).Msg("Failed to render address")
	}
}
