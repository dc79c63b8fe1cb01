package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	campus = models.Coordinate{Latitude: 44.1003, Longitude: -70.2148}
	mainSt = models.Coordinate{Latitude: 44.1050, Longitude: -70.2100}
	lisbon = models.Coordinate{Latitude: 44.0300, Longitude: -70.1050}
)

// geocoderFunc adapts a function to geocode.Geocoder.
type geocoderFunc func(ctx context.Context, coordinate models.Coordinate) (string, error)

func (f geocoderFunc) ReverseGeocode(ctx context.Context, coordinate models.Coordinate) (string, error) {
	return f(ctx, coordinate)
}

func staticGeocoder(address string) geocoderFunc {
	return func(context.Context, models.Coordinate) (string, error) { return address, nil }
}

type geocodeReply struct {
	address string
	err     error
}

type geocodeCall struct {
	coordinate models.Coordinate
	reply      chan geocodeReply
}

// controlledGeocoder holds every request until the test replies to it.
type controlledGeocoder struct {
	calls chan *geocodeCall
	// ignoreCancel keeps a request pending after its context ends, to simulate late responses.
	ignoreCancel bool
}

func newControlledGeocoder(ignoreCancel bool) *controlledGeocoder {
	return &controlledGeocoder{calls: make(chan *geocodeCall, 16), ignoreCancel: ignoreCancel}
}

func (g *controlledGeocoder) ReverseGeocode(ctx context.Context, coordinate models.Coordinate) (string, error) {
	call := &geocodeCall{coordinate: coordinate, reply: make(chan geocodeReply, 1)}
	g.calls <- call

	if g.ignoreCancel {
		r := <-call.reply
		return r.address, r.err
	}
	select {
	case r := <-call.reply:
		return r.address, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *controlledGeocoder) next(t *testing.T) *geocodeCall {
	t.Helper()
	select {
	case call := <-g.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no geocoding request was made")
		return nil
	}
}

// recordingRenderer keeps every frame and address it is asked to render.
type recordingRenderer struct {
	mu        sync.Mutex
	frames    []models.MapFrame
	addresses []string
}

func (r *recordingRenderer) RenderMap(frame models.MapFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingRenderer) RenderAddress(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses = append(r.addresses, address)
	return nil
}

func (r *recordingRenderer) Frames() []models.MapFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MapFrame(nil), r.frames...)
}

func (r *recordingRenderer) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.addresses...)
}

func (r *recordingRenderer) LastAddress() string {
	addresses := r.Addresses()
	if len(addresses) == 0 {
		return ""
	}
	return addresses[len(addresses)-1]
}

func writeRecord(t *testing.T, store recordstore.Store, coordinate models.Coordinate) {
	t.Helper()
	record := models.ShuttleRecord{Coordinate: coordinate, UpdatedAt: time.Now()}
	require.NoError(t, store.Write(context.Background(), "shuttle-1", record))
}

func newTestView(store recordstore.Store, geocoder geocoderFunc, renderer Renderer) *View {
	resolver := NewResolver(geocoder, time.Second, zerolog.Nop())
	return NewView("view-1", DefaultViewConfig(), store, resolver, renderer, zerolog.Nop())
}

// ignoreInitGoroutines skips the stats worker that go.opencensus.io starts from init when
// the maps client is linked in.
var ignoreInitGoroutines = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
