package tracker

import "github.com/benmeehan/shuttle-tracker/internal/models"

// Renderer is the map widget and address display of a view.
type Renderer interface {
	// RenderMap centres the map on frame.Center and moves the marker there.
	RenderMap(frame models.MapFrame) error
	// RenderAddress replaces the displayed address.
	RenderAddress(address string) error
}

// NopRenderer discards every frame. Views without a display, such as the feed cache, use it.
type NopRenderer struct{}

func (NopRenderer) RenderMap(models.MapFrame) error { return nil }
func (NopRenderer) RenderAddress(string) error      { return nil }
