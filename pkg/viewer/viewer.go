// Package viewer associates display sinks with viewer nodes.
//
// An attachment is a plain association from node id to [Sink]; it holds no
// reference into the graph, so attaching or detaching never changes the
// graph. Whoever removes a viewer node detaches its sink.
package viewer

import (
	"context"
	"errors"
	"image"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/framegraph/pkg/node"
	"github.com/matzehuels/framegraph/pkg/nodes"
)

// Frame is what a sink receives when a pass computed its viewer node.
type Frame struct {
	NodeID  string
	Label   string
	PassID  string
	Texture *image.NRGBA
}

// Sink displays frames. Show is called after the pass that produced the
// frame has completed, never while it is running.
type Sink interface {
	Show(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f Frame) error

// Show calls fn(ctx, f).
func (fn SinkFunc) Show(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Registry maps viewer node ids to at most one sink each.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// Attach associates sink with node id, replacing any previous sink.
func (r *Registry) Attach(id string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = sink
}

// Detach drops the sink attached to id and reports whether there was one.
func (r *Registry) Detach(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sinks[id]
	delete(r.sinks, id)
	return ok
}

// Sink returns the sink attached to id.
func (r *Registry) Sink(id string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[id]
	return s, ok
}

// Attached returns the ids that currently have a sink, sorted.
func (r *Registry) Attached() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sinks))
}

// Notify delivers a frame to every attached sink whose node appears in
// outputs with a texture on its "texture" port. label resolves display
// names and may be nil. It returns the number of frames delivered and the
// joined errors of the sinks that failed.
func (r *Registry) Notify(ctx context.Context, passID string, outputs map[string]node.Outputs, label func(id string) string) (int, error) {
	r.mu.RLock()
	targets := make(map[string]Sink, len(r.sinks))
	for id, s := range r.sinks {
		if _, ok := outputs[id]; ok {
			targets[id] = s
		}
	}
	r.mu.RUnlock()

	var (
		delivered int
		errs      []error
	)
	for _, id := range slices.Sorted(maps.Keys(targets)) {
		tex, ok := outputs[id].Texture(nodes.PortTexture)
		if !ok {
			continue
		}
		f := Frame{NodeID: id, PassID: passID, Texture: tex}
		if label != nil {
			f.Label = label(id)
		}
		if err := targets[id].Show(ctx, f); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}
