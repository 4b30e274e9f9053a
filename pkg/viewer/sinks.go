package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ChannelSink publishes frames on a buffered channel. When the buffer is
// full the oldest frame is dropped so the newest is always delivered.
type ChannelSink struct {
	mu     sync.Mutex
	frames chan Frame
}

// NewChannelSink returns a sink buffering up to size frames (minimum 1).
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{frames: make(chan Frame, max(1, size))}
}

// Frames returns the receive side of the sink.
func (s *ChannelSink) Frames() <-chan Frame { return s.frames }

// Show enqueues f, evicting the oldest frame if needed.
func (s *ChannelSink) Show(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.frames <- f:
			return nil
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

// FileSink writes each frame to an image file. The format follows the
// extension of Path (png, jpg, gif, tif, bmp). A "{node}" placeholder in
// Path is replaced with the frame's label, or its node id if unlabeled.
type FileSink struct {
	Path string
}

// PathFor returns the file f is written to.
func (s FileSink) PathFor(f Frame) string {
	name := f.Label
	if name == "" {
		name = f.NodeID
	}
	return strings.ReplaceAll(s.Path, "{node}", name)
}

// Show encodes the frame texture to disk.
func (s FileSink) Show(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Texture == nil {
		return fmt.Errorf("frame for %s has no texture", f.NodeID)
	}
	path := s.PathFor(f)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := imaging.Save(f.Texture, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
