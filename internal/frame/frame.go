// Package frame defines the unit of video input and pull-based frame sources.
package frame

import (
	"context"
	"errors"
	"image"
	"io"
	"math"
	"sync"
	"time"
)

// Frame is one decoded video image. The caller owns Image; consumers must
// not retain it after processing returns.
type Frame struct {
	Image     image.Image
	Timestamp time.Duration
	Index     int64
}

// Source yields frames in order. Next returns io.EOF once the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SliceSource replays a fixed list of images at a constant frame rate
type SliceSource struct {
	mu     sync.Mutex
	images []image.Image
	fps    float64
	pos    int
	closed bool
}

// NewSliceSource creates an in-memory source. fps <= 0 defaults to 30.
func NewSliceSource(images []image.Image, fps float64) *SliceSource {
	if fps <= 0 {
		fps = 30
	}
	return &SliceSource{images: images, fps: fps}
}

// Next implements Source
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pos >= len(s.images) {
		return Frame{}, io.EOF
	}

	f := Frame{
		Image:     s.images[s.pos],
		Timestamp: time.Duration(float64(s.pos) / s.fps * float64(time.Second)),
		Index:     int64(s.pos),
	}
	s.pos++
	return f, nil
}

// Close implements Source
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Sampler decides which frames to process given a target analysis rate.
// Frames closer than the sampling interval to the last kept frame are dropped.
type Sampler struct {
	interval time.Duration
	last     time.Duration
	started  bool
}

// NewSampler creates a sampler for rate frames per second. rate <= 0 keeps every frame.
func NewSampler(rate float64) *Sampler {
	s := &Sampler{}
	if rate > 0 {
		s.interval = time.Duration(float64(time.Second) / rate)
	}
	return s
}

// Interval returns the minimum spacing between kept frames
func (s *Sampler) Interval() time.Duration { return s.interval }

// Keep reports whether a frame at ts should be processed and records it if so
func (s *Sampler) Keep(ts time.Duration) bool {
	if s.interval == 0 || !s.started || ts < s.last || ts-s.last >= s.interval {
		s.last, s.started = ts, true
		return true
	}
	return false
}

// FrameInterval returns how many source frames to advance per analysed
// frame for a source at fps sampled at rate. It is at least 1 and rounds up,
// so the effective rate never exceeds rate.
func FrameInterval(fps, rate float64) int {
	if fps <= 0 || rate <= 0 || rate >= fps {
		return 1
	}
	n := int(math.Ceil(fps/rate - 1e-9))
	if n < 1 {
		return 1
	}
	return n
}

// Drain reads every remaining frame from src. Intended for tests and small clips.
func Drain(ctx context.Context, src Source) ([]Frame, error) {
	var out []Frame
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

// ReplaySource yields buffered frames before continuing with another source
type ReplaySource struct {
	mu       sync.Mutex
	buffered []Frame
	rest     Source
}

// Replay returns a source that emits buffered in order and then reads from rest.
// Closing it closes rest.
func Replay(buffered []Frame, rest Source) *ReplaySource {
	return &ReplaySource{buffered: buffered, rest: rest}
}

// Next implements Source
func (r *ReplaySource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	r.mu.Lock()
	if len(r.buffered) > 0 {
		f := r.buffered[0]
		r.buffered = r.buffered[1:]
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()
	return r.rest.Next(ctx)
}

// Close implements Source
func (r *ReplaySource) Close() error {
	r.mu.Lock()
	r.buffered = nil
	r.mu.Unlock()
	return r.rest.Close()
}
