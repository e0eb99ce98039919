package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"testing"
	"time"
)

func TestSliceSource(t *testing.T) {
	imgs := []image.Image{
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
	src := NewSliceSource(imgs, 10)

	frames, err := Drain(context.Background(), src)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[2].Index != 2 || frames[2].Timestamp != 200*time.Millisecond {
		t.Errorf("frame 2 = index %d ts %v", frames[2].Index, frames[2].Timestamp)
	}

	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}
}

func TestSliceSourceClosedAndCancelled(t *testing.T) {
	src := NewSliceSource([]image.Image{image.NewGray(image.Rect(0, 0, 1, 1))}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("closed source should return io.EOF, got %v", err)
	}
}

func TestSampler(t *testing.T) {
	s := NewSampler(2) // every 500ms

	tests := []struct {
		ts   time.Duration
		keep bool
	}{
		{0, true},
		{100 * time.Millisecond, false},
		{400 * time.Millisecond, false},
		{500 * time.Millisecond, true},
		{900 * time.Millisecond, false},
		{1100 * time.Millisecond, true},
	}
	for _, tt := range tests {
		if got := s.Keep(tt.ts); got != tt.keep {
			t.Errorf("Keep(%v) = %v, want %v", tt.ts, got, tt.keep)
		}
	}

	all := NewSampler(0)
	for i := 0; i < 5; i++ {
		if !all.Keep(time.Duration(i) * time.Millisecond) {
			t.Fatal("rate 0 should keep every frame")
		}
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps, rate float64
		want      int
	}{
		{30, 2, 15},
		{30, 30, 1},
		{30, 60, 1},
		{0, 2, 1},
		{25, 0, 1},
		{29.97, 2, 15},
		{25, 2, 13},
		{60, 2, 30},
	}
	for _, tt := range tests {
		if got := FrameInterval(tt.fps, tt.rate); got != tt.want {
			t.Errorf("FrameInterval(%v, %v) = %d, want %d", tt.fps, tt.rate, got, tt.want)
		}
	}
}

func TestReplay(t *testing.T) {
	imgs := []image.Image{
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
	src := NewSliceSource(imgs, 10)
	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}

	r := Replay([]Frame{first}, src)
	frames, err := Drain(ctx, r)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Index != int64(i) {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next after Close = %v, want EOF", err)
	}
}

// A strided decoder and a sampler at the same rate must agree: every decoded
// frame is kept and the effective rate stays at or below the target.
func TestStrideAndSamplerAgree(t *testing.T) {
	const rate = 2.0
	for _, fps := range []float64{30, 29.97, 25, 24} {
		t.Run(fmt.Sprint(fps), func(t *testing.T) {
			stride := FrameInterval(fps, rate)
			s := NewSampler(rate)
			total := int(10 * fps)

			decoded, kept := 0, 0
			for i := 0; i < total; i += stride {
				decoded++
				ts := time.Duration(float64(i) / fps * float64(time.Second))
				if s.Keep(ts) {
					kept++
				}
			}
			if kept != decoded {
				t.Errorf("kept %d of %d decoded frames", kept, decoded)
			}
			if decoded < 19 || decoded > 20 {
				t.Errorf("decoded %d frames over 10s, want about 20", decoded)
			}
		})
	}
}

type errSource struct{ err error }

func (s errSource) Next(ctx context.Context) (Frame, error) { return Frame{}, s.err }
func (s errSource) Close() error                             { return nil }

func TestDrainWrappedEOF(t *testing.T) {
	frames, err := Drain(context.Background(), errSource{fmt.Errorf("decoder stopped: %w", io.EOF)})
	if err != nil || len(frames) != 0 {
		t.Errorf("Drain = %d frames, %v; want a clean end of stream", len(frames), err)
	}

	boom := errors.New("boom")
	if _, err := Drain(context.Background(), errSource{boom}); !errors.Is(err, boom) {
		t.Errorf("Drain = %v, want boom", err)
	}
}
