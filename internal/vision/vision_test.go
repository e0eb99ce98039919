package vision

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/geom"
	"github.com/thyrook/boardscribe/internal/synth"
)

func TestDefaultConfig(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config validation failed: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		expectErr bool
	}{
		{"Valid config", func(c *Config) {}, false},
		{"Even blur size", func(c *Config) { c.BlurSize = 4 }, true},
		{"Small threshold block", func(c *Config) { c.ThresholdBlock = 1 }, true},
		{"Inverted canny", func(c *Config) { c.CannyLow, c.CannyHigh = 200, 100 }, true},
		{"Negative dilate", func(c *Config) { c.DilateSize = -1 }, true},
		{"Zero epsilon", func(c *Config) { c.ApproxEpsilon = 0 }, true},
		{"Area fraction one", func(c *Config) { c.MinAreaFraction = 1 }, true},
		{"No candidates", func(c *Config) { c.MaxCandidates = 0 }, true},
		{"Dilation off", func(c *Config) { c.DilateSize = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.expectErr {
				t.Errorf("Validate() = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestCaptureRegion(t *testing.T) {
	r := CaptureRegion{X: 100, Y: 50, Width: 800, Height: 600}
	if got := r.ToRectangle(); got != image.Rect(100, 50, 900, 650) {
		t.Errorf("ToRectangle = %v", got)
	}
	if r.Empty() {
		t.Error("region should not be empty")
	}
	if !(CaptureRegion{}).Empty() {
		t.Error("zero region should be empty")
	}
}

func TestContourDetectorFindsBoard(t *testing.T) {
	region := geom.Rect(64, 24, 576, 536)
	img, err := synth.NewRenderer().Frame(board.StartingPosition().Placement, board.Rank1Bottom, 640, 560, region)
	if err != nil {
		t.Fatal(err)
	}

	d, err := NewContourDetector(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewContourDetector failed: %v", err)
	}
	defer d.Close()

	quads, err := d.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(quads) == 0 {
		t.Fatal("no board candidates found")
	}
	if disp := quads[0].MaxDisplacement(region); disp > 12 {
		t.Errorf("largest candidate %v is %.1fpx from the board", quads[0], disp)
	}
}

func TestContourDetectorBlankFrame(t *testing.T) {
	d, err := NewContourDetector(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	quads, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 320, 240)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(quads) != 0 {
		t.Errorf("blank frame produced %d candidates", len(quads))
	}
}

func TestContourDetectorCancelled(t *testing.T) {
	d, err := NewContourDetector(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8))); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewVideoSourceMissingFile(t *testing.T) {
	if _, err := NewVideoSource(filepath.Join(t.TempDir(), "missing.mp4"), 1); err == nil {
		t.Error("expected error for missing video")
	}
}
