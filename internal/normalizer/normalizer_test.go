package normalizer

import (
	"errors"
	"image"
	"testing"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/geom"
	"github.com/thyrook/boardscribe/internal/synth"
)

func TestCalibrateStartingPosition(t *testing.T) {
	r := synth.NewRenderer()
	start := board.StartingPosition().Placement

	for _, o := range board.Orientations {
		t.Run(o.String(), func(t *testing.T) {
			img := r.Board(start, 512, o)
			got, ok := Calibrate(img, DefaultConfig())
			if !ok {
				t.Fatal("calibration failed on a starting position")
			}
			if got != o {
				t.Errorf("Calibrate = %v, want %v", got, o)
			}
		})
	}
}

func TestCalibrateRejectsMidgame(t *testing.T) {
	pos, err := board.ParseFEN("r1bqk2r/pppp1ppp/2n2n2/2b1p3/2B1P3/3P1N2/PPP2PPP/RNBQK2R w KQkq - 1 5")
	if err != nil {
		t.Fatal(err)
	}
	img := synth.NewRenderer().Board(pos.Placement, 512, board.Rank1Bottom)
	if _, ok := Calibrate(img, DefaultConfig()); ok {
		t.Error("midgame position should not calibrate")
	}
}

func TestNormalizeLocksOrientation(t *testing.T) {
	r := synth.NewRenderer()
	start := board.StartingPosition().Placement
	region := geom.Quad{{X: 120, Y: 70}, {X: 430, Y: 80}, {X: 450, Y: 400}, {X: 100, Y: 390}}

	frame, err := r.Frame(start, board.Rank1Right, 640, 480, region)
	if err != nil {
		t.Fatal(err)
	}

	n := New(DefaultConfig(), nil)
	b, err := n.Normalize(frame, region)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if b.Orientation != board.Rank1Right {
		t.Fatalf("Orientation = %v, want right", b.Orientation)
	}
	if b.Image.Bounds().Dx() != 512 || b.Image.Bounds().Dy() != 512 {
		t.Errorf("normalized size = %v", b.Image.Bounds())
	}

	// Once locked, an empty board keeps the orientation
	empty, err := r.Frame(board.Placement{}, board.Rank1Bottom, 640, 480, region)
	if err != nil {
		t.Fatal(err)
	}
	b, err = n.Normalize(empty, region)
	if err != nil || b.Orientation != board.Rank1Right {
		t.Errorf("orientation changed after lock: %v, %v", b.Orientation, err)
	}
}

func TestNormalizePendingThenFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CalibrationAttempts = 3
	n := New(cfg, nil)

	img := synth.NewRenderer().Board(board.Placement{}, 512, board.Rank1Bottom)
	region := geom.Rect(0, 0, 512, 512)

	for i := 0; i < 2; i++ {
		if _, err := n.Normalize(img, region); !errors.Is(err, ErrOrientationPending) {
			t.Fatalf("attempt %d: expected ErrOrientationPending, got %v", i+1, err)
		}
	}

	b, err := n.Normalize(img, region)
	if err != nil {
		t.Fatalf("expected fallback on final attempt, got %v", err)
	}
	if b.Orientation != board.Rank1Bottom {
		t.Errorf("fallback orientation = %v, want bottom", b.Orientation)
	}
	if o, ok := n.Orientation(); !ok || o != board.Rank1Bottom {
		t.Errorf("Orientation() = %v, %v", o, ok)
	}
}

func TestOverrideSkipsCalibration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orientation = board.Rank1Top
	n := New(cfg, nil)

	img := synth.NewRenderer().Board(board.Placement{}, 512, board.Rank1Bottom)
	b, err := n.Normalize(img, geom.Rect(0, 0, 512, 512))
	if err != nil {
		t.Fatal(err)
	}
	if b.Orientation != board.Rank1Top {
		t.Errorf("Orientation = %v, want top", b.Orientation)
	}
}

func TestPatchMatchesSquare(t *testing.T) {
	r := synth.NewRenderer()
	start := board.StartingPosition().Placement
	img := r.Board(start, 512, board.Rank1Left)

	b := NormalizedBoard{Image: img, Size: 512, Orientation: board.Rank1Left}

	a1 := board.NewSquare(0, 0)
	if got := b.SquareRect(a1); got != image.Rect(0, 0, 64, 64) {
		t.Errorf("SquareRect(a1) = %v", got)
	}

	patch := b.Patch(a1)
	if patch.Bounds().Dx() != 64 || patch.Bounds().Dy() != 64 {
		t.Errorf("patch bounds = %v", patch.Bounds())
	}
}

func TestWarpIdentity(t *testing.T) {
	img := synth.NewRenderer().Board(board.StartingPosition().Placement, 256, board.Rank1Bottom)
	out, err := Warp(img, geom.Rect(0, 0, 256, 256), 256)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{3, 3}, {100, 200}, {250, 10}} {
		want := img.RGBAAt(p.X, p.Y)
		got := out.RGBAAt(p.X, p.Y)
		if absDiff(want.R, got.R) > 1 {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfig()
	bad.Size = 100
	if err := bad.Validate(); err == nil {
		t.Error("expected error for size not divisible by 8")
	}
}
