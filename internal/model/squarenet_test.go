package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/normalizer"
	"github.com/thyrook/boardscribe/internal/synth"
)

func cellSamples(t *testing.T) []Sample {
	t.Helper()
	r := synth.NewRenderer()
	var samples []Sample
	for p := board.Empty; p <= board.BlackKing; p++ {
		for _, light := range []bool{true, false} {
			samples = append(samples, Sample{Features: PatchFeatures(r.Cell(p, light, 64)), Label: p})
		}
	}
	return samples
}

func TestNewSquareNet(t *testing.T) {
	net, err := NewSquareNet(32)
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	defer net.Close()

	if net.g == nil || net.input == nil || net.output == nil {
		t.Fatal("graph not built")
	}
	if len(net.Learnables()) != 4 {
		t.Errorf("Expected 4 learnables, got %d", len(net.Learnables()))
	}

	if _, err := NewSquareNet(0); err == nil {
		t.Error("expected error for zero hidden size")
	}
}

func TestPredictProbabilities(t *testing.T) {
	net, err := NewSquareNet(32)
	if err != nil {
		t.Fatal(err)
	}
	defer net.Close()

	probs, err := net.Predict(cellSamples(t)[5].Features)
	if err != nil {
		t.Fatalf("Prediction failed: %v", err)
	}
	if len(probs) != board.NumPieceClasses {
		t.Fatalf("got %d probabilities, want %d", len(probs), board.NumPieceClasses)
	}
	var total float64
	for _, p := range probs {
		total += p
	}
	if math.Abs(total-1) > 1e-6 {
		t.Errorf("probabilities sum to %f", total)
	}

	if _, err := net.Predict(make([]float64, 10)); err == nil {
		t.Error("expected error for wrong input size")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	net, err := NewSquareNet(16)
	if err != nil {
		t.Fatal(err)
	}
	defer net.Close()

	path := filepath.Join(t.TempDir(), "squarenet.gob")
	if err := net.SaveFile(path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	loaded, err := LoadSquareNet(path)
	if err != nil {
		t.Fatalf("LoadSquareNet failed: %v", err)
	}
	defer loaded.Close()

	in := cellSamples(t)[7].Features
	a, err := net.Predict(in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := loaded.Predict(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Fatalf("class %d: %f != %f after reload", i, a[i], b[i])
		}
	}

	other, err := NewSquareNet(8)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if err := other.LoadFile(path); err == nil {
		t.Error("expected error loading a checkpoint with a different hidden size")
	}

	if _, err := LoadSquareNet(filepath.Join(t.TempDir(), "missing.gob")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestTrainerReducesLoss(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.Epochs = 30
	cfg.BatchSize = 8
	cfg.Hidden = 32
	cfg.Schedule = ConstantLR(0.01)

	tr, err := NewTrainer(cfg, nil)
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}
	defer tr.Close()

	stats, err := tr.Train(cellSamples(t))
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if len(stats) != cfg.Epochs {
		t.Fatalf("got %d epoch stats, want %d", len(stats), cfg.Epochs)
	}
	if stats[len(stats)-1].Loss >= stats[0].Loss {
		t.Errorf("loss did not decrease: first %.4f last %.4f", stats[0].Loss, stats[len(stats)-1].Loss)
	}

	net, err := tr.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	defer net.Close()

	c, err := net.Classify(context.Background(), synth.NewRenderer().Cell(board.WhiteRook, true, 64))
	if err != nil {
		t.Fatal(err)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		t.Errorf("confidence %.3f out of range", c.Confidence)
	}
}

func TestSamplesFromBoard(t *testing.T) {
	start := board.StartingPosition().Placement
	img := synth.NewRenderer().Board(start, 512, board.Rank1Bottom)
	b := normalizer.NormalizedBoard{Image: img, Size: 512, Orientation: board.Rank1Bottom}

	samples := SamplesFromBoard(b, start)
	if len(samples) != 64 {
		t.Fatalf("got %d samples", len(samples))
	}
	counts := ClassCounts(samples)
	if counts[board.Empty] != 32 || counts[board.WhitePawn] != 8 || counts[board.BlackKing] != 1 {
		t.Errorf("unexpected class counts %v", counts)
	}
}

func TestSchedules(t *testing.T) {
	step := StepDecay{Base: 0.1, Rate: 0.5, Every: 10}
	if step.LR(0) != 0.1 || math.Abs(step.LR(25)-0.025) > 1e-12 {
		t.Errorf("StepDecay = %f, %f", step.LR(0), step.LR(25))
	}

	cos := CosineDecay{Base: 0.1, Min: 0.0, Warmup: 2, Epochs: 12}
	if got := cos.LR(0); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("warmup LR(0) = %f, want 0.05", got)
	}
	if got := cos.LR(2); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("LR(2) = %f, want 0.1", got)
	}
	if got := cos.LR(12); math.Abs(got) > 1e-12 {
		t.Errorf("LR(12) = %f, want 0", got)
	}

	if ConstantLR(0.3).LR(99) != 0.3 {
		t.Error("ConstantLR should not decay")
	}
}
