package model

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/thyrook/boardscribe/internal/board"
)

// Sample is one labelled square patch
type Sample struct {
	Features []float64
	Label    board.Piece
}

// TrainingConfig holds training hyperparameters
type TrainingConfig struct {
	Epochs       int
	BatchSize    int
	Hidden       int
	LearningRate float64
	Seed         int64

	// Schedule overrides LearningRate per epoch when set.
	Schedule LRSchedule
}

// DefaultTrainingConfig returns default training configuration
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:       40,
		BatchSize:    32,
		Hidden:       64,
		LearningRate: 0.01,
		Seed:         1,
		Schedule:     StepDecay{Base: 0.01, Rate: 0.5, Every: 20},
	}
}

// EpochStats tracks training progress
type EpochStats struct {
	Epoch        int
	Loss         float64
	Accuracy     float64
	LearningRate float64
	Duration     time.Duration
}

// Trainer fits a SquareNet on labelled patches
type Trainer struct {
	net        *SquareNet
	config     TrainingConfig
	solver     gorgonia.Solver
	solverLR   float64
	targetNode *gorgonia.Node
	lossNode   *gorgonia.Node
	logger     *zap.Logger
}

// NewTrainer creates a training graph sized for config.BatchSize
func NewTrainer(config TrainingConfig, logger *zap.Logger) (*Trainer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BatchSize < 1 || config.Epochs < 1 {
		return nil, fmt.Errorf("batch size and epochs must be positive")
	}

	net, err := newSquareNet(config.BatchSize, config.Hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	targetNode := gorgonia.NewMatrix(net.g, tensor.Float64,
		gorgonia.WithShape(config.BatchSize, board.NumPieceClasses),
		gorgonia.WithName("target"))

	// Cross-entropy: -sum(target * log(output))
	logProbs := gorgonia.Must(gorgonia.Log(net.output))
	loss := gorgonia.Must(gorgonia.HadamardProd(targetNode, logProbs))
	loss = gorgonia.Must(gorgonia.Sum(loss))
	loss = gorgonia.Must(gorgonia.Neg(loss))

	if _, err := gorgonia.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("failed to compute gradients: %w", err)
	}

	// Recreate VM now that the graph includes loss and gradients
	net.vm.Close()
	net.vm = gorgonia.NewTapeMachine(net.g)

	t := &Trainer{
		net:        net,
		config:     config,
		targetNode: targetNode,
		lossNode:   loss,
		logger:     logger,
	}
	t.setLearningRate(config.LearningRate)
	return t, nil
}

func (t *Trainer) learningRate(epoch int) float64 {
	if t.config.Schedule != nil {
		return t.config.Schedule.LR(epoch)
	}
	return t.config.LearningRate
}

// setLearningRate replaces the Adam solver when the rate changes
func (t *Trainer) setLearningRate(lr float64) {
	if t.solver != nil && lr == t.solverLR {
		return
	}
	t.solver = gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(lr),
		gorgonia.WithBatchSize(float64(t.config.BatchSize)),
	)
	t.solverLR = lr
}

// Train runs all epochs over samples, shuffling between epochs
func (t *Trainer) Train(samples []Sample) ([]EpochStats, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples")
	}
	for i, s := range samples {
		if len(s.Features) != InputSize {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(s.Features), InputSize)
		}
	}

	rng := rand.New(rand.NewSource(t.config.Seed))
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	stats := make([]EpochStats, 0, t.config.Epochs)
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		start := time.Now()
		t.setLearningRate(t.learningRate(epoch))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var totalLoss float64
		correct := 0
		for off := 0; off < len(order); off += t.config.BatchSize {
			end := min(off+t.config.BatchSize, len(order))
			batch := make([]Sample, 0, end-off)
			for _, idx := range order[off:end] {
				batch = append(batch, samples[idx])
			}
			loss, ok, err := t.step(batch)
			if err != nil {
				return stats, fmt.Errorf("epoch %d failed: %w", epoch+1, err)
			}
			totalLoss += loss
			correct += ok
		}

		es := EpochStats{
			Epoch:        epoch + 1,
			Loss:         totalLoss / float64(len(samples)),
			Accuracy:     float64(correct) / float64(len(samples)),
			LearningRate: t.solverLR,
			Duration:     time.Since(start),
		}
		stats = append(stats, es)
		t.logger.Debug("Epoch finished",
			zap.Int("epoch", es.Epoch),
			zap.Float64("loss", es.Loss),
			zap.Float64("accuracy", es.Accuracy))
	}
	return stats, nil
}

// step trains on one batch; short batches are zero padded
func (t *Trainer) step(batch []Sample) (float64, int, error) {
	bs := t.config.BatchSize
	inputData := make([]float64, bs*InputSize)
	targetData := make([]float64, bs*board.NumPieceClasses)

	for i, s := range batch {
		copy(inputData[i*InputSize:], s.Features)
		targetData[i*board.NumPieceClasses+int(s.Label)] = 1
	}

	if err := gorgonia.Let(t.net.input, tensor.New(tensor.WithShape(bs, InputSize), tensor.WithBacking(inputData))); err != nil {
		return 0, 0, fmt.Errorf("failed to set input: %w", err)
	}
	if err := gorgonia.Let(t.targetNode, tensor.New(tensor.WithShape(bs, board.NumPieceClasses), tensor.WithBacking(targetData))); err != nil {
		return 0, 0, fmt.Errorf("failed to set target: %w", err)
	}

	if err := t.net.vm.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("failed to run forward/backward: %w", err)
	}
	defer t.net.vm.Reset()

	var loss float64
	switch v := t.lossNode.Value().Data().(type) {
	case float64:
		loss = v
	case []float64:
		if len(v) == 0 {
			return 0, 0, fmt.Errorf("loss value array is empty")
		}
		loss = v[0]
	default:
		return 0, 0, fmt.Errorf("unexpected loss value type: %T", v)
	}

	correct := 0
	if out := t.net.output.Value(); out != nil {
		probs := out.Data().([]float64)
		for i, s := range batch {
			row := probs[i*board.NumPieceClasses : (i+1)*board.NumPieceClasses]
			if argmax(row) == int(s.Label) {
				correct++
			}
		}
	}

	learnables := t.net.Learnables()
	valueGrads := make([]gorgonia.ValueGrad, len(learnables))
	for i, n := range learnables {
		valueGrads[i] = n
	}
	if err := t.solver.Step(valueGrads); err != nil {
		return 0, 0, fmt.Errorf("failed to update weights: %w", err)
	}

	return loss, correct, nil
}

// Export copies the trained weights into a new inference network
func (t *Trainer) Export() (*SquareNet, error) {
	var buf bytes.Buffer
	if err := t.net.Save(&buf); err != nil {
		return nil, err
	}
	inf, err := NewSquareNet(t.config.Hidden)
	if err != nil {
		return nil, err
	}
	if err := inf.Load(&buf); err != nil {
		inf.Close()
		return nil, err
	}
	return inf, nil
}

// Close releases the training graph
func (t *Trainer) Close() error {
	return t.net.Close()
}
