package model

import (
	"context"
	"encoding/gob"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
)

const (
	// PatchGrid is the side of the grayscale grid a patch is reduced to
	PatchGrid = 16

	// InputSize is the flattened feature length
	InputSize = PatchGrid * PatchGrid

	// patchCrop keeps the centre of the square where the piece stands
	patchCrop = 0.8

	modelType    = "SquareNet"
	modelVersion = "1.0"
)

// SquareNet is a two-layer perceptron classifying one square patch into
// 13 classes (empty plus the twelve pieces).
type SquareNet struct {
	mu sync.Mutex

	// Graph
	g *gorgonia.ExprGraph

	// Input: [batch, InputSize]
	input *gorgonia.Node

	// Dense layers
	fc1W *gorgonia.Node // [InputSize, hidden]
	fc1B *gorgonia.Node // [hidden]
	fc2W *gorgonia.Node // [hidden, 13]
	fc2B *gorgonia.Node // [13]

	// Output probabilities: [batch, 13]
	output *gorgonia.Node

	// VM for execution
	vm gorgonia.VM

	batchSize int
	hidden    int

	stats *StatTracker
}

// NewSquareNet creates an inference network (batch size 1) with random weights
func NewSquareNet(hidden int) (*SquareNet, error) {
	return newSquareNet(1, hidden)
}

// LoadSquareNet creates an inference network and loads weights from a checkpoint
func LoadSquareNet(path string) (*SquareNet, error) {
	meta, err := readMetadata(path)
	if err != nil {
		return nil, err
	}
	net, err := NewSquareNet(meta.Hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference model: %w", err)
	}
	if err := net.LoadFile(path); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return net, nil
}

func newSquareNet(batchSize, hidden int) (*SquareNet, error) {
	if hidden < 1 {
		return nil, fmt.Errorf("hidden size must be positive, got %d", hidden)
	}
	g := gorgonia.NewGraph()

	input := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(batchSize, InputSize),
		gorgonia.WithName("input"))

	fc1W := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(InputSize, hidden),
		gorgonia.WithName("fc1_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc1B := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(hidden),
		gorgonia.WithName("fc1_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	fc2W := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(hidden, board.NumPieceClasses),
		gorgonia.WithName("fc2_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc2B := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(board.NumPieceClasses),
		gorgonia.WithName("fc2_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	fc1 := gorgonia.Must(gorgonia.Mul(input, fc1W))
	fc1 = gorgonia.Must(gorgonia.BroadcastAdd(fc1, fc1B, nil, []byte{0}))
	fc1 = gorgonia.Must(gorgonia.Rectify(fc1))

	logits := gorgonia.Must(gorgonia.Mul(fc1, fc2W))
	logits = gorgonia.Must(gorgonia.BroadcastAdd(logits, fc2B, nil, []byte{0}))

	output := gorgonia.Must(gorgonia.SoftMax(logits))

	return &SquareNet{
		g:         g,
		input:     input,
		fc1W:      fc1W,
		fc1B:      fc1B,
		fc2W:      fc2W,
		fc2B:      fc2B,
		output:    output,
		vm:        gorgonia.NewTapeMachine(g),
		batchSize: batchSize,
		hidden:    hidden,
		stats:     NewStatTracker(),
	}, nil
}

// Hidden returns the hidden layer width
func (n *SquareNet) Hidden() int { return n.hidden }

// Stats returns the inference counters
func (n *SquareNet) Stats() ModelStatistics { return n.stats.Statistics() }

// Predict returns the 13 class probabilities for one feature vector
func (n *SquareNet) Predict(features []float64) (probs []float64, err error) {
	if err := ValidateInput(features); err != nil {
		return nil, err
	}
	if n.batchSize != 1 {
		return nil, fmt.Errorf("predict needs an inference model, this one has batch size %d", n.batchSize)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	defer func() { n.stats.RecordInference(time.Since(start), err == nil) }()

	backing := make([]float64, InputSize)
	copy(backing, features)
	if err := gorgonia.Let(n.input, tensor.New(tensor.WithShape(1, InputSize), tensor.WithBacking(backing))); err != nil {
		return nil, fmt.Errorf("failed to set input: %w", err)
	}

	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}
	defer n.vm.Reset()

	val := n.output.Value()
	if val == nil {
		return nil, fmt.Errorf("output is nil")
	}
	probs = make([]float64, board.NumPieceClasses)
	copy(probs, val.Data().([]float64))
	return probs, nil
}

// PatchFeatures converts a square patch into the network input
func PatchFeatures(patch image.Image) []float64 {
	return extractor.Features(extractor.CropCenter(patch, patchCrop), PatchGrid)
}

// Classify implements extractor.Classifier. Confidence is the winning class probability.
func (n *SquareNet) Classify(ctx context.Context, patch image.Image) (extractor.Classification, error) {
	if err := ctx.Err(); err != nil {
		return extractor.Classification{}, err
	}
	probs, err := n.Predict(PatchFeatures(patch))
	if err != nil {
		return extractor.Classification{}, err
	}
	best := argmax(probs)
	return extractor.Classification{Piece: board.Piece(best), Confidence: probs[best]}, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Learnables returns all trainable parameters
func (n *SquareNet) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{n.fc1W, n.fc1B, n.fc2W, n.fc2B}
}

// Metadata describes a saved checkpoint
type Metadata struct {
	Version    string
	ModelType  string
	InputSize  int
	Hidden     int
	NumClasses int
}

// Save writes metadata followed by each weight's shape and data
func (n *SquareNet) Save(w io.Writer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	encoder := gob.NewEncoder(w)
	meta := Metadata{
		Version:    modelVersion,
		ModelType:  modelType,
		InputSize:  InputSize,
		Hidden:     n.hidden,
		NumClasses: board.NumPieceClasses,
	}
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	for i, node := range n.Learnables() {
		val := node.Value()
		if val == nil {
			return fmt.Errorf("weight %d has nil value", i)
		}
		if err := encoder.Encode(val.Shape()); err != nil {
			return fmt.Errorf("failed to encode weight %d shape: %w", i, err)
		}
		if err := encoder.Encode(val.Data().([]float64)); err != nil {
			return fmt.Errorf("failed to encode weight %d data: %w", i, err)
		}
	}
	return nil
}

// Load reads weights written by Save
func (n *SquareNet) Load(r io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	decoder := gob.NewDecoder(r)
	var meta Metadata
	if err := decoder.Decode(&meta); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := meta.check(n.hidden); err != nil {
		return err
	}

	for i, node := range n.Learnables() {
		var shape tensor.Shape
		var data []float64
		if err := decoder.Decode(&shape); err != nil {
			return fmt.Errorf("failed to decode weight %d shape: %w", i, err)
		}
		if err := decoder.Decode(&data); err != nil {
			return fmt.Errorf("failed to decode weight %d data: %w", i, err)
		}
		if !shape.Eq(node.Shape()) {
			return fmt.Errorf("weight %d shape %v does not match %v", i, shape, node.Shape())
		}
		if err := gorgonia.Let(node, tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))); err != nil {
			return fmt.Errorf("failed to set weight %d: %w", i, err)
		}
	}
	return nil
}

func (m Metadata) check(hidden int) error {
	switch {
	case m.ModelType != modelType:
		return fmt.Errorf("invalid model type: %s", m.ModelType)
	case m.InputSize != InputSize || m.NumClasses != board.NumPieceClasses:
		return fmt.Errorf("checkpoint shape %dx%d does not match %dx%d",
			m.InputSize, m.NumClasses, InputSize, board.NumPieceClasses)
	case m.Hidden != hidden:
		return fmt.Errorf("checkpoint hidden size %d does not match %d", m.Hidden, hidden)
	}
	return nil
}

// SaveFile writes the checkpoint to path
func (n *SquareNet) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := n.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a checkpoint from path
func (n *SquareNet) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return n.Load(f)
}

func readMetadata(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var meta Metadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// Close cleans up resources
func (n *SquareNet) Close() error {
	if n.vm != nil {
		return n.vm.Close()
	}
	return nil
}
