package model

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/thyrook/boardscribe/internal/board"
)

// ModelInfo contains metadata about the model
type ModelInfo struct {
	InputSize   int
	HiddenSize  int
	OutputSize  int
	TotalParams int
	Version     string
}

// Info returns information about the network
func (n *SquareNet) Info() ModelInfo {
	totalParams := 0
	for _, node := range n.Learnables() {
		params := 1
		for _, dim := range node.Shape() {
			params *= dim
		}
		totalParams += params
	}

	return ModelInfo{
		InputSize:   InputSize,
		HiddenSize:  n.hidden,
		OutputSize:  board.NumPieceClasses,
		TotalParams: totalParams,
		Version:     modelVersion,
	}
}

// String formats the info for logs and the CLI
func (mi ModelInfo) String() string {
	return fmt.Sprintf("%s v%s: %d-%d-%d, %d parameters",
		modelType, mi.Version, mi.InputSize, mi.HiddenSize, mi.OutputSize, mi.TotalParams)
}

// ValidateInput checks a feature vector before inference
func ValidateInput(features []float64) error {
	if len(features) != InputSize {
		return fmt.Errorf("invalid input size: expected %d, got %d", InputSize, len(features))
	}

	for i, val := range features {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("invalid value at index %d: %f", i, val)
		}
	}

	return nil
}

// Entropy returns the entropy of a probability vector in bits
func Entropy(probs []float64) float64 {
	entropy := 0.0
	for _, p := range probs {
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// Margin returns the gap between the two most likely classes
func Margin(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	if len(probs) == 1 {
		return probs[0]
	}
	first, second := math.Inf(-1), math.Inf(-1)
	for _, p := range probs {
		switch {
		case p > first:
			first, second = p, first
		case p > second:
			second = p
		}
	}
	return first - second
}

// ClassProbability is one candidate piece for a square
type ClassProbability struct {
	Piece       board.Piece
	Probability float64
}

// TopClasses returns the k most likely classes, best first. Ties keep class order.
func TopClasses(probs []float64, k int) []ClassProbability {
	out := make([]ClassProbability, len(probs))
	for i, p := range probs {
		out[i] = ClassProbability{Piece: board.Piece(i), Probability: p}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if k < len(out) {
		out = out[:max(k, 0)]
	}
	return out
}

// ModelStatistics contains model usage statistics
type ModelStatistics struct {
	TotalInferences int64
	AverageLatency  time.Duration
	ErrorCount      int64
}

// StatTracker tracks model usage statistics. Safe for concurrent use.
type StatTracker struct {
	mu    sync.Mutex
	stats ModelStatistics
}

// NewStatTracker creates a new statistics tracker
func NewStatTracker() *StatTracker {
	return &StatTracker{}
}

// RecordInference records an inference event
func (st *StatTracker) RecordInference(latency time.Duration, success bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.stats.TotalInferences++

	// running average
	n := time.Duration(st.stats.TotalInferences)
	st.stats.AverageLatency += (latency - st.stats.AverageLatency) / n

	if !success {
		st.stats.ErrorCount++
	}
}

// Statistics returns current statistics
func (st *StatTracker) Statistics() ModelStatistics {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stats
}

// Reset resets the statistics
func (st *StatTracker) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats = ModelStatistics{}
}
