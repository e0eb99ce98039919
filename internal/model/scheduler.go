package model

import "math"

// LRSchedule maps an epoch (0-based) to a learning rate
type LRSchedule interface {
	LR(epoch int) float64
}

// ConstantLR never decays
type ConstantLR float64

// LR implements LRSchedule
func (c ConstantLR) LR(int) float64 { return float64(c) }

// StepDecay multiplies the base rate by Rate every Every epochs
type StepDecay struct {
	Base  float64
	Rate  float64
	Every int
}

// LR implements LRSchedule
func (s StepDecay) LR(epoch int) float64 {
	if s.Every <= 0 {
		return s.Base
	}
	return s.Base * math.Pow(s.Rate, float64(epoch/s.Every))
}

// CosineDecay anneals from Base to Min over Epochs, after a linear warmup
type CosineDecay struct {
	Base   float64
	Min    float64
	Warmup int
	Epochs int
}

// LR implements LRSchedule
func (c CosineDecay) LR(epoch int) float64 {
	if epoch < c.Warmup {
		return c.Base * float64(epoch+1) / float64(c.Warmup)
	}
	span := c.Epochs - c.Warmup
	if span <= 0 {
		return c.Min
	}
	progress := math.Min(1, float64(epoch-c.Warmup)/float64(span))
	return c.Min + (c.Base-c.Min)*0.5*(1+math.Cos(math.Pi*progress))
}
