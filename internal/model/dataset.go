package model

import (
	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
)

// SamplesFromBoard labels all 64 patches of b with the pieces pl shows
func SamplesFromBoard(b extractor.PatchSource, pl board.Placement) []Sample {
	samples := make([]Sample, 0, 64)
	for i := 0; i < 64; i++ {
		sq := board.Square(i)
		samples = append(samples, Sample{
			Features: PatchFeatures(b.Patch(sq)),
			Label:    pl[sq],
		})
	}
	return samples
}

// ClassCounts returns how many samples carry each label
func ClassCounts(samples []Sample) [board.NumPieceClasses]int {
	var counts [board.NumPieceClasses]int
	for _, s := range samples {
		if int(s.Label) < len(counts) {
			counts[s.Label]++
		}
	}
	return counts
}
