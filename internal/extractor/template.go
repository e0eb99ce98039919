package extractor

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"

	"github.com/thyrook/boardscribe/internal/board"
)

// ErrNotTrained is returned by classifiers asked to classify before learning
var ErrNotTrained = errors.New("classifier has no templates")

const (
	templateSize = 16
	templateCrop = 0.6
)

type templateKey struct {
	piece board.Piece
	light bool
}

type template struct {
	features []float64
	count    int
}

// TemplateClassifier matches patches against per-piece, per-square-shade
// templates learned from frames known to show a given position.
// Confidence is the margin between the best match and the best match of
// any other piece.
type TemplateClassifier struct {
	mu        sync.RWMutex
	templates map[templateKey]*template

	// border luma of empty squares, used to decide the square shade
	lightBorder, darkBorder float64
	lightN, darkN           int
}

// NewTemplateClassifier creates an untrained classifier
func NewTemplateClassifier() *TemplateClassifier {
	return &TemplateClassifier{templates: make(map[templateKey]*template)}
}

// Learn adds every square of b as an example of the piece pl shows there.
// Repeated calls average the templates.
func (t *TemplateClassifier) Learn(b PatchSource, pl board.Placement) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < 64; i++ {
		sq := board.Square(i)
		patch := b.Patch(sq)
		key := templateKey{piece: pl[sq], light: sq.IsLight()}
		f := Features(CropCenter(patch, templateCrop), templateSize)

		tp, ok := t.templates[key]
		if !ok {
			t.templates[key] = &template{features: f, count: 1}
		} else {
			tp.count++
			for j := range tp.features {
				tp.features[j] += (f[j] - tp.features[j]) / float64(tp.count)
			}
		}

		border := BorderLuma(patch)
		if key.light {
			t.lightN++
			t.lightBorder += (border - t.lightBorder) / float64(t.lightN)
		} else {
			t.darkN++
			t.darkBorder += (border - t.darkBorder) / float64(t.darkN)
		}
	}
}

// Trained reports whether any template has been learned
func (t *TemplateClassifier) Trained() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.templates) > 0
}

// Classify implements Classifier
func (t *TemplateClassifier) Classify(ctx context.Context, patch image.Image) (Classification, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.templates) == 0 {
		return Classification{}, ErrNotTrained
	}

	light := t.isLight(BorderLuma(patch))
	f := Features(CropCenter(patch, templateCrop), templateSize)

	// best distance per piece, preferring templates of the observed shade
	best := make(map[board.Piece]float64)
	for key, tp := range t.templates {
		if key.light != light {
			if _, sameShade := t.templates[templateKey{piece: key.piece, light: light}]; sameShade {
				continue
			}
		}
		d := distance(f, tp.features)
		if cur, ok := best[key.piece]; !ok || d < cur {
			best[key.piece] = d
		}
	}

	var piece board.Piece
	first, second := math.Inf(1), math.Inf(1)
	for p, d := range best {
		switch {
		case d < first || (d == first && p < piece):
			second = first
			first, piece = d, p
		case d < second:
			second = d
		}
	}

	conf := 1.0
	if !math.IsInf(second, 1) {
		if second == 0 {
			conf = 0
		} else {
			conf = 1 - first/second
		}
	}
	return Classification{Piece: piece, Confidence: conf}, nil
}

func (t *TemplateClassifier) isLight(border float64) bool {
	switch {
	case t.lightN == 0:
		return false
	case t.darkN == 0:
		return true
	}
	return math.Abs(border-t.lightBorder) <= math.Abs(border-t.darkBorder)
}
