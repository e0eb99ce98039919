package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/thyrook/boardscribe/internal/geom"
)

// ContourDetector finds board candidates as large four-sided contours.
// It implements locator.Detector.
type ContourDetector struct {
	config Config
	kernel gocv.Mat
	logger *zap.Logger
}

// NewContourDetector creates a detector
func NewContourDetector(config Config, logger *zap.Logger) (*ContourDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ContourDetector{config: config, logger: logger}
	if config.DilateSize > 0 {
		d.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(config.DilateSize, config.DilateSize))
	}
	return d, nil
}

// Detect implements locator.Detector
func (d *ContourDetector) Detect(ctx context.Context, img image.Image) ([]geom.Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer mat.Close()

	return d.DetectMat(mat)
}

// DetectMat runs detection on a BGR mat
func (d *ContourDetector) DetectMat(mat gocv.Mat) ([]geom.Quad, error) {
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(d.config.BlurSize, d.config.BlurSize), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		d.config.ThresholdBlock, d.config.ThresholdC)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, d.config.CannyLow, d.config.CannyHigh)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.BitwiseOr(thresh, edges, &mask)
	if d.config.DilateSize > 0 {
		gocv.Dilate(mask, &mask, d.kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := d.config.MinAreaFraction * float64(mat.Rows()*mat.Cols())

	type candidate struct {
		quad geom.Quad
		area float64
	}
	var found []candidate
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < minArea {
			continue
		}
		approx := gocv.ApproxPolyDP(c, d.config.ApproxEpsilon*gocv.ArcLength(c, true), true)
		if approx.Size() == 4 {
			pts := approx.ToPoints()
			var corners [4]geom.Point
			for j, p := range pts {
				corners[j] = geom.Point{X: float64(p.X), Y: float64(p.Y)}
			}
			q := geom.OrderCorners(corners)
			if q.IsConvex() {
				found = append(found, candidate{quad: q, area: area})
			}
		}
		approx.Close()
	}

	sort.Slice(found, func(i, j int) bool { return found[i].area > found[j].area })
	if len(found) > d.config.MaxCandidates {
		found = found[:d.config.MaxCandidates]
	}

	quads := make([]geom.Quad, len(found))
	for i, c := range found {
		quads[i] = c.quad
	}
	d.logger.Debug("Contour candidates",
		zap.Int("contours", contours.Size()),
		zap.Int("quads", len(quads)))
	return quads, nil
}

// Close implements locator.Detector
func (d *ContourDetector) Close() error {
	if d.config.DilateSize > 0 {
		return d.kernel.Close()
	}
	return nil
}
