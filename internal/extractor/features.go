package extractor

import (
	"image"

	"golang.org/x/image/draw"
)

// CropCenter returns the central fraction of img (0 < frac <= 1)
func CropCenter(img image.Image, frac float64) image.Image {
	b := img.Bounds()
	ix := int(float64(b.Dx()) * (1 - frac) / 2)
	iy := int(float64(b.Dy()) * (1 - frac) / 2)
	r := image.Rect(b.Min.X+ix, b.Min.Y+iy, b.Max.X-ix, b.Max.Y-iy)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Features scales img to an n x n grayscale grid and returns intensities in [0, 1], row-major
func Features(img image.Image, n int) []float64 {
	gray := image.NewGray(image.Rect(0, 0, n, n))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[y*n+x] = float64(gray.GrayAt(x, y).Y) / 255
		}
	}
	return out
}

// BorderLuma returns the mean intensity in [0, 1] of the four corner
// regions of img, which normally show the bare square.
func BorderLuma(img image.Image) float64 {
	b := img.Bounds()
	cw, ch := max(1, b.Dx()/8), max(1, b.Dy()/8)
	corners := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+cw, b.Min.Y+ch),
		image.Rect(b.Max.X-cw, b.Min.Y, b.Max.X, b.Min.Y+ch),
		image.Rect(b.Min.X, b.Max.Y-ch, b.Min.X+cw, b.Max.Y),
		image.Rect(b.Max.X-cw, b.Max.Y-ch, b.Max.X, b.Max.Y),
	}

	var sum float64
	n := 0
	for _, r := range corners {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				sum += luma(img, x, y)
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535
}

func distance(a, b []float64) float64 {
	var d float64
	for i := range a {
		v := a[i] - b[i]
		d += v * v
	}
	return d / float64(len(a))
}
