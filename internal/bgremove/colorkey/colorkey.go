// Package colorkey removes flat backgrounds from artwork with OpenCV.
//
// The background color is estimated from the image border. Pixels within
// Tolerance of it become the background mask, which is cleaned up with
// morphology, and only regions connected to a foreground contour are kept
// so that background-colored details inside the artwork survive.
package colorkey

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"pocket-curator/pkg/colorutil"
)

const (
	DefaultTolerance  = 24
	DefaultKernelSize = 3
	DefaultMinArea    = 16
)

// Remover keys out the dominant border color.
type Remover struct {
	// Tolerance is the per-channel distance (0-255) still counted as background.
	Tolerance int
	// KernelSize is the side of the square morphology kernel.
	KernelSize int
	// MinArea drops foreground specks smaller than this many pixels.
	MinArea float64
}

// New creates a Remover. Non-positive values select the defaults.
func New(tolerance, kernelSize int) *Remover {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if kernelSize <= 0 {
		kernelSize = DefaultKernelSize
	}
	return &Remover{Tolerance: tolerance, KernelSize: kernelSize, MinArea: DefaultMinArea}
}

// RemoveBackground implements bgremove.Remover.
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	bg := colorutil.BorderColor(img)
	if bg.A == 0 {
		// Already cut out.
		return img, nil
	}

	mat, err := imageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	mask := r.foregroundMask(mat, bg)
	defer mask.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return applyMask(img, mask), nil
}

// foregroundMask returns a single-channel mask, 255 where the artwork is.
func (r *Remover) foregroundMask(mat gocv.Mat, bg color.RGBA) gocv.Mat {
	tol := float64(r.Tolerance)
	lower := gocv.NewScalar(
		clamp8(float64(bg.B)-tol), clamp8(float64(bg.G)-tol), clamp8(float64(bg.R)-tol), 0)
	upper := gocv.NewScalar(
		clamp8(float64(bg.B)+tol), clamp8(float64(bg.G)+tol), clamp8(float64(bg.R)+tol), 0)

	background := gocv.NewMat()
	defer background.Close()
	gocv.InRangeWithScalar(mat, lower, upper, &background)

	k := r.KernelSize
	if k <= 0 {
		k = DefaultKernelSize
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{k, k})
	defer kernel.Close()

	fg := gocv.NewMat()
	defer fg.Close()
	gocv.BitwiseNot(background, &fg)
	gocv.MorphologyEx(fg, &fg, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(fg, &fg, gocv.MorphClose, kernel)

	filled := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), fg.Rows(), fg.Cols(), gocv.MatTypeCV8U)
	contours := gocv.FindContours(fg, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < r.MinArea {
			continue
		}
		gocv.DrawContours(&filled, contours, i, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	}
	return filled
}

func applyMask(img image.Image, mask gocv.Mat) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if m := mask.GetUCharAt(y, x); m < c.A {
				c.A = m
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// imageToMat converts a Go image.Image to a gocv.Mat in BGR format.
func imageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	if mat.Empty() {
		return mat, fmt.Errorf("failed to allocate %dx%d mat", w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}

	return mat, nil
}

func clamp8(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
