// Package cvutil bridges colour samples and OpenCV matrices.
package cvutil

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"

	"colormix/internal/gmm"
)

// KMeansOptions configures KMeans clustering.
type KMeansOptions struct {
	Attempts   int
	Iterations int
	Epsilon    float64 // 0 stops on iteration count only
}

// KMeans returns a clusterer that groups samples with OpenCV k-means and
// k-means++ seeding. Fewer samples than clusters get one cluster each.
func KMeans(opts KMeansOptions) func(samples []gmm.Color, k int) ([]int, error) {
	return func(samples []gmm.Color, k int) ([]int, error) {
		if k <= 0 {
			return nil, fmt.Errorf("cluster count must be positive, got %d", k)
		}
		if len(samples) <= k {
			labels := make([]int, len(samples))
			for i := range labels {
				labels[i] = i
			}
			return labels, nil
		}

		data := SamplesToMat(samples)
		defer data.Close()

		labels := gocv.NewMat()
		defer labels.Close()
		centers := gocv.NewMat()
		defer centers.Close()

		termType := gocv.MaxIter
		if opts.Epsilon > 0 {
			termType = gocv.EPS + gocv.MaxIter
		}
		criteria := gocv.NewTermCriteria(termType, opts.Iterations, opts.Epsilon)
		gocv.KMeans(data, k, &labels, criteria, max(opts.Attempts, 1), gocv.KMeansPPCenters, &centers)

		if labels.Rows() != len(samples) {
			return nil, fmt.Errorf("k-means returned %d labels for %d samples", labels.Rows(), len(samples))
		}
		out := make([]int, len(samples))
		for i := range out {
			out[i] = int(labels.GetIntAt(i, 0))
		}
		return out, nil
	}
}

// SamplesToMat packs samples into an N x 3 CV_32F matrix.
func SamplesToMat(samples []gmm.Color) gocv.Mat {
	mat := gocv.NewMatWithSize(len(samples), gmm.Channels, gocv.MatTypeCV32F)
	for i, x := range samples {
		mat.SetFloatAt(i, 0, float32(x[0]))
		mat.SetFloatAt(i, 1, float32(x[1]))
		mat.SetFloatAt(i, 2, float32(x[2]))
	}
	return mat
}

// SamplesFromMat returns one sample per pixel of an 8-bit, 3-channel BGR
// matrix in row-major order.
func SamplesFromMat(img gocv.Mat) ([]gmm.Color, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty matrix")
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("expected 8-bit BGR matrix, got type %v", img.Type())
	}

	h, w := img.Rows(), img.Cols()
	out := make([]gmm.Color, 0, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			vec := img.GetVecbAt(y, x)
			out = append(out, gmm.Color{float64(vec[0]), float64(vec[1]), float64(vec[2])})
		}
	}
	return out, nil
}

// ImageToMat converts an RGBA image to a BGR matrix.
func ImageToMat(img *image.RGBA) (gocv.Mat, error) {
	bounds := img.Bounds()
	mat, err := gocv.NewMatFromBytes(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

// ToRGBA returns img as an RGBA image with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// ImageSamples returns one BGR sample per pixel of img in row-major order,
// after a Gaussian blur with a blur x blur kernel. A blur of 0 samples the
// image as is; otherwise blur must be odd.
func ImageSamples(img image.Image, blur int) ([]gmm.Color, error) {
	if blur < 0 || (blur > 0 && blur%2 == 0) {
		return nil, fmt.Errorf("blur kernel must be 0 or odd, got %d", blur)
	}

	mat, err := ImageToMat(ToRGBA(img))
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if blur > 0 {
		gocv.GaussianBlur(mat, &mat, image.Pt(blur, blur), 0, 0, gocv.BorderDefault)
	}
	return SamplesFromMat(mat)
}
