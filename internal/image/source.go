// Package image loads images as colour samples and writes segmentation masks.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"colormix/internal/gmm"
	"colormix/internal/segment"
	"colormix/pkg/colorutil"
)

// Source is a decoded input image.
type Source struct {
	Path   string      // Original file path
	Image  image.Image // Decoded image data
	Format string      // Format reported by the decoder
}

// Load decodes the image at path.
func Load(path string) (*Source, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &Source{Path: path, Image: img, Format: format}, nil
}

// Width returns the image width in pixels.
func (s *Source) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Source) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// Samples returns one BGR sample per pixel in row-major order.
func (s *Source) Samples() []gmm.Color {
	if s.Image == nil {
		return nil
	}
	return Samples(s.Image)
}

// Samples returns one BGR sample per pixel of img in row-major order.
func Samples(img image.Image) []gmm.Color {
	b := img.Bounds()
	out := make([]gmm.Color, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, gmm.Color(colorutil.BGR(img.At(x, y))))
		}
	}
	return out
}

// MaskImage renders a mask as a grayscale image: foreground white,
// probable foreground light gray, probable background dark gray and
// background black.
func MaskImage(width, height int, mask segment.Mask) (*image.Gray, error) {
	if len(mask) != width*height {
		return nil, fmt.Errorf("mask has %d labels for a %dx%d image", len(mask), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, l := range mask {
		img.SetGray(i%width, i/width, labelColor(l))
	}
	return img, nil
}

func labelColor(l segment.Label) color.Gray {
	switch l {
	case segment.Foreground:
		return colorutil.White
	case segment.ProbableForeground:
		return colorutil.LightGray
	case segment.ProbableBackground:
		return colorutil.DarkGray
	default:
		return colorutil.Black
	}
}

// WriteMask writes the rendered mask to path as PNG.
func WriteMask(path string, width, height int, mask segment.Mask) error {
	img, err := MaskImage(width, height, mask)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mask: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode mask: %w", err)
	}
	return file.Close()
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
