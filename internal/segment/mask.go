package segment

import (
	"colormix/pkg/geometry"
)

// Label is the per-pixel state of the segmentation mask.
type Label uint8

// Mask values. Hard labels come from the user and are never changed;
// probable labels are revised every iteration.
const (
	Background Label = iota
	Foreground
	ProbableBackground
	ProbableForeground
)

func (l Label) String() string {
	switch l {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	case ProbableBackground:
		return "probable background"
	case ProbableForeground:
		return "probable foreground"
	default:
		return "unknown"
	}
}

// IsForeground reports whether pixels with this label feed the foreground model.
func (l Label) IsForeground() bool {
	return l == Foreground || l == ProbableForeground
}

// IsProbable reports whether the label may be revised.
func (l Label) IsProbable() bool {
	return l == ProbableBackground || l == ProbableForeground
}

// Mask holds one label per pixel, row-major.
type Mask []Label

// MaskFromRect labels every pixel of a width x height image inside rect as
// probable foreground and everything else as background.
func MaskFromRect(width, height int, rect geometry.Rect) Mask {
	mask := make(Mask, width*height)
	x0, y0 := int(rect.X), int(rect.Y)
	x1, y1 := int(rect.X+rect.Width), int(rect.Y+rect.Height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				mask[y*width+x] = ProbableForeground
			}
		}
	}
	return mask
}

// Counts returns how many pixels are foreground and background.
func (m Mask) Counts() (fg, bg int) {
	for _, l := range m {
		if l.IsForeground() {
			fg++
		} else {
			bg++
		}
	}
	return fg, bg
}
