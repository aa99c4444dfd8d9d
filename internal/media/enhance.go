package media

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// contrastMidpoint is the fixed midpoint around which contrast scaling
// is applied.
const contrastMidpoint = 128.0

// clampByte clamps a float value to the [0, 255] range.
func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// scaleOf converts a percentage option to a multiplier.
// Zero (unset) and 100 both map to 1.0.
func scaleOf(percent int) float64 {
	if percent <= 0 {
		return 1.0
	}
	return float64(percent) / 100.0
}

// adjustValue applies the enhancement arithmetic to a single channel
// value: brightness is a multiplicative scale, contrast scales the
// distance from the 128 midpoint, and the result is clamped to [0, 255].
func adjustValue(v, brightness, contrast float64) float64 {
	v = v * brightness
	v = (v-contrastMidpoint)*contrast + contrastMidpoint
	return v
}

// AdjustPixels applies brightness and contrast to every pixel of img.
// Brightness and contrast are percentages where 100 (or 0, meaning
// unset) leaves the image unchanged. Alpha is preserved.
func AdjustPixels(img image.Image, brightness, contrast int) *image.NRGBA {
	b := scaleOf(brightness)
	c := scaleOf(contrast)

	out := imaging.Clone(img)
	if b == 1.0 && c == 1.0 {
		return out
	}

	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = clampByte(adjustValue(float64(out.Pix[i]), b, c))
		out.Pix[i+1] = clampByte(adjustValue(float64(out.Pix[i+1]), b, c))
		out.Pix[i+2] = clampByte(adjustValue(float64(out.Pix[i+2]), b, c))
	}
	return out
}

// LUTFilter builds the ffmpeg lutrgb filter expression implementing the
// same arithmetic as AdjustPixels: clip((val*b - 128)*c + 128, 0, 255).
func LUTFilter(brightness, contrast int) string {
	b := scaleOf(brightness)
	c := scaleOf(contrast)
	expr := fmt.Sprintf("clip((val*%.4f-%d)*%.4f+%d\\,0\\,255)",
		b, int(contrastMidpoint), c, int(contrastMidpoint))
	return fmt.Sprintf("lutrgb=r='%s':g='%s':b='%s'", expr, expr, expr)
}
