// Package vision holds the pixel-level measurements used by the pipeline:
// luminance conversion for the face locator and the gradient based
// sharpness score used by the enhancer.
package vision

import (
	"image"
	"image/color"
	"math"
)

// Grayscale converts img to an 8-bit luminance image with origin (0,0).
// Transparent pixels become black, matching how a detector sees an
// alpha-less decode of a cut-out PNG.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x := 0; x < width; x++ {
			row[x] = color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray).Y
		}
	}

	return gray
}

// LuminanceRow writes the luminance of row y (relative to the image
// bounds) into dst on a 0-255 scale. dst must hold Bounds().Dx() values.
func LuminanceRow(img image.Image, y int, dst []float64) {
	bounds := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok {
		i := (y+bounds.Min.Y-nrgba.Rect.Min.Y)*nrgba.Stride + (bounds.Min.X-nrgba.Rect.Min.X)*4
		for x := range dst {
			p := nrgba.Pix[i : i+4 : i+4]
			// straight alpha: scale to premultiplied like color.RGBA() does
			a := float64(p[3]) / 255.0
			dst[x] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) * a
			i += 4
		}
		return
	}

	for x := range dst {
		r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
		// ITU-R 601-2 luma, same weights as color.GrayModel
		dst[x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
	}
}

// EstimateSharpness returns the mean gradient magnitude of img.
//
// For every pixel except the last row and column the forward differences
// to the right and bottom neighbours are combined as
// sqrt(dx*dx + dy*dy). The mean over all sampled pixels is returned; an
// image narrower or shorter than two pixels scores 0.
func EstimateSharpness(img image.Image) float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 2 || height < 2 {
		return 0
	}

	cur := make([]float64, width)
	next := make([]float64, width)
	LuminanceRow(img, 0, cur)

	var total float64
	for y := 0; y < height-1; y++ {
		LuminanceRow(img, y+1, next)
		for x := 0; x < width-1; x++ {
			dx := cur[x] - cur[x+1]
			dy := cur[x] - next[x]
			total += math.Sqrt(dx*dx + dy*dy)
		}
		cur, next = next, cur
	}

	return total / float64((width-1)*(height-1))
}
