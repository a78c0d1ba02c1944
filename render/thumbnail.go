package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// Thumbnail scales the image down to the given width keeping its aspect
// ratio, using CatmullRom resampling for quality at small sizes
func Thumbnail(img gocv.Mat, width int) (image.Image, error) {

	if img.Empty() {
		return nil, fmt.Errorf("image is empty")
	}

	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	src, err := img.ToImage()

	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}

	bounds := src.Bounds()
	height := bounds.Dy() * width / bounds.Dx()

	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	return dst, nil
}
