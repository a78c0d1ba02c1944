package preprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Transformer defines the struct used for rotating and scaling captured
// frames to the pipeline working size
type Transformer struct {
	// rotation is the clockwise rotation applied to each frame in degrees,
	// one of 0, 90, 180, or 270
	rotation int
	// destWidth is the working width frames are scaled to, zero keeps the
	// source size
	destWidth int
	// destHeight is the working height frames are scaled to, zero keeps the
	// source size
	destHeight int
	// tempMat is a Mat used to hold the rotated frame before scaling
	tempMat gocv.Mat
}

// NewTransformer returns a transformer that rotates frames clockwise by the
// given degrees then scales them to the working size. A zero width and
// height keeps the rotated frame size
func NewTransformer(rotation, destWidth, destHeight int) (*Transformer, error) {

	switch rotation {
	case 0, 90, 180, 270:
	default:
		return nil, fmt.Errorf("rotation must be 0, 90, 180, or 270, got %d",
			rotation)
	}

	if destWidth < 0 || destHeight < 0 {
		return nil, fmt.Errorf("working size must not be negative, got %dx%d",
			destWidth, destHeight)
	}

	if (destWidth == 0) != (destHeight == 0) {
		return nil, fmt.Errorf("working width and height must be set together, got %dx%d",
			destWidth, destHeight)
	}

	return &Transformer{
		rotation:   rotation,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}, nil
}

// Close frees memory allocated during the transform process
func (t *Transformer) Close() error {
	return t.tempMat.Close()
}

// Transform writes the rotated and scaled frame into dest
func (t *Transformer) Transform(src gocv.Mat, dest *gocv.Mat) {

	if t.rotation == 0 && t.destWidth == 0 {
		src.CopyTo(dest)
		return
	}

	if t.rotation == 0 {
		gocv.Resize(src, dest, image.Pt(t.destWidth, t.destHeight),
			0, 0, gocv.InterpolationArea)
		return
	}

	// with no scaling step the rotation writes straight into dest
	rotated := dest

	if t.destWidth != 0 {
		rotated = &t.tempMat
	}

	switch t.rotation {
	case 90:
		gocv.Rotate(src, rotated, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(src, rotated, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(src, rotated, gocv.Rotate90CounterClockwise)
	}

	if t.destWidth == 0 {
		return
	}

	gocv.Resize(t.tempMat, dest, image.Pt(t.destWidth, t.destHeight),
		0, 0, gocv.InterpolationArea)
}

// Rotation returns the clockwise rotation applied to each frame in degrees
func (t *Transformer) Rotation() int {
	return t.rotation
}
