package tracker

import (
	"math"
)

// Point represents a 2D position or velocity vector
type Point struct {
	X float32
	Y float32
}

// Xysr (center x, center y, scale, aspect ratio) represents a rectangle in
// measurement form, where scale is the box area and aspect ratio is width
// divided by height
type Xysr []float32

// Rect represents a rectangle in (left, top, width, height) format
type Rect struct {
	x      float32
	y      float32
	width  float32
	height float32
}

// NewRect creates a new Rect with given coordinates
func NewRect(x, y, width, height float32) Rect {
	return Rect{
		x:      x,
		y:      y,
		width:  width,
		height: height,
	}
}

// X returns the left coordinate of the rectangle
func (r Rect) X() float32 {
	return r.x
}

// Y returns the top coordinate of the rectangle
func (r Rect) Y() float32 {
	return r.y
}

// Width returns the width of the rectangle
func (r Rect) Width() float32 {
	return r.width
}

// Height returns the height of the rectangle
func (r Rect) Height() float32 {
	return r.height
}

// BRX returns the bottom-right x coordinate of the rectangle
func (r Rect) BRX() float32 {
	return r.x + r.width
}

// BRY returns the bottom-right y coordinate of the rectangle
func (r Rect) BRY() float32 {
	return r.y + r.height
}

// Area returns the area of the rectangle
func (r Rect) Area() float32 {
	return r.width * r.height
}

// Center returns the center point of the rectangle
func (r Rect) Center() Point {
	return Point{
		X: r.x + r.width/2,
		Y: r.y + r.height/2,
	}
}

// Empty returns true if the rectangle has no area
func (r Rect) Empty() bool {
	return r.width <= 0 || r.height <= 0
}

// GetXysr converts the rectangle to Xysr (center x, center y, scale,
// aspect ratio) measurement form
func (r Rect) GetXysr() Xysr {
	return Xysr{
		r.x + r.width/2,
		r.y + r.height/2,
		r.width * r.height,
		r.width / r.height,
	}
}

// GenerateRectByXysr creates a Rect from Xysr (center x, center y, scale,
// aspect ratio) measurement form. A negative scale or aspect ratio has no
// box equivalent and yields an empty Rect
func GenerateRectByXysr(xysr Xysr) Rect {

	if xysr[2] < 0 || xysr[3] < 0 {
		return Rect{}
	}

	width := float32(math.Sqrt(float64(xysr[2] * xysr[3])))
	height := xysr[2] / width

	return NewRect(xysr[0]-width/2, xysr[1]-height/2, width, height)
}

// CalcIoU calculates the Intersection over Union (IoU) with another rectangle
func (r Rect) CalcIoU(other Rect) float32 {

	xa := float32(math.Max(float64(r.x), float64(other.x)))
	ya := float32(math.Max(float64(r.y), float64(other.y)))
	xb := float32(math.Min(float64(r.BRX()), float64(other.BRX())))
	yb := float32(math.Min(float64(r.BRY()), float64(other.BRY())))

	if xb <= xa || yb <= ya {
		return 0
	}

	interArea := (xb - xa) * (yb - ya)

	return interArea / (r.Area() + other.Area() - interArea)
}
