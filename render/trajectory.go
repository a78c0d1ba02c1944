package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/swdee/go-falldetect/tracker"
)

const (
	// velocityScale shortens the velocity arrows so fast samples stay
	// readable
	velocityScale = 0.75
	// crossSize is the arm length of the sample center markers in pixels
	crossSize = 6
	// crossThickness is the line thickness of the sample center markers
	crossThickness = 2
	// curveStep is the horizontal pixel step the fitted curve is sampled at
	curveStep = 0.5
	// curveThickness is the line thickness of the fitted curve
	curveThickness = 2
)

// Trajectory renders a trajectory onto a clone of its first frame, drawing
// every sampled bounding box, a tilted cross at each sample center, the
// sample velocity as an arrow, and the fitted curve across the horizontal
// range of the samples. A failed curve fit skips the curve. The caller owns
// the returned Mat
func Trajectory(traj *tracker.Trajectory) (gocv.Mat, error) {

	frame := traj.GetFirstFrame()

	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("trajectory has no first frame")
	}

	img := frame.Clone()

	samples := traj.GetSamples()

	for _, sample := range samples {
		rect := image.Rect(int(sample.X), int(sample.Y),
			int(sample.X+sample.Width), int(sample.Y+sample.Height))

		gocv.Rectangle(&img, rect, Rose, 1)
	}

	for _, sample := range samples {
		center := image.Pt(int(sample.XCenter), int(sample.YCenter))

		// tilted cross marking the sample center
		gocv.Line(&img,
			image.Pt(center.X-crossSize, center.Y-crossSize),
			image.Pt(center.X+crossSize, center.Y+crossSize),
			Red, crossThickness)
		gocv.Line(&img,
			image.Pt(center.X-crossSize, center.Y+crossSize),
			image.Pt(center.X+crossSize, center.Y-crossSize),
			Red, crossThickness)

		tip := image.Pt(
			int(sample.XCenter+sample.XVelocity*velocityScale),
			int(sample.YCenter+sample.YVelocity*velocityScale))

		gocv.ArrowedLine(&img, center, tip, Green, 1)
	}

	drawCurve(&img, traj)

	return img, nil
}

// drawCurve samples the fitted curve across the horizontal range of the
// trajectory and draws it as a polyline
func drawCurve(img *gocv.Mat, traj *tracker.Trajectory) {

	curve, err := traj.FitCurve()

	if err != nil {
		return
	}

	// a successful fit guarantees the trajectory holds samples
	samples := traj.GetSamples()

	minX := samples[0].XCenter
	maxX := samples[0].XCenter

	for _, sample := range samples[1:] {
		if sample.XCenter < minX {
			minX = sample.XCenter
		}

		if sample.XCenter > maxX {
			maxX = sample.XCenter
		}
	}

	points := make([]image.Point, 0, int((maxX-minX)/curveStep)+1)

	for x := minX; x <= maxX; x += curveStep {
		points = append(points, image.Pt(int(x), int(curve.At(x))))
	}

	if len(points) < 2 {
		return
	}

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{points})
	defer pts.Close()

	gocv.Polylines(img, pts, false, Yellow, curveThickness)
}
