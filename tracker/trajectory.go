package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// SamplePoint represents one motion sample recorded along a trajectory
type SamplePoint struct {
	// X is the left coordinate of the box
	X float32
	// Y is the top coordinate of the box
	Y float32
	// Width is the width of the box
	Width float32
	// Height is the height of the box
	Height float32
	// XCenter is the x coordinate of the box center
	XCenter float32
	// YCenter is the y coordinate of the box center
	YCenter float32
	// XVelocity is the estimated x velocity of the box center
	XVelocity float32
	// YVelocity is the estimated y velocity of the box center
	YVelocity float32
	// Timestamp records when the sample was added
	Timestamp time.Time
}

// Parabola represents a fitted quadratic curve y = A*x*x + B*x + C
type Parabola struct {
	A float32
	B float32
	C float32
}

// At returns the curve value at x
func (p Parabola) At(x float32) float32 {
	return p.A*x*x + p.B*x + p.C
}

// Trajectory records the motion of one track from its qualification until
// its expiry, along with the frame captured when it started
type Trajectory struct {
	// firstFrame is a copy of the frame captured when the trajectory
	// started
	firstFrame gocv.Mat
	// samples are the motion samples added along the trajectory
	samples []SamplePoint
	// age counts tracker cycles since the last sample was added
	age int
}

// NewTrajectory initializes and returns a new Trajectory holding a copy of
// the given frame. Close must be called to release the copy
func NewTrajectory(firstFrame gocv.Mat) *Trajectory {
	return &Trajectory{
		firstFrame: firstFrame.Clone(),
	}
}

// Add appends a motion sample to the trajectory and resets its age
func (t *Trajectory) Add(box Rect, velocity Point, timestamp time.Time) {

	center := box.Center()

	t.samples = append(t.samples, SamplePoint{
		X:         box.X(),
		Y:         box.Y(),
		Width:     box.Width(),
		Height:    box.Height(),
		XCenter:   center.X,
		YCenter:   center.Y,
		XVelocity: velocity.X,
		YVelocity: velocity.Y,
		Timestamp: timestamp,
	})

	t.age = 0
}

// IncrementAge increments the trajectory age by the given count
func (t *Trajectory) IncrementAge(count int) {
	t.age += count
}

// GetAge returns the number of tracker cycles since the last sample was
// added
func (t *Trajectory) GetAge() int {
	return t.age
}

// GetNumSamples returns the number of recorded samples
func (t *Trajectory) GetNumSamples() int {
	return len(t.samples)
}

// GetSamples returns the recorded samples in the order they were added
func (t *Trajectory) GetSamples() []SamplePoint {
	return t.samples
}

// GetStartTime returns the timestamp of the first sample, or the zero time
// when no samples have been recorded
func (t *Trajectory) GetStartTime() time.Time {

	if len(t.samples) == 0 {
		return time.Time{}
	}

	return t.samples[0].Timestamp
}

// GetDuration returns the time between the first and last samples
func (t *Trajectory) GetDuration() time.Duration {

	if len(t.samples) == 0 {
		return 0
	}

	return t.samples[len(t.samples)-1].Timestamp.Sub(t.samples[0].Timestamp)
}

// GetRangeX returns the horizontal distance between the first and last
// sampled box centers
func (t *Trajectory) GetRangeX() float32 {

	if len(t.samples) == 0 {
		return 0
	}

	return abs32(t.samples[len(t.samples)-1].XCenter - t.samples[0].XCenter)
}

// GetRangeY returns the vertical distance between the first and last
// sampled box centers
func (t *Trajectory) GetRangeY() float32 {

	if len(t.samples) == 0 {
		return 0
	}

	return abs32(t.samples[len(t.samples)-1].YCenter - t.samples[0].YCenter)
}

// GetFirstFrame returns the frame captured when the trajectory started. The
// Mat stays owned by the trajectory and is released by Close
func (t *Trajectory) GetFirstFrame() gocv.Mat {
	return t.firstFrame
}

// FitCurve fits a quadratic curve to the sampled box centers, with the
// center y coordinate taken as a function of the center x coordinate. Each
// sample is weighted by exp(-i/n) for sample index i of n. An error is
// returned when the trajectory holds fewer than three samples or the
// samples do not constrain a curve
func (t *Trajectory) FitCurve() (Parabola, error) {

	numSamples := len(t.samples)

	if numSamples < 3 {
		return Parabola{}, errors.New("tracker: not enough samples to fit a curve")
	}

	a := mat.NewDense(numSamples, 3, nil)
	b := mat.NewVecDense(numSamples, nil)

	for i, sample := range t.samples {
		x := float64(sample.XCenter)
		y := float64(sample.YCenter)
		w := math.Exp(float64(-i) / float64(numSamples))

		// A[i] = [x^2, x, 1]
		a.Set(i, 0, x*x*w)
		a.Set(i, 1, x*w)
		a.Set(i, 2, w)
		// b[i] = y
		b.SetVec(i, y*w)
	}

	// solve the least squares problem min ||A*[a, b, c]^T - b||^2
	var params mat.VecDense

	if err := params.SolveVec(a, b); err != nil {
		return Parabola{}, fmt.Errorf("tracker: curve fit failed: %w", err)
	}

	return Parabola{
		A: float32(params.AtVec(0)),
		B: float32(params.AtVec(1)),
		C: float32(params.AtVec(2)),
	}, nil
}

// Close releases the frame captured at the start of the trajectory
func (t *Trajectory) Close() error {
	return t.firstFrame.Close()
}

// abs32 returns the absolute value of x
func abs32(x float32) float32 {

	if x < 0 {
		return -x
	}

	return x
}
