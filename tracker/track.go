package tracker

import (
	"gonum.org/v1/gonum/mat"
)

// dimensions of the track motion model, the state vector is
// [center x, center y, scale, aspect ratio, x velocity, y velocity,
// scale velocity], the measurement vector is the first four state
// components and the control vector is an (x, y) acceleration
const (
	trackStateDim       = 7
	trackMeasurementDim = 4
	trackControlDim     = 2
)

// trackTimeStep is the motion model time step, one frame
const trackTimeStep = 1.0

// Track represents a single tracked bounding box
type Track struct {
	// tag is the unique track identifier
	tag int
	// filter estimates the box motion state
	filter *KalmanFilter
	// age is the number of frames since the last successful update
	age int
	// numHits is the total number of successful updates
	numHits int
	// numConsecutiveHits is the current unbroken run of updates with no
	// missed frame in between
	numConsecutiveHits int
}

// NewTrack initializes and returns a new Track from an initial detected
// bounding box
func NewTrack(tag int, box Rect) *Track {

	filter := NewKalmanFilter(trackStateDim, trackMeasurementDim,
		trackControlDim)

	// start the state at the detected box with zero velocities
	xysr := box.GetXysr()
	state := mat.NewVecDense(trackStateDim, nil)

	for i := 0; i < trackMeasurementDim; i++ {
		state.SetVec(i, float64(xysr[i]))
	}

	filter.SetState(state)

	const dt = trackTimeStep

	// the box position is observed directly while the velocities are not,
	// so they start with a high uncertainty
	filter.SetCovariance(mat.NewDense(trackStateDim, trackStateDim, []float64{
		1e1, 0, 0, 0, 0, 0, 0,
		0, 1e1, 0, 0, 0, 0, 0,
		0, 0, 1e1, 0, 0, 0, 0,
		0, 0, 0, 1e1, 0, 0, 0,
		0, 0, 0, 0, 1e4, 0, 0,
		0, 0, 0, 0, 0, 1e4, 0,
		0, 0, 0, 0, 0, 0, 1e4,
	}))

	// constant velocity motion model
	filter.SetTransition(mat.NewDense(trackStateDim, trackStateDim, []float64{
		1, 0, 0, 0, dt, 0, 0,
		0, 1, 0, 0, 0, dt, 0,
		0, 0, 1, 0, 0, 0, dt,
		0, 0, 0, 1, 0, 0, 0,
		0, 0, 0, 0, 1, 0, 0,
		0, 0, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 0, 0, 1,
	}))

	// acceleration control acts on the box center and its velocity
	filter.SetControlTransition(mat.NewDense(trackStateDim, trackControlDim,
		[]float64{
			0.5 * dt * dt, 0,
			0, 0.5 * dt * dt,
			0, 0,
			0, 0,
			dt, 0,
			0, dt,
			0, 0,
		}))

	filter.SetProcessNoise(mat.NewDense(trackStateDim, trackStateDim,
		[]float64{
			1e0, 0, 0, 0, 0, 0, 0,
			0, 1e0, 0, 0, 0, 0, 0,
			0, 0, 1e0, 0, 0, 0, 0,
			0, 0, 0, 1e-2, 0, 0, 0,
			0, 0, 0, 0, 1e-2, 0, 0,
			0, 0, 0, 0, 0, 1e-2, 0,
			0, 0, 0, 0, 0, 0, 1e-4,
		}))

	// only the box position components are measured
	filter.SetMeasurementMatrix(mat.NewDense(trackMeasurementDim,
		trackStateDim, []float64{
			1, 0, 0, 0, 0, 0, 0,
			0, 1, 0, 0, 0, 0, 0,
			0, 0, 1, 0, 0, 0, 0,
			0, 0, 0, 1, 0, 0, 0,
		}))

	filter.SetMeasurementNoise(mat.NewDense(trackMeasurementDim,
		trackMeasurementDim, []float64{
			1e0, 0, 0, 0,
			0, 1e0, 0, 0,
			0, 0, 1e1, 0,
			0, 0, 0, 1e1,
		}))

	return &Track{
		tag:    tag,
		filter: filter,
	}
}

// Predict advances the track state by one frame under the given acceleration
// and returns the predicted bounding box
func (t *Track) Predict(acceleration Point) Rect {

	t.age++

	control := mat.NewVecDense(trackControlDim, []float64{
		float64(acceleration.X),
		float64(acceleration.Y),
	})

	statePrior := t.filter.Predict(control)

	return stateToRect(statePrior)
}

// Update corrects the track state with a detected bounding box and returns
// the corrected box
func (t *Track) Update(detectedBox Rect) Rect {

	t.numHits++

	// the hit streak keeps growing only when exactly one predict happened
	// since the previous update, a missed frame breaks it
	if t.age == 1 {
		t.numConsecutiveHits++
	} else {
		t.numConsecutiveHits = 0
	}

	t.age = 0

	xysr := detectedBox.GetXysr()
	measurement := mat.NewVecDense(trackMeasurementDim, nil)

	for i := 0; i < trackMeasurementDim; i++ {
		measurement.SetVec(i, float64(xysr[i]))
	}

	statePosterior := t.filter.Update(measurement)

	return stateToRect(statePosterior)
}

// GetTag returns the unique track identifier
func (t *Track) GetTag() int {
	return t.tag
}

// GetAge returns the number of frames since the last successful update
func (t *Track) GetAge() int {
	return t.age
}

// GetNumHits returns the total number of successful updates
func (t *Track) GetNumHits() int {
	return t.numHits
}

// GetHitStreak returns the current unbroken run of successful updates
func (t *Track) GetHitStreak() int {
	return t.numConsecutiveHits
}

// GetRect returns the bounding box for the current state estimate
func (t *Track) GetRect() Rect {
	return stateToRect(t.filter.GetState())
}

// GetVelocity returns the estimated (x, y) velocity of the box center
func (t *Track) GetVelocity() Point {

	state := t.filter.GetState()

	return Point{
		X: float32(state.AtVec(4)),
		Y: float32(state.AtVec(5)),
	}
}

// stateToRect converts the box components of a state vector back to a
// bounding box
func stateToRect(state *mat.VecDense) Rect {
	return GenerateRectByXysr(Xysr{
		float32(state.AtVec(0)),
		float32(state.AtVec(1)),
		float32(state.AtVec(2)),
		float32(state.AtVec(3)),
	})
}
