package tracker

import (
	"gonum.org/v1/gonum/mat"
)

// KalmanFilter represents a discrete linear Kalman filter with fixed state,
// measurement and control dimensions
type KalmanFilter struct {
	// stateDim is the number of state vector components
	stateDim int
	// measurementDim is the number of measurement vector components
	measurementDim int
	// controlDim is the number of control vector components, zero when the
	// motion model takes no control input
	controlDim int
	// x is the state estimate vector
	x *mat.VecDense
	// p is the state estimate covariance
	p *mat.Dense
	// f is the state transition matrix
	f *mat.Dense
	// b is the control transition matrix, nil when controlDim is zero
	b *mat.Dense
	// q is the process noise covariance
	q *mat.Dense
	// h is the measurement matrix
	h *mat.Dense
	// r is the measurement noise covariance
	r *mat.Dense
	// eye is a cached identity matrix of state dimensions
	eye *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter with the given
// state, measurement and control vector dimensions. The state starts at zero
// with identity covariance, transition and noise matrices, and a zero
// measurement matrix
func NewKalmanFilter(stateDim, measurementDim, controlDim int) *KalmanFilter {

	if stateDim <= 0 || measurementDim <= 0 || controlDim < 0 {
		panic(mat.ErrShape)
	}

	kf := &KalmanFilter{
		stateDim:       stateDim,
		measurementDim: measurementDim,
		controlDim:     controlDim,
		x:              mat.NewVecDense(stateDim, nil),
		p:              identity(stateDim),
		f:              identity(stateDim),
		q:              identity(stateDim),
		h:              mat.NewDense(measurementDim, stateDim, nil),
		r:              identity(measurementDim),
		eye:            identity(stateDim),
	}

	if controlDim > 0 {
		kf.b = mat.NewDense(stateDim, controlDim, nil)
	}

	return kf
}

// identity creates a new n by n identity matrix
func identity(n int) *mat.Dense {

	m := mat.NewDense(n, n, nil)

	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}

	return m
}

// checkDims panics unless the given matrix has the wanted dimensions
func checkDims(m mat.Matrix, rows, cols int) {
	r, c := m.Dims()
	if r != rows || c != cols {
		panic(mat.ErrShape)
	}
}

// SetState sets the state estimate vector
func (kf *KalmanFilter) SetState(x *mat.VecDense) {

	if x.Len() != kf.stateDim {
		panic(mat.ErrShape)
	}

	kf.x.CopyVec(x)
}

// SetCovariance sets the state estimate covariance
func (kf *KalmanFilter) SetCovariance(p mat.Matrix) {
	checkDims(p, kf.stateDim, kf.stateDim)
	kf.p.Copy(p)
}

// SetTransition sets the state transition matrix
func (kf *KalmanFilter) SetTransition(f mat.Matrix) {
	checkDims(f, kf.stateDim, kf.stateDim)
	kf.f.Copy(f)
}

// SetControlTransition sets the control transition matrix
func (kf *KalmanFilter) SetControlTransition(b mat.Matrix) {

	if kf.controlDim == 0 {
		panic(mat.ErrShape)
	}

	checkDims(b, kf.stateDim, kf.controlDim)
	kf.b.Copy(b)
}

// SetProcessNoise sets the process noise covariance
func (kf *KalmanFilter) SetProcessNoise(q mat.Matrix) {
	checkDims(q, kf.stateDim, kf.stateDim)
	kf.q.Copy(q)
}

// SetMeasurementMatrix sets the measurement matrix
func (kf *KalmanFilter) SetMeasurementMatrix(h mat.Matrix) {
	checkDims(h, kf.measurementDim, kf.stateDim)
	kf.h.Copy(h)
}

// SetMeasurementNoise sets the measurement noise covariance
func (kf *KalmanFilter) SetMeasurementNoise(r mat.Matrix) {
	checkDims(r, kf.measurementDim, kf.measurementDim)
	kf.r.Copy(r)
}

// GetState returns a copy of the state estimate vector
func (kf *KalmanFilter) GetState() *mat.VecDense {
	return mat.VecDenseCopyOf(kf.x)
}

// GetCovariance returns a copy of the state estimate covariance
func (kf *KalmanFilter) GetCovariance() *mat.Dense {
	return mat.DenseCopyOf(kf.p)
}

// Predict propagates the state estimate and covariance through the motion
// model and returns a copy of the state prior. The control vector u may be
// nil to predict without a control contribution
func (kf *KalmanFilter) Predict(u *mat.VecDense) *mat.VecDense {

	// propagate the state estimate, x = F*x
	kf.x.MulVec(kf.f, kf.x)

	// apply the control input, x = x + B*u
	if kf.controlDim > 0 && u != nil {

		if u.Len() != kf.controlDim {
			panic(mat.ErrShape)
		}

		var bu mat.VecDense
		bu.MulVec(kf.b, u)
		kf.x.AddVec(kf.x, &bu)
	}

	// propagate the covariance, P = F*P*Ft + Q
	kf.p.Mul(kf.f, kf.p)
	kf.p.Mul(kf.p, kf.f.T())
	kf.p.Add(kf.p, kf.q)

	return mat.VecDenseCopyOf(kf.x)
}

// Update corrects the state estimate and covariance with the given
// measurement vector and returns a copy of the state posterior
func (kf *KalmanFilter) Update(z *mat.VecDense) *mat.VecDense {

	if z.Len() != kf.measurementDim {
		panic(mat.ErrShape)
	}

	// project the covariance into measurement space, S = H*P*Ht + R
	var pht mat.Dense
	pht.Mul(kf.p, kf.h.T())

	var innovCov mat.Dense
	innovCov.Mul(kf.h, &pht)
	innovCov.Add(&innovCov, kf.r)

	// compute the Kalman gain, K = P*Ht*S^-1. a singular innovation
	// covariance is a caller contract violation, the inversion result is
	// used as is
	var innovCovInv mat.Dense
	_ = innovCovInv.Inverse(&innovCov)

	var gain mat.Dense
	gain.Mul(&pht, &innovCovInv)

	// fold the measurement residual into the state, x = x + K*(z - H*x)
	var residual mat.VecDense
	residual.MulVec(kf.h, kf.x)
	residual.SubVec(z, &residual)

	var correction mat.VecDense
	correction.MulVec(&gain, &residual)

	kf.x.AddVec(kf.x, &correction)

	// correct the covariance, P = (I - K*H)*P
	var gainH mat.Dense
	gainH.Mul(&gain, kf.h)

	var identGainH mat.Dense
	identGainH.Sub(kf.eye, &gainH)

	kf.p.Mul(&identGainH, kf.p)

	return mat.VecDenseCopyOf(kf.x)
}
