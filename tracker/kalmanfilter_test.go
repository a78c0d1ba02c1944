package tracker

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// floatsEqual compares slices of float32
func floatsEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if diff := a[i] - b[i]; diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

// matricesEqual compare matrices
func matricesEqual(a, b mat.Matrix, epsilon float64) bool {
	r1, c1 := a.Dims()
	r2, c2 := b.Dims()

	if r1 != r2 || c1 != c2 {
		return false
	}

	for i := 0; i < r1; i++ {
		for j := 0; j < c1; j++ {
			if diff := a.At(i, j) - b.At(i, j); diff > epsilon || diff < -epsilon {
				return false
			}
		}
	}

	return true
}

// TestKalmanFilter traces one predict and update cycle of a one dimensional
// filter against hand computed values
func TestKalmanFilter(t *testing.T) {

	const tolerance = 1e-9

	kf := NewKalmanFilter(1, 1, 0)

	kf.SetState(mat.NewVecDense(1, []float64{1}))
	kf.SetTransition(mat.NewDense(1, 1, []float64{2}))
	kf.SetMeasurementMatrix(mat.NewDense(1, 1, []float64{1}))

	// predict, x = 2*1 = 2 and P = 2*1*2 + 1 = 5
	prior := kf.Predict(nil)

	if !matricesEqual(prior, mat.NewVecDense(1, []float64{2}), tolerance) {
		t.Errorf("expected prior state 2, got %v", prior.AtVec(0))
	}

	if !matricesEqual(kf.GetCovariance(),
		mat.NewDense(1, 1, []float64{5}), tolerance) {
		t.Errorf("expected prior covariance 5, got %v",
			kf.GetCovariance().At(0, 0))
	}

	// update with z = 3, S = 5 + 1 = 6, K = 5/6, x = 2 + 5/6 and
	// P = (1 - 5/6)*5
	posterior := kf.Update(mat.NewVecDense(1, []float64{3}))

	if !matricesEqual(posterior,
		mat.NewVecDense(1, []float64{2 + 5.0/6.0}), tolerance) {
		t.Errorf("expected posterior state %v, got %v",
			2+5.0/6.0, posterior.AtVec(0))
	}

	if !matricesEqual(kf.GetCovariance(),
		mat.NewDense(1, 1, []float64{5.0 / 6.0}), tolerance) {
		t.Errorf("expected posterior covariance %v, got %v",
			5.0/6.0, kf.GetCovariance().At(0, 0))
	}
}

// TestKalmanFilterConvergence feeds noiseless constant velocity measurements
// and expects the state estimate to settle on the true motion
func TestKalmanFilterConvergence(t *testing.T) {

	kf := NewKalmanFilter(2, 1, 0)

	kf.SetTransition(mat.NewDense(2, 2, []float64{
		1, 1,
		0, 1,
	}))
	kf.SetMeasurementMatrix(mat.NewDense(1, 2, []float64{1, 0}))
	kf.SetCovariance(mat.NewDense(2, 2, []float64{
		10, 0,
		0, 10,
	}))
	kf.SetProcessNoise(mat.NewDense(2, 2, []float64{
		1e-4, 0,
		0, 1e-4,
	}))

	// the measured position advances by 2 every step
	for k := 1; k <= 20; k++ {
		kf.Predict(nil)
		kf.Update(mat.NewVecDense(1, []float64{float64(2 * k)}))
	}

	state := kf.GetState()

	if diff := state.AtVec(0) - 40; diff > 0.5 || diff < -0.5 {
		t.Errorf("expected position near 40, got %v", state.AtVec(0))
	}

	if diff := state.AtVec(1) - 2; diff > 0.2 || diff < -0.2 {
		t.Errorf("expected velocity near 2, got %v", state.AtVec(1))
	}
}

// TestKalmanFilterControl verifies the control input contribution to the
// predicted state
func TestKalmanFilterControl(t *testing.T) {

	const tolerance = 1e-9

	kf := NewKalmanFilter(2, 1, 1)

	kf.SetTransition(mat.NewDense(2, 2, []float64{
		1, 1,
		0, 1,
	}))
	kf.SetControlTransition(mat.NewDense(2, 1, []float64{
		0.5,
		1,
	}))
	kf.SetMeasurementMatrix(mat.NewDense(1, 2, []float64{1, 0}))

	u := mat.NewVecDense(1, []float64{2})

	// from rest, x = B*u = [1, 2]
	state := kf.Predict(u)

	if !matricesEqual(state, mat.NewVecDense(2, []float64{1, 2}), tolerance) {
		t.Errorf("expected state [1, 2], got [%v, %v]",
			state.AtVec(0), state.AtVec(1))
	}

	// x = F*[1, 2] + B*u = [3, 2] + [1, 2] = [4, 4]
	state = kf.Predict(u)

	if !matricesEqual(state, mat.NewVecDense(2, []float64{4, 4}), tolerance) {
		t.Errorf("expected state [4, 4], got [%v, %v]",
			state.AtVec(0), state.AtVec(1))
	}

	// a nil control vector predicts without the control contribution
	state = kf.Predict(nil)

	if !matricesEqual(state, mat.NewVecDense(2, []float64{8, 4}), tolerance) {
		t.Errorf("expected state [8, 4], got [%v, %v]",
			state.AtVec(0), state.AtVec(1))
	}
}

// expectPanic fails the test unless fn panics
func expectPanic(t *testing.T, fn func()) {
	t.Helper()

	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()

	fn()
}

func TestKalmanFilterBadDims(t *testing.T) {

	t.Run("zero state dimension", func(t *testing.T) {
		expectPanic(t, func() { NewKalmanFilter(0, 1, 0) })
	})

	t.Run("transition shape", func(t *testing.T) {
		kf := NewKalmanFilter(2, 1, 0)
		expectPanic(t, func() {
			kf.SetTransition(mat.NewDense(1, 2, []float64{1, 1}))
		})
	})

	t.Run("control transition without control", func(t *testing.T) {
		kf := NewKalmanFilter(2, 1, 0)
		expectPanic(t, func() {
			kf.SetControlTransition(mat.NewDense(2, 1, []float64{1, 1}))
		})
	})

	t.Run("control vector length", func(t *testing.T) {
		kf := NewKalmanFilter(2, 1, 1)
		expectPanic(t, func() {
			kf.Predict(mat.NewVecDense(2, []float64{1, 1}))
		})
	})

	t.Run("measurement vector length", func(t *testing.T) {
		kf := NewKalmanFilter(2, 1, 0)
		expectPanic(t, func() {
			kf.Update(mat.NewVecDense(2, []float64{1, 1}))
		})
	})
}
