package tracker

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestTrajectoryAdd(t *testing.T) {

	frame := gocv.NewMatWithSize(4, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()

	trajectory := NewTrajectory(frame)
	defer trajectory.Close()

	// the trajectory keeps its own copy of the frame
	firstFrame := trajectory.GetFirstFrame()

	if firstFrame.Rows() != 4 || firstFrame.Cols() != 8 {
		t.Errorf("expected a 4x8 first frame, got %dx%d",
			firstFrame.Rows(), firstFrame.Cols())
	}

	ts1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(33 * time.Millisecond)

	trajectory.Add(NewRect(10, 20, 30, 40), Point{X: 1, Y: 2}, ts1)

	trajectory.IncrementAge(3)

	if trajectory.GetAge() != 3 {
		t.Errorf("expected age 3, got %d", trajectory.GetAge())
	}

	// adding a sample resets the age
	trajectory.Add(NewRect(20, 50, 30, 40), Point{X: 3, Y: 4}, ts2)

	if trajectory.GetAge() != 0 {
		t.Errorf("expected age 0, got %d", trajectory.GetAge())
	}

	if trajectory.GetNumSamples() != 2 {
		t.Fatalf("expected 2 samples, got %d", trajectory.GetNumSamples())
	}

	sample := trajectory.GetSamples()[0]

	expected := SamplePoint{
		X: 10, Y: 20, Width: 30, Height: 40,
		XCenter: 25, YCenter: 40,
		XVelocity: 1, YVelocity: 2,
		Timestamp: ts1,
	}

	if sample != expected {
		t.Errorf("expected sample %+v, got %+v", expected, sample)
	}

	if !trajectory.GetStartTime().Equal(ts1) {
		t.Errorf("expected start time %v, got %v",
			ts1, trajectory.GetStartTime())
	}

	if trajectory.GetDuration() != 33*time.Millisecond {
		t.Errorf("expected duration 33ms, got %v", trajectory.GetDuration())
	}

	if trajectory.GetRangeX() != 10 || trajectory.GetRangeY() != 30 {
		t.Errorf("expected range (10, 30), got (%v, %v)",
			trajectory.GetRangeX(), trajectory.GetRangeY())
	}
}

func TestTrajectoryEmpty(t *testing.T) {

	frame := gocv.NewMat()
	defer frame.Close()

	trajectory := NewTrajectory(frame)
	defer trajectory.Close()

	if !trajectory.GetStartTime().IsZero() {
		t.Errorf("expected zero start time, got %v", trajectory.GetStartTime())
	}

	if trajectory.GetDuration() != 0 {
		t.Errorf("expected zero duration, got %v", trajectory.GetDuration())
	}

	if trajectory.GetRangeX() != 0 || trajectory.GetRangeY() != 0 {
		t.Errorf("expected zero ranges, got (%v, %v)",
			trajectory.GetRangeX(), trajectory.GetRangeY())
	}

	if _, err := trajectory.FitCurve(); err == nil {
		t.Errorf("expected an error fitting an empty trajectory")
	}
}

// TestTrajectoryFitCurve samples a known parabola and expects the fit to
// recover its coefficients
func TestTrajectoryFitCurve(t *testing.T) {

	const tolerance = 1e-4

	frame := gocv.NewMat()
	defer frame.Close()

	trajectory := NewTrajectory(frame)
	defer trajectory.Close()

	timestamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// y = 0.01*x*x - 2*x + 300
	for i := 0; i < 20; i++ {
		x := float32(10 * i)
		y := 0.01*x*x - 2*x + 300

		trajectory.Add(NewRect(x-5, y-5, 10, 10), Point{}, timestamp)
		timestamp = timestamp.Add(33 * time.Millisecond)
	}

	curve, err := trajectory.FitCurve()

	if err != nil {
		t.Fatalf("failed to fit curve: %v", err)
	}

	if !almostEqual(curve.A, 0.01, tolerance) ||
		!almostEqual(curve.B, -2, 1e-3) ||
		!almostEqual(curve.C, 300, 0.1) {
		t.Errorf("expected curve (0.01, -2, 300), got (%v, %v, %v)",
			curve.A, curve.B, curve.C)
	}

	if !almostEqual(curve.At(100), 200, 0.5) {
		t.Errorf("expected curve value 200 at x = 100, got %v", curve.At(100))
	}
}

func TestTrajectoryFitCurveDegenerate(t *testing.T) {

	frame := gocv.NewMat()
	defer frame.Close()

	t.Run("too few samples", func(t *testing.T) {
		trajectory := NewTrajectory(frame)
		defer trajectory.Close()

		timestamp := time.Now()

		trajectory.Add(NewRect(0, 0, 10, 10), Point{}, timestamp)
		trajectory.Add(NewRect(0, 10, 10, 10), Point{}, timestamp)

		if _, err := trajectory.FitCurve(); err == nil {
			t.Errorf("expected an error fitting 2 samples")
		}
	})

	t.Run("constant x", func(t *testing.T) {
		trajectory := NewTrajectory(frame)
		defer trajectory.Close()

		timestamp := time.Now()

		// a strictly vertical fall does not constrain a curve of x
		for i := 0; i < 10; i++ {
			trajectory.Add(NewRect(50, float32(10*i), 10, 10), Point{},
				timestamp)
		}

		if _, err := trajectory.FitCurve(); err == nil {
			t.Errorf("expected an error fitting samples with constant x")
		}
	})
}
