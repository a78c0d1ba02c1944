package preprocess

import (
	"testing"

	"gocv.io/x/gocv"
)

// markerFrame returns a 4 row by 6 column frame holding a single bright
// pixel at row 0, column 1
func markerFrame() gocv.Mat {

	img := gocv.Zeros(4, 6, gocv.MatTypeCV8UC1)
	img.SetUCharAt(0, 1, 200)

	return img
}

func TestTransformerRotate(t *testing.T) {

	tests := []struct {
		rotation  int
		rows      int
		cols      int
		markerRow int
		markerCol int
	}{
		{0, 4, 6, 0, 1},
		{90, 6, 4, 1, 3},
		{180, 4, 6, 3, 4},
		{270, 6, 4, 4, 0},
	}

	for _, tc := range tests {
		img := markerFrame()
		out := gocv.NewMat()

		transformer, err := NewTransformer(tc.rotation, 0, 0)

		if err != nil {
			t.Fatalf("failed to create transformer: %v", err)
		}

		transformer.Transform(img, &out)

		if out.Rows() != tc.rows || out.Cols() != tc.cols {
			t.Errorf("rotation %d: expected size %dx%d, got %dx%d",
				tc.rotation, tc.cols, tc.rows, out.Cols(), out.Rows())
		}

		if got := out.GetUCharAt(tc.markerRow, tc.markerCol); got != 200 {
			t.Errorf("rotation %d: expected marker at (%d, %d), got value %d",
				tc.rotation, tc.markerRow, tc.markerCol, got)
		}

		img.Close()
		out.Close()
		transformer.Close()
	}
}

func TestTransformerResize(t *testing.T) {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0),
		8, 8, gocv.MatTypeCV8UC1)
	defer img.Close()

	out := gocv.NewMat()
	defer out.Close()

	transformer, err := NewTransformer(0, 4, 4)

	if err != nil {
		t.Fatalf("failed to create transformer: %v", err)
	}
	defer transformer.Close()

	transformer.Transform(img, &out)

	if out.Rows() != 4 || out.Cols() != 4 {
		t.Fatalf("expected size 4x4, got %dx%d", out.Cols(), out.Rows())
	}

	if got := out.GetUCharAt(2, 2); got != 100 {
		t.Errorf("expected uniform value 100 after scaling, got %d", got)
	}
}

func TestTransformerRotateAndResize(t *testing.T) {

	img := markerFrame()
	defer img.Close()

	out := gocv.NewMat()
	defer out.Close()

	transformer, err := NewTransformer(90, 2, 3)

	if err != nil {
		t.Fatalf("failed to create transformer: %v", err)
	}
	defer transformer.Close()

	transformer.Transform(img, &out)

	if out.Rows() != 3 || out.Cols() != 2 {
		t.Errorf("expected size 2x3, got %dx%d", out.Cols(), out.Rows())
	}
}

func TestTransformerPassThrough(t *testing.T) {

	img := markerFrame()
	defer img.Close()

	out := gocv.NewMat()
	defer out.Close()

	transformer, err := NewTransformer(0, 0, 0)

	if err != nil {
		t.Fatalf("failed to create transformer: %v", err)
	}
	defer transformer.Close()

	transformer.Transform(img, &out)

	if out.Rows() != 4 || out.Cols() != 6 {
		t.Fatalf("expected size 6x4, got %dx%d", out.Cols(), out.Rows())
	}

	// the output is a copy, writes to it must not reach the source
	out.SetUCharAt(0, 1, 9)

	if got := img.GetUCharAt(0, 1); got != 200 {
		t.Errorf("expected source pixel unchanged, got %d", got)
	}
}

func TestTransformerValidation(t *testing.T) {

	tests := []struct {
		name     string
		rotation int
		width    int
		height   int
	}{
		{"bad rotation", 45, 0, 0},
		{"negative size", 0, -1, 10},
		{"partial size", 0, 640, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTransformer(tc.rotation, tc.width, tc.height); err == nil {
				t.Errorf("expected an error for rotation %d size %dx%d",
					tc.rotation, tc.width, tc.height)
			}
		})
	}
}
