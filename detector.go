package falldetect

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/swdee/go-falldetect/bgsegm"
	"github.com/swdee/go-falldetect/postprocess"
	"github.com/swdee/go-falldetect/tracker"
)

// DefaultMaxBlobCount is the highest number of foreground blobs a frame may
// produce before the detector treats it as a global scene change
const DefaultMaxBlobCount = 64

// Config holds the settings of a Detector
type Config struct {
	// Model holds the background segmentation settings, a zero value uses
	// bgsegm.DefaultParams
	Model bgsegm.Params
	// Tracker holds the object tracking settings, a zero value uses
	// tracker.DefaultParams
	Tracker tracker.Params
	// MaxBlobCount is the highest number of foreground blobs a frame may
	// produce before the detector drops all tracking state, a lighting
	// change or camera move floods the segmenter with blobs that would
	// otherwise spawn phantom tracks. Zero uses DefaultMaxBlobCount
	MaxBlobCount int
	// Padding is the number of pixels blob bounding boxes are expanded by
	// on every side, zero uses postprocess.DefaultPadding
	Padding int
}

// DefaultConfig returns a Config with the stock detection pipeline settings
func DefaultConfig() Config {
	return Config{
		Model:        bgsegm.DefaultParams(),
		Tracker:      tracker.DefaultParams(),
		MaxBlobCount: DefaultMaxBlobCount,
		Padding:      postprocess.DefaultPadding,
	}
}

// Detector runs the falling object detection pipeline over a stream of
// video frames. Each frame is segmented against an adaptive background
// model, the foreground blobs are extracted and fed to the tracker, and
// trajectories that end after a long vertical motion are reported through
// the trajectory ended callback
type Detector struct {
	// cfg holds the detector settings
	cfg Config
	// model is the background model, built from the first processed frame
	model *bgsegm.ViBe
	// tracker follows the extracted blobs across frames
	tracker *tracker.SortTracker
	// blobs turns segmentation masks into padded bounding boxes
	blobs *postprocess.BlobExtractor
	// foreground holds the noise filtered segmentation mask of the current
	// frame
	foreground gocv.Mat
	// updateMask holds the opened mask driving the model update pass
	updateMask gocv.Mat
}

// NewDetector returns a Detector. The background model is created lazily
// from the first frame passed to Process, which fixes the frame shape the
// detector accepts
func NewDetector(cfg Config) (*Detector, error) {

	if cfg.Model == (bgsegm.Params{}) {
		cfg.Model = bgsegm.DefaultParams()
	}

	if cfg.Tracker == (tracker.Params{}) {
		cfg.Tracker = tracker.DefaultParams()
	}

	if cfg.MaxBlobCount == 0 {
		cfg.MaxBlobCount = DefaultMaxBlobCount
	}

	if cfg.MaxBlobCount < 0 {
		return nil, fmt.Errorf("max blob count must not be negative, got %d",
			cfg.MaxBlobCount)
	}

	if cfg.Padding == 0 {
		cfg.Padding = postprocess.DefaultPadding
	}

	if cfg.Padding < 0 {
		return nil, fmt.Errorf("padding must not be negative, got %d",
			cfg.Padding)
	}

	return &Detector{
		cfg:        cfg,
		tracker:    tracker.NewSortTracker(cfg.Tracker),
		blobs:      postprocess.NewBlobExtractor(cfg.Padding),
		foreground: gocv.NewMat(),
		updateMask: gocv.NewMat(),
	}, nil
}

// SetTrajectoryEndedFunc sets the callback invoked for every trajectory
// that ends after qualifying as a falling object
func (d *Detector) SetTrajectoryEndedFunc(fn tracker.TrajectoryEndedFunc) {
	d.tracker.SetTrajectoryEndedFunc(fn)
}

// Process runs one frame through the pipeline and returns the blob
// detections handed to the tracker. A frame producing more blobs than
// MaxBlobCount is treated as a global scene change, all tracking state is
// dropped and no detections are returned
func (d *Detector) Process(frame gocv.Mat, timestamp time.Time) ([]tracker.Rect, error) {

	if d.model == nil {
		model, err := bgsegm.NewViBe(frame, d.cfg.Model)

		if err != nil {
			return nil, fmt.Errorf("failed to create background model: %w", err)
		}

		d.model = model
	}

	d.model.Segment(frame, &d.foreground)

	// refresh the model only at pixels the opened mask still labels
	// background
	d.blobs.MakeUpdateMask(d.foreground, &d.updateMask)
	d.model.Update(frame, d.updateMask)

	d.blobs.CleanMask(&d.foreground)

	detections := d.blobs.Extract(d.foreground)

	if len(detections) > d.cfg.MaxBlobCount {
		d.tracker.Clear()
		return nil, nil
	}

	d.tracker.Update(detections, frame, timestamp)

	return detections, nil
}

// ForegroundMask returns the noise filtered segmentation mask of the last
// processed frame. The mask is owned by the detector and overwritten by the
// next Process call
func (d *Detector) ForegroundMask() gocv.Mat {
	return d.foreground
}

// Tracker returns the object tracker driven by the pipeline
func (d *Detector) Tracker() *tracker.SortTracker {
	return d.tracker
}

// Close drops all tracking state and releases the pipeline Mats
func (d *Detector) Close() {
	d.tracker.Clear()
	d.blobs.Close()
	d.foreground.Close()
	d.updateMask.Close()
}
