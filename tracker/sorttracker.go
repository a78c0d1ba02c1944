package tracker

import (
	"sort"
	"time"

	"gocv.io/x/gocv"
)

// predictionAcceleration is the control input applied to every track
// prediction, a falling object keeps gaining downward velocity between
// observations
var predictionAcceleration = Point{X: 0.05, Y: 0.7}

// TrajectoryEndedFunc is invoked when an ended trajectory passes falling
// object validation. The trajectory and its first frame are only valid for
// the duration of the call
type TrajectoryEndedFunc func(tag int, trajectory *Trajectory)

// Params holds the tunable thresholds of a SortTracker
type Params struct {
	// MaxBBoxAge is the number of cycles a track may go unmatched before
	// it is removed
	MaxBBoxAge int
	// MinBBoxHitStreak is the run of consecutive successful updates a
	// track needs before its motion is recorded into a trajectory
	MinBBoxHitStreak int
	// MaxTrajectoryAge is the number of cycles a trajectory may go without
	// a new sample before it ends
	MaxTrajectoryAge int
	// MinTrajectoryNumSamples is the sample count an ended trajectory
	// needs to qualify as a falling object
	MinTrajectoryNumSamples int
	// MinTrajectoryFallingDistance is the vertical displacement in pixels
	// an ended trajectory needs to qualify as a falling object
	MinTrajectoryFallingDistance float32
	// IoUThreshold is the minimum IoU between a predicted and a detected
	// box for the pair to count as a match
	IoUThreshold float32
}

// DefaultParams returns the Params used by the stock falling object
// detection pipeline
func DefaultParams() Params {
	return Params{
		MaxBBoxAge:                   3,
		MinBBoxHitStreak:             3,
		MaxTrajectoryAge:             15,
		MinTrajectoryNumSamples:      16,
		MinTrajectoryFallingDistance: 128,
		IoUThreshold:                 0.25,
	}
}

// ActiveTrack is a snapshot of one live track
type ActiveTrack struct {
	// Tag is the unique track identifier
	Tag int
	// Rect is the bounding box of the current state estimate
	Rect Rect
	// Velocity is the estimated velocity of the box center
	Velocity Point
	// HitStreak is the current run of consecutive successful updates
	HitStreak int
}

// prediction pairs a track tag with its predicted box for one cycle
type prediction struct {
	tag  int
	rect Rect
}

// SortTracker tracks multiple moving objects across frames by matching
// detected boxes to Kalman filter predictions, and records the motion of
// persistent tracks into trajectories
type SortTracker struct {
	// params holds the tracker thresholds
	params Params
	// trajectoryEnded is invoked for ended trajectories that pass falling
	// object validation
	trajectoryEnded TrajectoryEndedFunc
	// tracks maps tags to live tracks
	tracks map[int]*Track
	// trajectories maps tags to trajectories of qualified tracks
	trajectories map[int]*Trajectory
	// lapSolver matches predicted boxes to detected boxes
	lapSolver *LAPSolver
	// predictions is a reused buffer of per-cycle track predictions
	predictions []prediction
	// tagCount issues unique incrementing track tags
	tagCount int
	// frameCount counts processed frames
	frameCount int
}

// NewSortTracker initializes and returns a new SortTracker with the given
// Params
func NewSortTracker(params Params) *SortTracker {
	return &SortTracker{
		params:       params,
		tracks:       make(map[int]*Track),
		trajectories: make(map[int]*Trajectory),
		lapSolver:    NewLAPSolver(),
	}
}

// SetTrajectoryEndedFunc sets the function invoked when an ended trajectory
// passes falling object validation
func (st *SortTracker) SetTrajectoryEndedFunc(fn TrajectoryEndedFunc) {
	st.trajectoryEnded = fn
}

// Update advances the tracker by one cycle with the boxes detected on the
// given frame. A zero timestamp is replaced with the current time
func (st *SortTracker) Update(detections []Rect, frame gocv.Mat,
	timestamp time.Time) {

	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	st.updateTracks(detections)
	st.updateTrajectories(frame, timestamp)
	st.frameCount++
}

// updateTracks matches the detected boxes to track predictions, updates the
// matched tracks, removes expired ones, and starts new tracks for unmatched
// detections
func (st *SortTracker) updateTracks(detections []Rect) {

	// no tracks yet, every detection starts one
	if len(st.tracks) == 0 {
		for _, box := range detections {
			tag := st.getUnusedTag()
			st.tracks[tag] = NewTrack(tag, box)
		}

		return
	}

	// predict every track one step ahead, in tag order so matching stays
	// deterministic
	st.predictions = st.predictions[:0]

	for _, tag := range st.sortedTrackTags() {
		st.predictions = append(st.predictions, prediction{
			tag:  tag,
			rect: st.tracks[tag].Predict(predictionAcceleration),
		})
	}

	// match predictions to detections on maximum total IoU
	iou := st.getIoU(st.predictions, detections)

	matches, matchesReversed, _ := st.lapSolver.Solve(iou, true)

	for i, j := range matches {
		tag := st.predictions[i].tag
		track := st.tracks[tag]

		if j != -1 {
			if iou[i][j] > st.params.IoUThreshold {
				track.Update(detections[j])
				continue
			}

			// an assignment with too little overlap is voided, the
			// detection is treated as unmatched
			matchesReversed[j] = -1
		}

		if track.GetAge() > st.params.MaxBBoxAge {
			delete(st.tracks, tag)

			// force the trajectory of a removed track to end on this cycle
			if trajectory, ok := st.trajectories[tag]; ok {
				trajectory.IncrementAge(st.params.MaxTrajectoryAge + 1)
			}
		}
	}

	// unmatched detections start new tracks
	for j, i := range matchesReversed {
		if i == -1 {
			tag := st.getUnusedTag()
			st.tracks[tag] = NewTrack(tag, detections[j])
		}
	}
}

// updateTrajectories records a sample for every track with a qualifying hit
// streak and ends the trajectories that have gone too long without one
func (st *SortTracker) updateTrajectories(frame gocv.Mat,
	timestamp time.Time) {

	for _, tag := range st.sortedTrackTags() {
		track := st.tracks[tag]

		if track.GetHitStreak() < st.params.MinBBoxHitStreak {
			continue
		}

		trajectory, ok := st.trajectories[tag]

		if !ok {
			trajectory = NewTrajectory(frame)
			st.trajectories[tag] = trajectory
		}

		trajectory.Add(track.GetRect(), track.GetVelocity(), timestamp)
	}

	for _, tag := range st.sortedTrajectoryTags() {
		trajectory := st.trajectories[tag]

		if trajectory.GetAge() <= st.params.MaxTrajectoryAge {
			trajectory.IncrementAge(1)
			continue
		}

		if st.isFallingObjectTrajectory(trajectory) && st.trajectoryEnded != nil {
			st.trajectoryEnded(tag, trajectory)
		}

		delete(st.trajectories, tag)
		trajectory.Close()
	}
}

// isFallingObjectTrajectory reports whether the trajectory has recorded
// enough samples and enough vertical displacement to qualify as a falling
// object
func (st *SortTracker) isFallingObjectTrajectory(trajectory *Trajectory) bool {

	if trajectory.GetNumSamples() < st.params.MinTrajectoryNumSamples {
		return false
	}

	if trajectory.GetRangeY() < st.params.MinTrajectoryFallingDistance {
		return false
	}

	return true
}

// getIoU returns the IoU between every prediction and detection pair
func (st *SortTracker) getIoU(predictions []prediction,
	detections []Rect) [][]float32 {

	iou := make([][]float32, len(predictions))

	for i, pred := range predictions {
		iou[i] = make([]float32, len(detections))

		for j, det := range detections {
			iou[i][j] = pred.rect.CalcIoU(det)
		}
	}

	return iou
}

// GetActiveTracks returns a snapshot of every live track in tag order
func (st *SortTracker) GetActiveTracks() []ActiveTrack {

	tracks := make([]ActiveTrack, 0, len(st.tracks))

	for _, tag := range st.sortedTrackTags() {
		track := st.tracks[tag]

		tracks = append(tracks, ActiveTrack{
			Tag:       tag,
			Rect:      track.GetRect(),
			Velocity:  track.GetVelocity(),
			HitStreak: track.GetHitStreak(),
		})
	}

	return tracks
}

// GetNumTracks returns the number of live tracks
func (st *SortTracker) GetNumTracks() int {
	return len(st.tracks)
}

// GetNumTrajectories returns the number of live trajectories
func (st *SortTracker) GetNumTrajectories() int {
	return len(st.trajectories)
}

// GetFrameCount returns the number of processed frames
func (st *SortTracker) GetFrameCount() int {
	return st.frameCount
}

// Clear discards every track and trajectory without reporting any of them.
// Track tags keep incrementing, a tag is never reused
func (st *SortTracker) Clear() {

	for _, trajectory := range st.trajectories {
		trajectory.Close()
	}

	st.tracks = make(map[int]*Track)
	st.trajectories = make(map[int]*Trajectory)
}

// getUnusedTag returns the next unused track tag
func (st *SortTracker) getUnusedTag() int {

	tag := st.tagCount
	st.tagCount++

	return tag
}

// sortedTrackTags returns the live track tags in ascending order
func (st *SortTracker) sortedTrackTags() []int {

	tags := make([]int, 0, len(st.tracks))

	for tag := range st.tracks {
		tags = append(tags, tag)
	}

	sort.Ints(tags)

	return tags
}

// sortedTrajectoryTags returns the live trajectory tags in ascending order
func (st *SortTracker) sortedTrajectoryTags() []int {

	tags := make([]int, 0, len(st.trajectories))

	for tag := range st.trajectories {
		tags = append(tags, tag)
	}

	sort.Ints(tags)

	return tags
}
