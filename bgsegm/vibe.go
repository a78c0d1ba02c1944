// Package bgsegm implements adaptive per pixel background segmentation of
// video frames using the ViBe sample based model
package bgsegm

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// pixel labels written to segmentation masks
const (
	BackgroundLabel uint8 = 0
	ForegroundLabel uint8 = 255
)

// numberOfHistoryImages is the number of fast history images carried in
// addition to the sample pool
const numberOfHistoryImages = 2

// Params holds the tunable settings of a ViBe model
type Params struct {
	// NumberOfSamples is the per pixel sample pool depth
	NumberOfSamples int
	// MatchingThreshold is the per channel L1 distance below which a pixel
	// matches a stored sample
	MatchingThreshold int
	// MinNumCloseSamples is the number of matching samples needed to label
	// a pixel background
	MinNumCloseSamples int
	// UpdateFactor is the inverse per pixel update probability, higher
	// values adapt the model more slowly
	UpdateFactor int
	// Seed seeds the model random generator, zero uses a time based seed
	Seed int64
}

// DefaultParams returns the Params used by the stock falling object
// detection pipeline
func DefaultParams() Params {
	return Params{
		NumberOfSamples:    14,
		MatchingThreshold:  20,
		MinNumCloseSamples: 2,
		UpdateFactor:       5,
	}
}

// ViBe is a per pixel adaptive background model. Every pixel carries two
// fast history images and a pool of color samples, a pixel whose value is
// close to enough stored samples is labeled background. Background labeled
// pixels randomly refresh their own samples and diffuse into a neighbor's
type ViBe struct {
	// params holds the model settings
	params Params
	// height, width and channels fix the frame shape accepted by the model
	height   int
	width    int
	channels int
	// pixelCount is width times height
	pixelCount int
	// historyImages are two full frame fast history images
	historyImages [numberOfHistoryImages][]uint8
	// firstHistoryImage indexes the history image used for the cheap
	// foreground rejection, the two images swap roles after every update
	firstHistoryImage int
	// samples is the per pixel sample pool laid out as
	// (pixel*NumberOfSamples + slot)*channels + channel
	samples []uint8
	// jump holds the column strides of the random update walk
	jump []int32
	// neighbor holds pixel index offsets of one 8 connected neighbor
	neighbor []int32
	// position holds replacement slot indexes over history plus pool
	position []int32
	// rng drives table building, pool noise and walk phases
	rng *rand.Rand
	// initialized is dropped by Clear, the next Segment call refills the
	// model from the frame it receives
	initialized bool
}

// NewViBe initializes and returns a new ViBe model filled from the given
// frame. The model fixes its frame shape from this frame
func NewViBe(frame gocv.Mat, params Params) (*ViBe, error) {

	if frame.Empty() {
		return nil, fmt.Errorf("bgsegm: initial frame is empty")
	}

	height := frame.Rows()
	width := frame.Cols()
	channels := frame.Channels()

	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, fmt.Errorf("bgsegm: invalid frame shape %dx%d with %d channels",
			width, height, channels)
	}

	if frame.ElemSize() != channels {
		return nil, fmt.Errorf("bgsegm: frame must hold 8 bit channels, got type %v",
			frame.Type())
	}

	if params.NumberOfSamples <= 0 || params.MatchingThreshold <= 0 ||
		params.MinNumCloseSamples <= 0 || params.UpdateFactor <= 0 {
		return nil, fmt.Errorf("bgsegm: params must be positive, got %+v", params)
	}

	seed := params.Seed

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	v := &ViBe{
		params:     params,
		height:     height,
		width:      width,
		channels:   channels,
		pixelCount: height * width,
		rng:        rand.New(rand.NewSource(seed)),
	}

	for i := range v.historyImages {
		v.historyImages[i] = make([]uint8, v.pixelCount*channels)
	}

	v.samples = make([]uint8, v.pixelCount*params.NumberOfSamples*channels)

	// the tables cover a full walk across the longer image dimension
	tableSize := 2*width + 1

	if height > width {
		tableSize = 2*height + 1
	}

	v.jump = make([]int32, tableSize)
	v.neighbor = make([]int32, tableSize)
	v.position = make([]int32, tableSize)

	v.buildJumpTable()

	for i := range v.neighbor {
		v.neighbor[i] = int32((v.rng.Intn(3)-1)*width + v.rng.Intn(3) - 1)
	}

	for i := range v.position {
		v.position[i] = int32(v.rng.Intn(numberOfHistoryImages + params.NumberOfSamples))
	}

	v.init(frame)

	return v, nil
}

// buildJumpTable fills the jump table with strides drawn from
// [1, 2*UpdateFactor]. An update factor of one visits every column
func (v *ViBe) buildJumpTable() {

	for i := range v.jump {
		if v.params.UpdateFactor == 1 {
			v.jump[i] = 1
			continue
		}

		v.jump[i] = int32(v.rng.Intn(2*v.params.UpdateFactor) + 1)
	}
}

// init fills the history images and the sample pool from the given frame
func (v *ViBe) init(frame gocv.Mat) {

	if !frame.IsContinuous() {
		frame = frame.Clone()
		defer frame.Close()
	}

	frameData := matData(frame)

	copy(v.historyImages[0], frameData)
	copy(v.historyImages[1], frameData)

	v.firstHistoryImage = 0

	// pool samples start at the frame value perturbed by small noise so a
	// static scene matches the quorum immediately
	for p := 0; p < v.pixelCount; p++ {
		for slot := 0; slot < v.params.NumberOfSamples; slot++ {
			base := (p*v.params.NumberOfSamples + slot) * v.channels

			for c := 0; c < v.channels; c++ {
				value := int(frameData[p*v.channels+c]) + v.rng.Intn(20) - 10

				if value < 0 {
					value = 0
				} else if value > 255 {
					value = 255
				}

				v.samples[base+c] = uint8(value)
			}
		}
	}

	v.initialized = true
}

// Segment classifies every pixel of the frame as background or foreground
// and writes the labels into mask. An empty mask is allocated to the model
// shape, a non empty mask must already match it. A cleared model refills
// itself from the frame before classifying
func (v *ViBe) Segment(frame gocv.Mat, mask *gocv.Mat) {

	v.checkFrame(frame)

	if !v.initialized {
		v.init(frame)
	}

	if mask.Empty() {
		*mask = gocv.NewMatWithSize(v.height, v.width, gocv.MatTypeCV8U)
	} else if mask.Rows() != v.height || mask.Cols() != v.width ||
		mask.Type() != gocv.MatTypeCV8U {
		panic("bgsegm: mask does not match the model shape")
	}

	if !frame.IsContinuous() {
		frame = frame.Clone()
		defer frame.Close()
	}

	frameData := matData(frame)
	maskData := matData(*mask)

	// classification only reads model state, split the rows into bands and
	// classify them in parallel
	numBands := runtime.NumCPU()

	if numBands > v.height {
		numBands = v.height
	}

	rowsPerBand := (v.height + numBands - 1) / numBands

	var wg sync.WaitGroup

	for startRow := 0; startRow < v.height; startRow += rowsPerBand {
		endRow := startRow + rowsPerBand

		if endRow > v.height {
			endRow = v.height
		}

		wg.Add(1)

		go func(startRow, endRow int) {
			defer wg.Done()
			v.classifyRows(frameData, maskData, startRow, endRow)
		}(startRow, endRow)
	}

	wg.Wait()
}

// classifyRows labels the pixels of rows [startRow, endRow)
func (v *ViBe) classifyRows(frameData, maskData []uint8, startRow, endRow int) {

	threshold := v.params.MatchingThreshold * v.channels
	first := v.historyImages[v.firstHistoryImage]
	second := v.historyImages[(v.firstHistoryImage+1)%numberOfHistoryImages]

	for p := startRow * v.width; p < endRow*v.width; p++ {
		base := p * v.channels

		// a pixel far from the freshest history value is foreground, no
		// further comparison needed
		if l1Distance(frameData, base, first, base, v.channels) >= threshold {
			maskData[p] = ForegroundLabel
			continue
		}

		numCloseSamples := 0

		if l1Distance(frameData, base, second, base, v.channels) < threshold {
			numCloseSamples++
		}

		sampleBase := p * v.params.NumberOfSamples * v.channels

		for slot := 0; numCloseSamples < v.params.MinNumCloseSamples &&
			slot < v.params.NumberOfSamples; slot++ {

			if l1Distance(frameData, base, v.samples,
				sampleBase+slot*v.channels, v.channels) < threshold {
				numCloseSamples++
			}
		}

		if numCloseSamples >= v.params.MinNumCloseSamples {
			maskData[p] = BackgroundLabel
		} else {
			maskData[p] = ForegroundLabel
		}
	}
}

// Update refreshes the model from the frame at pixels the update mask
// labels background. Interior pixels also diffuse their value into one 8
// connected neighbor. The two history images swap roles after the pass
func (v *ViBe) Update(frame gocv.Mat, updateMask gocv.Mat) {

	v.checkFrame(frame)

	if updateMask.Rows() != v.height || updateMask.Cols() != v.width ||
		updateMask.Type() != gocv.MatTypeCV8U {
		panic("bgsegm: update mask does not match the model shape")
	}

	// nothing to refresh before the first segmentation
	if !v.initialized {
		return
	}

	if !frame.IsContinuous() {
		frame = frame.Clone()
		defer frame.Close()
	}

	frameData := matData(frame)
	maskData := matData(updateMask)

	// interior rows walk a random column stride, refreshing the model and
	// diffusing into a neighbor at every background pixel visited
	for y := 1; y < v.height-1; y++ {
		shift := v.rng.Intn(v.width)
		x := int(v.jump[shift])

		for x < v.width-1 {
			index := y*v.width + x

			if maskData[index] == BackgroundLabel {
				slot := int(v.position[shift])

				v.writeSampleAt(frameData, index, index, slot)
				v.writeSampleAt(frameData, index, index+int(v.neighbor[shift]), slot)
			}

			shift++
			x += int(v.jump[shift])
		}
	}

	// border rows and columns walk separately with no neighbor diffusion
	v.updateRow(frameData, maskData, 0)
	v.updateRow(frameData, maskData, v.height-1)
	v.updateCol(frameData, maskData, 0)
	v.updateCol(frameData, maskData, v.width-1)

	// swap the history images so fresh matches age into history over two
	// cycles
	v.firstHistoryImage = (v.firstHistoryImage + 1) % numberOfHistoryImages
}

// updateRow refreshes the model along one border row
func (v *ViBe) updateRow(frameData, maskData []uint8, y int) {

	shift := v.rng.Intn(v.width)
	x := int(v.jump[shift])

	for x <= v.width-1 {
		index := y*v.width + x

		if maskData[index] == BackgroundLabel {
			v.writeSampleAt(frameData, index, index, int(v.position[shift]))
		}

		shift++
		x += int(v.jump[shift])
	}
}

// updateCol refreshes the model along one border column
func (v *ViBe) updateCol(frameData, maskData []uint8, x int) {

	shift := v.rng.Intn(v.height)
	y := int(v.jump[shift])

	for y <= v.height-1 {
		index := y*v.width + x

		if maskData[index] == BackgroundLabel {
			v.writeSampleAt(frameData, index, index, int(v.position[shift]))
		}

		shift++
		y += int(v.jump[shift])
	}
}

// writeSampleAt stores the pixel value at srcIndex into the given model
// slot of the pixel at dstIndex. Slots below the history image count select
// a logical history image, the rest select a pool slot
func (v *ViBe) writeSampleAt(frameData []uint8, srcIndex, dstIndex, slot int) {

	srcBase := srcIndex * v.channels

	if slot < numberOfHistoryImages {
		history := v.historyImages[(v.firstHistoryImage+slot)%numberOfHistoryImages]
		dstBase := dstIndex * v.channels

		copy(history[dstBase:dstBase+v.channels], frameData[srcBase:srcBase+v.channels])
		return
	}

	dstBase := (dstIndex*v.params.NumberOfSamples + slot - numberOfHistoryImages) * v.channels

	copy(v.samples[dstBase:dstBase+v.channels], frameData[srcBase:srcBase+v.channels])
}

// SetUpdateFactor changes the update factor and rebuilds the jump table.
// The update factor is the only setting that can change on a live model
func (v *ViBe) SetUpdateFactor(factor int) error {

	if factor <= 0 {
		return fmt.Errorf("bgsegm: update factor must be positive, got %d", factor)
	}

	v.params.UpdateFactor = factor
	v.buildJumpTable()

	return nil
}

// Clear drops the learned model, the next Segment call refills it from the
// frame it receives
func (v *ViBe) Clear() {
	v.initialized = false
}

// GetParams returns the model settings
func (v *ViBe) GetParams() Params {
	return v.params
}

// checkFrame panics unless the frame matches the model shape
func (v *ViBe) checkFrame(frame gocv.Mat) {

	if frame.Rows() != v.height || frame.Cols() != v.width ||
		frame.Channels() != v.channels || frame.ElemSize() != v.channels {
		panic("bgsegm: frame does not match the model shape")
	}
}

// matData returns the raw byte data of the mat
func matData(m gocv.Mat) []uint8 {

	data, err := m.DataPtrUint8()

	if err != nil {
		panic(err)
	}

	return data
}

// l1Distance returns the sum of absolute per channel differences between
// the pixel at aBase in a and the pixel at bBase in b
func l1Distance(a []uint8, aBase int, b []uint8, bBase int, channels int) int {

	dist := 0

	for c := 0; c < channels; c++ {
		d := int(a[aBase+c]) - int(b[bBase+c])

		if d < 0 {
			d = -d
		}

		dist += d
	}

	return dist
}
