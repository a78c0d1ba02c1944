package postprocess

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/swdee/go-falldetect/tracker"
)

// DefaultPadding is the number of pixels blob bounding boxes are expanded
// by on every side
const DefaultPadding = 6

// BlobExtractor turns foreground segmentation masks into padded bounding
// boxes using morphological filtering and connected component labeling
type BlobExtractor struct {
	// padding is the number of pixels added to every side of a blob box
	padding int
	// openElement is the 3x3 structuring element used to strip single pixel
	// noise from masks
	openElement gocv.Mat
	// closeElement is the 5x5 structuring element used to bridge small gaps
	// inside foreground regions
	closeElement gocv.Mat
	// labels, stats, and centroids are connected component scratch Mats
	// reused across frames
	labels    gocv.Mat
	stats     gocv.Mat
	centroids gocv.Mat
}

// NewBlobExtractor returns a BlobExtractor that expands each blob bounding
// box by the given padding on all sides
func NewBlobExtractor(padding int) *BlobExtractor {
	return &BlobExtractor{
		padding:      padding,
		openElement:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		closeElement: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5)),
		labels:       gocv.NewMat(),
		stats:        gocv.NewMat(),
		centroids:    gocv.NewMat(),
	}
}

// MakeUpdateMask writes an opened copy of the segmentation mask into dst.
// Opening strips the single pixel noise speckle so it does not poison the
// background model during its update pass
func (b *BlobExtractor) MakeUpdateMask(src gocv.Mat, dst *gocv.Mat) {
	gocv.MorphologyEx(src, dst, gocv.MorphOpen, b.openElement)
}

// CleanMask filters the segmentation mask in place, opening to remove noise
// speckle then closing to fill small holes inside foreground regions
func (b *BlobExtractor) CleanMask(mask *gocv.Mat) {
	gocv.MorphologyEx(*mask, mask, gocv.MorphOpen, b.openElement)
	gocv.MorphologyEx(*mask, mask, gocv.MorphClose, b.closeElement)
}

// Extract returns the padded bounding box of every foreground blob in the
// mask. Boxes are not clamped to the mask edges so padded boxes may extend
// outside the frame
func (b *BlobExtractor) Extract(mask gocv.Mat) []tracker.Rect {

	numLabels := gocv.ConnectedComponentsWithStats(mask, &b.labels, &b.stats,
		&b.centroids)

	blobs := make([]tracker.Rect, 0, numLabels-1)

	// label 0 is the background component
	for label := 1; label < numLabels; label++ {
		x := b.stats.GetIntAt(label, int(gocv.CC_STAT_LEFT))
		y := b.stats.GetIntAt(label, int(gocv.CC_STAT_TOP))
		width := b.stats.GetIntAt(label, int(gocv.CC_STAT_WIDTH))
		height := b.stats.GetIntAt(label, int(gocv.CC_STAT_HEIGHT))

		blobs = append(blobs, tracker.NewRect(
			float32(int(x)-b.padding),
			float32(int(y)-b.padding),
			float32(int(width)+2*b.padding),
			float32(int(height)+2*b.padding),
		))
	}

	return blobs
}

// Close releases the structuring elements and scratch Mats
func (b *BlobExtractor) Close() {
	b.openElement.Close()
	b.closeElement.Close()
	b.labels.Close()
	b.stats.Close()
	b.centroids.Close()
}
