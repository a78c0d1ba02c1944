package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/swdee/go-falldetect/tracker"
)

// boxLabel records the details for rendering a text label above a box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// DetectionBoxes renders the bounding box around each detected blob
func DetectionBoxes(img *gocv.Mat, detections []tracker.Rect,
	clr color.RGBA, lineThickness int) {

	for _, det := range detections {
		rect := image.Rect(int(det.X()), int(det.Y()),
			int(det.BRX()), int(det.BRY()))

		gocv.Rectangle(img, rect, clr, lineThickness)
	}
}

// TrackBoxes renders the bounding box and tag label of each active track,
// boxes are colored by track tag
func TrackBoxes(img *gocv.Mat, tracks []tracker.ActiveTrack, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(tracks))

	for _, track := range tracks {

		boxLeft := int(track.Rect.X())
		boxTop := int(track.Rect.Y())
		boxRight := int(track.Rect.BRX())
		boxBottom := int(track.Rect.BRY())

		useClr := TagColor(track.Tag)

		// draw rectangle around tracked object
		rect := image.Rect(boxLeft, boxTop, boxRight, boxBottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("%d", track.Tag)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// center the label over the top edge of the box
		centerX := (boxLeft + boxRight) / 2

		labelPosition := image.Pt(centerX-textSize.X/2, boxTop-font.BottomPad)

		// create box for placing text on
		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			boxTop-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, boxTop)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw all precalculated box labels so they are the top most layer on
	// the image
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
