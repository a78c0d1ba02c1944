package main

import (
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/swdee/go-falldetect"
	"github.com/swdee/go-falldetect/preprocess"
	"github.com/swdee/go-falldetect/render"
	"github.com/swdee/go-falldetect/tracker"
	"gocv.io/x/gocv"
)

// thumbWidth is the pixel width of event thumbnail images
const thumbWidth = 240

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	vidFile := flag.String("file", "../data/fall.mp4",
		"Video file or RTSP stream URL to watch")
	outputDir := flag.String("output", "/tmp",
		"Directory to write fall event images to")
	rotate := flag.Int("rotate", 0,
		"Rotate video frames clockwise by 0, 90, 180, or 270 degrees")
	width := flag.Int("width", 0,
		"Working frame width to scale to, 0 keeps the source size")
	height := flag.Int("height", 0,
		"Working frame height to scale to, 0 keeps the source size")
	maxBlobs := flag.Int("maxblobs", falldetect.DefaultMaxBlobCount,
		"Maximum foreground blobs per frame before tracking state is dropped")
	interval := flag.Int("interval", 100,
		"Number of frames between timing log lines")
	cpu := flag.String("cpu", "",
		"Pin the process to RK3588 cores, one of fast, slow, or all")

	flag.Parse()

	if *cpu != "" {
		if err := pinCores(*cpu); err != nil {
			log.Fatal("Error setting CPU affinity: ", err)
		}
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal("Error creating output directory: ", err)
	}

	transformer, err := preprocess.NewTransformer(*rotate, *width, *height)

	if err != nil {
		log.Fatal("Error creating transformer: ", err)
	}
	defer transformer.Close()

	cfg := falldetect.DefaultConfig()
	cfg.MaxBlobCount = *maxBlobs

	det, err := falldetect.NewDetector(cfg)

	if err != nil {
		log.Fatal("Error creating detector: ", err)
	}
	defer det.Close()

	det.SetTrajectoryEndedFunc(saveEvent(*outputDir))

	video, err := gocv.OpenVideoCapture(*vidFile)

	if err != nil {
		log.Fatalf("Error opening video source %s: %v", *vidFile, err)
	}
	defer video.Close()

	// frame timestamps follow the source frame rate when the source
	// reports one, otherwise the wall clock is used
	var frameTime time.Duration

	if fps := video.Get(gocv.VideoCaptureFPS); fps > 0 {
		frameTime = time.Duration(float64(time.Second) / fps)
	}

	img := gocv.NewMat()
	defer img.Close()

	working := gocv.NewMat()
	defer working.Close()

	start := time.Now()
	frameNum := 0

	var busy time.Duration

	for {
		if ok := video.Read(&img); !ok {
			log.Printf("Stream ended after %d frames", frameNum)
			break
		}

		if img.Empty() {
			continue
		}

		timestamp := time.Now()

		if frameTime > 0 {
			timestamp = start.Add(time.Duration(frameNum) * frameTime)
		}

		frameStart := time.Now()

		transformer.Transform(img, &working)

		detections, err := det.Process(working, timestamp)

		if err != nil {
			log.Fatal("Error processing frame: ", err)
		}

		busy += time.Since(frameStart)
		frameNum++

		if frameNum%*interval == 0 {
			log.Printf("Frame %d: blobs=%d tracks=%d trajectories=%d avg=%.2fms",
				frameNum, len(detections), det.Tracker().GetNumTracks(),
				det.Tracker().GetNumTrajectories(),
				float64(busy.Microseconds())/1000/float64(*interval))

			busy = 0
		}
	}
}

// pinCores pins the process to the RK3588 core set named by kind
func pinCores(kind string) error {

	coreTypes := map[string]falldetect.CoreType{
		"fast": falldetect.FastCores,
		"slow": falldetect.SlowCores,
		"all":  falldetect.AllCores,
	}

	ct, ok := coreTypes[kind]

	if !ok {
		return fmt.Errorf("unknown core set: %s", kind)
	}

	return falldetect.SetCPUAffinityByPlatform("rk3588", ct)
}

// saveEvent returns the trajectory ended callback that renders each fall
// event and writes the annotated image plus a thumbnail to the output
// directory
func saveEvent(outputDir string) tracker.TrajectoryEndedFunc {

	return func(tag int, trajectory *tracker.Trajectory) {

		img, err := render.Trajectory(trajectory)

		if err != nil {
			log.Printf("Error rendering trajectory %d: %v", tag, err)
			return
		}
		defer img.Close()

		name := fmt.Sprintf("fall_%d_%d.jpg", tag, time.Now().UnixMilli())
		eventFile := filepath.Join(outputDir, name)

		if ok := gocv.IMWrite(eventFile, img); !ok {
			log.Printf("Error writing event image to: %s", eventFile)
			return
		}

		log.Printf("Fall detected: tag=%d samples=%d duration=%s distance=%.0fpx saved=%s",
			tag, trajectory.GetNumSamples(), trajectory.GetDuration(),
			trajectory.GetRangeY(), eventFile)

		thumb, err := render.Thumbnail(img, thumbWidth)

		if err != nil {
			log.Printf("Error scaling thumbnail: %v", err)
			return
		}

		thumbFile := strings.TrimSuffix(eventFile, ".jpg") + "_thumb.jpg"

		if err := writeJPG(thumbFile, thumb); err != nil {
			log.Printf("Error writing thumbnail to %s: %v", thumbFile, err)
		}
	}
}

// writeJPG encodes the image as JPEG and writes it to file
func writeJPG(file string, img image.Image) error {

	f, err := os.Create(file)

	if err != nil {
		return err
	}
	defer f.Close()

	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
