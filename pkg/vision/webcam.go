package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam is a gocv-backed Source reading from a local video capture device.
// A single Webcam may be sampled by multiple estimators; Sample is
// serialized internally because gocv Mats are not safe for concurrent use.
type Webcam struct {
	cfg Config

	mu     sync.Mutex
	cam    *gocv.VideoCapture
	closed bool
}

// openWebcam opens the configured capture device.
func openWebcam(cfg Config) (*Webcam, error) {
	cam, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", ErrDeviceUnavailable, cfg.DeviceID, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrDeviceUnavailable, cfg.DeviceID)
	}

	return &Webcam{cfg: cfg, cam: cam}, nil
}

// Sample grabs a frame, downscales it and converts it to luma.
func (w *Webcam) Sample(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrSourceClosed
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := w.cam.Read(&img); !ok || img.Empty() {
		return nil, ErrDeviceUnavailable
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(img, &small, image.Pt(w.cfg.Width, w.cfg.Height), 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)

	data := gray.ToBytes()
	luma := make([]float64, len(data))
	for i, b := range data {
		luma[i] = float64(b)
	}

	return &Frame{
		Width:  w.cfg.Width,
		Height: w.cfg.Height,
		Luma:   luma,
	}, nil
}

// Name returns "webcam".
func (w *Webcam) Name() string {
	return "webcam"
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.cam.Close()
}

// Verify Webcam implements Source at compile time.
var _ Source = (*Webcam)(nil)
