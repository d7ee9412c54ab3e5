// Package vision provides shared frame sampling for the visual estimators.
//
// Every visual estimator (presence, posture, blink) works on the same
// downscaled grayscale buffer rather than the native camera stream. A Source
// grabs a frame, scales it to a small fixed resolution and converts it to a
// per-pixel luma value in [0,255]. All estimator math operates on this buffer.
package vision

import "math"

// Frame is a downscaled grayscale snapshot of the capture device.
// Luma is stored row-major, one value per pixel in [0,255].
type Frame struct {
	Width  int
	Height int
	Luma   []float64
}

// At returns the luma value at pixel (x, y).
// Out-of-range coordinates return 0.
func (f *Frame) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Luma[y*f.Width+x]
}

// Rect is a normalized region of a frame. All coordinates are in [0,1]
// relative to the frame dimensions, with (0,0) at the top-left corner.
type Rect struct {
	X0 float64 `yaml:"x0" json:"x0"`
	Y0 float64 `yaml:"y0" json:"y0"`
	X1 float64 `yaml:"x1" json:"x1"`
	Y1 float64 `yaml:"y1" json:"y1"`
}

// bounds converts the normalized rect to pixel bounds within the frame.
func (f *Frame) bounds(r Rect) (x0, y0, x1, y1 int) {
	x0 = int(r.X0 * float64(f.Width))
	y0 = int(r.Y0 * float64(f.Height))
	x1 = int(r.X1 * float64(f.Width))
	y1 = int(r.Y1 * float64(f.Height))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > f.Width {
		x1 = f.Width
	}
	if y1 > f.Height {
		y1 = f.Height
	}
	return x0, y0, x1, y1
}

// RegionMean returns the average luma over the given region.
// An empty region returns 0.
func (f *Frame) RegionMean(r Rect) float64 {
	x0, y0, x1, y1 := f.bounds(r)
	count := 0
	sum := 0.0
	for y := y0; y < y1; y++ {
		row := y * f.Width
		for x := x0; x < x1; x++ {
			sum += f.Luma[row+x]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// RegionStdDev returns the luma standard deviation over the given region.
// High values indicate textured content (facial features); low values
// indicate flat content (wall, empty chair).
func (f *Frame) RegionStdDev(r Rect) float64 {
	x0, y0, x1, y1 := f.bounds(r)
	count := 0
	sum := 0.0
	sumSq := 0.0
	for y := y0; y < y1; y++ {
		row := y * f.Width
		for x := x0; x < x1; x++ {
			v := f.Luma[row+x]
			sum += v
			sumSq += v * v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Centroid computes the brightness-weighted centroid over the full frame.
// Pixel weight is luma scaled by (1 - 0.5*|nx - 0.5|), which de-emphasizes
// the extreme left/right columns so background framing does not dominate.
// Returns the centroid in normalized [0,1] coordinates and the total weight.
// Callers should skip frames whose total weight is below a usable minimum.
func (f *Frame) Centroid() (cx, cy, totalWeight float64) {
	if f.Width == 0 || f.Height == 0 {
		return 0, 0, 0
	}
	var sumX, sumY, total float64
	for y := 0; y < f.Height; y++ {
		row := y * f.Width
		ny := float64(y) / float64(f.Height)
		for x := 0; x < f.Width; x++ {
			nx := float64(x) / float64(f.Width)
			w := f.Luma[row+x] * (1 - 0.5*math.Abs(nx-0.5))
			sumX += w * nx
			sumY += w * ny
			total += w
		}
	}
	if total <= 0 {
		return 0, 0, 0
	}
	return sumX / total, sumY / total, total
}
