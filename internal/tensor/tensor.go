// Package tensor converts decoded raster images into the normalized input
// tensors the inference sessions expect.
package tensor

import (
	"image"

	"github.com/up-zero/gotool/imageutil"
)

// Tensor is a batched float32 tensor in NCHW layout.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// FromImage stretches img to exactly width x height (no letterboxing),
// scales every channel byte into [0,1] and lays the result out planar
// channel-major with a leading batch dimension of 1. Pure: identical input
// yields bit-identical output.
func FromImage(img image.Image, width, height int) Tensor {
	resized := imageutil.Resize(img, width, height)
	area := width * height
	data := make([]float32, 3*area)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*area+y*width+x] = float32(r>>8) / 255.0
			data[1*area+y*width+x] = float32(g>>8) / 255.0
			data[2*area+y*width+x] = float32(b>>8) / 255.0
		}
	}

	return Tensor{
		Data:  data,
		Shape: []int64{1, 3, int64(height), int64(width)},
	}
}
