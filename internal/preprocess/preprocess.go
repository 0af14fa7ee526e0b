// Package preprocess turns uploaded leaf photos into model input tensors.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
)

const Channels = 3

var (
	ErrDecode   = errors.New("image could not be decoded")
	ErrTooLarge = errors.New("image dimensions exceed limit")
)

// Tensor is a single NHWC float32 image batch of size 1.
type Tensor struct {
	Shape []int64
	Data  []float32
}

type Preprocessor struct {
	size      int
	interp    resize.InterpolationFunction
	maxPixels int
}

// New returns a Preprocessor that stretches images to size×size.
// maxPixels <= 0 disables the dimension check.
func New(size int, interp resize.InterpolationFunction, maxPixels int) *Preprocessor {
	return &Preprocessor{
		size:      size,
		interp:    interp,
		maxPixels: maxPixels,
	}
}

// Len is the number of float32 values in a produced tensor.
func (p *Preprocessor) Len() int {
	return p.size * p.size * Channels
}

// Shape is the tensor shape the model is fed.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, int64(p.size), int64(p.size), Channels}
}

// Decode reads a JPEG or PNG image.
func (p *Preprocessor) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if p.maxPixels > 0 && cfg.Width*cfg.Height > p.maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// FromImage resizes img and scales each channel from [0,255] to [0,1].
// Alpha is discarded; colour values are premultiplied so translucent
// pixels end up composited over black.
func (p *Preprocessor) FromImage(img image.Image) Tensor {
	target := uint(p.size)
	resized := resize.Resize(target, target, img, p.interp)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, height*width*Channels)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			data[i] = float32(r) / 65535.0
			data[i+1] = float32(g) / 65535.0
			data[i+2] = float32(b) / 65535.0
			i += Channels
		}
	}

	return Tensor{
		Shape: []int64{1, int64(height), int64(width), Channels},
		Data:  data,
	}
}

// FromBytes decodes and preprocesses an encoded image.
func (p *Preprocessor) FromBytes(data []byte) (Tensor, error) {
	img, _, err := p.Decode(data)
	if err != nil {
		return Tensor{}, err
	}
	return p.FromImage(img), nil
}

// ParseInterpolation maps a config name to a resampling kernel.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest", "nearest_neighbor":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "", "bicubic":
		return resize.Bicubic, nil
	case "mitchell", "mitchell_netravali":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3", "lanczos":
		return resize.Lanczos3, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", name)
	}
}
