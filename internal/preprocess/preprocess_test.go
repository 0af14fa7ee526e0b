package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"reflect"
	"testing"

	"github.com/nfnt/resize"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestFromImageShape(t *testing.T) {
	p := New(256, resize.Bicubic, 0)

	tests := []struct {
		name string
		w, h int
	}{
		{"small square", 100, 100},
		{"large landscape", 4000, 3000},
		{"tall", 30, 700},
		{"single pixel", 1, 1},
		{"exact size", 256, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := p.FromImage(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)))

			want := []int64{1, 256, 256, 3}
			if !reflect.DeepEqual(tensor.Shape, want) {
				t.Errorf("Shape = %v, want %v", tensor.Shape, want)
			}
			if len(tensor.Data) != 256*256*3 {
				t.Errorf("len(Data) = %d, want %d", len(tensor.Data), 256*256*3)
			}
		})
	}
}

func TestFromImageScalesToUnitRange(t *testing.T) {
	p := New(8, resize.Bilinear, 0)

	t.Run("black is zero", func(t *testing.T) {
		tensor := p.FromImage(solid(20, 20, color.RGBA{0, 0, 0, 255}))
		for i, v := range tensor.Data {
			if v != 0 {
				t.Fatalf("Data[%d] = %v, want 0", i, v)
			}
		}
	})

	t.Run("channel order is RGB", func(t *testing.T) {
		tensor := p.FromImage(solid(20, 20, color.RGBA{255, 0, 0, 255}))
		const eps = 0.01
		for i := 0; i < len(tensor.Data); i += Channels {
			r, g, b := tensor.Data[i], tensor.Data[i+1], tensor.Data[i+2]
			if math.Abs(float64(r)-1) > eps || g > eps || b > eps {
				t.Fatalf("pixel %d = (%v, %v, %v), want (1, 0, 0)", i/Channels, r, g, b)
			}
		}
	})

	t.Run("values within [0,1]", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 31, 17))
		for y := 0; y < 17; y++ {
			for x := 0; x < 31; x++ {
				img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 15), uint8((x + y) * 5), 255})
			}
		}
		tensor := p.FromImage(img)
		for i, v := range tensor.Data {
			if v < 0 || v > 1 {
				t.Fatalf("Data[%d] = %v outside [0,1]", i, v)
			}
		}
	})
}

func TestFromBytesDeterministic(t *testing.T) {
	p := New(64, resize.Bicubic, 0)

	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 5), uint8(y * 6), 90, 255})
		}
	}
	data := encodeJPEG(t, img)

	first, err := p.FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}
	second, err := p.FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input bytes produced different tensors")
	}
}

func TestDecode(t *testing.T) {
	p := New(256, resize.Bicubic, 1000)

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    error
	}{
		{"png", encodePNG(t, solid(10, 10, color.White)), "png", nil},
		{"jpeg", encodeJPEG(t, solid(10, 10, color.White)), "jpeg", nil},
		{"empty", nil, "", ErrDecode},
		{"garbage", []byte{0x00, 0x01, 0x02, 0x03}, "", ErrDecode},
		{"text", []byte("this is not an image"), "", ErrDecode},
		{"truncated png", encodePNG(t, solid(10, 10, color.White))[:30], "", ErrDecode},
		{"too many pixels", encodePNG(t, solid(40, 40, color.White)), "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := p.Decode(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				if img != nil {
					t.Error("expected nil image on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %q, want %q", format, tt.wantFormat)
			}
		})
	}
}

func TestFromBytesRejectsCorrupt(t *testing.T) {
	p := New(256, resize.Bicubic, 0)

	tensor, err := p.FromBytes([]byte("GIF89a not really"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("FromBytes() error = %v, want ErrDecode", err)
	}
	if tensor.Data != nil {
		t.Error("expected empty tensor on error")
	}
}

func TestParseInterpolation(t *testing.T) {
	tests := []struct {
		name    string
		want    resize.InterpolationFunction
		wantErr bool
	}{
		{"", resize.Bicubic, false},
		{"bicubic", resize.Bicubic, false},
		{"Lanczos3", resize.Lanczos3, false},
		{"bilinear", resize.Bilinear, false},
		{"nearest", resize.NearestNeighbor, false},
		{"mitchell", resize.MitchellNetravali, false},
		{"sinc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterpolation(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInterpolation(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseInterpolation(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestShapeAndLen(t *testing.T) {
	p := New(256, resize.Bicubic, 0)
	if !reflect.DeepEqual(p.Shape(), []int64{1, 256, 256, 3}) {
		t.Errorf("Shape() = %v", p.Shape())
	}
	if p.Len() != 196608 {
		t.Errorf("Len() = %d, want 196608", p.Len())
	}
}
