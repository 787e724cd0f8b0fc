package inference

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const DefaultInputSize = 128

// Decode reads any registered image format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Format sniffs the image format from the header without decoding pixels.
func Format(data []byte) (string, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("sniff image: %w", err)
	}
	return name, nil
}

func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Preprocess resizes img to size x size with nearest-neighbour sampling and
// lays it out as a [1, size, size, 3] NHWC tensor with RGB values in [0,1].
// Alpha is dropped, not blended: a transparent pixel keeps its stored colour.
func Preprocess(img image.Image, size int) []float32 {
	if size <= 0 {
		size = DefaultInputSize
	}
	resized := resize.Resize(uint(size), uint(size), dropAlpha(img), resize.NearestNeighbor)
	b := resized.Bounds()

	out := make([]float32, size*size*3)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(resized.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*size + x) * 3
			out[i] = float32(c.R) / 255
			out[i+1] = float32(c.G) / 255
			out[i+2] = float32(c.B) / 255
		}
	}
	return out
}

// dropAlpha returns an opaque copy of img holding its straight RGB values.
// The resizer premultiplies, so translucent pixels must be flattened first.
func dropAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}
