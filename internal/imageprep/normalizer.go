// Package imageprep turns arbitrary image bytes into the fixed-shape float
// tensor consumed by the embedding model.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imgsearch/internal/domain"
)

const (
	DefaultMaxSide = 1024
	DefaultWidth   = 224
	DefaultHeight  = 224
)

// Config controls the guard bound and the model input size.
type Config struct {
	MaxSide int
	Width   int
	Height  int
}

// Normalizer implements domain.ImageNormalizer. It holds no mutable state and
// may be shared between goroutines.
type Normalizer struct {
	maxSide int
	width   int
	height  int
	kernel  draw.Interpolator
}

// New creates a Normalizer, filling zero config values with defaults.
func New(cfg Config) *Normalizer {
	if cfg.MaxSide <= 0 {
		cfg.MaxSide = DefaultMaxSide
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	return &Normalizer{maxSide: cfg.MaxSide, width: cfg.Width, height: cfg.Height, kernel: draw.CatmullRom}
}

// Normalize decodes raw, bounds its size, forces RGB, resizes to the model
// input size and returns a [1, H, W, 3] tensor with values in [0, 1].
func (n *Normalizer) Normalize(raw []byte) (domain.Tensor, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.Tensor{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	rgb := n.toRGB(n.thumbnail(src))

	dst := image.NewRGBA(image.Rect(0, 0, n.width, n.height))
	n.kernel.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)

	data := make([]float32, 0, n.width*n.height*3)
	for y := 0; y < n.height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+n.width*4]
		for x := 0; x < n.width; x++ {
			p := row[x*4 : x*4+3]
			data = append(data, float32(p[0])/255, float32(p[1])/255, float32(p[2])/255)
		}
	}
	return domain.Tensor{Shape: []int{1, n.height, n.width, 3}, Data: data}, nil
}

// thumbnail shrinks src so that neither side exceeds maxSide, keeping the
// aspect ratio. Images already within bounds are returned unchanged.
func (n *Normalizer) thumbnail(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= n.maxSide && h <= n.maxSide {
		return src
	}
	nw, nh := n.maxSide, n.maxSide
	if w > h {
		nh = max(1, int(float64(h)*float64(n.maxSide)/float64(w)+0.5))
	} else {
		nw = max(1, int(float64(w)*float64(n.maxSide)/float64(h)+0.5))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	n.kernel.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// toRGB copies img into an opaque image. Alpha is discarded rather than
// composited, and single-channel sources are expanded to three channels.
func (n *Normalizer) toRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}
