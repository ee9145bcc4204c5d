// Package imaging turns image files into device bitmaps: decode, rotate,
// scale to the screen, convert to Gray8, optionally invert.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/roach88/sheetsync/internal/content"
)

// Rotation is a clockwise quarter turn count.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// Options controls Prepare.
type Options struct {
	Width, Height uint32
	Rotate        Rotation
	Invert        bool
}

// Load decodes the image at path and prepares it.
func Load(path string, opts Options) (content.RawBitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return content.RawBitmap{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return content.RawBitmap{}, fmt.Errorf("%s: %w", path, err)
	}
	return Prepare(img, opts)
}

// Decode reads PNG, JPEG, GIF, BMP, TIFF or WebP.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Prepare converts img to a Gray8 bitmap of exactly Width x Height. Aspect
// ratio is not preserved.
func Prepare(img image.Image, opts Options) (content.RawBitmap, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return content.RawBitmap{}, fmt.Errorf("prepare image: target %dx%d is empty", opts.Width, opts.Height)
	}
	if opts.Rotate < Rotate0 || opts.Rotate > Rotate270 {
		return content.RawBitmap{}, fmt.Errorf("prepare image: unknown rotation %d", opts.Rotate)
	}

	rotated := Rotate(toGray(img), opts.Rotate)

	dst := image.NewGray(image.Rect(0, 0, int(opts.Width), int(opts.Height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), rotated, rotated.Bounds(), xdraw.Src, nil)

	if opts.Invert {
		for i, p := range dst.Pix {
			dst.Pix[i] = 255 - p
		}
	}
	return content.RawBitmap{
		Format: content.FormatGray8,
		Order:  content.LittleEndian,
		Width:  opts.Width,
		Height: opts.Height,
		Pixels: dst.Pix,
	}, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Rotate turns src clockwise by r quarter turns.
func Rotate(src *image.Gray, r Rotation) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	at := func(x, y int) uint8 { return src.Pix[src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)] }

	switch r {
	case Rotate90:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := range w {
			for x := range h {
				dst.Pix[y*dst.Stride+x] = at(y, h-1-x)
			}
		}
		return dst
	case Rotate180:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				dst.Pix[y*dst.Stride+x] = at(w-1-x, h-1-y)
			}
		}
		return dst
	case Rotate270:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := range w {
			for x := range h {
				dst.Pix[y*dst.Stride+x] = at(w-1-y, x)
			}
		}
		return dst
	default:
		return src
	}
}
