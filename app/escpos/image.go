package escpos

import (
	"image"
)

// rasterMaxWidth is the printable dot width at 203 DPI for an 80mm strip.
const rasterMaxWidth = 384

// Image appends a monochrome raster of img using GS v 0. The image is
// downscaled by pixel skipping when wider than the strip and thresholded on
// luminance; alpha composites against white so transparent regions stay
// unprinted.
func (p *Printer) Image(img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return
	}

	scale := 1
	for width/scale > rasterMaxWidth {
		scale++
	}
	width = width / scale
	height = height / scale

	widthBytes := (width + 7) / 8
	p.buffer.Write(cmdRaster(widthBytes, height))

	for y := 0; y < height; y++ {
		for xb := 0; xb < widthBytes; xb++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				x := xb*8 + bit
				if x >= width {
					continue
				}
				if dark(img, bounds.Min.X+x*scale, bounds.Min.Y+y*scale) {
					b |= 1 << uint(7-bit)
				}
			}
			p.buffer.WriteByte(b)
		}
	}
	p.buffer.WriteByte(NL)
}

// BitImage appends img using the legacy ESC * column bit-image mode in
// 24-dot double density. Older firmware without raster support still
// understands this form. Line spacing is pinned to the band height for the
// duration so the bands join without white seams.
func (p *Printer) BitImage(img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return
	}

	scale := 1
	for width/scale > rasterMaxWidth {
		scale++
	}
	width = width / scale
	height = height / scale

	p.buffer.Write([]byte{ESC, '3', 24})
	for y := 0; y < height; y += 24 {
		p.buffer.Write([]byte{ESC, '*', 33, byte(width % 256), byte(width / 256)})
		for x := 0; x < width; x++ {
			for k := 0; k < 3; k++ {
				var b byte
				for bit := 0; bit < 8; bit++ {
					yy := y + k*8 + bit
					if yy >= height {
						continue
					}
					if dark(img, bounds.Min.X+x*scale, bounds.Min.Y+yy*scale) {
						b |= 1 << uint(7-bit)
					}
				}
				p.buffer.WriteByte(b)
			}
		}
		p.buffer.WriteByte(NL)
	}
	p.buffer.Write([]byte{ESC, '2'})
}

// dark reports whether the pixel prints black: luminance below mid-gray
// after compositing alpha over white.
func dark(img image.Image, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()
	if a == 0 {
		return false
	}
	if a < 0xffff {
		// RGBA() is alpha-premultiplied; composite over white by adding
		// the uncovered remainder.
		inv := 0xffff - a
		r += inv
		g += inv
		b += inv
	}
	gray := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
	return gray < 128
}
