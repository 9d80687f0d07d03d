package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

const iconSize = 32

var (
	iconFrame = color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
	iconFill  = color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0x40}
)

// Icon renders the tray icon: a dashed selection frame over a light fill.
func Icon() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	inner := image.Rect(6, 8, 26, 24)
	xdraw.Draw(img, inner, image.NewUniform(iconFill), image.Point{}, xdraw.Src)

	for x := inner.Min.X; x < inner.Max.X; x++ {
		if (x/3)%2 == 0 {
			for _, y := range []int{inner.Min.Y, inner.Min.Y + 1, inner.Max.Y - 2, inner.Max.Y - 1} {
				img.SetNRGBA(x, y, iconFrame)
			}
		}
	}
	for y := inner.Min.Y; y < inner.Max.Y; y++ {
		if (y/3)%2 == 0 {
			for _, x := range []int{inner.Min.X, inner.Min.X + 1, inner.Max.X - 2, inner.Max.X - 1} {
				img.SetNRGBA(x, y, iconFrame)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
