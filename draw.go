package alpr

import (
	"image"
	"image/color"

	"github.com/up-zero/gotool/imageutil"
	xdraw "golang.org/x/image/draw"
)

// DrawPlates copies img and outlines each recognized plate's bounding
// rectangle, for debug output.
func DrawPlates(img image.Image, plates []RecognizedPlate) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	xdraw.Draw(out, img.Bounds(), img, img.Bounds().Min, xdraw.Src)

	for _, p := range plates {
		rect := image.Rectangle{
			Min: image.Point{X: p.Coordinates[0].X, Y: p.Coordinates[0].Y},
			Max: image.Point{X: p.Coordinates[2].X, Y: p.Coordinates[2].Y},
		}
		imageutil.DrawThickRectOutline(out, rect, color.RGBA{R: 255, A: 255}, 2)
	}
	return out
}
