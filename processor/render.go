package processor

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Fixed scale of the normalized difference indices
const (
	ScaleMin = -1.0
	ScaleMax = 1.0
)

const (
	maxPlotWidth  = 640
	maxPlotHeight = 480
	marginLeft    = 70
	marginTop     = 40
	marginBottom  = 50
	marginRight   = 30
	colorBarGap   = 25
	colorBarWidth = 20
	colorBarTicks = 45
	charWidth     = 7
	charHeight    = 13
	charAscent    = 11
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// layout of the figure
type layout struct {
	size     image.Point
	plot     image.Rectangle
	colorBar image.Rectangle
}

func newLayout(width, height int) layout {
	s := math.Min(float64(maxPlotWidth)/float64(width), float64(maxPlotHeight)/float64(height))
	pw := int(math.Max(1, math.Round(float64(width)*s)))
	ph := int(math.Max(1, math.Round(float64(height)*s)))

	l := layout{}
	l.plot = image.Rect(marginLeft, marginTop, marginLeft+pw, marginTop+ph)
	l.colorBar = image.Rect(l.plot.Max.X+colorBarGap, l.plot.Min.Y, l.plot.Max.X+colorBarGap+colorBarWidth, l.plot.Max.Y)
	l.size = image.Pt(l.colorBar.Max.X+colorBarTicks+charHeight+marginRight, l.plot.Max.Y+marginBottom)
	return l
}

// RenderIndex renders the index raster as a figure (title, axes, colour bar) and writes it as a PNG to path.
// The file is replaced atomically.
func RenderIndex(r Raster, spec IndexSpec, path string) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("RenderIndex: empty raster")
	}
	if err := writePNG(renderFigure(r, spec), path); err != nil {
		return fmt.Errorf("RenderIndex.%w", err)
	}
	return nil
}

func renderFigure(r Raster, spec IndexSpec) *image.NRGBA {
	l := newLayout(r.Width, r.Height)
	img := image.NewNRGBA(image.Rectangle{Max: l.size})
	draw.Draw(img, img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	// Data, NaN are transparent
	data := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			data.SetNRGBA(x, y, spec.ColorMap.Scale(r.At(x, y), ScaleMin, ScaleMax))
		}
	}
	draw.NearestNeighbor.Scale(img, l.plot, data, data.Bounds(), draw.Src, nil)
	drawFrame(img, l.plot)

	// Colour bar, max at the top
	h := l.colorBar.Dy()
	for y := 0; y < h; y++ {
		c := spec.ColorMap.At(1 - float64(y)/math.Max(1, float64(h-1)))
		for x := l.colorBar.Min.X; x < l.colorBar.Max.X; x++ {
			img.SetNRGBA(x, l.colorBar.Min.Y+y, c)
		}
	}
	drawFrame(img, l.colorBar)
	for _, v := range []float64{-1, -0.5, 0, 0.5, 1} {
		y := l.colorBar.Max.Y - 1 - int(math.Round((v-ScaleMin)/(ScaleMax-ScaleMin)*float64(h-1)))
		hline(img, l.colorBar.Max.X, l.colorBar.Max.X+4, y)
		drawText(img, strconv.FormatFloat(v, 'f', 1, 64), l.colorBar.Max.X+6, y+charAscent/2)
	}
	drawTextVertical(img, spec.Kind.String()+" Value", l.colorBar.Max.X+colorBarTicks, l.colorBar.Min.Y+l.colorBar.Dy()/2)

	// Axes, in raster pixels
	for _, px := range []int{0, r.Width / 2, r.Width} {
		x := l.plot.Min.X + int(math.Round(float64(px)*float64(l.plot.Dx())/float64(r.Width)))
		vline(img, x, l.plot.Max.Y, l.plot.Max.Y+4)
		label := strconv.Itoa(px)
		drawText(img, label, x-len(label)*charWidth/2, l.plot.Max.Y+6+charAscent)
	}
	for _, py := range []int{0, r.Height / 2, r.Height} {
		y := l.plot.Min.Y + int(math.Round(float64(py)*float64(l.plot.Dy())/float64(r.Height)))
		hline(img, l.plot.Min.X-5, l.plot.Min.X-1, y)
		label := strconv.Itoa(py)
		drawText(img, label, l.plot.Min.X-7-len(label)*charWidth, y+charAscent/2)
	}
	drawText(img, "Pixel", l.plot.Min.X+l.plot.Dx()/2-5*charWidth/2, l.plot.Max.Y+marginBottom-8)
	drawTextVertical(img, "Pixel", 8, l.plot.Min.Y+l.plot.Dy()/2)

	title := spec.Kind.String() + " Map"
	drawText(img, title, l.plot.Min.X+l.plot.Dx()/2-len(title)*charWidth/2, marginTop-14)
	return img
}

func hline(img *image.NRGBA, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		img.SetNRGBA(x, y, black)
	}
}

func vline(img *image.NRGBA, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		img.SetNRGBA(x, y, black)
	}
}

// drawFrame draws a 1px border around r (outside r)
func drawFrame(img *image.NRGBA, r image.Rectangle) {
	hline(img, r.Min.X-1, r.Max.X, r.Min.Y-1)
	hline(img, r.Min.X-1, r.Max.X, r.Max.Y)
	vline(img, r.Min.X-1, r.Min.Y-1, r.Max.Y)
	vline(img, r.Max.X, r.Min.Y-1, r.Max.Y)
}

// drawText draws s with its baseline starting at (x, y)
func drawText(img draw.Image, s string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawTextVertical draws s rotated by 90° counterclockwise, its left edge at x, centered on y
func drawTextVertical(img *image.NRGBA, s string, x, y int) {
	w := len(s) * charWidth
	text := image.NewNRGBA(image.Rect(0, 0, w, charHeight))
	drawText(text, s, 0, charAscent)
	top := y - w/2
	for ty := 0; ty < charHeight; ty++ {
		for tx := 0; tx < w; tx++ {
			if c := text.NRGBAAt(tx, ty); c.A > 0 {
				img.SetNRGBA(x+ty, top+w-1-tx, black)
			}
		}
	}
}

// writePNG writes the image to a temporary file of the directory of path then renames it to path
func writePNG(img image.Image, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("writePNG.MkdirAll: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("writePNG.CreateTemp: %w", err)
	}
	defer os.Remove(f.Name())
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("writePNG.Encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writePNG.Close: %w", err)
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		return fmt.Errorf("writePNG.Chmod: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("writePNG.Rename: %w", err)
	}
	return nil
}
