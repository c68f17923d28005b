package processor

import (
	"image/color"
	"math"
)

// ColorMap maps a value of [0, 1] to a color, linearly interpolated between equally spaced stops
type ColorMap struct {
	Name  string
	Stops []color.NRGBA
}

func hex(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// ColorBrewer schemes
var (
	RdYlGn = ColorMap{Name: "RdYlGn", Stops: []color.NRGBA{
		hex(0xa50026), hex(0xd73027), hex(0xf46d43), hex(0xfdae61), hex(0xfee08b), hex(0xffffbf),
		hex(0xd9ef8b), hex(0xa6d96a), hex(0x66bd63), hex(0x1a9850), hex(0x006837),
	}}
	RdYlBu = ColorMap{Name: "RdYlBu", Stops: []color.NRGBA{
		hex(0xa50026), hex(0xd73027), hex(0xf46d43), hex(0xfdae61), hex(0xfee090), hex(0xffffbf),
		hex(0xe0f3f8), hex(0xabd9e9), hex(0x74add1), hex(0x4575b4), hex(0x313695),
	}}
	Blues = ColorMap{Name: "Blues", Stops: []color.NRGBA{
		hex(0xf7fbff), hex(0xdeebf7), hex(0xc6dbef), hex(0x9ecae1), hex(0x6baed6),
		hex(0x4292c6), hex(0x2171b5), hex(0x08519c), hex(0x08306b),
	}}
)

// Transparent is the color of undefined values
var Transparent = color.NRGBA{}

// At returns the color of t in [0, 1] (clamped). NaN is Transparent.
func (c ColorMap) At(t float64) color.NRGBA {
	if math.IsNaN(t) {
		return Transparent
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(c.Stops)-1)
	i := int(pos)
	if i >= len(c.Stops)-1 {
		return c.Stops[len(c.Stops)-1]
	}
	f := pos - float64(i)
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + f*(float64(b)-float64(a))))
	}
	a, b := c.Stops[i], c.Stops[i+1]
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// Scale maps v of [min, max] to the colormap
func (c ColorMap) Scale(v, min, max float64) color.NRGBA {
	return c.At((v - min) / (max - min))
}
