package processor

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/s2-indices/service"
	"golang.org/x/image/tiff"
)

// Raster is a single band grid of Height rows of Width values
type Raster struct {
	Width, Height int
	Data          []float64
}

// NewRaster returns a raster filled with zeros
func NewRaster(width, height int) Raster {
	return Raster{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value of the pixel at column x, row y
func (r Raster) At(x, y int) float64 {
	return r.Data[y*r.Width+x]
}

// Set the value of the pixel at column x, row y
func (r Raster) Set(x, y int, v float64) {
	r.Data[y*r.Width+x] = v
}

var registerGDAL sync.Once

// ReadRaster reads the first band of the file as float64.
// TIFF files are decoded in pure Go, other formats (JPEG2000) are read with GDAL.
func ReadRaster(path string) (Raster, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case "." + string(service.ExtensionGTiff), ".tiff":
		return readTIFF(path)
	default:
		return readGDAL(path)
	}
}

func readTIFF(path string) (Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return Raster{}, fmt.Errorf("readTIFF.Open: %w", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return Raster{}, fmt.Errorf("readTIFF.Decode[%s]: %w", filepath.Base(path), err)
	}
	return fromImage(img), nil
}

// fromImage converts a grayscale image to a raster
func fromImage(img image.Image) Raster {
	b := img.Bounds()
	r := NewRaster(b.Dx(), b.Dy())
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			switch img := img.(type) {
			case *image.Gray16:
				r.Set(x, y, float64(img.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			case *image.Gray:
				r.Set(x, y, float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			default:
				r.Set(x, y, float64(color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y))
			}
		}
	}
	return r
}

func readGDAL(path string) (Raster, error) {
	registerGDAL.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return Raster{}, fmt.Errorf("readGDAL.Open[%s]: %w", filepath.Base(path), err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return Raster{}, fmt.Errorf("readGDAL[%s]: no band", filepath.Base(path))
	}
	structure := ds.Structure()
	r := NewRaster(structure.SizeX, structure.SizeY)
	if err := bands[0].Read(0, 0, r.Data, r.Width, r.Height); err != nil {
		return Raster{}, fmt.Errorf("readGDAL.Read[%s]: %w", filepath.Base(path), err)
	}
	return r, nil
}
