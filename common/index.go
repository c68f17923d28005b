package common

import "strings"

//go:generate go run github.com/dmarkham/enumer -json -text -type IndexKind

// IndexKind is a normalized difference spectral index
type IndexKind int

const (
	NDVI IndexKind = iota // Vegetation
	NDWI                  // Water
	NDBI                  // Built-up
	NDMI                  // Moisture
)

// ImageName returns the file name of the rendered index (e.g. ndvi_image.png)
func (i IndexKind) ImageName() string {
	return strings.ToLower(i.String()) + "_image.png"
}

// MapName returns the file name of the index image when it is sent to a client (e.g. ndvi_map.png)
func (i IndexKind) MapName() string {
	return strings.ToLower(i.String()) + "_map.png"
}
