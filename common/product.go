package common

import (
	"strings"
	"time"
)

// Product is a catalog entry, as returned by the catalog
type Product struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	FootprintWKT string            `json:"footprint,omitempty"`
	ContentDate  time.Time         `json:"content_date"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// TileID identifies a product on disk: <TileID>.zip, <TileID>.SAFE
type TileID string

// TileIDFromName returns the product name up to the first "."
func TileIDFromName(name string) TileID {
	if i := strings.Index(name, "."); i >= 0 {
		return TileID(name[:i])
	}
	return TileID(name)
}

// IsLevel1C returns true if the product is a Level-1C product
func IsLevel1C(name string) bool {
	return strings.Contains(name, ProductLevel1C)
}

// Archive returns the name of the downloaded archive
func (id TileID) Archive() string {
	return string(id) + ".zip"
}

// Workspace returns the name of the extracted product directory
func (id TileID) Workspace() string {
	return string(id) + ".SAFE"
}

// Tile is a product selected for download
type Tile struct {
	ID      TileID  `json:"id"`
	Product Product `json:"product"`
}
