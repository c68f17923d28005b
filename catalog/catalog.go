package catalog

import (
	"context"
	"fmt"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/interface/catalog"
	"github.com/airbusgeo/s2-indices/service/geometry"
	"github.com/airbusgeo/s2-indices/service/log"
)

// AllTiles selects every candidate tile
const AllTiles = -1

// SelectOptions of the tile selection
type SelectOptions struct {
	// MaxTiles is the maximum number of selected tiles (1 by default, AllTiles for no limit)
	MaxTiles int
	// MinCoverage is the minimum fraction (0, 1] of the AOI that the footprint of a tile must cover.
	// It requires AOI.
	MinCoverage float64
	// AOI in WKT
	AOI string
}

// DefaultSelectOptions selects the first candidate only
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{MaxTiles: 1}
}

// Catalog searches products and selects the tiles to process
type Catalog struct {
	Provider catalog.ProductsProvider
}

// Tiles searches the products matching the query and selects the tiles to process
// Raise service.ErrCatalogUnavailable, service.ErrNoTilesFound
func (c *Catalog) Tiles(ctx context.Context, q catalog.Query, opts SelectOptions) ([]common.Tile, error) {
	products, err := c.Provider.SearchProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("Tiles.%w", err)
	}
	if opts.AOI == "" {
		opts.AOI = q.AOI
	}
	tiles, err := SelectTiles(ctx, products, opts)
	if err != nil {
		return nil, fmt.Errorf("Tiles.%w", err)
	}
	return tiles, nil
}

// coverage returns true if the footprint covers enough of the aoi
func (opts SelectOptions) coverage(ctx context.Context, p common.Product) bool {
	if opts.MinCoverage <= 0 || opts.AOI == "" {
		return true
	}
	if p.FootprintWKT == "" {
		log.Logger(ctx).Sugar().Debugf("%s: no footprint, coverage unknown", p.Name)
		return true
	}
	c, err := geometry.Coverage(opts.AOI, p.FootprintWKT)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("%s: %v", p.Name, err)
		return true
	}
	return c >= opts.MinCoverage
}
