package catalog

import (
	"context"
	"fmt"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
)

// SelectTiles drops the Level-1C products, derives the tile identifiers and keeps the first opts.MaxTiles candidates, in the catalog order.
// Raise service.ErrNoTilesFound
func SelectTiles(ctx context.Context, products []common.Product, opts SelectOptions) ([]common.Tile, error) {
	maxTiles := opts.MaxTiles
	if maxTiles == 0 {
		maxTiles = 1
	}

	var tiles []common.Tile
	ids := service.StringSet{}
	nbL1C := 0
	for _, p := range products {
		if common.IsLevel1C(p.Name) {
			nbL1C++
			continue
		}
		id := common.TileIDFromName(p.Name)
		if ids.Exists(string(id)) {
			continue
		}
		if !opts.coverage(ctx, p) {
			log.Logger(ctx).Sugar().Debugf("%s: not enough coverage of the area", id)
			continue
		}
		ids.Push(string(id))
		tiles = append(tiles, common.Tile{ID: id, Product: p})
	}
	log.Logger(ctx).Sugar().Infof("%d products, %d L1C, %d L2A candidates", len(products), nbL1C, len(tiles))

	if len(tiles) == 0 {
		return nil, fmt.Errorf("SelectTiles: %w (%d products, %d L1C)", service.ErrNoTilesFound, len(products), nbL1C)
	}
	if maxTiles > 0 && len(tiles) > maxTiles {
		tiles = tiles[:maxTiles]
	}
	return tiles, nil
}
