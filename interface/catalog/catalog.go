package catalog

import (
	"context"
	"time"

	"github.com/airbusgeo/s2-indices/common"
)

// Query of products intersecting an area of interest during [Start, End)
type Query struct {
	AOI        string    // WKT, WGS84
	Start, End time.Time // Only the dates are taken into account
	CloudCover *float64  // Maximum cloud cover percentage [0, 100] (optional)
}

// QueryFromDayRange returns a query on the period [today-dayRange, today)
func QueryFromDayRange(aoiWKT string, dayRange int, cloudCover *float64, now time.Time) Query {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Query{
		AOI:        aoiWKT,
		Start:      today.AddDate(0, 0, -dayRange),
		End:        today,
		CloudCover: cloudCover,
	}
}

// ProductsProvider searches a catalog of products
type ProductsProvider interface {
	// SearchProducts returns the products matching the query in the catalog order
	// Raise service.ErrCatalogUnavailable
	SearchProducts(ctx context.Context, q Query) ([]common.Product, error)
}
