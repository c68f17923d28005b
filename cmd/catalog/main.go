package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/airbusgeo/s2-indices/catalog"
	icatalog "github.com/airbusgeo/s2-indices/interface/catalog"
	"github.com/airbusgeo/s2-indices/interface/catalog/copernicus"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/geometry"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/araddon/dateparse"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type config struct {
	AOI         string
	DayRange    int
	EndDate     string
	CloudCover  float64
	MaxTiles    int
	MinCoverage float64

	CatalogURL string
	Serve      string
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.AOI, "aoi", "", "area of interest: WKT, GeoJSON or path to a GeoJSON file")
	flag.IntVar(&config.DayRange, "day-range", 10, "number of days before the end date")
	flag.StringVar(&config.EndDate, "end-date", "", "end of the period, excluded (default: now)")
	flag.Float64Var(&config.CloudCover, "cloud-cover", -1, "maximum cloud cover percentage (optional)")
	flag.IntVar(&config.MaxTiles, "max-tiles", catalog.AllTiles, "maximum number of tiles (-1: no limit)")
	flag.Float64Var(&config.MinCoverage, "min-coverage", 0, "minimum fraction of the aoi covered by a tile (optional)")
	flag.StringVar(&config.CatalogURL, "catalog-url", copernicus.CopernicusODataURL, "Copernicus OData catalog")
	flag.StringVar(&config.Serve, "serve", "", "address of the http server (i.e. :8080). If set, aoi is ignored and the catalog is served on /catalog/tiles")
	flag.Parse()

	if config.Serve == "" && config.AOI == "" {
		return nil, fmt.Errorf("missing aoi or serve config flag")
	}
	if config.DayRange <= 0 {
		return nil, fmt.Errorf("day-range must be positive")
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	c := catalog.Catalog{Provider: &copernicus.Provider{
		BaseURL: config.CatalogURL,
		Retries: 3,
		Client:  &http.Client{Timeout: time.Minute},
	}}

	if config.Serve != "" {
		r := mux.NewRouter()
		c.AddHandler(r)
		s := http.Server{Addr: config.Serve, Handler: r}
		log.Logger(ctx).Sugar().Infof("catalog listens on %s", config.Serve)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("catalog.ListenAndServe: %w", err)
		}
		return nil
	}

	q, err := loadQuery(config)
	if err != nil {
		return err
	}
	tiles, err := c.Tiles(ctx, q, catalog.SelectOptions{MaxTiles: config.MaxTiles, MinCoverage: config.MinCoverage})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tiles)
}

func loadQuery(config *config) (icatalog.Query, error) {
	aoi := config.AOI
	if b, err := os.ReadFile(aoi); err == nil {
		aoi = string(b)
	}
	g, err := service.ParseAOI(aoi)
	if err != nil {
		return icatalog.Query{}, err
	}
	wkt, err := geometry.NormalizeWKT(g)
	if err != nil {
		return icatalog.Query{}, err
	}

	end := time.Now()
	if config.EndDate != "" {
		if end, err = dateparse.ParseAny(config.EndDate); err != nil {
			return icatalog.Query{}, fmt.Errorf("end-date: %w", err)
		}
	}
	var cloudCover *float64
	if config.CloudCover >= 0 {
		cloudCover = &config.CloudCover
	}
	return icatalog.QueryFromDayRange(wkt, config.DayRange, cloudCover, end), nil
}
