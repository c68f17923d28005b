package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/airbusgeo/s2-indices/interface/catalog"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/geometry"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/gorilla/mux"
)

const (
	aoiField         = "aoi"
	dayRangeField    = "day_range"
	cloudCoverField  = "cloud_cover"
	maxTilesField    = "max_tiles"
	minCoverageField = "min_coverage"
)

func (c *Catalog) AddHandler(r *mux.Router) {
	r.HandleFunc("/catalog/tiles", c.TilesHandler).Methods("GET")
	r.HandleFunc("/catalog/tiles", c.TilesHandler).Methods("POST")
}

func readField(req *http.Request, field string) ([]byte, error) {
	if req.FormValue(field) != "" {
		return []byte(req.FormValue(field)), nil
	}
	file, _, err := req.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	io.Copy(&buf, file)
	return buf.Bytes(), nil
}

// LoadQuery reads the aoi (WKT or GeoJSON), day_range and cloud_cover fields of the request
func LoadQuery(req *http.Request, now time.Time) (catalog.Query, error) {
	aoi, err := readField(req, aoiField)
	if err != nil || len(aoi) == 0 {
		return catalog.Query{}, fmt.Errorf("loadQuery: missing required field: '%s' (WKT or GeoJSON)", aoiField)
	}
	g, err := service.ParseAOI(string(aoi))
	if err != nil {
		return catalog.Query{}, fmt.Errorf("loadQuery.%w", err)
	}
	wkt, err := geometry.NormalizeWKT(g)
	if err != nil {
		return catalog.Query{}, fmt.Errorf("loadQuery.%w", err)
	}

	dayRange, err := strconv.Atoi(req.FormValue(dayRangeField))
	if err != nil || dayRange <= 0 {
		return catalog.Query{}, fmt.Errorf("loadQuery: '%s' must be a positive number of days", dayRangeField)
	}

	var cloudCover *float64
	if v := req.FormValue(cloudCoverField); v != "" {
		cc, err := strconv.ParseFloat(v, 64)
		if err != nil || !(cc >= 0 && cc <= 100) {
			return catalog.Query{}, fmt.Errorf("loadQuery: '%s' must be a percentage", cloudCoverField)
		}
		cloudCover = &cc
	}
	return catalog.QueryFromDayRange(wkt, dayRange, cloudCover, now), nil
}

// LoadSelectOptions reads the max_tiles and min_coverage fields of the request
func LoadSelectOptions(req *http.Request) (SelectOptions, error) {
	opts := DefaultSelectOptions()
	var err error
	if v := req.FormValue(maxTilesField); v != "" {
		if opts.MaxTiles, err = strconv.Atoi(v); err != nil || opts.MaxTiles < AllTiles {
			return opts, fmt.Errorf("loadSelectOptions: '%s' must be a number of tiles or %d", maxTilesField, AllTiles)
		}
	}
	if v := req.FormValue(minCoverageField); v != "" {
		if opts.MinCoverage, err = strconv.ParseFloat(v, 64); err != nil || opts.MinCoverage < 0 || opts.MinCoverage > 1 {
			return opts, fmt.Errorf("loadSelectOptions: '%s' must be in [0, 1]", minCoverageField)
		}
	}
	return opts, nil
}

// TilesHandler lists the tiles that would be processed for a given aoi, period and cloud cover and returns a json
func (c *Catalog) TilesHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	q, err := LoadQuery(req, time.Now())
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}
	opts, err := LoadSelectOptions(req)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return
	}

	tiles, err := c.Tiles(ctx, q, opts)
	switch {
	case errors.Is(err, service.ErrNoTilesFound):
		w.WriteHeader(404)
		fmt.Fprintf(w, "%v", err)
		return
	case err != nil:
		log.Logger(ctx).Sugar().Warnf("TilesHandler.%v", err)
		w.WriteHeader(502)
		fmt.Fprintf(w, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tiles); err != nil {
		log.Logger(ctx).Sugar().Warnf("TilesHandler.%v", err)
	}
}
