package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

// UnmarshalGeometry, merging featureCollections and geometryCollections into a multipolygon
func UnmarshalGeometry(data []byte) (_ geom.Geometry, err error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return g.Geometry, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		var mp geom.MultiPolygon
		for _, f := range geo.Features {
			if err := mergeMultiPolygons(f.Geometry.Geometry, &mp); err != nil {
				return nil, err
			}
		}
		return mp, nil
	case geojson.Feature:
		return geo.Geometry.Geometry, nil
	default:
		return g.Geometry, nil
	}
}

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry %T", g)
	}
	return nil
}

// ParseAOI decodes an area of interest given either as WKT or as GeoJSON (geometry, feature or feature collection).
// Coordinates are expected in WGS84 (lon, lat).
func ParseAOI(aoi string) (geom.Geometry, error) {
	aoi = strings.TrimSpace(aoi)
	if aoi == "" {
		return nil, fmt.Errorf("ParseAOI: empty area of interest")
	}
	if strings.HasPrefix(aoi, "{") {
		g, err := UnmarshalGeometry([]byte(aoi))
		if err != nil {
			return nil, fmt.Errorf("ParseAOI.UnmarshalGeometry: %w", err)
		}
		if g == nil {
			return nil, fmt.Errorf("ParseAOI: empty geometry")
		}
		return g, nil
	}
	g, err := geomwkt.DecodeString(aoi)
	if err != nil {
		return nil, fmt.Errorf("ParseAOI.DecodeString: %w", err)
	}
	return g, nil
}

// GeoJSONToWKT converts a raw geojson geometry (e.g. a catalog footprint) to WKT
func GeoJSONToWKT(data []byte) (string, error) {
	g, err := UnmarshalGeometry(data)
	if err != nil {
		return "", fmt.Errorf("GeoJSONToWKT.%w", err)
	}
	wkt, err := geomwkt.EncodeString(g)
	if err != nil {
		return "", fmt.Errorf("GeoJSONToWKT.EncodeString: %w", err)
	}
	return wkt, nil
}

func ToJSON(v interface{}, workingdir, filename string) error {
	if workingdir != "" {
		vb, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("toJSON.Marshal: %w", err)
		}
		if err := os.WriteFile(filepath.Join(workingdir, filename), vb, 0644); err != nil {
			return fmt.Errorf("toJSON.WriteFile: %w", err)
		}
	}
	return nil
}
