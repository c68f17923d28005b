package geometry

import (
	"fmt"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// Generates a geom.Geometry from a geos.Geometry
func GeosToGeom(g *geos.Geometry) (geom.Geometry, error) {
	wkt, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.ToWKT: %w", err)
	}
	geometry, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.DecodeString: %w", err)
	}

	return geometry, nil
}

// GeomToGeos generates a geos.Geometry from a geom.Geometry
func GeomToGeos(g geom.Geometry) (*geos.Geometry, error) {
	wkt, err := geomwkt.EncodeString(g)
	if err != nil {
		return nil, fmt.Errorf("GeomToGeos.EncodeString: %w", err)
	}
	geometry, err := geos.FromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeomToGeos.FromWKT: %w", err)
	}
	return geometry, nil
}

var TOLERANCE_GEOG = 0.000001

// NormalizeWKT merges the parts of the geometry (overlapping polygons of a collection) and returns its WKT
func NormalizeWKT(g geom.Geometry) (string, error) {
	geo, err := GeomToGeos(g)
	if err != nil {
		return "", fmt.Errorf("NormalizeWKT.%w", err)
	}
	if t, err := geo.Type(); err == nil && t == geos.MULTIPOLYGON {
		if geo, err = Union([]*geos.Geometry{geo}, TOLERANCE_GEOG); err != nil {
			return "", fmt.Errorf("NormalizeWKT.%w", err)
		}
	}
	wkt, err := geo.ToWKT()
	if err != nil {
		return "", fmt.Errorf("NormalizeWKT.ToWKT: %w", err)
	}
	return wkt, nil
}

// Union computes the union of all the geometries. On failure, it retries one by one with simplified geometries.
func Union(geoms []*geos.Geometry, tolerance float64) (*geos.Geometry, error) {
	aoi, err := UnaryUnion(geoms)
	if err == nil {
		return aoi, nil
	}
	for _, geom := range geoms {
		if geom, err = geom.Simplify(tolerance); err != nil {
			return nil, fmt.Errorf("Union.Simplify: %w", err)
		}
		if aoi == nil {
			aoi = geom
		} else if aoi, err = geom.Union(aoi); err != nil {
			return nil, fmt.Errorf("Union: %w", err)
		}
	}
	return aoi, nil
}

func UnaryUnion(geoms []*geos.Geometry) (*geos.Geometry, error) {
	if len(geoms) == 1 {
		aoi, err := geoms[0].UnaryUnion()
		if err != nil {
			return nil, fmt.Errorf("UnaryUnion.UnaryUnion: %w", err)
		}
		return aoi, nil
	}
	aoi, err := geos.NewCollection(geos.MULTIPOLYGON, geoms...)
	if err != nil {
		return nil, fmt.Errorf("UnaryUnion.NewCollection: %w", err)
	}
	if aoi, err = aoi.UnaryUnion(); err != nil {
		return nil, fmt.Errorf("UnaryUnion.UnaryUnion: %w", err)
	}
	return aoi, nil
}

// Coverage returns the fraction of the area of aoi that is covered by footprint (both in WKT)
func Coverage(aoiWKT, footprintWKT string) (float64, error) {
	aoi, err := geos.FromWKT(aoiWKT)
	if err != nil {
		return 0, fmt.Errorf("Coverage.FromWKT(aoi): %w", err)
	}
	footprint, err := geos.FromWKT(footprintWKT)
	if err != nil {
		return 0, fmt.Errorf("Coverage.FromWKT(footprint): %w", err)
	}
	aoiArea, err := aoi.Area()
	if err != nil {
		return 0, fmt.Errorf("Coverage.Area: %w", err)
	}
	if aoiArea == 0 {
		// Degenerated aoi (point, line): covered or not
		intersects, err := footprint.Intersects(aoi)
		if err != nil {
			return 0, fmt.Errorf("Coverage.Intersects: %w", err)
		}
		if intersects {
			return 1, nil
		}
		return 0, nil
	}
	inter, err := aoi.Intersection(footprint)
	if err != nil {
		return 0, fmt.Errorf("Coverage.Intersection: %w", err)
	}
	interArea, err := inter.Area()
	if err != nil {
		return 0, fmt.Errorf("Coverage.Area: %w", err)
	}
	return interArea / aoiArea, nil
}
