package processor

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"golang.org/x/sync/errgroup"
)

// IndexSpec parameterizes a normalized difference index: (BandA - BandB) / (BandA + BandB)
type IndexSpec struct {
	Kind     common.IndexKind
	BandA    string
	BandB    string
	ColorMap ColorMap
}

// IndexSpecs are the supported indices
var IndexSpecs = []IndexSpec{
	{Kind: common.NDVI, BandA: "B8A", BandB: "B04", ColorMap: RdYlGn},
	{Kind: common.NDWI, BandA: "B03", BandB: "B8A", ColorMap: Blues},
	{Kind: common.NDBI, BandA: "B11", BandB: "B8A", ColorMap: RdYlBu},
	{Kind: common.NDMI, BandA: "B8A", BandB: "B11", ColorMap: Blues},
}

// SpecOf returns the spec of the index
func SpecOf(kind common.IndexKind) (IndexSpec, error) {
	for _, s := range IndexSpecs {
		if s.Kind == kind {
			return s, nil
		}
	}
	return IndexSpec{}, fmt.Errorf("SpecOf: unknown index %v", kind)
}

// NormalizedDifference computes (a-b)/(a+b) pixel-wise.
// Where a+b == 0 (including 0/0), the value is NaN.
// Raise service.ErrShapeMismatch
func NormalizedDifference(a, b Raster) (Raster, error) {
	if a.Width != b.Width || a.Height != b.Height || len(a.Data) != len(b.Data) {
		return Raster{}, fmt.Errorf("NormalizedDifference: %w: %dx%d != %dx%d", service.ErrShapeMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	r := NewRaster(a.Width, a.Height)
	for i := range a.Data {
		if den := a.Data[i] + b.Data[i]; den != 0 {
			r.Data[i] = (a.Data[i] - b.Data[i]) / den
		} else {
			r.Data[i] = math.NaN()
		}
	}
	return r, nil
}

// ComputeIndex locates and reads the bands of the index in the workspace, computes the index
// and renders it to outdir/<index>_image.png. It returns the path of the image.
// Raise service.ErrGranuleDirMissing, service.ErrBandNotFound, service.ErrShapeMismatch
func ComputeIndex(ctx context.Context, spec IndexSpec, workspace, outdir, resolution string) (string, error) {
	paths, err := LocateBands(workspace, resolution, spec.BandA, spec.BandB)
	if err != nil {
		return "", fmt.Errorf("ComputeIndex[%s].%w", spec.Kind, err)
	}
	a, err := ReadRaster(paths[spec.BandA])
	if err != nil {
		return "", fmt.Errorf("ComputeIndex[%s].%w", spec.Kind, err)
	}
	b, err := ReadRaster(paths[spec.BandB])
	if err != nil {
		return "", fmt.Errorf("ComputeIndex[%s].%w", spec.Kind, err)
	}
	index, err := NormalizedDifference(a, b)
	if err != nil {
		return "", fmt.Errorf("ComputeIndex[%s].%w", spec.Kind, err)
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("ComputeIndex[%s]: %w", spec.Kind, ctx.Err())
	}

	path := filepath.Join(outdir, spec.Kind.ImageName())
	if err := RenderIndex(index, spec, path); err != nil {
		return "", fmt.Errorf("ComputeIndex[%s].%w", spec.Kind, err)
	}
	log.Logger(ctx).Sugar().Infof("%s image saved to %s", spec.Kind, path)
	return path, nil
}

// ComputeIndices computes the indices concurrently. The failure of one index does not stop the others.
// It returns the path of the images and the errors, by index.
func ComputeIndices(ctx context.Context, specs []IndexSpec, workspace, outdir, resolution string) (map[common.IndexKind]string, map[common.IndexKind]error) {
	images := map[common.IndexKind]string{}
	errs := map[common.IndexKind]error{}
	mu := sync.Mutex{}

	var g errgroup.Group
	g.SetLimit(len(IndexSpecs))
	for _, spec := range specs {
		g.Go(func() error {
			path, err := ComputeIndex(ctx, spec, workspace, outdir, resolution)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("%v", err)
				errs[spec.Kind] = err
			} else {
				images[spec.Kind] = path
			}
			return nil
		})
	}
	g.Wait()
	return images, errs
}
