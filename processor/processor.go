package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
)

// Options of the processing of a tile
type Options struct {
	// Resolution directory of the bands (DefaultResolution if empty)
	Resolution string
	// Indices to compute (IndexSpecs if empty)
	Indices []IndexSpec
	// KeepWorkspace disables the deletion of the workspace
	KeepWorkspace bool
}

// Result of the processing of a tile
type Result struct {
	Metadata    MetadataRecord
	MetadataErr error
	Images      map[common.IndexKind]string
	IndexErrs   map[common.IndexKind]error
}

// ToTileResult converts the result to its serializable form
func (r Result) ToTileResult(tile common.TileID) common.TileResult {
	tr := common.TileResult{
		TileID:   tile,
		Metadata: r.Metadata,
		Images:   r.Images,
	}
	if r.MetadataErr != nil {
		tr.MetadataErr = r.MetadataErr.Error()
	}
	if len(r.IndexErrs) > 0 {
		tr.IndexErrs = map[common.IndexKind]string{}
		for k, err := range r.IndexErrs {
			tr.IndexErrs[k] = err.Error()
		}
	}
	return tr
}

// ProcessTile reads the metadata and computes the indices of an extracted tile, writing the images in outdir.
// Metadata and index failures are reported in the result, they do not prevent the other steps.
// Finally, the workspace is deleted (unless opts.KeepWorkspace).
func ProcessTile(ctx context.Context, workspace, outdir string, opts Options) Result {
	specs := opts.Indices
	if len(specs) == 0 {
		specs = IndexSpecs
	}

	var res Result
	log.Logger(ctx).Info("read metadata")
	if res.Metadata, res.MetadataErr = ReadMetadata(workspace); res.MetadataErr != nil {
		if errors.Is(res.MetadataErr, service.ErrMetadataFileMissing) {
			log.Logger(ctx).Sugar().Warnf("%v", res.MetadataErr)
		} else {
			log.Logger(ctx).Sugar().Errorf("%v", res.MetadataErr)
		}
	}

	log.Logger(ctx).Sugar().Infof("compute %d indices", len(specs))
	res.Images, res.IndexErrs = ComputeIndices(ctx, specs, workspace, outdir, opts.Resolution)

	if !opts.KeepWorkspace {
		if err := CleanWorkspace(workspace); err != nil {
			log.Logger(ctx).Sugar().Warnf("%v", err)
		}
	}
	return res
}

// CleanWorkspace deletes the workspace directory. It does nothing if the directory does not exist.
func CleanWorkspace(workspace string) error {
	if err := os.RemoveAll(workspace); err != nil {
		return fmt.Errorf("CleanWorkspace[%s]: %w", filepath.Base(workspace), err)
	}
	return nil
}
