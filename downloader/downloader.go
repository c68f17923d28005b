package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/interface/provider"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
)

// Download fetches the archive of the tile with the first successful imageProvider,
// extracts it into workdir and returns the path of the workspace (<workdir>/<TileID>.SAFE).
// Raise service.ErrAuthFailed, service.ErrDownloadFailed, service.ErrTransport, service.ErrCorruptArchive
func Download(ctx context.Context, imageProviders []provider.ImageProvider, tile common.Tile, workdir string) (string, error) {
	if len(imageProviders) == 0 {
		return "", fmt.Errorf("Download: no image provider")
	}
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return "", service.MakeTemporary(fmt.Errorf("Download.MkdirAll %s: %w", workdir, err))
	}

	// Download with the first successful imageProvider
	log.Logger(ctx).Sugar().Infof("downloading %s", tile.ID)
	var archive string
	var err error
	for _, imageProvider := range imageProviders {
		var e error
		if archive, e = imageProvider.Download(ctx, tile, workdir); e == nil {
			log.Logger(ctx).Sugar().Infof("%s downloaded from %s", tile.ID, imageProvider.Name())
			err = nil
			break
		}
		log.Logger(ctx).Sugar().Warnf("%s: %v", imageProvider.Name(), e)
		if errors.Is(e, service.ErrAuthFailed) {
			// Invalid credentials abort the run, even if a mirror could serve the tile
			return "", fmt.Errorf("Download[%s].%s.%w", tile.ID, imageProvider.Name(), e)
		}
		err = service.MergeErrors(false, err, e)
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("Download[%s].ImageProviders.%w", tile.ID, err)
	}

	log.Logger(ctx).Sugar().Infof("extracting %s", filepath.Base(archive))
	entries, err := service.Unarchive(ctx, archive, workdir)
	if err != nil {
		return "", fmt.Errorf("Download[%s].%w", tile.ID, err)
	}
	workspace, err := findWorkspace(workdir, tile.ID, entries)
	if err != nil {
		return "", fmt.Errorf("Download[%s].%w", tile.ID, err)
	}
	return workspace, nil
}

// findWorkspace returns <workdir>/<TileID>.SAFE or, if the archive is not named after the tile,
// the only directory extracted from the archive.
func findWorkspace(workdir string, tile common.TileID, entries []string) (string, error) {
	var dirs []string
	for _, e := range entries {
		info, err := os.Stat(filepath.Join(workdir, e))
		if err != nil || !info.IsDir() {
			continue
		}
		if e == tile.Workspace() {
			return filepath.Join(workdir, e), nil
		}
		dirs = append(dirs, e)
	}
	if len(dirs) == 1 {
		return filepath.Join(workdir, dirs[0]), nil
	}
	return "", fmt.Errorf("findWorkspace: %w: %s not found in %v", service.ErrCorruptArchive, tile.Workspace(), entries)
}
