package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
)

// ImageProvider is the interface of an image download service
type ImageProvider interface {
	// Download the archive of the tile to localDir
	// It returns the path of the archive: localDir/<TileID>.zip
	// The archive is only created once it is complete
	Download(ctx context.Context, tile common.Tile, localDir string) (string, error)

	// Name of the provider
	Name() string
}

// archivePath returns the path of the archive of the tile and the path of its partial download
func archivePath(localDir string, tile common.Tile) (string, string) {
	archive := filepath.Join(localDir, tile.ID.Archive())
	return archive, archive + "." + string(service.ExtensionPart)
}

// commitArchive renames the partial download to its final name or removes it on error
func commitArchive(partial, archive string, err error) error {
	if err != nil {
		os.Remove(partial)
		return err
	}
	if err := os.Rename(partial, archive); err != nil {
		os.Remove(partial)
		return fmt.Errorf("commitArchive.Rename: %w", err)
	}
	return nil
}
