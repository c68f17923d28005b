package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2-indices/common"
)

// LocalImageProvider implements ImageProvider for a local archive of products
type LocalImageProvider struct {
	path        string
	pathPattern string
}

// Name implements ImageProvider
func (ip *LocalImageProvider) Name() string {
	return "FileSystem (" + ip.path + ")"
}

// NewLocalImageProvider creates a new ImageProvider from local storage
// Archives are expected in path/YYYY/MM/DD/<TileID>.zip
func NewLocalImageProvider(path string) *LocalImageProvider {
	return &LocalImageProvider{path: path, pathPattern: filepath.Join("{YEAR}", "{MONTH}", "{DAY}", "{SCENE}.zip")}
}

// Download implements ImageProvider
func (ip *LocalImageProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	format, err := common.Info(tile.Product.Name)
	if err != nil {
		return "", fmt.Errorf("LocalImageProvider: %w", err)
	}

	srcZip := filepath.Join(ip.path, common.FormatBrackets(ip.pathPattern, format))
	src, err := os.Open(srcZip)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrProductNotFound{srcZip}
		}
		return "", fmt.Errorf("LocalImageProvider: %w", err)
	}
	defer src.Close()

	archive, partial := archivePath(localDir, tile)
	if err := commitArchive(partial, archive, fileCopy(src, partial)); err != nil {
		return "", fmt.Errorf("LocalImageProvider.%w", err)
	}
	return archive, nil
}

// fileCopy copies src to dst
func fileCopy(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fileCopy.Create: %w", err)
	}
	if _, err = io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("fileCopy.Copy: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("fileCopy.Close: %w", err)
	}
	return nil
}
