package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/airbusgeo/s2-indices/common"
	"github.com/mholt/archiver"
)

// Extension of an artifact
type Extension string

// Some supported extensions
const (
	NoExtension    Extension = ""
	ExtensionGTiff Extension = "tif"
	ExtensionJP2   Extension = "jp2"
	ExtensionPNG   Extension = "png"
	ExtensionJSON  Extension = "json"
	ExtensionXML   Extension = "xml"
	ExtensionZIP   Extension = "zip"
	ExtensionPart  Extension = "part"
	// Directory, stored as a zip file (see storedAsZip)
	ExtensionSAFE  Extension = "SAFE"
)

// ErrFileNotFound is an error returned by Delete
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// Storage is a service to publish the artifacts of a tile
type Storage interface {
	// Save persists the local file (or directory) into the storage and returns the uri
	Save(ctx context.Context, tile common.TileID, localPath string) (string, error)
	// Delete deletes the artifact of the tile from the storage
	// Raise ErrFileNotFound
	Delete(ctx context.Context, tile common.TileID, name string) error
}

// StorageStrategy implements Storage using geocube.Strategy
type StorageStrategy struct {
	storage storage.Strategy
	uri     uri.DefaultUri
}

// NewStorageStrategy creates a new StorageStrategy (currently supported: local, gs)
func NewStorageStrategy(ctx context.Context, storageURI string) (*StorageStrategy, error) {
	uri, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.ParseURI: %w", err)
	}

	storageClient, err := uri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy: %w", err)
	}

	return &StorageStrategy{storage: storageClient, uri: uri}, nil
}

// Save implements Storage
func (ss *StorageStrategy) Save(ctx context.Context, tile common.TileID, localPath string) (string, error) {
	src := localPath
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("Save.Stat: %w", err)
	}
	if info.IsDir() {
		dst := src + "." + string(ExtensionZIP)
		zipper := archiver.NewZip()
		zipper.CompressionLevel = flate.BestSpeed
		zipper.OverwriteExisting = true
		if err := zipper.Archive([]string{src}, dst); err != nil {
			return "", fmt.Errorf("Save.Archive: %w", err)
		}
		defer os.Remove(dst)
		src = dst
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w", err)
	}
	defer f.Close()

	dst := ss.getPath(tile, filepath.Base(src))
	if err := ss.storage.UploadFile(ctx, dst, f); err != nil {
		return "", MakeTemporary(fmt.Errorf("Save.UploadFile to %s: %w", dst, err))
	}
	return dst, nil
}

// Delete implements Storage
func (ss *StorageStrategy) Delete(ctx context.Context, tile common.TileID, name string) error {
	if storedAsZip(GetExt(name)) {
		name += "." + string(ExtensionZIP)
	}
	file := ss.getPath(tile, name)
	if err := ss.storage.Delete(ctx, file); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{file}
		}
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// getPath returns the uri of the artifact of the tile
func (ss *StorageStrategy) getPath(tile common.TileID, filename string) string {
	uri := ss.uri.String()
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + path.Join(string(tile), filename)
}

func storedAsZip(ext Extension) bool {
	return ext == ExtensionSAFE
}

func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}

func GetExt(filePath string) Extension {
	ext := path.Ext(filePath)
	if ext == "" {
		return NoExtension
	}
	return Extension(ext[1:])
}
