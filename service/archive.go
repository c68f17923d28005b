package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/mholt/archiver"
)

// CheckArchive validates the zip format and its central directory
func CheckArchive(archive string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(archive), err)
	}
	defer r.Close()
	if len(r.File) == 0 {
		return fmt.Errorf("%w: %s: empty zip", ErrCorruptArchive, filepath.Base(archive))
	}
	return nil
}

// Unarchive extracts the archive into workdir and deletes it.
// It returns the names of the top-level entries that have been extracted.
// A corrupt archive is left in place and ErrCorruptArchive is returned.
func Unarchive(ctx context.Context, archive, workdir string) ([]string, error) {
	if err := CheckArchive(archive); err != nil {
		return nil, fmt.Errorf("Unarchive.%w", err)
	}
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return nil, MakeTemporary(fmt.Errorf("Unarchive.MkdirAll: %w", err))
	}
	tmpdir, err := os.MkdirTemp(workdir, filepath.Base(archive))
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("Unarchive.MkdirTemp: %w", err))
	}
	defer os.RemoveAll(tmpdir)

	log.Logger(ctx).Sugar().Debugf("extracting %s", archive)
	z := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
	if err := z.Unarchive(archive, tmpdir); err != nil {
		return nil, fmt.Errorf("Unarchive: %w: %v", ErrCorruptArchive, err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("Unarchive.ReadDir: %w", err))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("Unarchive: %w: empty zip", ErrCorruptArchive)
	}
	entries := make([]string, 0, len(files))
	for _, f := range files {
		dst := filepath.Join(workdir, f.Name())
		// Stale entries of a previous extraction are replaced
		if err := os.RemoveAll(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, MakeTemporary(fmt.Errorf("Unarchive.RemoveAll: %w", err))
		}
		if err := os.Rename(filepath.Join(tmpdir, f.Name()), dst); err != nil {
			return nil, MakeTemporary(fmt.Errorf("Unarchive.Rename: %w", err))
		}
		entries = append(entries, f.Name())
	}
	if err := os.Remove(archive); err != nil {
		log.Logger(ctx).Sugar().Warnf("Unarchive: unable to remove %s: %v", archive, err)
	}
	return entries, nil
}
