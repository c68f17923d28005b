package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airbusgeo/s2-indices/service"
)

// DefaultResolution is the resolution directory the bands are read from
const DefaultResolution = "R60m"

// GranuleDir returns the image directory of the first granule of the workspace at the given resolution
// Raise service.ErrGranuleDirMissing
func GranuleDir(workspace, resolution string) (string, error) {
	granule := filepath.Join(workspace, "GRANULE")
	entries, err := os.ReadDir(granule)
	if err != nil {
		return "", fmt.Errorf("GranuleDir[%s]: %w: %v", filepath.Base(workspace), service.ErrGranuleDirMissing, err)
	}
	// ReadDir returns entries sorted by filename
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(granule, e.Name(), "IMG_DATA", resolution), nil
		}
	}
	return "", fmt.Errorf("GranuleDir[%s]: %w: empty GRANULE directory", filepath.Base(workspace), service.ErrGranuleDirMissing)
}

// bandTokens returns the components of the file name, without extension, split on "_"
// e.g. T31TCJ_20240101T105441_B8A_60m.jp2 => [T31TCJ 20240101T105441 B8A 60m]
func bandTokens(filename string) []string {
	return strings.Split(strings.TrimSuffix(filename, filepath.Ext(filename)), "_")
}

// LocateBands returns the path of the raster of each band code in the first granule of the workspace.
// A code matches a whole component of the file name, so that B1 does not match B11.
// Raise service.ErrGranuleDirMissing, service.ErrBandNotFound
func LocateBands(workspace, resolution string, codes ...string) (map[string]string, error) {
	if resolution == "" {
		resolution = DefaultResolution
	}
	imgDir, err := GranuleDir(workspace, resolution)
	if err != nil {
		return nil, fmt.Errorf("LocateBands.%w", err)
	}
	entries, err := os.ReadDir(imgDir)
	if err != nil {
		return nil, fmt.Errorf("LocateBands[%s]: %w: %v", resolution, service.ErrBandNotFound, err)
	}

	paths := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, token := range bandTokens(e.Name()) {
			for _, code := range codes {
				if _, ok := paths[code]; !ok && token == code {
					paths[code] = filepath.Join(imgDir, e.Name())
				}
			}
		}
	}

	var missing []string
	for _, code := range codes {
		if _, ok := paths[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return paths, fmt.Errorf("LocateBands[%s]: %w: %s", resolution, service.ErrBandNotFound, strings.Join(missing, ", "))
	}
	return paths, nil
}
