package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/processor"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"go.uber.org/zap"
)

type config struct {
	Archive       string
	Workspace     string
	WorkingDir    string
	OutputDir     string
	Resolution    string
	KeepWorkspace bool
	ResultJSON    string
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.Archive, "archive", "", "zip archive of a Level-2A product (<product>.zip)")
	flag.StringVar(&config.Workspace, "workspace", "", "extracted Level-2A product (<product>.SAFE), instead of archive")
	flag.StringVar(&config.WorkingDir, "workdir", os.TempDir(), "working directory to extract the archive")
	flag.StringVar(&config.OutputDir, "outdir", ".", "directory of the rendered images")
	flag.StringVar(&config.Resolution, "resolution", "", "resolution directory of the bands (R10m, R20m or R60m, default: R60m)")
	flag.BoolVar(&config.KeepWorkspace, "keep-workspace", false, "do not delete the extracted product")
	flag.StringVar(&config.ResultJSON, "result", "", "name of the json file written in outdir with the result (optional, stdout if empty)")
	flag.Parse()

	if (config.Archive == "") == (config.Workspace == "") {
		return nil, fmt.Errorf("one of archive or workspace config flag is required")
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	workspace := config.Workspace
	if config.Archive != "" {
		entries, err := service.Unarchive(ctx, config.Archive, config.WorkingDir)
		if err != nil {
			return err
		}
		if workspace, err = safeDir(config.WorkingDir, entries); err != nil {
			return err
		}
	}
	tile := common.TileIDFromName(filepath.Base(workspace))
	ctx = log.With(ctx, "tile", string(tile))

	res := processor.ProcessTile(ctx, workspace, config.OutputDir, processor.Options{
		Resolution:    config.Resolution,
		KeepWorkspace: config.KeepWorkspace,
	})
	if res.MetadataErr != nil {
		log.Logger(ctx).Warn("metadata", zap.Error(res.MetadataErr))
	}
	for kind, err := range res.IndexErrs {
		log.Logger(ctx).Warn(kind.String(), zap.Error(err))
	}

	tr := res.ToTileResult(tile)
	if config.ResultJSON != "" {
		return service.ToJSON(tr, config.OutputDir, config.ResultJSON)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tr)
}

// safeDir returns the extracted <product>.SAFE directory
func safeDir(workdir string, entries []string) (string, error) {
	for _, e := range entries {
		if strings.HasSuffix(e, ".SAFE") {
			return filepath.Join(workdir, e), nil
		}
	}
	return "", fmt.Errorf("%w: no .SAFE directory in %v", service.ErrCorruptArchive, entries)
}
