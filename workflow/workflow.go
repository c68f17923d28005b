package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbusgeo/s2-indices/catalog"
	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/downloader"
	icatalog "github.com/airbusgeo/s2-indices/interface/catalog"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/airbusgeo/s2-indices/interface/provider"
	"github.com/airbusgeo/s2-indices/processor"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/geometry"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// MetadataJSON is the name of the published metadata document of a tile
const MetadataJSON = "metadata.json"

// Session of a caller. The credentials are exchanged for a new token at each download.
type Session struct {
	ID       string
	Username string
	Password string
}

// Request of a pipeline run
type Request struct {
	AOI         string   // WKT or GeoJSON
	DayRange    int      // Period [today-DayRange, today)
	CloudCover  *float64 // Maximum cloud cover percentage (optional)
	MaxTiles    int      // 0 for 1, catalog.AllTiles for no limit
	MinCoverage float64  // Optional, see catalog.SelectOptions
}

// TileResult is the result of the processing of a tile
type TileResult struct {
	TileID common.TileID
	processor.Result
	// Artifacts are the uris of the published files
	Artifacts []string
}

// Result of a pipeline run
type Result struct {
	Outcome common.Outcome
	Tiles   []TileResult
}

// ToCommon converts the result to its serializable form
func (r Result) ToCommon(id string, err error) common.Result {
	res := common.Result{ID: id, Outcome: r.Outcome}
	if err != nil {
		res.Message = err.Error()
	}
	for _, t := range r.Tiles {
		tr := t.ToTileResult(t.TileID)
		tr.Artifacts = t.Artifacts
		res.Tiles = append(res.Tiles, tr)
	}
	return res
}

// Config of the workflow
type Config struct {
	// WorkingDir is the parent of the working directories of the runs
	WorkingDir string
	// OutputDir is the directory of the images
	OutputDir string
	// TileOutputDir writes the images in OutputDir/<TileID>
	TileOutputDir bool
	// Resolution of the bands (processor.DefaultResolution if empty)
	Resolution string
	// KeepWorkspace disables the deletion of the extracted tiles
	KeepWorkspace bool
	// CopernicusOptions configures the Copernicus provider of the sessions
	CopernicusOptions []provider.CopernicusOption
}

// Workflow runs the tile acquisition and index derivation pipeline
type Workflow struct {
	config  Config
	catalog *catalog.Catalog
	// mirrors are tried after Copernicus
	mirrors []provider.ImageProvider
	db      db.MetadataBackend
	storage service.Storage

	tileLocks tileLocks
	now       func() time.Time
}

// NewWorkflow creates a workflow. mirrors, metadataDB and storage are optional.
func NewWorkflow(config Config, catalog *catalog.Catalog, mirrors []provider.ImageProvider, metadataDB db.MetadataBackend, storage service.Storage) *Workflow {
	if metadataDB == nil {
		metadataDB = db.NewMemoryBackend()
	}
	return &Workflow{
		config:    config,
		catalog:   catalog,
		mirrors:   mirrors,
		db:        metadataDB,
		storage:   storage,
		tileLocks: tileLocks{locks: map[common.TileID]*tileLock{}},
		now:       time.Now,
	}
}

// MetadataBackend returns the backend where the metadata of the processed tiles are kept
func (wf *Workflow) MetadataBackend() db.MetadataBackend {
	return wf.db
}

func (wf *Workflow) copernicus(s Session) *provider.CopernicusImageProvider {
	return provider.NewCopernicusImageProvider(s.Username, s.Password, wf.config.CopernicusOptions...)
}

// imageProviders returns the providers of the session, in the order they are tried
func (wf *Workflow) imageProviders(s Session) []provider.ImageProvider {
	return append([]provider.ImageProvider{wf.copernicus(s)}, wf.mirrors...)
}

// Login checks the credentials of the session by requesting a token
// Raise service.ErrAuthFailed
func (wf *Workflow) Login(ctx context.Context, s Session) (*oauth2.Token, error) {
	token, err := wf.copernicus(s).LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("Login.%w", err)
	}
	return token, nil
}

// Run executes the pipeline for the request: catalog query, tile selection,
// then for each selected tile: download, extraction, metadata, indices and cleaning.
// It returns the outcome and the results of the processed tiles (possibly partial).
// Authentication, catalog and download failures abort the run and are returned as error.
func (wf *Workflow) Run(ctx context.Context, s Session, r Request) (Result, error) {
	g, err := service.ParseAOI(r.AOI)
	if err != nil {
		return Result{Outcome: common.OutcomeFailed}, fmt.Errorf("Run.%w", err)
	}
	aoi, err := geometry.NormalizeWKT(g)
	if err != nil {
		return Result{Outcome: common.OutcomeFailed}, fmt.Errorf("Run.%w", err)
	}
	if r.DayRange <= 0 {
		return Result{Outcome: common.OutcomeFailed}, fmt.Errorf("Run: day range must be positive, got %d", r.DayRange)
	}
	q := icatalog.QueryFromDayRange(aoi, r.DayRange, r.CloudCover, wf.now())
	opts := catalog.SelectOptions{MaxTiles: r.MaxTiles, MinCoverage: r.MinCoverage, AOI: aoi}
	return wf.RunQuery(ctx, s, q, opts)
}

// RunQuery is Run with an already parsed query
func (wf *Workflow) RunQuery(ctx context.Context, s Session, q icatalog.Query, opts catalog.SelectOptions) (Result, error) {
	runID := uuid.New().String()
	ctx = log.With(ctx, "run", runID)

	tiles, err := wf.catalog.Tiles(ctx, q, opts)
	if err != nil {
		if errors.Is(err, service.ErrNoTilesFound) {
			log.Logger(ctx).Sugar().Infof("%v", err)
			return Result{Outcome: common.OutcomeNoTilesFound}, nil
		}
		return Result{Outcome: common.OutcomeFailed}, fmt.Errorf("RunQuery.%w", err)
	}

	// Working dir
	workdir := filepath.Join(wf.config.WorkingDir, runID)
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return Result{Outcome: common.OutcomeFailed}, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	res := Result{Outcome: common.OutcomeProcessed}
	for _, tile := range tiles {
		tr, err := wf.processTile(log.With(ctx, "tile", string(tile.ID)), s, tile, workdir)
		if err != nil {
			if errors.Is(err, service.ErrAuthFailed) {
				res.Outcome = common.OutcomeFailed
			} else {
				res.Outcome = common.OutcomeDownloadFailed
			}
			return res, fmt.Errorf("RunQuery.%w", err)
		}
		res.Tiles = append(res.Tiles, tr)
	}
	return res, nil
}

// processTile downloads and processes the tile, publishes the artifacts and saves the metadata.
// Only download and extraction failures are returned.
func (wf *Workflow) processTile(ctx context.Context, s Session, tile common.Tile, workdir string) (TileResult, error) {
	unlock := wf.tileLocks.Lock(tile.ID)
	defer unlock()

	workspace, err := downloader.Download(ctx, wf.imageProviders(s), tile, workdir)
	if err != nil {
		return TileResult{}, fmt.Errorf("processTile.%w", err)
	}

	outdir := wf.config.OutputDir
	if wf.config.TileOutputDir {
		outdir = filepath.Join(outdir, string(tile.ID))
	}
	log.Logger(ctx).Sugar().Infof("processing %s", tile.ID)
	tr := TileResult{
		TileID: tile.ID,
		Result: processor.ProcessTile(ctx, workspace, outdir, processor.Options{
			Resolution:    wf.config.Resolution,
			KeepWorkspace: wf.config.KeepWorkspace,
		}),
	}
	log.Logger(ctx).Sugar().Infof("%s processed: %d images, %d index failures", tile.ID, len(tr.Images), len(tr.IndexErrs))

	tr.Artifacts = wf.publish(ctx, tile.ID, workdir, tr.Result)

	if err := wf.db.SaveMetadata(ctx, db.TileMetadata{
		TileID:   tile.ID,
		Session:  s.ID,
		Metadata: tr.Metadata,
		Images:   tr.Images,
	}); err != nil {
		log.Logger(ctx).Sugar().Warnf("processTile.%v", err)
	}
	return tr, nil
}

// publish saves the images and the metadata of the tile in the storage (if configured)
// and removes the stored images that this run could not compute.
// Failures are logged and the file is skipped.
func (wf *Workflow) publish(ctx context.Context, tile common.TileID, workdir string, res processor.Result) []string {
	if wf.storage == nil {
		return nil
	}
	var files []string
	for _, kind := range common.IndexKindValues() {
		if f, ok := res.Images[kind]; ok {
			files = append(files, f)
			continue
		}
		// Image of a previous run
		if err := wf.storage.Delete(ctx, tile, kind.ImageName()); err != nil && !errors.As(err, &service.ErrFileNotFound{}) {
			log.Logger(ctx).Sugar().Warnf("publish.%v", err)
		}
	}
	if res.Metadata != nil {
		if err := service.ToJSON(res.Metadata, workdir, MetadataJSON); err != nil {
			log.Logger(ctx).Sugar().Warnf("publish.%v", err)
		} else {
			files = append(files, filepath.Join(workdir, MetadataJSON))
		}
	}

	var artifacts []string
	for _, f := range files {
		uri, err := wf.storage.Save(ctx, tile, f)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("publish.%v", err)
			continue
		}
		artifacts = append(artifacts, uri)
	}
	return artifacts
}

// tileLocks serialises the runs working on the same tile (same output paths)
type tileLocks struct {
	mu    sync.Mutex
	locks map[common.TileID]*tileLock
}

type tileLock struct {
	sync.Mutex
	refs int
}

// Lock the tile and returns the unlock function
func (tl *tileLocks) Lock(tile common.TileID) func() {
	tl.mu.Lock()
	l, ok := tl.locks[tile]
	if !ok {
		l = &tileLock{}
		tl.locks[tile] = l
	}
	l.refs++
	tl.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		tl.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(tl.locks, tile)
		}
		tl.mu.Unlock()
	}
}
