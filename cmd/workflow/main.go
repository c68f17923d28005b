package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/s2-indices/catalog"
	"github.com/airbusgeo/s2-indices/interface/catalog/copernicus"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/airbusgeo/s2-indices/interface/database/pg"
	"github.com/airbusgeo/s2-indices/interface/provider"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/airbusgeo/s2-indices/workflow"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type copernicusConfig struct {
	CatalogURL  string
	AuthURL     string
	DownloadURL string
	Retries     int
}

type config struct {
	AppPort       string
	ApiKey        string
	DbConnection  string
	StorageURI    string
	WorkingDir    string
	OutputDir     string
	TileOutputDir bool
	Resolution    string
	KeepWorkspace bool

	Copernicus copernicusConfig
	Mirrors    provider.MirrorsConfig
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.AppPort, "port", "8080", "port of the http server")
	flag.StringVar(&config.ApiKey, "api-key", "", "bearer token required by every request (optional)")
	flag.StringVar(&config.DbConnection, "db-connection", "", "database connection to keep the metadata (optional, in memory if empty)")
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri where the images and the metadata are published (optional, currently supported: local, gs)")
	flag.StringVar(&config.WorkingDir, "workdir", "/tmp/s2-indices", "working directory to download and extract the tiles")
	flag.StringVar(&config.OutputDir, "outdir", ".", "directory of the rendered images")
	flag.BoolVar(&config.TileOutputDir, "tile-outdir", false, "write the images in <outdir>/<tile> (the images of the last tile are overwritten otherwise)")
	flag.StringVar(&config.Resolution, "resolution", "", "resolution directory of the bands (R10m, R20m or R60m, default: R60m)")
	flag.BoolVar(&config.KeepWorkspace, "keep-workspace", false, "do not delete the extracted tiles")

	flag.StringVar(&config.Copernicus.CatalogURL, "copernicus-catalog-url", copernicus.CopernicusODataURL, "Copernicus OData catalog")
	flag.StringVar(&config.Copernicus.AuthURL, "copernicus-auth-url", provider.CopernicusAuthURL, "Copernicus identity service")
	flag.StringVar(&config.Copernicus.DownloadURL, "copernicus-download-url", provider.CopernicusDownloadURL, "Copernicus download service")
	flag.IntVar(&config.Copernicus.Retries, "copernicus-retries", 3, "number of retries of the catalog queries")
	gsBuckets := config.Mirrors.SetFlags()
	flag.Parse()

	if config.AppPort == "" {
		return nil, fmt.Errorf("missing port config flag")
	}
	if config.WorkingDir == "" {
		return nil, fmt.Errorf("missing workdir config flag")
	}
	if *gsBuckets != "" {
		config.Mirrors.GSBuckets = strings.Split(*gsBuckets, ",")
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

	// Metadata database
	var metadataDB db.MetadataBackend
	if config.DbConnection != "" {
		if metadataDB, err = pg.New(ctx, config.DbConnection); err != nil {
			return fmt.Errorf("pg.New: %w", err)
		}
	} else {
		log.Logger(ctx).Warn("database is not configured: the metadata are kept in memory")
	}

	// Publication of the artifacts
	var storage service.Storage
	if config.StorageURI != "" {
		if storage, err = service.NewStorageStrategy(ctx, config.StorageURI); err != nil {
			return fmt.Errorf("storage %s: %w", config.StorageURI, err)
		}
	}

	mirrors, mirrorNames, err := config.Mirrors.ImageProviders()
	if err != nil {
		return err
	}

	c := catalog.Catalog{Provider: &copernicus.Provider{
		BaseURL: config.Copernicus.CatalogURL,
		Retries: config.Copernicus.Retries,
		Client:  &http.Client{Timeout: time.Minute},
	}}
	wf := workflow.NewWorkflow(workflow.Config{
		WorkingDir:    config.WorkingDir,
		OutputDir:     config.OutputDir,
		TileOutputDir: config.TileOutputDir,
		Resolution:    config.Resolution,
		KeepWorkspace: config.KeepWorkspace,
		CopernicusOptions: []provider.CopernicusOption{
			provider.WithCopernicusEndpoints(config.Copernicus.AuthURL, config.Copernicus.DownloadURL),
		},
	}, &c, mirrors, metadataDB, storage)

	// Http server
	router := workflow.NewServer(wf).NewHandler()
	if config.ApiKey != "" {
		router.Use(bearerAuthenticate(config.ApiKey))
	}
	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	s := http.Server{
		Addr:    ":" + config.AppPort,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(handlers.CompressHandler(router)),
	}

	log.Logger(ctx).Sugar().Infof("workflow listens on :%s, mirrors: [%s]", config.AppPort, strings.Join(mirrorNames, ", "))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
