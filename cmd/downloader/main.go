package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/geocube/interface/messaging"
	"github.com/airbusgeo/geocube/interface/messaging/pgqueue"
	"github.com/airbusgeo/geocube/interface/messaging/pubsub"
	"github.com/airbusgeo/s2-indices/catalog"
	"github.com/airbusgeo/s2-indices/interface/catalog/copernicus"
	db "github.com/airbusgeo/s2-indices/interface/database"
	"github.com/airbusgeo/s2-indices/interface/database/pg"
	"github.com/airbusgeo/s2-indices/interface/provider"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"github.com/airbusgeo/s2-indices/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type config struct {
	WorkingDir    string
	OutputDir     string
	StorageURI    string
	DbConnection  string
	Resolution    string
	KeepWorkspace bool

	PsProject       string
	JobQueue        string
	EventQueue      string
	PgqDbConnection string

	CopernicusUsername    string
	CopernicusPassword    string
	CopernicusCatalogURL  string
	CopernicusAuthURL     string
	CopernicusDownloadURL string

	Mirrors provider.MirrorsConfig
}

func newAppConfig() (*config, error) {
	config := config{}
	// Global config
	flag.StringVar(&config.WorkingDir, "workdir", "/local-ssd", "working directory to download and extract the tiles")
	flag.StringVar(&config.OutputDir, "outdir", "/local-ssd/images", "directory of the rendered images (one subdirectory per tile)")
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri (currently supported: local, gs). To publish the images and the metadata.")
	flag.StringVar(&config.DbConnection, "db-connection", "", "database connection to keep the metadata (optional)")
	flag.StringVar(&config.Resolution, "resolution", "", "resolution directory of the bands (R10m, R20m or R60m, default: R60m)")
	flag.BoolVar(&config.KeepWorkspace, "keep-workspace", false, "do not delete the extracted tiles")

	// Messaging
	flag.StringVar(&config.PgqDbConnection, "pgq-connection", "", "enable pgq messaging system with a connection to the database")
	flag.StringVar(&config.PsProject, "ps-project", "", "pubsub subscription project (gcp only/not required in local usage)")
	flag.StringVar(&config.JobQueue, "job-queue", "", "name of the queue for tile jobs (pgqueue or pubsub subscription)")
	flag.StringVar(&config.EventQueue, "event-queue", "", "name of the queue for job results (pgqueue or pubsub topic)")

	// Providers
	flag.StringVar(&config.CopernicusUsername, "copernicus-username", "", "Copernicus Data Space account username")
	flag.StringVar(&config.CopernicusPassword, "copernicus-password", "", "Copernicus Data Space account password")
	flag.StringVar(&config.CopernicusCatalogURL, "copernicus-catalog-url", copernicus.CopernicusODataURL, "Copernicus OData catalog")
	flag.StringVar(&config.CopernicusAuthURL, "copernicus-auth-url", provider.CopernicusAuthURL, "Copernicus identity service")
	flag.StringVar(&config.CopernicusDownloadURL, "copernicus-download-url", provider.CopernicusDownloadURL, "Copernicus download service")
	gsBuckets := config.Mirrors.SetFlags()

	flag.Parse()

	if config.WorkingDir == "" {
		return nil, fmt.Errorf("missing workdir config flag")
	}
	if config.CopernicusUsername == "" || config.CopernicusPassword == "" {
		return nil, fmt.Errorf("missing copernicus-username or copernicus-password config flag")
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

	var jobConsumer messaging.Consumer
	var eventPublisher messaging.Publisher
	var logMessaging string
	{
		if config.PgqDbConnection != "" {
			pgdb, w, err := pgqueue.SqlConnect(ctx, config.PgqDbConnection)
			if err != nil {
				return fmt.Errorf("MessagingService: %w", err)
			}
			if config.JobQueue != "" {
				logMessaging += fmt.Sprintf(" pulling on pgqueue:%s", config.JobQueue)
				consumer := pgqueue.NewConsumer(pgdb, config.JobQueue)
				defer consumer.Stop()
				jobConsumer = consumer
			}
			if config.EventQueue != "" {
				logMessaging += fmt.Sprintf(" pushing on pgqueue:%s", config.EventQueue)
				eventPublisher = pgqueue.NewPublisher(w, config.EventQueue, pgqueue.WithMaxRetries(5))
			}
		} else {
			if config.JobQueue != "" {
				logMessaging += fmt.Sprintf(" pulling on pubsub:%s/%s", config.PsProject, config.JobQueue)
				if jobConsumer, err = pubsub.NewConsumer(config.PsProject, config.JobQueue); err != nil {
					return fmt.Errorf("pubsub.NewConsumer: %w", err)
				}
			}
			if config.EventQueue != "" {
				logMessaging += fmt.Sprintf(" pushing on pubsub:%s/%s", config.PsProject, config.EventQueue)
				eventTopic, err := pubsub.NewPublisher(ctx, config.PsProject, config.EventQueue, pubsub.WithMaxRetries(5))
				if err != nil {
					return fmt.Errorf("pubsub.NewPublisher: %w", err)
				}
				defer eventTopic.Stop()
				eventPublisher = eventTopic
			}
		}
	}
	if jobConsumer == nil {
		return fmt.Errorf("missing configuration for messaging.JobConsumer")
	}
	if eventPublisher == nil {
		return fmt.Errorf("missing configuration for messaging.EventPublisher")
	}

	var metadataDB db.MetadataBackend
	if config.DbConnection != "" {
		if metadataDB, err = pg.New(ctx, config.DbConnection); err != nil {
			return fmt.Errorf("pg.New: %w", err)
		}
	}
	var storage service.Storage
	if config.StorageURI != "" {
		if storage, err = service.NewStorageStrategy(ctx, config.StorageURI); err != nil {
			return fmt.Errorf("storage %s: %w", config.StorageURI, err)
		}
	}

	// Mirrors are tried after Copernicus
	mirrors, mirrorNames, err := config.Mirrors.ImageProviders()
	if err != nil {
		return err
	}

	c := catalog.Catalog{Provider: &copernicus.Provider{
		BaseURL: config.CopernicusCatalogURL,
		Retries: 3,
		Client:  &http.Client{Timeout: time.Minute},
	}}
	wf := workflow.NewWorkflow(workflow.Config{
		WorkingDir:    config.WorkingDir,
		OutputDir:     config.OutputDir,
		TileOutputDir: true,
		Resolution:    config.Resolution,
		KeepWorkspace: config.KeepWorkspace,
		CopernicusOptions: []provider.CopernicusOption{
			provider.WithCopernicusEndpoints(config.CopernicusAuthURL, config.CopernicusDownloadURL),
		},
	}, &c, mirrors, metadataDB, storage)
	session := workflow.Session{
		ID:       uuid.New().String(),
		Username: config.CopernicusUsername,
		Password: config.CopernicusPassword,
	}

	jobStarted := time.Time{}
	go func() {
		http.HandleFunc("/termination_cost", func(w http.ResponseWriter, r *http.Request) {
			terminationCost := 0
			if jobStarted != (time.Time{}) {
				terminationCost = int(time.Since(jobStarted).Seconds() * 1000) //milliseconds since task was leased
			}
			fmt.Fprintf(w, "%d", terminationCost)
		})
		http.ListenAndServe(":9000", nil)
	}()

	maxTries := 15
	log.Logger(ctx).Debug("downloader starts" + logMessaging + " downloading tiles from Copernicus, " + strings.Join(mirrorNames, ", "))
	for {
		err := jobConsumer.Pull(ctx, func(ctx context.Context, msg *messaging.Message) error {
			jobStarted = time.Now()
			defer func() {
				jobStarted = time.Time{}
			}()
			ctx = log.With(ctx, "msgID", msg.ID)
			log.Logger(log.With(ctx, "body", string(msg.Data))).Sugar().Debugf("message %s try %d", msg.ID, msg.TryCount)
			if msg.TryCount > maxTries {
				return fmt.Errorf("too many retries")
			}
			return wf.HandleJob(ctx, session, msg.Data, eventPublisher)
		})
		if err != nil {
			return fmt.Errorf("ps.process: %w", err)
		}
	}
}
