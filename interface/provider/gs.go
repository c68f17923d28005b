package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage/gcs"
	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
	"google.golang.org/api/iterator"
)

// GSImageProvider implements ImageProvider for Google Storage buckets of Sentinel-2 archives
type GSImageProvider struct {
	buckets []string
}

// Name implements ImageProvider
func (ip *GSImageProvider) Name() string {
	return "GoogleStorage"
}

// NewGSImageProvider creates a new ImageProvider from Google Storage buckets
// bucket can contain several {IDENTIFIER} than will be replaced according to the information found in the product name
// IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
// i.e: gs://bucket/sentinel2/{TILE}/{YEAR}/{SCENE}.zip
// "*" and "?" wildcards are allowed: the first matching blob is downloaded.
func NewGSImageProvider(buckets ...string) *GSImageProvider {
	return &GSImageProvider{buckets: buckets}
}

func findBlob(ctx context.Context, url string) (string, error) {
	// Find the first blob that matches the url pattern
	bucket, blob, err := gcs.Parse(url)
	if err != nil {
		return "", err
	}
	gsClient, err := storage.NewClient(ctx)
	if err != nil {
		return "", err
	}
	defer gsClient.Close()
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.Index(blob, "*"); i != -1 {
		blob = blob[:i]
	}
	// Find all the blobs that match the prefix
	it := gsClient.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("list[%s/%s*]: %w", bucket, blob, err)
		}
		if idx := re.FindIndex([]byte(attrs.Name)); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return url, ErrProductNotFound{url}
}

// Download implements ImageProvider
func (ip *GSImageProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	if len(ip.buckets) == 0 {
		return "", fmt.Errorf("GSImageProvider: no bucket")
	}
	format, err := common.Info(tile.Product.Name)
	if err != nil {
		return "", fmt.Errorf("GSImageProvider: %w", err)
	}

	archive, partial := archivePath(localDir, tile)
	for _, bucket := range ip.buckets {
		url := common.FormatBrackets(bucket, format)
		e := func() error {
			if strings.ContainsAny(url, "*?") {
				if url, err = findBlob(ctx, url); err != nil {
					return fmt.Errorf("GSImageProvider: %w", err)
				}
			}
			if err := ip.downloadZip(ctx, url, partial); err != nil {
				return fmt.Errorf("GSImageProvider[%s].%w", url, err)
			}
			return nil
		}()
		if err = service.MergeErrors(false, err, commitArchive(partial, archive, e)); err == nil {
			return archive, nil
		}
	}
	return "", err
}

// downloadZip to destination
func (ip *GSImageProvider) downloadZip(ctx context.Context, uri string, dst string) error {
	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return fmt.Errorf("downloadZip.NewGsStrategy: %w", err)
	}
	log.Logger(ctx).Sugar().Infof("downloading %s", uri)
	if err := gs.DownloadToFile(ctx, uri, dst); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrProductNotFound{uri}
		}
		return service.MakeTemporary(fmt.Errorf("downloadZip.%w", err))
	}
	return nil
}
