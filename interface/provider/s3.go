package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ImageProvider implements ImageProvider for an S3 bucket of Sentinel-2 archives
type S3ImageProvider struct {
	bucket          string
	keyPattern      string
	region          string
	accessKeyId     string
	secretAccessKey string
}

// Name implements ImageProvider
func (ip *S3ImageProvider) Name() string {
	return "S3 (" + ip.bucket + ")"
}

// NewS3ImageProvider creates a new ImageProvider from an S3 bucket
// keyPattern is the key of the archives, i.e: Sentinel-2/{YEAR}/{MONTH}/{DAY}/{SCENE}.zip (See common.FormatBrackets)
// If accessKeyId is empty, the default credential chain is used.
func NewS3ImageProvider(bucket, keyPattern, region, accessKeyId, secretAccessKey string) *S3ImageProvider {
	if keyPattern == "" {
		keyPattern = "{SCENE}.zip"
	}
	return &S3ImageProvider{
		bucket:          bucket,
		keyPattern:      keyPattern,
		region:          region,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}
}

// Download implements ImageProvider
func (ip *S3ImageProvider) Download(ctx context.Context, tile common.Tile, localDir string) (string, error) {
	format, err := common.Info(tile.Product.Name)
	if err != nil {
		return "", fmt.Errorf("S3ImageProvider: %w", err)
	}
	key := common.FormatBrackets(ip.keyPattern, format)

	options := []func(*config.LoadOptions) error{config.WithRegion(ip.region)}
	if ip.accessKeyId != "" {
		options = append(options, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ip.accessKeyId, ip.secretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return "", fmt.Errorf("S3ImageProvider config.LoadDefaultConfig: %w", err)
	}

	// Create an Amazon S3 service client
	client := s3.NewFromConfig(cfg)

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(ip.bucket), Key: aws.String(key)})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", ErrProductNotFound{"s3://" + ip.bucket + "/" + key}
		}
		return "", service.MakeTemporary(fmt.Errorf("S3ImageProvider.HeadObject: %w: %v", service.ErrTransport, err))
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})

	archive, partial := archivePath(localDir, tile)
	progress := NewProgress(ctx, ip.Name()+":"+string(tile.ID), aws.ToInt64(head.ContentLength), 5)
	log.Logger(ctx).Sugar().Infof("downloading %s from %s", tile.ID, ip.Name())
	if err := commitArchive(partial, archive, downloadSingleObjectToFile(ctx, downloader, ip.bucket, key, partial, progress)); err != nil {
		return "", fmt.Errorf("S3ImageProvider.%w", err)
	}
	return archive, nil
}

func downloadSingleObjectToFile(ctx context.Context, downloader *manager.Downloader, bucketName string, objectKey string, localPath string, progress *Progress) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, &progressWriterAt{w: file, progress: progress}, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("downloadSingleObjectToFile: failed to download object %s:%s: %w: %v",
			bucketName, objectKey, service.ErrTransport, err))
	}
	return nil
}
