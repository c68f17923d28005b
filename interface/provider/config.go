package provider

import (
	"flag"
	"fmt"
	"strings"
)

// MirrorsConfig configures the image providers tried after Copernicus
type MirrorsConfig struct {
	LocalPath string
	GSBuckets []string

	S3Bucket          string
	S3KeyPattern      string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	FTPPathPattern string
	FTPUsername    string
	FTPPassword    string
}

// SetFlags configures the flags of the mirrors
// Returns the gs buckets as string, comma sep.
//
//	cfg := MirrorsConfig{}
//	gsBuckets := cfg.SetFlags()
//
//	flag.Parse()
//
//	if *gsBuckets != "" {
//		cfg.GSBuckets = strings.Split(*gsBuckets, ",")
//	}
func (cfg *MirrorsConfig) SetFlags() *string {
	flag.StringVar(&cfg.LocalPath, "local-path", "", "local path where archives are stored (optional). To configure a local path as a mirror.")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket where archives are stored (optional). To configure S3 as a mirror.")
	flag.StringVar(&cfg.S3KeyPattern, "s3-key-pattern", "{SCENE}.zip", "key of the archives in the S3 bucket (see common.FormatBrackets)")
	flag.StringVar(&cfg.S3Region, "s3-region", "eu-central-1", "region of the S3 bucket")
	flag.StringVar(&cfg.S3AccessKeyID, "s3-access-key-id", "", "S3 access key id (default credential chain if empty)")
	flag.StringVar(&cfg.S3SecretAccessKey, "s3-secret-access-key", "", "S3 secret access key")
	flag.StringVar(&cfg.FTPPathPattern, "ftp-path", "", "ftp path of the archives, i.e: ftp://ftp.example.org:21/Images/{SCENE}.zip (optional). To configure FTP as a mirror.")
	flag.StringVar(&cfg.FTPUsername, "ftp-username", "", "ftp account username")
	flag.StringVar(&cfg.FTPPassword, "ftp-password", "", "ftp account password")

	return flag.String("gs-buckets", "", `Google Storage buckets, comma-separated (optional). To configure GS as a mirror.
	bucket can contain several {IDENTIFIER} than will be replaced according to the product name.
	IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)`)
}

// ImageProviders returns the configured mirrors and a description of each of them
func (cfg MirrorsConfig) ImageProviders() ([]ImageProvider, []string, error) {
	var imageProviders []ImageProvider
	var names []string
	if cfg.LocalPath != "" {
		names = append(names, "local ("+cfg.LocalPath+")")
		imageProviders = append(imageProviders, NewLocalImageProvider(cfg.LocalPath))
	}
	if len(cfg.GSBuckets) != 0 {
		for _, bucket := range cfg.GSBuckets {
			if !strings.HasPrefix(bucket, "gs://") {
				return nil, nil, fmt.Errorf("malformed gs bucket %s: must start with gs://", bucket)
			}
		}
		names = append(names, "GS ("+strings.Join(cfg.GSBuckets, ", ")+")")
		imageProviders = append(imageProviders, NewGSImageProvider(cfg.GSBuckets...))
	}
	if cfg.S3Bucket != "" {
		names = append(names, "S3 ("+cfg.S3Bucket+")")
		imageProviders = append(imageProviders, NewS3ImageProvider(cfg.S3Bucket, cfg.S3KeyPattern, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey))
	}
	if cfg.FTPPathPattern != "" {
		names = append(names, "FTP ("+cfg.FTPUsername+")")
		imageProviders = append(imageProviders, NewFTPImageProvider(cfg.FTPPathPattern, cfg.FTPUsername, cfg.FTPPassword))
	}
	return imageProviders, names, nil
}
