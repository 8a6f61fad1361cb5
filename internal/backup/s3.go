// Package backup talks to the S3-compatible object store holding
// encrypted archives, triggers on-demand backups through the system stack's
// backup container, and restores volumes from downloaded archives.
package backup

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/errdefs"
)

// Entry describes one archive in the object store.
type Entry struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

func newS3Client(ctx context.Context, cfg *config.BackupConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, errdefs.BackupWrap(err, "building S3 config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://" + cfg.S3Endpoint)
		o.UsePathStyle = true
	}), nil
}

// backupType derives the schedule an archive came from by its key
// prefix.
func backupType(key string) string {
	for _, kind := range []string{"daily", "weekly", "monthly", "manual"} {
		if strings.HasPrefix(key, kind+"-") {
			return kind
		}
	}
	return "unknown"
}

// List returns every archive in the bucket, newest first.
func List(ctx context.Context, cfg *config.BackupConfig) ([]Entry, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.S3Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errdefs.BackupWrap(err, "failed to list backups")
		}
		for _, object := range page.Contents {
			entry := Entry{
				Name: aws.ToString(object.Key),
				Type: backupType(aws.ToString(object.Key)),
				Size: aws.ToInt64(object.Size),
			}
			if object.LastModified != nil {
				entry.Created = *object.LastModified
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Created.After(entries[j].Created) })
	return entries, nil
}

// Download fetches one archive to targetPath.
func Download(ctx context.Context, cfg *config.BackupConfig, backupName, targetPath string) error {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	object, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.S3Bucket),
		Key:    aws.String(backupName),
	})
	if err != nil {
		return errdefs.BackupWrap(err, "failed to download backup")
	}
	defer object.Body.Close()

	out, err := os.Create(targetPath)
	if err != nil {
		return errdefs.BackupWrap(err, "failed to download backup")
	}
	defer out.Close()

	if _, err := io.Copy(out, object.Body); err != nil {
		return errdefs.BackupWrap(err, "failed to download backup")
	}
	return nil
}
