package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentalspot/internal/app/availability"
)

// objectStore is the part of the MinIO client the archive uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ReportArchive writes generator reports as JSON objects into an
// S3-compatible bucket, one object per property run.
type ReportArchive struct {
	bucket         string
	prefix         string
	client         objectStore
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewReportArchive configures an archive using the provided endpoint and credentials.
func NewReportArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket, prefix string, logger *slog.Logger) (*ReportArchive, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return newReportArchive(minioClient, bucket, prefix, logger), nil
}

func newReportArchive(client objectStore, bucket, prefix string, logger *slog.Logger) *ReportArchive {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "generation-reports"
	}
	return &ReportArchive{bucket: bucket, prefix: prefix, client: client, logger: logger}
}

func (a *ReportArchive) StoreReport(ctx context.Context, report availability.GenerationReport) error {
	if strings.TrimSpace(report.PropertyID) == "" {
		return errors.New("s3: report without property id")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3: encode report: %w", err)
	}
	key := a.objectKey(report)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	a.logger.DebugContext(ctx, "generation report archived", "bucket", a.bucket, "key", key, "errors", len(report.Errors))
	return nil
}

// objectKey is <prefix>/<property>/<started at>.json, so a listing per
// property sorts by run time.
func (a *ReportArchive) objectKey(report availability.GenerationReport) string {
	stamp := report.StartedAt.UTC().Format("20060102T150405.000Z")
	return path.Join(a.prefix, url.PathEscape(report.PropertyID), stamp+".json")
}

func (a *ReportArchive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ availability.ReportArchive = (*ReportArchive)(nil)
