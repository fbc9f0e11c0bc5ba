package s3

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalspot/internal/app/availability"
)

type fakeBucket struct {
	exists      bool
	existsErr   error
	makes       int
	objects     map[string][]byte
	contentType string
}

func (f *fakeBucket) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeBucket) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.makes++
	f.exists = true
	return nil
}

func (f *fakeBucket) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[object] = data
	f.contentType = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func report(propertyID string, started time.Time) availability.GenerationReport {
	return availability.GenerationReport{
		PropertyID:  propertyID,
		Months:      []string{"2026-06"},
		DaysWritten: 30,
		Errors:      []availability.DayError{{Date: "2026-06-20", Error: "no price"}},
		StartedAt:   started,
		FinishedAt:  started.Add(time.Second),
	}
}

func TestStoreReportWritesJSONObject(t *testing.T) {
	bucket := &fakeBucket{}
	archive := newReportArchive(bucket, "reports", "", nil)
	started := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, archive.StoreReport(context.Background(), report("villa 1", started)))
	require.NoError(t, archive.StoreReport(context.Background(), report("villa 1", started.Add(time.Hour))))

	assert.Equal(t, 1, bucket.makes)
	assert.Equal(t, "application/json", bucket.contentType)
	body, ok := bucket.objects["generation-reports/villa%201/20260601T030000.000Z.json"]
	require.True(t, ok, "objects: %v", bucket.objects)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "villa 1", decoded["propertyId"])
	assert.EqualValues(t, 30, decoded["daysWritten"])
	assert.NotContains(t, decoded, "Events")
	assert.Len(t, bucket.objects, 2)
}

func TestStoreReportSurfacesBucketError(t *testing.T) {
	archive := newReportArchive(&fakeBucket{existsErr: errors.New("denied")}, "reports", "runs", nil)
	err := archive.StoreReport(context.Background(), report("villa-1", time.Now()))
	assert.ErrorContains(t, err, "check bucket")
}

func TestStoreReportNeedsProperty(t *testing.T) {
	archive := newReportArchive(&fakeBucket{exists: true}, "reports", "", nil)
	assert.Error(t, archive.StoreReport(context.Background(), availability.GenerationReport{}))
}

func TestNewReportArchiveValidatesSettings(t *testing.T) {
	_, err := NewReportArchive("", false, "", "", "reports", "", nil)
	assert.Error(t, err)
	_, err = NewReportArchive("http://localhost:9000", false, "a", "b", " ", "", nil)
	assert.Error(t, err)
	archive, err := NewReportArchive("http://localhost:9000", false, "a", "b", "reports", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "generation-reports", archive.prefix)
}
