package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/objectstore"
)

const tracerName = "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"

// pathClock hands out strictly increasing millisecond stamps. Two uploads in
// the same millisecond, or a retry after a clock step back, still get
// distinct storage paths.
type pathClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func (c *pathClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// AssetUploader stores one local file and resolves its locator.
type AssetUploader struct {
	store   objectstore.Store
	clock   *pathClock
	timeout time.Duration
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewAssetUploader(store objectstore.Store, timeout time.Duration, m *metrics.Collector, log *zap.Logger) *AssetUploader {
	return &AssetUploader{
		store:   store,
		clock:   &pathClock{now: time.Now},
		timeout: timeout,
		metrics: m,
		log:     log,
	}
}

// Upload writes the file under a fresh records/ path, then asks the store for
// its locator. Errors are *UploadError; Index is left for the caller.
func (u *AssetUploader) Upload(ctx context.Context, patientID string, file mr.LocalFile) (*mr.UploadedAsset, error) {
	key := objectstore.RecordKey(patientID, u.clock.next(), file.Name())

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingestion.upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.key", key),
		attribute.String("file.content_type", file.ContentType()),
		attribute.Int64("file.size", file.Size()),
	)

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	start := time.Now()
	fail := func(stage UploadStage, err error) (*mr.UploadedAsset, error) {
		u.metrics.UploadsTotal.WithLabelValues(string(stage), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		u.log.Warn("upload failed",
			zap.String("storage_path", key),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil, &UploadError{
			Index:       -1,
			FileName:    file.Name(),
			StoragePath: key,
			Stage:       stage,
			Err:         err,
		}
	}

	body, err := file.Open()
	if err != nil {
		return fail(StageRead, fmt.Errorf("opening %s: %w", file.Name(), err))
	}
	err = u.store.Put(ctx, key, body, file.Size(), file.ContentType())
	_ = body.Close()
	if err != nil {
		return fail(StageWrite, err)
	}
	u.metrics.UploadsTotal.WithLabelValues(string(StageWrite), "ok").Inc()

	url, err := u.store.ResolvePublicURL(ctx, key)
	if err != nil {
		return fail(StageResolve, err)
	}
	u.metrics.UploadsTotal.WithLabelValues(string(StageResolve), "ok").Inc()
	u.metrics.UploadDuration.Observe(time.Since(start).Seconds())
	u.metrics.UploadBytes.Observe(float64(file.Size()))

	return &mr.UploadedAsset{
		Source:      file,
		StoragePath: key,
		PublicURL:   url,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

// Remove deletes an object stored by an attempt that never committed.
func (u *AssetUploader) Remove(ctx context.Context, key string) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	return u.store.Delete(ctx, key)
}
