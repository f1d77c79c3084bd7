package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendGCS, cfg.ObjectStore.Backend)
	assert.Equal(t, "patient_uploads", cfg.ObjectStore.Bucket)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.Ingestion.AcceptedMediaTypes)
	assert.False(t, cfg.Ingestion.CleanupOrphans)
	assert.False(t, cfg.Ingestion.AbortOnDisconnect)
	assert.Equal(t, int64(20<<20), cfg.Ingestion.MaxFileBytes)
	assert.Equal(t, 2*time.Minute, cfg.Ingestion.UploadTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("OBJECT_STORE_BACKEND", "S3")
	t.Setenv("OBJECT_STORE_PRESIGN_TTL", "15m")
	t.Setenv("INGEST_ACCEPTED_MEDIA_TYPES", "image/*, application/dicom ,")
	t.Setenv("INGEST_CLEANUP_ORPHANS", "true")
	t.Setenv("INGEST_MAX_FILES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendS3, cfg.ObjectStore.Backend)
	assert.Equal(t, 15*time.Minute, cfg.ObjectStore.PresignTTL)
	assert.Equal(t, []string{"image/*", "application/dicom"}, cfg.Ingestion.AcceptedMediaTypes)
	assert.True(t, cfg.Ingestion.CleanupOrphans)
	assert.Equal(t, 20, cfg.Ingestion.MaxFiles, "unparsable values fall back to the default")
}

func TestLoad_ValidationAggregatesErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("OBJECT_STORE_BACKEND", "azure")
	t.Setenv("OBJECT_STORE_PUBLIC_BASE_URL", "cdn.example.com/uploads")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET is required")
	assert.Contains(t, msg, "DB_PASSWORD is required")
	assert.Contains(t, msg, "OBJECT_STORE_BACKEND")
	assert.Contains(t, msg, "OBJECT_STORE_PUBLIC_BASE_URL must be an absolute URL")
}
