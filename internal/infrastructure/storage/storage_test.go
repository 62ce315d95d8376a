package storage

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMediaKey(t *testing.T) {
	orderID := uuid.MustParse("3f1c2a7e-5b7d-4b8e-9a51-0c7e2d9f4a10")

	key, err := MediaKey("prod/", orderID, order.StageSample, `C:\photos\Front View (1).JPG`, "image/jpeg")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "prod/qc/3f1c2a7e-5b7d-4b8e-9a51-0c7e2d9f4a10/sample/"))
	assert.True(t, strings.HasSuffix(key, "-front_view__1_.jpg"), key)
}

func TestMediaKey_Rejects(t *testing.T) {
	_, err := MediaKey("", uuid.New(), order.StageBulk, "invoice.pdf", "application/pdf")
	assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))

	_, err = MediaKey("", uuid.New(), order.Stage("final"), "a.jpg", "image/jpeg")
	assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))
}

func TestMediaKey_EmptyFileName(t *testing.T) {
	key, err := MediaKey("", uuid.New(), order.StageBulk, "", "video/mp4")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, "-media.mp4"))
}

func TestS3MediaStorage_PresignsPut(t *testing.T) {
	ctx := context.Background()
	s, err := NewS3MediaStorage(ctx, config.StorageConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "ap-south-1",
		Bucket:          "leorit-qc",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		UsePathStyle:    true,
		PresignTTL:      10 * time.Minute,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	orderID := uuid.New()

	up, err := s.GenerateUploadURL(ctx, orderID, order.StageBulk, "fold.png", "image/png")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, up.Method)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), up.ExpiresAt, 5*time.Second)

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/leorit-qc/"+up.MediaRef, u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNewS3MediaStorage_RequiresBucket(t *testing.T) {
	_, err := NewS3MediaStorage(context.Background(), config.StorageConfig{}, nil)

	assert.ErrorContains(t, err, "bucket is required")
}

func TestLocalMediaStorage(t *testing.T) {
	l := NewLocalMediaStorage("http://minio.local/qc/")
	orderID := uuid.New()

	up, err := l.GenerateUploadURL(context.Background(), orderID, order.StageSample, "a.webp", "image/webp")

	require.NoError(t, err)
	assert.Equal(t, "http://minio.local/qc/"+up.MediaRef, up.URL)
	assert.Contains(t, up.MediaRef, orderID.String())

	_, err = l.GenerateUploadURL(context.Background(), orderID, order.StageSample, "a.exe", "application/octet-stream")
	assert.Error(t, err)
}
