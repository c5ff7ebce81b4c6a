package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videohub/api/internal/config"
)

func TestDiskStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Check(context.Background()))

	n, err := store.Save(context.Background(), "clip.avi", strings.NewReader("RIFF data"), "video/x-msvideo")
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)

	data, err := os.ReadFile(filepath.Join(dir, "clip.avi"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF data", string(data))

	_, err = store.Save(context.Background(), "clip.avi", strings.NewReader("again"), "")
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, store.Remove(context.Background(), "clip.avi"))
	require.NoError(t, store.Remove(context.Background(), "clip.avi"))
	_, err = os.Stat(filepath.Join(dir, "clip.avi"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDiskStoreCleansUpFailedWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "broken.avi", iotest.ErrReader(errors.New("client went away")), "")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "broken.avi"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "../escape.avi", "a/b.avi"} {
		_, err := store.Save(context.Background(), name, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"holiday.avi", "holiday.avi"},
		{"My Holiday (1).MOV", "My_Holiday_1_.MOV"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ana\clip.avi`, "clip.avi"},
		{".hidden.avi", "hidden.avi"},
		{"", "video"},
		{"....", "video"},
		{"видео.avi", "avi"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	long := SanitizeFilename(strings.Repeat("a", 300) + ".avi")
	assert.Len(t, long, maxOriginalNameLength)
	assert.True(t, strings.HasSuffix(long, ".avi"))
}

func TestStoredName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "1700000000123-abc-clip.avi", StoredName(now, "abc", "clip.avi"))
}

func TestNewObjectStoreParsesEndpoint(t *testing.T) {
	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:  "https://minio.internal:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "videohub-uploads",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio.internal:9000", store.client.EndpointURL().Host)
	assert.Equal(t, "https", store.client.EndpointURL().Scheme)
	assert.Equal(t, "s3://videohub-uploads", store.String())
}

func TestObjectPutOptionsBoundPartBuffer(t *testing.T) {
	opts := putOptions("video/quicktime")
	assert.Equal(t, "video/quicktime", opts.ContentType)
	assert.Equal(t, objectPartSize, opts.PartSize)

	parts, partSize, _, err := minio.OptimalPartInfo(-1, opts.PartSize)
	require.NoError(t, err)
	assert.EqualValues(t, 16<<20, partSize)
	assert.GreaterOrEqual(t, int64(parts)*partSize, config.DefaultUploadMaxBytes)
}
