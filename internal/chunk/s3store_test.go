package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3StoreConfig{})
	assert.Error(t, err)
}

func TestNewS3StoreDefaultsRegionAndBuildsClient(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3StoreConfig{
		Bucket:    "entwine-chunks",
		AccessKey: "test-key",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "entwine-chunks", s.bucket)
}

func TestS3StoreObjectKeyAppliesPrefix(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3StoreConfig{
		Bucket:    "entwine-chunks",
		Prefix:    "chunks/",
		AccessKey: "test-key",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "chunks/abc123", s.objectKey("abc123"))
}

func TestS3StoreObjectKeyWithNoPrefixIsBareKey(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3StoreConfig{
		Bucket:    "entwine-chunks",
		AccessKey: "test-key",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", s.objectKey("abc123"))
}
