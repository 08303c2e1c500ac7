package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration test; requires a running MinIO instance, e.g.
//
//	docker run -p 9000:9000 minio/minio server /data
//
// Configure via MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			"",
		),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := "distributions-test"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "snapshots")

	require.NoError(t, store.Put(ctx, "a/one", []byte("payload")))
	t.Cleanup(func() { _ = store.Delete(ctx, "a/one") })

	data, err := store.Get(ctx, "a/one")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Contains(t, names, "a/one")

	require.NoError(t, store.Delete(ctx, "a/one"))
	assert.NoError(t, store.Delete(ctx, "a/one"), "delete is idempotent")
}
