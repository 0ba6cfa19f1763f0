//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/storage/storagetest"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	// each test gets its own key namespace
	var n atomic.Int64
	suite.Run(t, &storagetest.StoreSuite{
		NewStore: func(*testing.T) storage.Store {
			return New(client, WithPrefix(fmt.Sprintf("test%d:", n.Add(1))))
		},
		CorruptDraft: func(t *testing.T, s storage.Store) {
			require.NoError(t, s.(*Store).PutRawDraft(ctx, []byte("{broken")))
		},
	})
}
