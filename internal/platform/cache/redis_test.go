package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireAuth("s3cret")

	client, err := Connect(context.Background(), Options{Addr: srv.Addr(), Password: "s3cret", DB: 0})
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.NoError(t, client.Close())

	client, err = Connect(context.Background(), Options{Addr: srv.Addr(), Password: "wrong"})
	require.Error(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
