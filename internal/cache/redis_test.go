package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts, err := Options("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)

	opts, err = Options("cache:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)

	_, err = Options("")
	assert.Error(t, err)
	_, err = Options("redis://host:notaport/x")
	assert.Error(t, err)
}

func TestConnectAndJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	type payload struct {
		Name string `json:"name"`
	}

	found, err := GetJSON(ctx, client, SessionKey("default"), &payload{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, client, SessionKey("default"), payload{Name: "alice"}, time.Minute))

	var got payload
	found, err = GetJSON(ctx, client, SessionKey("default"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, time.Minute, mr.TTL(SessionKey("default")))
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "socialnet:session:default", SessionKey("default"))
	assert.Equal(t, "socialnet:presence:7", PresenceKey(7))
}
