package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "dakino:catalog:42", NewJSONCache(nil, "dakino").key("catalog:42"))
	assert.Equal(t, "catalog:42", NewJSONCache(nil, "").key("catalog:42"))
}

func TestSetRejectsUnencodableValue(t *testing.T) {
	cache := NewJSONCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "dakino")

	err := cache.Set(context.Background(), "catalog:42", make(chan int), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode cache key catalog:42")
}

func TestDeleteWithoutKeysIsNoop(t *testing.T) {
	assert.NoError(t, NewJSONCache(nil, "dakino").Delete(context.Background()))
}

func TestGetUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	var dest []string
	hit, err := NewJSONCache(client, "dakino").Get(context.Background(), "catalog:42", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}
