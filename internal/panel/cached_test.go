package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) GetSubscriber(_ context.Context, uuid string, result any) (bool, error) {
	raw, ok := f.entries[uuid]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (f *fakeCache) SetSubscriber(_ context.Context, uuid string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[uuid] = raw
	return nil
}

func (f *fakeCache) DropSubscriber(_ context.Context, uuid string) error {
	delete(f.entries, uuid)
	return nil
}

func TestCachedClient_ReadThrough(t *testing.T) {
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"uuid":"sub-1","username":"u100","expireAt":"2025-07-01T00:00:00Z"}`))
	})
	cached := NewCachedClient(c, newFakeCache())

	first, err := cached.GetSubscriberByUUID(context.Background(), "sub-1")
	require.NoError(t, err)
	second, err := cached.GetSubscriberByUUID(context.Background(), "sub-1")
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	assert.Equal(t, first.UUID, second.UUID)
	assert.Equal(t, first.Username, second.Username)
}

func TestCachedClient_UpdateDropsEntry(t *testing.T) {
	expire := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	gets := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		_, _ = w.Write([]byte(`{"uuid":"sub-1","username":"u100","expireAt":"2025-07-01T00:00:00Z"}`))
	})
	cached := NewCachedClient(c, newFakeCache())

	_, err := cached.GetSubscriberByUUID(context.Background(), "sub-1")
	require.NoError(t, err)

	_, err = cached.UpdateSubscriber(context.Background(), UpdateSubscriberRequest{
		UUID:     "sub-1",
		ExpireAt: expire,
	})
	require.NoError(t, err)

	// После записи кэш сброшен, чтение снова уходит на панель.
	_, err = cached.GetSubscriberByUUID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 2, gets)
}

func TestCachedClient_CreateWarmsCache(t *testing.T) {
	gets := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		_, _ = w.Write([]byte(`{"uuid":"sub-2","username":"u200","expireAt":"2025-07-01T00:00:00Z"}`))
	})
	cached := NewCachedClient(c, newFakeCache())

	created, err := cached.CreateSubscriber(context.Background(), CreateSubscriberRequest{Username: "u200"})
	require.NoError(t, err)

	sub, err := cached.GetSubscriberByUUID(context.Background(), created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "sub-2", sub.UUID)
	assert.Equal(t, 0, gets)
}
