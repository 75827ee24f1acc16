package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeKV) Close() error {
	f.closed = true
	return nil
}

func TestRedisDelegates(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	r := &Redis{kv: kv}

	require.NoError(t, r.Set(ctx, Key("spacebudz", "a"), []byte("1"), 3*time.Hour))
	assert.Equal(t, 3*time.Hour, kv.ttls[Key("spacebudz", "a")])

	got, ok, err := r.Get(ctx, Key("spacebudz", "a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(got))

	n, err := r.InvalidatePrefix(ctx, ScopePrefix("spacebudz"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, r.Close())
	assert.True(t, kv.closed)
	assert.Nil(t, r.Client())
}
