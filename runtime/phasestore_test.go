package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/harp/values"
)

func TestPhaseStorePutGetRoundTrip(t *testing.T) {
	store, err := NewPhaseStore()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("counter", "begin", values.NewInt(7)))
	v, ok, err := store.Get("counter", "begin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.ToInt())

	require.NoError(t, store.Put("name", "begin", values.NewString("harp")))
	v2, ok, err := store.Get("name", "begin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "harp", v2.ToString())
}

func TestPhaseStoreGetMissIsUndef(t *testing.T) {
	store, err := NewPhaseStore()
	require.NoError(t, err)
	defer store.Close()

	v, ok, err := store.Get("never-put", "begin")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, v.IsUndef())
}

func TestPhaseStorePutOverwritesSameKey(t *testing.T) {
	store, err := NewPhaseStore()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("x", "p1", values.NewInt(1)))
	require.NoError(t, store.Put("x", "p1", values.NewInt(2)))
	v, ok, err := store.Get("x", "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.ToInt())
}
