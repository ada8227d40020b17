package archive

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "sha256:"))

	again, err := s.Put(ctx, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	ok, err := s.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_Missing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, missing := contentRef([]byte("nothing here"))
	_, err = s.Get(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "md5:abc")
	assert.Error(t, err)
	_, err = s.Get(ctx, "sha256:../../etc/passwd")
	assert.Error(t, err)
}

func TestPutJSON_Canonical(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := PutJSON(ctx, s, map[string]any{"b": 2, "a": "<x>"})
	require.NoError(t, err)
	b, err := PutJSON(ctx, s, json.RawMessage(`{ "a": "<x>", "b": 2 }`))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	data, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":2}`, string(data))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, Config{Type: StoreTypeNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewStore(ctx, Config{Type: StoreTypeFS, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = NewStore(ctx, Config{Type: StoreTypeS3})
	assert.ErrorContains(t, err, "ARCHIVE_S3_BUCKET")

	_, err = NewStore(ctx, Config{Type: "tape"})
	assert.Error(t, err)
}
