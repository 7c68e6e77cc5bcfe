package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/njoerd114/bookmarkrelay/internal/remote/mocks"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

func newTestStore(c Client) *Store {
	s := NewStore(c, "relay", "profile-a", slog.New(slog.DiscardHandler))
	s.maxAttempts = 1
	return s
}

func TestStore_ObjectName(t *testing.T) {
	s := newTestStore(new(mocks.Client))
	assert.Equal(t, "profile-a/bookmarkIdMappings.json", s.objectName(state.KeyBookmarkIDMappings))
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	c.On("GetObject", ctx, "relay", "profile-a/bookmarks.json", mock.Anything).
		Return(io.NopCloser(strings.NewReader(`[{"id":1}]`)), nil)

	data, ok, err := newTestStore(c).Get(ctx, state.KeyBookmarks)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(data))
	c.AssertExpectations(t)
}

func TestStore_Get_Missing(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	c.On("GetObject", ctx, "relay", "profile-a/bookmarks.json", mock.Anything).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})

	data, ok, err := newTestStore(c).Get(ctx, state.KeyBookmarks)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestStore_Get_RetriesTransient(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	c.On("GetObject", ctx, "relay", "profile-a/lastUpdated.json", mock.Anything).
		Return(nil, errors.New("connection reset")).Once()
	c.On("GetObject", ctx, "relay", "profile-a/lastUpdated.json", mock.Anything).
		Return(io.NopCloser(strings.NewReader(`"x"`)), nil).Once()

	s := newTestStore(c)
	s.maxAttempts = 2
	_, ok, err := s.Get(ctx, state.KeyLastUpdated)
	require.NoError(t, err)
	assert.True(t, ok)
	c.AssertNumberOfCalls(t, "GetObject", 2)
}

func TestStore_Set(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	payload := []byte(`[{"syncedId":1,"nativeId":"5"}]`)
	c.On("PutObject", ctx, "relay", "profile-a/bookmarkIdMappings.json", mock.Anything, int64(len(payload)), mock.Anything).
		Return(minio.UploadInfo{}, nil)

	require.NoError(t, newTestStore(c).Set(ctx, state.KeyBookmarkIDMappings, payload))
	c.AssertExpectations(t)
}

func TestStore_Set_PermanentFailure(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	c.On("PutObject", ctx, "relay", "profile-a/bookmarks.json", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})

	s := newTestStore(c)
	s.maxAttempts = 3
	err := s.Set(ctx, state.KeyBookmarks, []byte("[]"))
	require.Error(t, err)
	c.AssertNumberOfCalls(t, "PutObject", 1)
}

func TestStore_Remove_MissingIsNoop(t *testing.T) {
	ctx := context.Background()
	c := new(mocks.Client)
	c.On("RemoveObject", ctx, "relay", "profile-a/bookmarks.json", mock.Anything).
		Return(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})

	assert.NoError(t, newTestStore(c).Remove(ctx, state.KeyBookmarks))
}

func TestStore_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		c := new(mocks.Client)
		c.On("BucketExists", ctx, "relay").Return(true, nil)
		require.NoError(t, newTestStore(c).EnsureBucket(ctx, ""))
		c.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("created", func(t *testing.T) {
		c := new(mocks.Client)
		c.On("BucketExists", ctx, "relay").Return(false, nil)
		c.On("MakeBucket", ctx, "relay", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)
		require.NoError(t, newTestStore(c).EnsureBucket(ctx, "eu-west-1"))
		c.AssertExpectations(t)
	})
}
