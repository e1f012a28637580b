package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/promptopt-client/internal/mocks"
)

var errStoreDown = errors.New("store unavailable")

func TestSessionRepo_PropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)
	repo, err := NewSessionRepo(store, nil)
	require.NoError(t, err)
	ctx := context.Background()

	store.EXPECT().Get(gomock.Any(), KeyAccessToken).Return(nil, errStoreDown)
	_, err = repo.Token(ctx)
	assert.ErrorIs(t, err, errStoreDown)

	store.EXPECT().Set(gomock.Any(), KeyAccessToken, []byte("tok-1")).Return(errStoreDown)
	assert.ErrorIs(t, repo.SaveToken(ctx, "tok-1"), errStoreDown)

	store.EXPECT().Delete(gomock.Any(), KeyAccessToken, KeyAuthStore).Return(errStoreDown)
	assert.ErrorIs(t, repo.Clear(ctx), errStoreDown)
}

func TestSessionRepo_DiscardsUnsupportedVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)
	repo, err := NewSessionRepo(store, nil)
	require.NoError(t, err)

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), KeyAuthStore).Return([]byte(`{"version":99}`), nil),
		store.EXPECT().Delete(gomock.Any(), KeyAuthStore).Return(nil),
	)

	_, ok, err := repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDraftRepo_PropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStateStore(ctrl)
	repo, err := NewDraftRepo(store, nil)
	require.NoError(t, err)

	store.EXPECT().Get(gomock.Any(), KeyDraft).Return(nil, errStoreDown)
	_, _, err = repo.Load(context.Background())
	assert.ErrorIs(t, err, errStoreDown)

	store.EXPECT().Delete(gomock.Any(), KeyDraft).Return(errStoreDown)
	assert.ErrorIs(t, repo.Delete(context.Background()), errStoreDown)
}
