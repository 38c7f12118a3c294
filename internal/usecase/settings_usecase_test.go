package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

const testTokenKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func newSettingsFixture(t *testing.T) (*fakeSettingsRepo, SettingsUsecase) {
	t.Helper()
	sealer, err := crypto.NewSealer(testTokenKey)
	require.NoError(t, err)
	repo := &fakeSettingsRepo{}
	return repo, NewSettingsUsecase(repo, sealer)
}

func TestGenerateUserID(t *testing.T) {
	tests := []struct {
		nickname string
		want     string
	}{
		{"alice", "alice"},
		{"  Alice Smith ", "alice-smith"},
		{"Bob_the#Builder!!", "bob-the-builder"},
		{"ÉLodie", "lodie"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.nickname, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateUserID(tt.nickname))
		})
	}
}

func TestSettingsLoad(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		_, u := newSettingsFixture(t)
		settings, err := u.Load(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, settings.Identities)
		assert.NotNil(t, settings.Channels)
		assert.Equal(t, models.UIStateID, settings.UI.ID)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo, u := newSettingsFixture(t)
		repo.err = errors.New("no reachable servers")
		_, err := u.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreadable token", func(t *testing.T) {
		repo, u := newSettingsFixture(t)
		repo.identities = []models.SavedIdentity{{UserID: "alice", Token: "gcm:!!"}}
		_, err := u.Load(context.Background())
		assert.Error(t, err)
	})
}

func TestSaveIdentities(t *testing.T) {
	t.Run("tokens are sealed at rest", func(t *testing.T) {
		repo, u := newSettingsFixture(t)
		require.NoError(t, u.SaveIdentities(context.Background(), []models.SavedIdentity{
			{UserID: "alice", Name: "Alice", Token: "secret"},
		}))

		require.Len(t, repo.identities, 1)
		assert.True(t, strings.HasPrefix(repo.identities[0].Token, "gcm:"))

		settings, err := u.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "secret", settings.Identities[0].Token)
	})

	t.Run("duplicate user ids", func(t *testing.T) {
		repo, u := newSettingsFixture(t)
		err := u.SaveIdentities(context.Background(), []models.SavedIdentity{
			{UserID: "alice"}, {UserID: "alice"},
		})
		assert.ErrorIs(t, err, ErrIdentityExists)
		assert.Equal(t, codes.AlreadyExists, models.CodeOf(err))
		assert.Empty(t, repo.identities)
	})

	t.Run("blank token keeps the stored one", func(t *testing.T) {
		ctx := context.Background()
		_, u := newSettingsFixture(t)
		require.NoError(t, u.SaveIdentities(ctx, []models.SavedIdentity{
			{UserID: "alice", Name: "Alice", Token: "secret"},
		}))
		require.NoError(t, u.SaveIdentities(ctx, []models.SavedIdentity{
			{UserID: "alice", Name: "Alice B"},
			{UserID: "bob", Name: "Bob"},
		}))

		settings, err := u.Load(ctx)
		require.NoError(t, err)
		require.Len(t, settings.Identities, 2)
		assert.Equal(t, "Alice B", settings.Identities[0].Name)
		assert.Equal(t, "secret", settings.Identities[0].Token)
		assert.Empty(t, settings.Identities[1].Token)
	})
}

func TestAddIdentity(t *testing.T) {
	ctx := context.Background()
	_, u := newSettingsFixture(t)

	added, err := u.AddIdentity(ctx, " Alice Smith ", "t1")
	require.NoError(t, err)
	assert.Equal(t, "alice-smith", added.UserID)
	assert.Equal(t, "Alice Smith", added.Name)

	_, err = u.AddIdentity(ctx, "bob", "")
	require.NoError(t, err)

	_, err = u.AddIdentity(ctx, "ALICE smith", "t2")
	assert.ErrorIs(t, err, ErrIdentityExists)

	_, err = u.AddIdentity(ctx, "???", "")
	assert.ErrorIs(t, err, ErrBadNickname)

	settings, err := u.Load(ctx)
	require.NoError(t, err)
	require.Len(t, settings.Identities, 2)
	assert.Equal(t, "t1", settings.Identities[0].Token)
	assert.Equal(t, "bob", settings.Identities[1].UserID)
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	repo, u := newSettingsFixture(t)

	require.NoError(t, u.SelectIdentity(ctx, "alice"))
	require.NoError(t, u.SelectChannel(ctx, "general"))

	state := repo.state()
	assert.Equal(t, models.UIStateID, state.ID)
	assert.Equal(t, "alice", state.SelectedUserID)
	assert.Equal(t, "general", state.SelectedChannelURL)
}

func TestSaveChannels(t *testing.T) {
	repo, u := newSettingsFixture(t)
	channels := []models.SavedChannel{{URL: "general", Name: "General"}}
	require.NoError(t, u.SaveChannels(context.Background(), channels))
	assert.Equal(t, channels, repo.channels)
}
