package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type SettingsUsecase interface {
	Load(ctx context.Context) (models.Settings, error)
	SaveIdentities(ctx context.Context, identities []models.SavedIdentity) error
	SaveChannels(ctx context.Context, channels []models.SavedChannel) error
	// AddIdentity stores a new identity under a user id derived from nickname.
	AddIdentity(ctx context.Context, nickname, token string) (models.SavedIdentity, error)
	SelectIdentity(ctx context.Context, userID string) error
	SelectChannel(ctx context.Context, channelURL string) error
}

var (
	ErrIdentityExists = status.Error(codes.AlreadyExists, "identity already exists")
	ErrBadNickname    = status.Error(codes.InvalidArgument, "nickname has no usable characters")
)

type settingsUsecase struct {
	repo   SettingsRepository
	sealer TokenSealer

	// serializes read-modify-write of stored lists and ui state
	mu sync.Mutex
}

func NewSettingsUsecase(repo SettingsRepository, sealer TokenSealer) SettingsUsecase {
	return &settingsUsecase{repo: repo, sealer: sealer}
}

func (u *settingsUsecase) Load(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		identities, err := u.repo.ListIdentities(ctx)
		if err != nil {
			return fmt.Errorf("list identities: %w", err)
		}
		for i := range identities {
			token, err := u.sealer.Open(identities[i].Token)
			if err != nil {
				return fmt.Errorf("open token of %s: %w", identities[i].UserID, err)
			}
			identities[i].Token = token
		}
		settings.Identities = identities
		return nil
	})

	group.Go(func() error {
		channels, err := u.repo.ListChannels(ctx)
		if err != nil {
			return fmt.Errorf("list channels: %w", err)
		}
		settings.Channels = channels
		return nil
	})

	group.Go(func() error {
		state, err := u.uiState(ctx)
		if err != nil {
			return err
		}
		settings.UI = state
		return nil
	})

	if err := group.Wait(); err != nil {
		return models.Settings{}, err
	}
	if settings.Identities == nil {
		settings.Identities = []models.SavedIdentity{}
	}
	if settings.Channels == nil {
		settings.Channels = []models.SavedChannel{}
	}
	return settings, nil
}

func (u *settingsUsecase) uiState(ctx context.Context) (models.UIState, error) {
	state, err := u.repo.GetUIState(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return models.UIState{ID: models.UIStateID}, nil
	}
	if err != nil {
		return models.UIState{}, fmt.Errorf("get ui state: %w", err)
	}
	return state, nil
}

// SaveIdentities replaces the stored list. An entry without a token keeps
// the token already stored for that user id.
func (u *settingsUsecase) SaveIdentities(ctx context.Context, identities []models.SavedIdentity) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	current, err := u.repo.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("list identities: %w", err)
	}
	stored := make(map[string]string, len(current))
	for _, identity := range current {
		stored[identity.UserID] = identity.Token
	}

	merged := make([]models.SavedIdentity, len(identities))
	for i, identity := range identities {
		if identity.Token == "" && stored[identity.UserID] != "" {
			plain, err := u.sealer.Open(stored[identity.UserID])
			if err != nil {
				return fmt.Errorf("open token of %s: %w", identity.UserID, err)
			}
			identity.Token = plain
		}
		merged[i] = identity
	}
	return u.saveIdentities(ctx, merged)
}

func (u *settingsUsecase) saveIdentities(ctx context.Context, identities []models.SavedIdentity) error {
	seen := make(map[string]struct{}, len(identities))
	sealed := make([]models.SavedIdentity, 0, len(identities))
	for _, identity := range identities {
		if _, ok := seen[identity.UserID]; ok {
			return fmt.Errorf("%w: %s", ErrIdentityExists, identity.UserID)
		}
		seen[identity.UserID] = struct{}{}

		token, err := u.sealer.Seal(identity.Token)
		if err != nil {
			return fmt.Errorf("seal token of %s: %w", identity.UserID, err)
		}
		identity.Token = token
		sealed = append(sealed, identity)
	}
	if err := u.repo.ReplaceIdentities(ctx, sealed); err != nil {
		return fmt.Errorf("replace identities: %w", err)
	}
	return nil
}

func (u *settingsUsecase) SaveChannels(ctx context.Context, channels []models.SavedChannel) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.repo.ReplaceChannels(ctx, channels); err != nil {
		return fmt.Errorf("replace channels: %w", err)
	}
	return nil
}

func (u *settingsUsecase) AddIdentity(ctx context.Context, nickname, token string) (models.SavedIdentity, error) {
	nickname = strings.TrimSpace(nickname)
	userID := GenerateUserID(nickname)
	if userID == "" {
		return models.SavedIdentity{}, fmt.Errorf("%w: %q", ErrBadNickname, nickname)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	current, err := u.repo.ListIdentities(ctx)
	if err != nil {
		return models.SavedIdentity{}, fmt.Errorf("list identities: %w", err)
	}
	identities := make([]models.SavedIdentity, 0, len(current)+1)
	for _, identity := range current {
		if identity.UserID == userID {
			return models.SavedIdentity{}, fmt.Errorf("%w: %s", ErrIdentityExists, userID)
		}
		plain, err := u.sealer.Open(identity.Token)
		if err != nil {
			return models.SavedIdentity{}, fmt.Errorf("open token of %s: %w", identity.UserID, err)
		}
		identity.Token = plain
		identities = append(identities, identity)
	}

	added := models.SavedIdentity{UserID: userID, Name: nickname, Token: token}
	identities = append(identities, added)
	if err := u.saveIdentities(ctx, identities); err != nil {
		return models.SavedIdentity{}, err
	}
	return added, nil
}

func (u *settingsUsecase) SelectIdentity(ctx context.Context, userID string) error {
	return u.updateUIState(ctx, func(state *models.UIState) {
		state.SelectedUserID = userID
	})
}

func (u *settingsUsecase) SelectChannel(ctx context.Context, channelURL string) error {
	return u.updateUIState(ctx, func(state *models.UIState) {
		state.SelectedChannelURL = channelURL
	})
}

func (u *settingsUsecase) updateUIState(ctx context.Context, update func(*models.UIState)) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	state, err := u.uiState(ctx)
	if err != nil {
		return err
	}
	state.ID = models.UIStateID
	update(&state)
	if err := u.repo.SaveUIState(ctx, state); err != nil {
		return fmt.Errorf("save ui state: %w", err)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateUserID derives a stable user id from a nickname, so the same
// nickname always maps to the same identity.
func GenerateUserID(nickname string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(nickname)), "-")
	return strings.Trim(slug, "-")
}
