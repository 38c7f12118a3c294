package mongodb

import (
	"context"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SettingsRepository struct {
	identities baseRepo[models.SavedIdentity]
	channels   baseRepo[models.SavedChannel]
	ui         baseRepo[models.UIState]
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{
		identities: newBaseRepo[models.SavedIdentity](db.Database),
		channels:   newBaseRepo[models.SavedChannel](db.Database),
		ui:         newBaseRepo[models.UIState](db.Database),
	}
}

// lists keep the order they were saved in
var insertionOrder = options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})

func (r *SettingsRepository) ListIdentities(ctx context.Context) ([]models.SavedIdentity, error) {
	return r.identities.Find(ctx, bson.M{}, insertionOrder)
}

func (r *SettingsRepository) ReplaceIdentities(ctx context.Context, identities []models.SavedIdentity) error {
	return r.identities.ReplaceAll(ctx, identities)
}

func (r *SettingsRepository) ListChannels(ctx context.Context) ([]models.SavedChannel, error) {
	return r.channels.Find(ctx, bson.M{}, insertionOrder)
}

func (r *SettingsRepository) ReplaceChannels(ctx context.Context, channels []models.SavedChannel) error {
	return r.channels.ReplaceAll(ctx, channels)
}

func (r *SettingsRepository) GetUIState(ctx context.Context) (models.UIState, error) {
	state, err := r.ui.FindByID(ctx, models.UIStateID)
	if err != nil {
		return models.UIState{}, err
	}
	return *state, nil
}

func (r *SettingsRepository) SaveUIState(ctx context.Context, state models.UIState) error {
	state.ID = models.UIStateID
	return r.ui.ReplaceByID(ctx, state)
}
