package models

// SavedIdentity is an identity the user stored for later sessions.
type SavedIdentity struct {
	UserID string `bson:"_id" json:"user_id" validate:"required"`
	Name   string `bson:"name" json:"name" validate:"required"`
	Token  string `bson:"token,omitempty" json:"token,omitempty"`
}

func (SavedIdentity) CollectionName() string { return "saved_identities" }
func (s SavedIdentity) GetID() string        { return s.UserID }

func (s SavedIdentity) Identity() Identity {
	return Identity{UserID: s.UserID, DisplayName: s.Name, AuthToken: s.Token}
}

// SavedChannel is a channel the user stored for later sessions.
type SavedChannel struct {
	URL  string `bson:"_id" json:"url" validate:"required"`
	Name string `bson:"name" json:"name" validate:"required"`
}

func (SavedChannel) CollectionName() string { return "saved_channels" }
func (s SavedChannel) GetID() string        { return s.URL }

const UIStateID = "ui"

// UIState is the last selection, restored at startup.
type UIState struct {
	ID                 string `bson:"_id" json:"-"`
	SelectedUserID     string `bson:"selected_user_id" json:"selected_user_id"`
	SelectedChannelURL string `bson:"selected_channel_url" json:"selected_channel_url"`
}

func (UIState) CollectionName() string { return "ui_state" }
func (s UIState) GetID() string        { return s.ID }

// Settings is everything persisted locally.
type Settings struct {
	Identities []SavedIdentity `json:"identities"`
	Channels   []SavedChannel  `json:"channels"`
	UI         UIState         `json:"ui"`
}

func (s Settings) FindIdentity(userID string) (SavedIdentity, bool) {
	for _, i := range s.Identities {
		if i.UserID == userID {
			return i, true
		}
	}
	return SavedIdentity{}, false
}

func (s Settings) FindChannel(url string) (SavedChannel, bool) {
	for _, c := range s.Channels {
		if c.URL == url {
			return c, true
		}
	}
	return SavedChannel{}, false
}
