package models

// Identity is the local user the client authenticates as.
type Identity struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name"`
	AuthToken   string `json:"auth_token,omitempty"`
}

// Session is an authenticated backend connection.
type Session struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"-"`
}
