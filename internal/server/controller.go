package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/internal/usecase"
	"github.com/nguyentranbao-ct/chat-desk/pkg/util"
)

type Controller interface {
	Health(c echo.Context) error
	// ConnectionState is logged with every request.
	ConnectionState() models.ConnectionState

	State(c echo.Context, req EmptyRequest) (*StateResponse, error)
	Connect(c echo.Context, req ConnectRequest) (models.ConnectionSnapshot, error)
	Disconnect(c echo.Context, req EmptyRequest) (models.ConnectionSnapshot, error)
	Join(c echo.Context, req JoinRequest) (models.ConnectionSnapshot, error)
	Leave(c echo.Context, req EmptyRequest) (models.ConnectionSnapshot, error)

	ListMessages(c echo.Context, req EmptyRequest) ([]models.MessageView, error)
	LoadMore(c echo.Context, req EmptyRequest) (*LoadMoreResponse, error)
	SendMessage(c echo.Context, req SendMessageRequest) (models.MessageView, error)
	EditMessage(c echo.Context, req EditMessageRequest) (models.MessageView, error)
	DeleteMessage(c echo.Context, req MessageIDRequest) error

	ListNotifications(c echo.Context, req EmptyRequest) ([]models.Notification, error)
	DismissNotification(c echo.Context, req NotificationIDRequest) error
	ClearNotifications(c echo.Context, req EmptyRequest) error

	ListUsers(c echo.Context, req EmptyRequest) ([]models.SavedIdentity, error)
	SaveUsers(c echo.Context, req SaveUsersRequest) error
	GenerateUser(c echo.Context, req GenerateUserRequest) (models.SavedIdentity, error)
	ListChannels(c echo.Context, req EmptyRequest) ([]models.SavedChannel, error)
	SaveChannels(c echo.Context, req SaveChannelsRequest) error
	Select(c echo.Context, req SelectRequest) error
}

type EmptyRequest struct{}

type StateResponse struct {
	Connection    models.ConnectionSnapshot `json:"connection"`
	Notifications []models.Notification     `json:"notifications"`
}

type ConnectRequest struct {
	UserID      string `json:"user_id" validate:"notblank"`
	DisplayName string `json:"display_name"`
	// AuthToken may be omitted for a saved identity.
	AuthToken string `json:"auth_token"`
}

type JoinRequest struct {
	URL  string `json:"url" validate:"notblank"`
	Name string `json:"name"`
}

type LoadMoreResponse struct {
	Loaded int `json:"loaded"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}

type MessageIDRequest struct {
	ID int64 `param:"id" validate:"required"`
}

type EditMessageRequest struct {
	ID   int64  `param:"id" validate:"required"`
	Body string `json:"body"`
}

type NotificationIDRequest struct {
	ID string `param:"id" validate:"required"`
}

type SaveUsersRequest struct {
	Users []models.SavedIdentity `json:"users" validate:"dive"`
}

type SaveChannelsRequest struct {
	Channels []models.SavedChannel `json:"channels" validate:"dive"`
}

type GenerateUserRequest struct {
	Nickname  string `json:"nickname" validate:"notblank"`
	AuthToken string `json:"auth_token"`
}

type SelectRequest struct {
	UserID     string `json:"user_id"`
	ChannelURL string `json:"channel_url"`
}

type controller struct {
	connection    usecase.ConnectionUsecase
	messages      usecase.MessageUsecase
	notifications usecase.NotificationUsecase
	settings      usecase.SettingsUsecase
}

func NewController(
	connection usecase.ConnectionUsecase,
	messages usecase.MessageUsecase,
	notifications usecase.NotificationUsecase,
	settings usecase.SettingsUsecase,
) Controller {
	return &controller{
		connection:    connection,
		messages:      messages,
		notifications: notifications,
		settings:      settings,
	}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chat-desk",
		"state":   h.connection.State().String(),
	})
}

func (h *controller) ConnectionState() models.ConnectionState {
	return h.connection.State()
}

func (h *controller) State(c echo.Context, _ EmptyRequest) (*StateResponse, error) {
	return &StateResponse{
		Connection:    h.connection.Snapshot(),
		Notifications: h.notifications.List(),
	}, nil
}

func (h *controller) Connect(c echo.Context, req ConnectRequest) (models.ConnectionSnapshot, error) {
	ctx := c.Request().Context()
	identity := models.Identity{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		AuthToken:   req.AuthToken,
	}
	if identity.AuthToken == "" || identity.DisplayName == "" {
		settings, err := h.settings.Load(ctx)
		if err != nil {
			return models.ConnectionSnapshot{}, err
		}
		if saved, ok := settings.FindIdentity(req.UserID); ok {
			if identity.AuthToken == "" {
				identity.AuthToken = saved.Token
			}
			if identity.DisplayName == "" {
				identity.DisplayName = saved.Name
			}
		}
	}

	if err := h.connection.RequestConnect(ctx, identity); err != nil {
		return models.ConnectionSnapshot{}, err
	}
	return h.connection.Snapshot(), nil
}

func (h *controller) Disconnect(c echo.Context, _ EmptyRequest) (models.ConnectionSnapshot, error) {
	if err := h.connection.RequestDisconnect(c.Request().Context()); err != nil {
		return models.ConnectionSnapshot{}, err
	}
	return h.connection.Snapshot(), nil
}

func (h *controller) Join(c echo.Context, req JoinRequest) (models.ConnectionSnapshot, error) {
	ref := models.ChannelRef{URL: req.URL, Name: req.Name}
	if err := h.connection.RequestJoin(c.Request().Context(), ref); err != nil {
		return models.ConnectionSnapshot{}, err
	}
	return h.connection.Snapshot(), nil
}

func (h *controller) Leave(c echo.Context, _ EmptyRequest) (models.ConnectionSnapshot, error) {
	if err := h.connection.RequestLeave(c.Request().Context()); err != nil {
		return models.ConnectionSnapshot{}, err
	}
	return h.connection.Snapshot(), nil
}

func (h *controller) ListMessages(c echo.Context, _ EmptyRequest) ([]models.MessageView, error) {
	return h.messages.List(), nil
}

func (h *controller) LoadMore(c echo.Context, _ EmptyRequest) (*LoadMoreResponse, error) {
	n, err := h.messages.LoadMore(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return &LoadMoreResponse{Loaded: n}, nil
}

func (h *controller) SendMessage(c echo.Context, req SendMessageRequest) (models.MessageView, error) {
	return h.messages.Send(c.Request().Context(), req.Body)
}

func (h *controller) EditMessage(c echo.Context, req EditMessageRequest) (models.MessageView, error) {
	return h.messages.Edit(c.Request().Context(), req.ID, req.Body)
}

func (h *controller) DeleteMessage(c echo.Context, req MessageIDRequest) error {
	return h.messages.Delete(c.Request().Context(), req.ID)
}

func (h *controller) ListNotifications(c echo.Context, _ EmptyRequest) ([]models.Notification, error) {
	return h.notifications.List(), nil
}

func (h *controller) DismissNotification(c echo.Context, req NotificationIDRequest) error {
	if !h.notifications.Dismiss(req.ID) {
		return models.ErrNotFound
	}
	return nil
}

func (h *controller) ClearNotifications(c echo.Context, _ EmptyRequest) error {
	h.notifications.Clear()
	return nil
}

// ListUsers never returns stored tokens.
func (h *controller) ListUsers(c echo.Context, _ EmptyRequest) ([]models.SavedIdentity, error) {
	settings, err := h.settings.Load(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return util.ConvertList(settings.Identities, withoutToken), nil
}

func (h *controller) SaveUsers(c echo.Context, req SaveUsersRequest) error {
	return h.settings.SaveIdentities(c.Request().Context(), req.Users)
}

func (h *controller) GenerateUser(c echo.Context, req GenerateUserRequest) (models.SavedIdentity, error) {
	saved, err := h.settings.AddIdentity(c.Request().Context(), req.Nickname, req.AuthToken)
	if err != nil {
		return models.SavedIdentity{}, err
	}
	return withoutToken(saved), nil
}

func (h *controller) ListChannels(c echo.Context, _ EmptyRequest) ([]models.SavedChannel, error) {
	settings, err := h.settings.Load(c.Request().Context())
	if err != nil {
		return nil, err
	}
	return settings.Channels, nil
}

func (h *controller) SaveChannels(c echo.Context, req SaveChannelsRequest) error {
	return h.settings.SaveChannels(c.Request().Context(), req.Channels)
}

func (h *controller) Select(c echo.Context, req SelectRequest) error {
	ctx := c.Request().Context()
	if req.UserID != "" {
		if err := h.settings.SelectIdentity(ctx, req.UserID); err != nil {
			return err
		}
	}
	if req.ChannelURL != "" {
		if err := h.settings.SelectChannel(ctx, req.ChannelURL); err != nil {
			return err
		}
	}
	return nil
}

func withoutToken(s models.SavedIdentity) models.SavedIdentity {
	s.Token = ""
	return s
}
