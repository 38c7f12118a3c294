package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	headerAppID      = "App-Id"
	headerSessionKey = "Session-Key"

	messageTypeUser = "MESG"

	// operators are fetched page by page; channels with more are truncated
	maxOperatorPages = 10
	operatorPageSize = 100
)

// Client talks to the chat backend's REST API. Reads go through a client
// that retries transient failures, mutations are sent exactly once.
type Client struct {
	reader  *resty.Client
	writer  *resty.Client
	latency *prometheus.HistogramVec
}

func NewClient(conf *config.Config) (*Client, error) {
	cfg := conf.ChatAPI
	latency, err := util.GetHistogramVec("chatapi_request_duration_seconds", "op", "code")
	if err != nil {
		return nil, fmt.Errorf("chatapi metrics: %w", err)
	}

	setup := func(c *resty.Client) *resty.Client {
		return c.SetBaseURL(cfg.BaseURL).SetHeader(headerAppID, cfg.AppID)
	}
	return &Client{
		reader:  setup(util.NewRestyClient(cfg.Timeout, cfg.RetryCount)),
		writer:  setup(util.NewRestyClient(cfg.Timeout, 0)),
		latency: latency,
	}, nil
}

func (c *Client) Connect(ctx context.Context, identity models.Identity) (*models.Session, error) {
	var out sessionResponse
	req := c.writer.R().
		SetContext(ctx).
		SetBody(createSessionRequest{
			UserID:      identity.UserID,
			Nickname:    identity.DisplayName,
			AccessToken: identity.AuthToken,
		}).
		SetResult(&out)
	if err := c.do(req, "connect", http.MethodPost, "/v3/sessions"); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:          out.SessionKey,
		UserID:      out.User.UserID,
		DisplayName: out.User.Nickname,
		Token:       identity.AuthToken,
	}
	if session.UserID == "" {
		session.UserID = identity.UserID
	}
	if session.DisplayName == "" {
		session.DisplayName = identity.DisplayName
	}
	return session, nil
}

func (c *Client) Disconnect(ctx context.Context, session *models.Session) error {
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, session.ID).
		SetPathParam("session_key", session.ID)
	return c.do(req, "disconnect", http.MethodDelete, "/v3/sessions/{session_key}")
}

func (c *Client) JoinChannel(ctx context.Context, session *models.Session, ref models.ChannelRef) (*models.ChannelHandle, error) {
	var out enterChannelResponse
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, session.ID).
		SetPathParam("channel_url", ref.URL).
		SetResult(&out)
	if err := c.do(req, "join_channel", http.MethodPut, "/v3/open_channels/{channel_url}/enter"); err != nil {
		return nil, err
	}

	handle := &models.ChannelHandle{URL: out.ChannelURL, Name: out.Name, SessionID: session.ID}
	if handle.URL == "" {
		handle.URL = ref.URL
	}
	if handle.Name == "" {
		handle.Name = ref.Name
	}
	return handle, nil
}

func (c *Client) LeaveChannel(ctx context.Context, handle *models.ChannelHandle) error {
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, handle.SessionID).
		SetPathParam("channel_url", handle.URL)
	return c.do(req, "leave_channel", http.MethodPut, "/v3/open_channels/{channel_url}/exit")
}

func (c *Client) ListOperators(ctx context.Context, handle *models.ChannelHandle) ([]string, error) {
	var (
		ids   []string
		token string
	)
	for range maxOperatorPages {
		var out operatorsResponse
		req := c.reader.R().
			SetContext(ctx).
			SetHeader(headerSessionKey, handle.SessionID).
			SetPathParam("channel_url", handle.URL).
			SetQueryParam("limit", strconv.Itoa(operatorPageSize)).
			SetResult(&out)
		if token != "" {
			req.SetQueryParam("token", token)
		}
		if err := c.do(req, "list_operators", http.MethodGet, "/v3/open_channels/{channel_url}/operators"); err != nil {
			return nil, err
		}
		for _, op := range out.Operators {
			ids = append(ids, op.UserID)
		}
		if out.Next == "" {
			break
		}
		token = out.Next
	}
	return ids, nil
}

func (c *Client) LoadMessages(ctx context.Context, handle *models.ChannelHandle, cursor models.Cursor) (models.Page, error) {
	var out messagesResponse
	req := c.reader.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, handle.SessionID).
		SetPathParam("channel_url", handle.URL).
		SetQueryParam("limit", strconv.Itoa(cursor.PageSize)).
		SetResult(&out)
	if cursor.Token != "" {
		req.SetQueryParam("token", cursor.Token)
	}
	if err := c.do(req, "load_messages", http.MethodGet, "/v3/open_channels/{channel_url}/messages"); err != nil {
		return models.Page{}, err
	}

	return models.Page{
		Messages:  util.ConvertList(out.Messages, Message.toModel),
		NextToken: out.Next,
	}, nil
}

func (c *Client) SendMessage(ctx context.Context, handle *models.ChannelHandle, body string) (models.Message, error) {
	var out Message
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, handle.SessionID).
		SetPathParam("channel_url", handle.URL).
		SetBody(sendMessageRequest{MessageType: messageTypeUser, Message: body}).
		SetResult(&out)
	if err := c.do(req, "send_message", http.MethodPost, "/v3/open_channels/{channel_url}/messages"); err != nil {
		return models.Message{}, err
	}
	return out.toModel(), nil
}

func (c *Client) EditMessage(ctx context.Context, handle *models.ChannelHandle, id int64, body string) (models.Message, error) {
	var out Message
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, handle.SessionID).
		SetPathParam("channel_url", handle.URL).
		SetPathParam("message_id", strconv.FormatInt(id, 10)).
		SetBody(updateMessageRequest{Message: body}).
		SetResult(&out)
	if err := c.do(req, "edit_message", http.MethodPut, "/v3/open_channels/{channel_url}/messages/{message_id}"); err != nil {
		return models.Message{}, err
	}
	return out.toModel(), nil
}

func (c *Client) DeleteMessage(ctx context.Context, handle *models.ChannelHandle, id int64) error {
	req := c.writer.R().
		SetContext(ctx).
		SetHeader(headerSessionKey, handle.SessionID).
		SetPathParam("channel_url", handle.URL).
		SetPathParam("message_id", strconv.FormatInt(id, 10))
	return c.do(req, "delete_message", http.MethodDelete, "/v3/open_channels/{channel_url}/messages/{message_id}")
}

// do executes req and classifies the outcome into the backend error taxonomy.
func (c *Client) do(req *resty.Request, op, method, path string) error {
	var apiErr errorResponse
	req.SetError(&apiErr)

	start := time.Now()
	resp, err := req.Execute(method, path)
	code := "error"
	if resp != nil && resp.StatusCode() > 0 {
		code = strconv.Itoa(resp.StatusCode())
	}
	c.latency.WithLabelValues(op, code).Observe(time.Since(start).Seconds())

	return classify(op, resp, err, apiErr)
}

func classify(op string, resp *resty.Response, err error, apiErr errorResponse) error {
	if err != nil {
		return models.NewTransportError(op, err)
	}
	if !resp.IsError() {
		return nil
	}

	cause := errors.New(resp.Status())
	if apiErr.Message != "" {
		cause = fmt.Errorf("%s: %s", resp.Status(), apiErr.Message)
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewAuthError(op, cause)
	case http.StatusNotFound:
		return models.NewNotFoundError(op, cause)
	default:
		return models.NewTransportError(op, cause)
	}
}
