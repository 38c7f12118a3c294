package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
	"github.com/segmentio/ksuid"
)

const closeWait = time.Second

// Subscriber streams live channel events from the backend over websocket,
// one connection per subscription.
type Subscriber struct {
	baseURL *url.URL
	appID   string
	dialer  *websocket.Dialer
	log     *logger.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	id      string
	channel string
	conn    *websocket.Conn
	handler models.LiveHandler
	closed  chan struct{}
	once    sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		_ = s.conn.Close()
	})
}

func NewSubscriber(conf *config.Config) (*Subscriber, error) {
	u, err := url.Parse(conf.ChatAPI.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse chat api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return &Subscriber{
		baseURL: u,
		appID:   conf.ChatAPI.AppID,
		dialer:  &websocket.Dialer{HandshakeTimeout: conf.ChatAPI.Timeout, Proxy: http.ProxyFromEnvironment},
		log:     logger.MustNamed("subscriber"),
		subs:    map[string]*subscription{},
	}, nil
}

func (s *Subscriber) eventsURL(channelURL string) string {
	u := *s.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v3/open_channels/" + url.PathEscape(channelURL) + "/events"
	return u.String()
}

func (s *Subscriber) Subscribe(ctx context.Context, handle *models.ChannelHandle, handler models.LiveHandler) (string, error) {
	if !handle.Valid() {
		return "", models.ErrInvalidHandle
	}
	header := http.Header{}
	header.Set(headerAppID, s.appID)
	header.Set(headerSessionKey, handle.SessionID)

	conn, resp, err := s.dialer.DialContext(ctx, s.eventsURL(handle.URL), header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", models.NewAuthError("subscribe", err)
			case http.StatusNotFound:
				return "", models.NewNotFoundError("subscribe", err)
			}
		}
		return "", models.NewTransportError("subscribe", err)
	}

	sub := &subscription{
		id:      ksuid.New().String(),
		channel: handle.URL,
		conn:    conn,
		handler: handler,
		closed:  make(chan struct{}),
	}
	s.mu.Lock()
	s.subs[sub.id] = sub
	s.mu.Unlock()

	go s.read(sub)
	s.log.Infow("subscribed", "subscription_id", sub.id, "channel_url", sub.channel)
	return sub.id, nil
}

func (s *Subscriber) read(sub *subscription) {
	defer s.remove(sub.id)
	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			select {
			case <-sub.closed:
			default:
				// the backend ended the stream; tell the consumer it is stale
				s.log.Warnw("live stream dropped", "subscription_id", sub.id, "channel_url", sub.channel, "error", err)
				sub.handler(models.LiveEvent{
					Type: models.LiveEventStreamLost,
					Err:  models.NewTransportError("live stream", err),
				})
			}
			return
		}

		ev, err := decodeFrame(sub.channel, data)
		if errors.Is(err, errOtherChannel) {
			continue
		}
		if err != nil {
			s.log.Warnw("skip live frame", "subscription_id", sub.id, "error", err)
			continue
		}
		sub.handler(ev)
	}
}

var errOtherChannel = errors.New("event for another channel")

func decodeFrame(channelURL string, data []byte) (models.LiveEvent, error) {
	var env models.LiveEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.LiveEvent{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.ChannelURL != "" && env.ChannelURL != channelURL {
		return models.LiveEvent{}, errOtherChannel
	}
	return env.Decode(DecodeMessage)
}

func (s *Subscriber) remove(id string) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if ok {
		sub.close()
	}
}

func (s *Subscriber) Unsubscribe(id string) {
	s.remove(id)
	s.log.Debugw("unsubscribed", "subscription_id", id)
}

// Close drops every open subscription.
func (s *Subscriber) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.remove(id)
	}
}
