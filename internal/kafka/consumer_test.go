package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "chat.channel-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func consumerMessage(offset int64, key, value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "chat.channel-events",
		Offset:    offset,
		Key:       []byte(key),
		Value:     []byte(value),
		Timestamp: time.Now(),
	}
}

func TestConsumeClaim(t *testing.T) {
	source := NewEventSource()
	var got []models.LiveEvent
	_, err := source.Subscribe(context.Background(), &models.ChannelHandle{URL: "general"}, func(ev models.LiveEvent) {
		got = append(got, ev)
	})
	require.NoError(t, err)

	h, err := newConsumerGroupHandler(source, "chat-desk")
	require.NoError(t, err)

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 5)}
	claim.messages <- consumerMessage(1, "general", `{"type":"message.sent","message":{"message_id":9,"created_at":90,"message":"hi","type":"MESG"}}`)
	claim.messages <- consumerMessage(2, "random", `{"type":"message.sent","message":{"message_id":10,"created_at":91,"type":"MESG"}}`)
	claim.messages <- consumerMessage(3, "general", `{broken`)
	claim.messages <- consumerMessage(4, "general", `{"type":"message.deleted","channel_url":"general","message_id":9}`)
	close(claim.messages)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	assert.Equal(t, []int64{1, 2, 3, 4}, sess.marked)
	require.Len(t, got, 2)
	assert.Equal(t, models.LiveEventAdded, got[0].Type)
	assert.Equal(t, "hi", got[0].Message.Body)
	assert.Equal(t, models.LiveEvent{Type: models.LiveEventDeleted, MessageID: 9}, got[1])
}

func TestConsumeClaimStopsOnCancel(t *testing.T) {
	h, err := newConsumerGroupHandler(NewEventSource(), "chat-desk")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = h.ConsumeClaim(&fakeSession{ctx: ctx}, &fakeClaim{messages: make(chan *sarama.ConsumerMessage)})
	assert.NoError(t, err)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"status", status.Error(codes.InvalidArgument, "bad"), codes.InvalidArgument},
		{"plain", errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getCode(tt.err))
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, getLogLevel(codes.OK, 0))
	assert.Equal(t, logger.InfoLevel, getLogLevel(codes.OK, 1))
	assert.Equal(t, logger.WarnLevel, getLogLevel(codes.InvalidArgument, 0))
	assert.Equal(t, logger.ErrorLevel, getLogLevel(codes.Internal, 0))
}

func TestNewSaramaConfig(t *testing.T) {
	cfg, err := newSaramaConfig(config.KafkaConfig{Version: "3.6.0"})
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetNewest, cfg.Consumer.Offsets.Initial)
	assert.False(t, cfg.Consumer.Offsets.AutoCommit.Enable)
	assert.NoError(t, cfg.Validate())

	_, err = newSaramaConfig(config.KafkaConfig{Version: "x"})
	assert.Error(t, err)
}

func TestInstanceGroupID(t *testing.T) {
	a, b := instanceGroupID("chat-desk"), instanceGroupID("chat-desk")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "chat-desk-"))
	assert.True(t, strings.HasPrefix(b, "chat-desk-"))
}

func TestStartConsumeEventsDisabled(t *testing.T) {
	conf := &config.Config{ChatAPI: config.ChatAPIConfig{LiveTransport: config.LiveTransportWebsocket}}
	assert.NoError(t, StartConsumeEvents(nil, nil, conf, NewEventSource()))
}
