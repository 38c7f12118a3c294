package kafka

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
	"github.com/nguyentranbao-ct/chat-desk/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// consumerGroupHandler feeds claimed partitions into the EventSource. Each
// partition is consumed in order by its own goroutine.
type consumerGroupHandler struct {
	source  *EventSource
	groupID string
	metrics *prometheus.HistogramVec
}

func newConsumerGroupHandler(source *EventSource, groupID string) (*consumerGroupHandler, error) {
	metrics, err := util.GetHistogramVec("kafka_messages_consumed", "status", "topic", "group")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}
	return &consumerGroupHandler{source: source, groupID: groupID, metrics: metrics}, nil
}

func (h *consumerGroupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	log.Infow(sess.Context(), "kafka claims assigned", "member_id", sess.MemberID(), "claims", sess.Claims())
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.processMessage(sess.Context(), msg)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	start := time.Now()
	lagMs := start.Sub(msg.Timestamp).Milliseconds()

	delivered, err := h.handle(msg)
	duration := time.Since(start)

	code := getCode(err)
	content := "success"
	if err != nil {
		content = err.Error()
	}

	log.Logw(ctx, getLogLevel(code, delivered), content,
		"code", code,
		"delivered", delivered,
		"duration_ms", duration.Milliseconds(),
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"lag_ms", lagMs,
		"key", string(msg.Key),
	)

	h.metrics.
		WithLabelValues(code.String(), msg.Topic, h.groupID).
		Observe(duration.Seconds())
}

func (h *consumerGroupHandler) handle(msg *sarama.ConsumerMessage) (delivered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			length := runtime.Stack(stack, false)
			err = fmt.Errorf("PANIC RECOVER: %+v / %s", r, string(stack[:length]))
		}
	}()

	var env models.LiveEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "unmarshal channel event: %v", err)
	}
	if env.ChannelURL == "" {
		env.ChannelURL = string(msg.Key)
	}

	delivered, err = h.source.Dispatch(env)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "decode channel event: %v", err)
	}
	return delivered, nil
}

func getCode(err error) codes.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	st, ok := status.FromError(err)
	if !ok {
		return status.Code(errors.Unwrap(err))
	}
	return st.Code()
}

// getLogLevel keeps the steady stream of events for other channels at debug.
func getLogLevel(code codes.Code, delivered int) logger.Level {
	switch code {
	case codes.OK:
		if delivered == 0 {
			return logger.DebugLevel
		}
		return logger.InfoLevel
	case codes.Canceled,
		codes.InvalidArgument,
		codes.NotFound,
		codes.AlreadyExists,
		codes.PermissionDenied,
		codes.Unauthenticated,
		codes.ResourceExhausted,
		codes.FailedPrecondition,
		codes.Aborted,
		codes.Unimplemented,
		codes.OutOfRange:
		return logger.WarnLevel
	default:
		return logger.ErrorLevel
	}
}
