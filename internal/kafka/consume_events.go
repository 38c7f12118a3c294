package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
	"github.com/segmentio/ksuid"
	"go.uber.org/fx"
)

func newSaramaConfig(conf config.KafkaConfig) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(conf.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version: %w", err)
	}
	cfg := sarama.NewConfig()
	cfg.Version = version
	cfg.ClientID = "chat-desk"
	cfg.Consumer.Return.Errors = true
	// live events only matter from the moment the client starts
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	// the group is private to this process, its offsets are never reused
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return cfg, nil
}

// instanceGroupID gives every daemon its own consumer group. Sharing one
// would split the partitions, and with them the channel events, between
// instances.
func instanceGroupID(prefix string) string {
	return prefix + "-" + ksuid.New().String()
}

// StartConsumeEvents runs the channel events consumer group for the
// lifetime of the app when the Kafka live transport is selected.
func StartConsumeEvents(
	sd fx.Shutdowner,
	lc fx.Lifecycle,
	conf *config.Config,
	source *EventSource,
) error {
	if conf.ChatAPI.LiveTransport != config.LiveTransportKafka {
		return nil
	}

	saramaConf, err := newSaramaConfig(conf.Kafka)
	if err != nil {
		return err
	}
	groupID := instanceGroupID(conf.Kafka.GroupPrefix)
	handler, err := newConsumerGroupHandler(source, groupID)
	if err != nil {
		return err
	}
	group, err := sarama.NewConsumerGroup(conf.Kafka.Brokers, groupID, saramaConf)
	if err != nil {
		return fmt.Errorf("new consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	topics := []string{conf.Kafka.Topic}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow(ctx, "starting kafka consumer", "topic", conf.Kafka.Topic, "group_id", groupID)
			go func() {
				for err := range group.Errors() {
					log.Warnw(ctx, "kafka consumer error", "error", err)
				}
			}()
			go func() {
				defer close(done)
				for ctx.Err() == nil {
					// Consume returns on every rebalance
					err := group.Consume(ctx, topics, handler)
					if errors.Is(err, sarama.ErrClosedConsumerGroup) {
						return
					}
					if err != nil {
						log.Errorw(ctx, "kafka consume failed", "error", err)
						_ = sd.Shutdown()
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			log.Infof(ctx, "Stopping Kafka consumer")
			cancel()
			<-done
			return group.Close()
		},
	})
	return nil
}
