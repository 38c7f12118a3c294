package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/kafka"
	"github.com/nguyentranbao-ct/chat-desk/internal/repo/chatapi"
	"github.com/nguyentranbao-ct/chat-desk/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-desk/internal/usecase"
	"github.com/nguyentranbao-ct/chat-desk/pkg/crypto"
)

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	opts := options.Client().
		SetAppName("chat-desk").
		SetDirect(cfg.Database.Direct).
		SetHosts(cfg.Database.Hosts)

	if cfg.Database.Username != "" {
		opts.SetAuth(options.Credential{
			Username:      cfg.Database.Username,
			Password:      cfg.Database.Password,
			AuthSource:    cfg.Database.AuthDB,
			AuthMechanism: "SCRAM-SHA-1",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	mongoDB := mongoClient.Database(cfg.Database.Database)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
		OnStop: func(ctx context.Context) error {
			return mongoClient.Disconnect(ctx)
		},
	})

	return &mongodb.DB{
		Client:   mongoClient,
		Database: mongoDB,
	}, nil
}

func newTokenSealer(cfg *config.Config) (usecase.TokenSealer, error) {
	sealer, err := crypto.NewSealer(cfg.Security.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("init token sealer: %w", err)
	}
	return sealer, nil
}

// newLiveSource picks the live event transport. The kafka source is fed by
// the consumer group started in kafka.StartConsumeEvents.
func newLiveSource(lc fx.Lifecycle, cfg *config.Config, events *kafka.EventSource) (usecase.LiveSource, error) {
	if cfg.ChatAPI.LiveTransport == config.LiveTransportKafka {
		return events, nil
	}
	sub, err := chatapi.NewSubscriber(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sub.Close()
			return nil
		},
	})
	return sub, nil
}
