package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	"github.com/nguyentranbao-ct/chat-desk/internal/kafka"
	"github.com/nguyentranbao-ct/chat-desk/internal/repo/chatapi"
	"github.com/nguyentranbao-ct/chat-desk/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-desk/internal/server"
	"github.com/nguyentranbao-ct/chat-desk/internal/usecase"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	if err := logger.SetLevel(conf.Log.Level); err != nil {
		log.Warnw("invalid log level", "error", err)
	}
	log.Debugw("config loaded", log.Reflect("config", redacted(conf)))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newTokenSealer,
			newLiveSource,

			server.NewController,
			server.NewHub,
			kafka.NewEventSource,

			fx.Annotate(chatapi.NewClient, fx.As(new(usecase.ChatBackend))),
			fx.Annotate(mongodb.NewSettingsRepository, fx.As(new(usecase.SettingsRepository))),
			func(hub *server.Hub) usecase.Broadcaster { return hub },

			usecase.NewSessionUsecase,
			usecase.NewMembershipUsecase,
			usecase.NewSyncEngine,
			usecase.NewNotificationUsecase,
			usecase.NewSettingsUsecase,
			usecase.NewMessageUsecase,
			usecase.NewConnectionUsecase,
		),
		fx.Supply(conf),
		fx.Invoke(CloseSyncEngine),
		fx.Invoke(funcs...),
		fx.Invoke(RestoreSession),
	)
}

// redacted hides secrets from the startup config dump.
func redacted(conf *config.Config) config.Config {
	c := *conf
	c.Database.Password = mask(c.Database.Password)
	c.Security.TokenKey = mask(c.Security.TokenKey)
	c.Server.APIToken = mask(c.Server.APIToken)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func CloseSyncEngine(lc fx.Lifecycle, engine usecase.SyncEngine) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			engine.Close()
			return nil
		},
	})
}

// RestoreSession reconnects the last identity and channel once the server
// is up. A failed restore is reported as a notification, not a startup error.
func RestoreSession(lc fx.Lifecycle, conf *config.Config, conn usecase.ConnectionUsecase) {
	if !conf.Sync.AutoConnect {
		return
	}
	log := logger.MustNamed("restore")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), conf.ChatAPI.Timeout*3)
				defer cancel()
				if err := conn.Restore(ctx); err != nil {
					log.Warnw("restore session failed", "error", err)
					return
				}
				log.Infow("session restored", "state", conn.State().String())
			}()
			return nil
		},
	})
}
