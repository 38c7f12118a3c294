package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/nguyentranbao-ct/chat-desk/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/chat-desk/internal/server/middleware"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger"
	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
	hub *Hub,
) error {
	e, closeFn, err := NewEcho(conf, handler, hub)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					log.Errorw(ctx, "HTTP server stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			defer closeFn()
			return e.Shutdown(ctx)
		},
	})
	return nil
}

// NewEcho builds the HTTP server with its middleware chain and routes. The
// returned func releases resources held by the middlewares.
func NewEcho(conf *config.Config, handler Controller, hub *Hub) (*echo.Echo, func(), error) {
	origins, err := regexp.Compile(conf.Server.CORSOrigins)
	if err != nil {
		return nil, nil, fmt.Errorf("compile cors origins: %w", err)
	}

	httpLog := logger.MustNamed("http")
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(httpLog)

	logConfig := pkgmdw.LogRequestConfig{
		Logger: httpLog,
		Enabled: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path != "/health" && path != "/metrics"
		},
		// request bodies may carry auth tokens
		RequestBody: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path != "/api/v1/session/connect" && path != "/api/v1/settings/users" &&
				path != "/api/v1/settings/users/generate"
		},
		ParamValues: func(c echo.Context) bool { return true },
		KeyAndValues: func(c echo.Context) []any {
			return []any{"route", c.Path(), "state", handler.ConnectionState().String()}
		},
	}

	closeFn := func() {}
	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return nil
		},
	}))
	e.Use(pkgmdw.CORS(origins))
	if conf.Server.StatsdAddress != "" {
		profiler, closeProfiler, err := pkgmdw.Profiler(pkgmdw.ProfilerConfig{
			Log:     httpLog,
			Address: conf.Server.StatsdAddress,
		})
		if err != nil {
			return nil, nil, err
		}
		e.Use(profiler)
		closeFn = closeProfiler
	}

	auth := pkgmdw.BearerToken(conf.Server.APIToken, nil)
	if conf.Server.PprofEnabled {
		pkgmdw.PprofWrap(e, auth)
	}

	e.GET("/health", handler.Health)
	e.GET("/ws", hub.ServeWS, auth)

	api := e.Group("/api/v1", auth)
	if conf.Server.RateLimit > 0 {
		store := middleware.NewRateLimiterMemoryStore(rate.Limit(conf.Server.RateLimit))
		api.Use(middleware.RateLimiter(store))
	}
	api.GET("/state", pkgmdw.WrapHandler(handler.State))
	api.POST("/session/connect", pkgmdw.WrapHandler(handler.Connect))
	api.POST("/session/disconnect", pkgmdw.WrapHandler(handler.Disconnect))
	api.POST("/channel/join", pkgmdw.WrapHandler(handler.Join))
	api.POST("/channel/leave", pkgmdw.WrapHandler(handler.Leave))

	api.GET("/messages", pkgmdw.WrapHandler(handler.ListMessages))
	api.POST("/messages", pkgmdw.WrapHandler(handler.SendMessage))
	api.POST("/messages/load-more", pkgmdw.WrapHandler(handler.LoadMore))
	api.PUT("/messages/:id", pkgmdw.WrapHandler(handler.EditMessage))
	api.DELETE("/messages/:id", pkgmdw.WrapHandler(handler.DeleteMessage))

	api.GET("/notifications", pkgmdw.WrapHandler(handler.ListNotifications))
	api.DELETE("/notifications", pkgmdw.WrapHandler(handler.ClearNotifications))
	api.DELETE("/notifications/:id", pkgmdw.WrapHandler(handler.DismissNotification))

	settings := api.Group("/settings")
	settings.GET("/users", pkgmdw.WrapHandler(handler.ListUsers))
	settings.PUT("/users", pkgmdw.WrapHandler(handler.SaveUsers))
	settings.POST("/users/generate", pkgmdw.WrapHandler(handler.GenerateUser))
	settings.GET("/channels", pkgmdw.WrapHandler(handler.ListChannels))
	settings.PUT("/channels", pkgmdw.WrapHandler(handler.SaveChannels))
	settings.PUT("/selection", pkgmdw.WrapHandler(handler.Select))

	return e, closeFn, nil
}
