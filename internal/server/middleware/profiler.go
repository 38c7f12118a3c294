package middleware

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/alexcesaro/statsd.v2"
)

type ProfilerConfig struct {
	Log     Logger
	Skipper Skipper
	Address string
	Service string
}

var DefaultProfilerConfig = ProfilerConfig{
	Skipper: DefaultSkipper,
	Address: ":8125",
	Service: "chat-desk",
}

// Profiler sends a statsd timing per request named
// response.<service>.<method>.<route>.<status>.
// The returned close func flushes and closes the statsd client.
func Profiler(config ProfilerConfig) (echo.MiddlewareFunc, func(), error) {
	if config.Skipper == nil {
		config.Skipper = DefaultProfilerConfig.Skipper
	}
	if config.Address == "" {
		config.Address = DefaultProfilerConfig.Address
	}
	if config.Service == "" {
		config.Service = DefaultProfilerConfig.Service
	}

	client, err := statsd.New(
		statsd.Address(config.Address),
		statsd.ErrorHandler(func(err error) {
			if config.Log != nil {
				config.Log.Warnw("statsd error", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("statsd client: %w", err)
	}

	mw := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if config.Skipper(c) {
				return next(c)
			}

			t := client.NewTiming()
			if err = next(c); err != nil {
				c.Error(err)
			}

			t.Send(timingBucket(config.Service, c.Request().Method, c.Path(), c.Response().Status))
			return
		}
	}
	return mw, client.Close, nil
}

// timingBucket builds a statsd bucket name; route params keep their
// placeholder so ids do not explode cardinality.
func timingBucket(service, method, route string, status int) string {
	route = strings.Trim(route, "/")
	route = strings.NewReplacer("/", "_", ":", "").Replace(route)
	if route == "" {
		route = "root"
	}
	return strings.ToLower(fmt.Sprintf("response.%s.%s.%s.%d", service, method, route, status))
}
