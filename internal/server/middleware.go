package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const (
	UserHeader = "X-User-ID"
	userKey    = "uid"
)

// UserIdentity trusts the caller id sent by the fronting auth proxy.
func UserIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := strings.TrimSpace(c.Request().Header.Get(UserHeader))
			if uid == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing " + UserHeader + " header"})
			}
			c.Set(userKey, uid)
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	uid, _ := c.Get(userKey).(string)
	return uid
}

func requestLogger() echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("user_id", userID(c)).
				Msg("Request")
			return nil
		},
	})
}
