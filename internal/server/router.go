package server

import (
	"net/http"

	"paper-qa/internal/config"
	"paper-qa/internal/service"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

func New(svc *service.Service, cfg *config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(requestLogger())

	h := &Handler{svc: svc, maxUploadSize: cfg.MaxUploadSize}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := e.Group("", UserIdentity())

	docs := api.Group("/documents")
	docs.GET("", h.ListDocuments)
	docs.POST("", h.UploadDocument)
	docs.GET("/:id/citations", h.ListCitations)
	docs.DELETE("/:id", h.DeleteDocument)
	docs.POST("/:id/chats", h.CreateChat)

	chats := api.Group("/chats")
	chats.GET("", h.ListChats)
	chats.GET("/:id/messages", h.ListMessages)
	chats.POST("/:id/messages", h.SendMessage)
	chats.DELETE("/:id", h.DeleteChat)
	return e
}
