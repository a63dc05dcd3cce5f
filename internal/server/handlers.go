package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"paper-qa/internal/db"
	"paper-qa/internal/helper"
	"paper-qa/internal/models"
	"paper-qa/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	svc           *service.Service
	maxUploadSize int64
}

type uploadResponse struct {
	Document *db.Document                  `json:"document"`
	Report   models.CitationReport         `json:"citations"`
	Counts   map[models.CitationStatus]int `json:"counts"`
}

type createChatReq struct {
	Title string `json:"title"`
}

type sendMessageReq struct {
	Message string `json:"message"`
}

// messageResponse adds the rendered HTML of AI messages.
type messageResponse struct {
	db.ChatMessage
	ContentHTML string `json:"content_html,omitempty"`
}

func newMessageResponse(msg db.ChatMessage) messageResponse {
	resp := messageResponse{ChatMessage: msg}
	if !msg.IsUser {
		html, err := helper.RenderMarkdown(msg.Content)
		if err != nil {
			log.Error().Err(err).Int64("message_id", msg.ID).Msg("Error rendering markdown")
		} else {
			resp.ContentHTML = html
		}
	}
	return resp
}

func (h *Handler) ListDocuments(c echo.Context) error {
	docs, err := h.svc.ListDocuments(c.Request().Context(), userID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	if docs == nil {
		docs = []db.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) UploadDocument(c echo.Context) error {
	file, err := c.FormFile("document")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize)})
	}
	src, err := file.Open()
	if err != nil {
		return errorResponse(c, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return errorResponse(c, err)
	}

	doc, report, err := h.svc.Upload(c.Request().Context(), userID(c), c.FormValue("title"), file.Filename, file.Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, uploadResponse{Document: doc, Report: report, Counts: report.Counts()})
}

func (h *Handler) ListCitations(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	docs, err := h.svc.ListCitations(c.Request().Context(), userID(c), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if docs == nil {
		docs = []db.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), userID(c), id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) CreateChat(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	var req createChatReq
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad json"})
		}
	}
	session, err := h.svc.NewSession(c.Request().Context(), userID(c), id, req.Title)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) ListChats(c echo.Context) error {
	sessions, err := h.svc.ListSessions(c.Request().Context(), userID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	if sessions == nil {
		sessions = []db.ChatSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) ListMessages(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	msgs, err := h.svc.Messages(c.Request().Context(), userID(c), id)
	if err != nil {
		return errorResponse(c, err)
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, newMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendMessage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	var req sendMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad json"})
	}
	reply, err := h.svc.Send(c.Request().Context(), userID(c), id, req.Message)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newMessageResponse(*reply))
}

func (h *Handler) DeleteChat(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := h.svc.DeleteSession(c.Request().Context(), userID(c), id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", service.ErrInvalidInput, c.Param("id"))
	}
	return id, nil
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	log.Error().Err(err).Str("path", c.Path()).Str("user_id", userID(c)).Msg("Request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}
