package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ChatRequest is one user utterance addressed to the assistant.
type ChatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ChatResponse carries the assistant reply and the session state after
// the turn, so clients can tell when a question is pending.
type ChatResponse struct {
	Reply string `json:"reply"`
	State string `json:"state"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Message = strings.TrimSpace(req.Message)
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	user, err := s.store.GetOrCreateUser(ctx, req.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")
	}

	session := s.sessions.Get(user.ID)
	reply := s.router.Process(ctx, session, req.Message)

	return c.JSON(http.StatusOK, ChatResponse{
		Reply: reply,
		State: string(session.State()),
	})
}
