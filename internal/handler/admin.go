package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/service"
)

// AdminHandler serves operator-only views.
type AdminHandler struct {
	Audit *service.Audit
}

func NewAdminHandler(a *service.Audit) *AdminHandler {
	if a == nil {
		panic("nil audit passed to NewAdminHandler")
	}
	return &AdminHandler{Audit: a}
}

type auditResponse struct {
	ID        uint64 `json:"id"`
	UserID    uint64 `json:"user_id,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// AuditLogs handles GET /v1/admin/audit-logs?limit=.
func (h *AdminHandler) AuditLogs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	logs, err := h.Audit.Recent(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]auditResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, auditResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Details:   l.Details,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
