package handler

import (
	"net/http"
	"strings"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

// g には認証と AdminRoleGuard が掛かっている前提
func (h *AdminOrderHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/orders", h.list)
	g.PUT("/orders/:id/status", h.updateStatus)
	g.GET("/audit-logs", h.auditLogs)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return err
	}

	f := repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: strings.TrimSpace(c.QueryParam("status")),
	}
	if v := strings.TrimSpace(c.QueryParam("user_id")); v != "" {
		f.UserID = &v
	}
	var okFrom, okTo bool
	f.From, okFrom = usecase.ParseDateTimeRFC3339(c.QueryParam("from"))
	if !okFrom {
		return badRequest("invalid from", "from")
	}
	f.To, okTo = usecase.ParseDateTimeRFC3339(c.QueryParam("to"))
	if !okTo {
		return badRequest("invalid to", "to")
	}

	out, err := h.uc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	adminID, ok := middleware.UserID(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req usecase.AdminUpdateOrderStatusInput
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body", "")
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), adminID, c.Param("id"), req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}

	f := repository.AuditLogFilter{Limit: limit, Offset: offset}
	if v := c.QueryParam("actor"); v != "" {
		f.Actor = &v
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := c.QueryParam("resource_type"); v != "" {
		rt := model.AuditResourceType(v)
		f.ResourceType = &rt
	}
	if v := c.QueryParam("resource_id"); v != "" {
		f.ResourceID = &v
	}
	if v := c.QueryParam("event_id"); v != "" {
		f.EventID = &v
	}
	var okFrom, okTo bool
	f.CreatedFrom, okFrom = usecase.ParseDateTimeRFC3339(c.QueryParam("from"))
	if !okFrom {
		return badRequest("invalid from", "from")
	}
	f.CreatedTo, okTo = usecase.ParseDateTimeRFC3339(c.QueryParam("to"))
	if !okTo {
		return badRequest("invalid to", "to")
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out)
}
