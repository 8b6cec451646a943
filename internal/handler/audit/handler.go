package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/access"
	"github.com/jwalitptl/clinic-workflow/internal/handler"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/audit"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/logs/entity/:type/:id", h.GetEntityLogs)
		audit.GET("/logs/user/:id", h.GetUserLogs)
	}
}

var adminOnly = access.Roles(model.RoleAdmin)

func (h *Handler) ListLogs(c *gin.Context) {
	filter := model.AuditFilter{
		EntityType: c.Query("entity_type"),
		Pagination: handler.Page(c),
	}

	var ok bool
	if filter.Since, ok = handler.QueryDate(c, "since"); !ok {
		return
	}
	h.list(c, filter)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	h.list(c, model.AuditFilter{
		EntityType: c.Param("type"),
		EntityID:   entityID,
		Pagination: handler.Page(c),
	})
}

func (h *Handler) GetUserLogs(c *gin.Context) {
	userID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	h.list(c, model.AuditFilter{UserID: userID, Pagination: handler.Page(c)})
}

func (h *Handler) list(c *gin.Context, filter model.AuditFilter) {
	if err := access.Check(middleware.SessionFrom(c), adminOnly); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, logs, filter.Limit, filter.Offset, len(logs))
}
