package rolerequest

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/handler"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/rolerequest"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

type Handler struct {
	service *rolerequest.Service
}

func NewHandler(service *rolerequest.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/role-requests")
	{
		requests.POST("", h.Submit)
		requests.GET("", h.List)
		requests.GET("/mine", h.ListMine)
		requests.POST("/:id/review", h.Review)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	var req model.SubmitRoleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Submit(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, created)
}

// List is the admin queue, filtered by ?status=.
func (h *Handler) List(c *gin.Context) {
	filter := model.RoleRequestFilter{
		Status:     model.RoleRequestStatus(c.Query("status")),
		Pagination: handler.Page(c),
	}

	requests, err := h.service.List(c.Request.Context(), middleware.SessionFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, requests, filter.Limit, filter.Offset, len(requests))
}

func (h *Handler) ListMine(c *gin.Context) {
	requests, err := h.service.ListMine(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, requests)
}

func (h *Handler) Review(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.ReviewRoleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	reviewed, err := h.service.Review(c.Request.Context(), middleware.SessionFrom(c), id, req.Decision, req.Note)
	if err != nil {
		if reviewed != nil {
			httputil.RespondWithFailure(c, err, reviewed)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, reviewed)
}
