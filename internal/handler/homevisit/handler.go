package homevisit

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/handler"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/homevisit"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

type Handler struct {
	service *homevisit.Service
}

func NewHandler(service *homevisit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/home-visits")
	{
		visits.POST("", h.CreateHomeVisit)
		visits.GET("", h.ListHomeVisits)
		visits.GET("/:id", h.GetHomeVisit)
		visits.POST("/:id/transition", h.TransitionHomeVisit)
	}

	drivers := r.Group("/drivers")
	{
		drivers.GET("/available", h.ListAvailableDrivers)
		drivers.PUT("/me/availability", h.SetAvailability)
	}
}

func (h *Handler) CreateHomeVisit(c *gin.Context) {
	var req model.CreateHomeVisitRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	visit, err := h.service.CreateHomeVisit(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, visit)
}

func (h *Handler) GetHomeVisit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	visit, err := h.service.GetHomeVisit(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) ListHomeVisits(c *gin.Context) {
	filter := model.HomeVisitFilter{
		Status:     model.HomeVisitStatus(c.Query("status")),
		Pagination: handler.Page(c),
	}

	var ok bool
	if filter.PatientID, ok = handler.QueryID(c, "patient_id"); !ok {
		return
	}
	if filter.DriverID, ok = handler.QueryID(c, "driver_id"); !ok {
		return
	}

	visits, err := h.service.ListHomeVisits(c.Request.Context(), middleware.SessionFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, visits, filter.Limit, filter.Offset, len(visits))
}

func (h *Handler) TransitionHomeVisit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.HomeVisitTransitionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	action, err := homevisit.ParseAction(req.Action)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	visit, err := h.service.TransitionHomeVisit(c.Request.Context(), middleware.SessionFrom(c), id, action,
		homevisit.Payload{DriverID: req.DriverID, Reason: req.Reason, Notes: req.Notes})
	if err != nil {
		if visit != nil {
			httputil.RespondWithFailure(c, err, visit)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) ListAvailableDrivers(c *gin.Context) {
	drivers, err := h.service.ListAvailableDrivers(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, drivers)
}

// SetAvailability toggles the calling driver's on-duty flag.
func (h *Handler) SetAvailability(c *gin.Context) {
	var req model.DriverAvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.SetDriverAvailability(c.Request.Context(), middleware.SessionFrom(c), *req.Available)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, profile)
}
