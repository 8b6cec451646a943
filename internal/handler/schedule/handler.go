package schedule

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/handler"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
	"github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

type Handler struct {
	service *schedule.Service
}

func NewHandler(service *schedule.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:id")
	{
		doctors.GET("/slots", h.ListSlots)
		doctors.GET("/schedules", h.ListSchedules)
	}

	schedules := r.Group("/schedules")
	{
		schedules.POST("", h.CreateSchedule)
		schedules.PUT("/:id", h.UpdateSchedule)
		schedules.POST("/:id/deactivate", h.DeactivateSchedule)
	}
}

// ListSlots computes the doctor's slots for ?date=YYYY-MM-DD.
func (h *Handler) ListSlots(c *gin.Context) {
	doctorID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}
	if date == nil {
		httputil.RespondWithError(c, errors.Validation("date is required"))
		return
	}

	slots, err := h.service.ListSlots(c.Request.Context(), middleware.SessionFrom(c), doctorID, *date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"doctor_id": doctorID,
		"date":      date.Format(model.DateLayout),
		"slots":     slots,
	})
}

func (h *Handler) ListSchedules(c *gin.Context) {
	doctorID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	schedules, err := h.service.ListSchedules(c.Request.Context(), middleware.SessionFrom(c), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, schedules)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req model.UpsertScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	entry, err := h.service.CreateSchedule(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, entry)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpsertScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	entry, err := h.service.UpdateSchedule(c.Request.Context(), middleware.SessionFrom(c), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) DeactivateSchedule(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	entry, err := h.service.DeactivateSchedule(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entry)
}
