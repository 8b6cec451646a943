package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/internal/handler"
	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	"github.com/jwalitptl/clinic-workflow/internal/service/appointment"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/transition", h.TransitionAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filter := model.AppointmentFilter{
		Status:     model.AppointmentStatus(c.Query("status")),
		Pagination: handler.Page(c),
	}

	var ok bool
	if filter.DoctorID, ok = handler.QueryID(c, "doctor_id"); !ok {
		return
	}
	if filter.PatientID, ok = handler.QueryID(c, "patient_id"); !ok {
		return
	}
	if filter.Date, ok = handler.QueryDate(c, "date"); !ok {
		return
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), middleware.SessionFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, appointments, filter.Limit, filter.Offset, len(appointments))
}

// TransitionAppointment applies a workflow action. On failure the response
// still carries the appointment as it currently stands.
func (h *Handler) TransitionAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.TransitionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	action, err := appointment.ParseAction(req.Action)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.service.TransitionAppointment(c.Request.Context(), middleware.SessionFrom(c), id, action,
		appointment.Payload{Reason: req.Reason, Notes: req.Notes})
	if err != nil {
		if apt != nil {
			httputil.RespondWithFailure(c, err, apt)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}
