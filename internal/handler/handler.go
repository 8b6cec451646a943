// Package handler holds the request helpers shared by the resource handlers
// in its subpackages.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-workflow/internal/middleware"
	"github.com/jwalitptl/clinic-workflow/internal/model"
	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
	"github.com/jwalitptl/clinic-workflow/pkg/httputil"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Routes is implemented by every resource handler.
type Routes interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// BindJSON decodes the body into obj and answers 400 with per-field
// messages when it does not validate.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
			Success: false,
			Message: "invalid request",
			Code:    apperrors.ErrBadRequest.String(),
			Data:    middleware.ValidationErrors(err),
		})
		return false
	}
	return true
}

// ParamID parses a UUID path parameter.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// QueryID parses an optional UUID query parameter.
func QueryID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		badRequest(c, "invalid "+name+", expected YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}

// Page reads limit and offset, clamping limit to a sane window.
func Page(c *gin.Context) model.Pagination {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return model.Pagination{Limit: limit, Offset: offset}
}

func badRequest(c *gin.Context, message string) {
	httputil.RespondWithError(c, apperrors.Validation(message))
}
