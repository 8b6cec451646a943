package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-workflow/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	Code     string      `json:"code,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response derived from the AppError in err's chain.
func RespondWithError(c *gin.Context, err error) {
	RespondWithFailure(c, err, nil)
}

// RespondWithFailure is RespondWithError for a failed mutation: data carries
// the entity as it stands after the failure so clients can refresh.
func RespondWithFailure(c *gin.Context, err error, data interface{}) {
	appErr := errors.As(err)
	message := appErr.Message
	if appErr.Code == errors.ErrInternal {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(errors.HTTPStatus(appErr.Code), Response{
		Success:  false,
		Message:  message,
		Code:     appErr.Code.String(),
		Redirect: appErr.Redirect,
		Data:     data,
	})
}

// RespondWithPagination sends a list with its paging window
func RespondWithPagination(c *gin.Context, items interface{}, limit, offset, count int) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PaginatedResponse{
			Items: items,
			Pagination: Pagination{
				Limit:  limit,
				Offset: offset,
				Count:  count,
			},
		},
	})
}
