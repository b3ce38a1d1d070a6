// Package handlers implements the HTTP API endpoints over the appraisal
// application service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// respond writes the success envelope with the request ID attached.
func respond(c *gin.Context, status int, data any) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// respondError maps the error's code to an HTTP status and writes the error
// envelope. Unknown error types surface as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	resp := common.NewErrorResponse(string(code), message)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// bindJSON decodes the request body, writing a 400 envelope on failure.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed request body"))
		return false
	}
	return true
}
