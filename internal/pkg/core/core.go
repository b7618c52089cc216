// Package core holds the shared HTTP response envelope.
package core

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mellis-dev/conclave/pkg/errorx"
	"github.com/mellis-dev/conclave/pkg/logger"
)

// ErrResponse is the envelope returned for failed requests.
type ErrResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteResponse writes either the error envelope or the payload.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		coder := errorx.ParseCoder(err)
		logger.Warn("[http] %s %s -> %d: %v", c.Request.Method, c.Request.URL.Path, coder.Code, err)
		c.JSON(coder.HTTPStatus, ErrResponse{
			Code:    coder.Code,
			Message: coder.Message,
		})
		return
	}
	c.JSON(http.StatusOK, data)
}
