package api

import (
	"errors"
	"net/http"

	"appdeck/internal/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func statusFor(err error) int {
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyInProgress),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrNotInstalled):
		return http.StatusConflict
	case errors.Is(err, model.ErrDescriptorParse),
		errors.Is(err, model.ErrReconciliationParse):
		return http.StatusBadRequest
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	body := errorResponse{Error: err.Error()}
	if stage, ok := model.StageOf(err); ok {
		body.Stage = string(stage)
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
