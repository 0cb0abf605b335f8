package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/pkg/response"
)

// msgBadCredentials is shared by unknown emails and wrong passwords.
const msgBadCredentials = "invalid email or password"

// writeError maps a service error onto the response envelope.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"
	var details any

	var inErr *application.InputError
	switch {
	case errors.As(err, &inErr):
		status, msg, details = http.StatusBadRequest, "invalid payload", inErr.Fields
	case errors.Is(err, application.ErrInvalidInput):
		status, msg = http.StatusBadRequest, "invalid payload"
	case errors.Is(err, application.ErrEmailAlreadyExists):
		status, msg = http.StatusConflict, "email already registered"
	case errors.Is(err, application.ErrUserNotFound), errors.Is(err, application.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, application.ErrAccountInactive):
		status, msg = http.StatusForbidden, "account is inactive"
	case errors.Is(err, application.ErrStorageUnavailable):
		status, msg = http.StatusServiceUnavailable, "service unavailable, try again later"
	case errors.Is(err, application.ErrAvatarUnavailable):
		status, msg = http.StatusServiceUnavailable, "avatar uploads are not available"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusRequestTimeout, "request cancelled"
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("request failed")
	}
	response.JSON(c, response.Error[any](c, status, msg, details))
}
