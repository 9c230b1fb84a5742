package controller

import (
	"errors"
	"net/http"
	"time"

	httpdto "github.com/vibast-solutions/ms-go-identity/app/dto/http"
	"github.com/vibast-solutions/ms-go-identity/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "internal server error"

// respondError maps a service error onto the HTTP error envelope.
func respondError(ctx echo.Context, err error) error {
	status := statusFor(err)

	message := err.Error()
	switch {
	case status == http.StatusInternalServerError && errors.Is(err, service.ErrDeliveryFailed):
		logrus.WithError(err).WithField("path", ctx.Path()).Error("Email delivery failed")
		message = service.ErrDeliveryFailed.Error()
	case status == http.StatusInternalServerError:
		logrus.WithError(err).WithFields(logrus.Fields{
			"path": ctx.Path(),
			"kind": service.KindOf(err).String(),
		}).Error("Request failed")
		message = internalErrorMessage
	default:
		logrus.WithError(err).WithField("path", ctx.Path()).Debug("Request rejected")
	}

	return ctx.JSON(status, httpdto.NewErrorResponse(message))
}

func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindInvalidCredential:
		// a wrong old password is a bad request from an already authenticated user
		if errors.Is(err, service.ErrPasswordMismatch) {
			return http.StatusBadRequest
		}
		return http.StatusUnauthorized
	case service.KindUnauthorized, service.KindExpired:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message))
}

func sessionCookie(name, value string, ttl time.Duration, secure bool, domain string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
	if value == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}
