// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// MessageResponse is the body of requests that succeed without a resource.
type MessageResponse struct {
	Message string `json:"message"`
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message})
}

// internalError logs err and answers 500 with its text in details.
func internalError(c echo.Context, message string, err error) error {
	slog.ErrorContext(c.Request().Context(), message,
		"error", err,
		"method", c.Request().Method,
		"path", c.Path(),
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   message,
		Details: err.Error(),
	})
}

// ErrorHandler renders errors that escape a handler, such as router 404s,
// body limit violations and recovered panics, in the ErrorResponse shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(status)
	var details any

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case string:
			message = m
		case error:
			message = m.Error()
		default:
			message = http.StatusText(status)
		}
	} else {
		details = err.Error()
		slog.ErrorContext(c.Request().Context(), "unhandled error",
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, ErrorResponse{Error: message, Details: details})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
