// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Client-facing messages shared by several handlers.
const (
	msgUnsupportedMediaType = "Content-Type must be application/json"
	msgInvalidJSON          = "Invalid JSON payload"
)

var errEmptyBody = errors.New("request body is empty")

// isJSON reports whether the request declares a JSON body.
func isJSON(c echo.Context) bool {
	mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	return err == nil && mediaType == echo.MIMEApplicationJSON
}

// bindJSON decodes the request body into v. Only the body is bound; path
// and query parameters are ignored.
func bindJSON(c echo.Context, v any) error {
	req := c.Request()
	if req.Body == nil || req.ContentLength == 0 {
		return errEmptyBody
	}
	binder := &echo.DefaultBinder{}
	return binder.BindBody(c, v)
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isAbsoluteHTTPURL accepts http and https URLs with a host.
func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
