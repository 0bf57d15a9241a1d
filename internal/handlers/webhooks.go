// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/hookpanel/internal/models"
	"codeberg.org/oliverandrich/hookpanel/internal/services/bigcommerce"
	"github.com/labstack/echo/v4"
)

// Credential headers sent by the dashboard.
const (
	HeaderStoreHash   = "X-Store-Hash"
	HeaderAccessToken = "X-Access-Token"
)

const msgMissingCredentials = "Store credentials are required"

// WebhookAPI is the upstream hook store. *bigcommerce.Client satisfies it.
type WebhookAPI interface {
	List(ctx context.Context, creds bigcommerce.Credentials) (json.RawMessage, error)
	Create(ctx context.Context, creds bigcommerce.Credentials, in models.WebhookInput) (json.RawMessage, error)
	Update(ctx context.Context, creds bigcommerce.Credentials, id int64, patch map[string]any) (json.RawMessage, error)
	Delete(ctx context.Context, creds bigcommerce.Credentials, id int64) error
}

// WebhookHandlers relay webhook CRUD to the store API. Successful payloads
// are written back byte for byte.
type WebhookHandlers struct {
	api WebhookAPI
}

// NewWebhooks creates a new WebhookHandlers instance.
func NewWebhooks(api WebhookAPI) *WebhookHandlers {
	return &WebhookHandlers{api: api}
}

// upstreamMessages holds the error text per operation for upstream
// failures and for everything else.
var upstreamMessages = map[string][2]string{
	"list":   {"Failed to fetch webhooks from BigCommerce", "Failed to fetch webhooks"},
	"create": {"Failed to create webhook in BigCommerce", "Failed to create webhook"},
	"update": {"Failed to update webhook in BigCommerce", "Failed to update webhook"},
	"delete": {"Failed to delete webhook from BigCommerce", "Failed to delete webhook"},
}

func headerCredentials(c echo.Context) bigcommerce.Credentials {
	return bigcommerce.Credentials{
		StoreHash:   c.Request().Header.Get(HeaderStoreHash),
		AccessToken: c.Request().Header.Get(HeaderAccessToken),
	}
}

// upstreamFailure maps a forwarder error onto the response envelope.
func upstreamFailure(c echo.Context, op string, err error) error {
	msgs := upstreamMessages[op]

	var upErr *bigcommerce.UpstreamError
	switch {
	case errors.Is(err, bigcommerce.ErrMissingCredentials):
		return errorJSON(c, http.StatusBadRequest, msgMissingCredentials)
	case errors.As(err, &upErr):
		return c.JSON(upErr.StatusCode, ErrorResponse{
			Error:   msgs[0],
			Details: upErr.Details(),
		})
	default:
		return internalError(c, msgs[1], err)
	}
}

// List handles GET /webhooks.
func (h *WebhookHandlers) List(c echo.Context) error {
	creds := headerCredentials(c)
	if !creds.Valid() {
		return errorJSON(c, http.StatusBadRequest, msgMissingCredentials)
	}

	hooks, err := h.api.List(c.Request().Context(), creds)
	if err != nil {
		return upstreamFailure(c, "list", err)
	}
	return c.JSONBlob(http.StatusOK, hooks)
}

// CreateWebhookRequest is the body of POST /webhooks.
type CreateWebhookRequest struct {
	StoreHash   string `json:"storeHash"`
	AccessToken string `json:"accessToken"`
	Scope       string `json:"scope"`
	Destination string `json:"destination"`
	IsActive    bool   `json:"is_active"`
}

// Create handles POST /webhooks. Credentials come from the body and fall
// back to the credential headers.
func (h *WebhookHandlers) Create(c echo.Context) error {
	if !isJSON(c) {
		return errorJSON(c, http.StatusUnsupportedMediaType, msgUnsupportedMediaType)
	}

	var req CreateWebhookRequest
	if err := bindJSON(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgInvalidJSON)
	}

	creds := bigcommerce.Credentials{StoreHash: req.StoreHash, AccessToken: req.AccessToken}
	if !creds.Valid() {
		creds = headerCredentials(c)
	}
	if !creds.Valid() {
		return errorJSON(c, http.StatusBadRequest, msgMissingCredentials)
	}

	in := models.WebhookInput{
		Scope:       strings.TrimSpace(req.Scope),
		Destination: strings.TrimSpace(req.Destination),
		IsActive:    req.IsActive,
	}
	if msg := validateScope(in.Scope); msg != "" {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	if msg := validateDestination(in.Destination); msg != "" {
		return errorJSON(c, http.StatusBadRequest, msg)
	}

	hook, err := h.api.Create(c.Request().Context(), creds, in)
	if err != nil {
		return upstreamFailure(c, "create", err)
	}
	return c.JSONBlob(http.StatusCreated, hook)
}

// Update handles PUT /webhooks/:id. The body is forwarded as given after
// the known fields are checked.
func (h *WebhookHandlers) Update(c echo.Context) error {
	if !isJSON(c) {
		return errorJSON(c, http.StatusUnsupportedMediaType, msgUnsupportedMediaType)
	}

	creds := headerCredentials(c)
	if !creds.Valid() {
		return errorJSON(c, http.StatusBadRequest, msgMissingCredentials)
	}

	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "Invalid webhook ID")
	}

	var patch map[string]any
	if err := bindJSON(c, &patch); err != nil || patch == nil {
		return errorJSON(c, http.StatusBadRequest, msgInvalidJSON)
	}
	if msg := validatePatch(patch); msg != "" {
		return errorJSON(c, http.StatusBadRequest, msg)
	}

	hook, err := h.api.Update(c.Request().Context(), creds, id, patch)
	if err != nil {
		return upstreamFailure(c, "update", err)
	}
	return c.JSONBlob(http.StatusOK, hook)
}

// Delete handles DELETE /webhooks/:id.
func (h *WebhookHandlers) Delete(c echo.Context) error {
	creds := headerCredentials(c)
	if !creds.Valid() {
		return errorJSON(c, http.StatusBadRequest, msgMissingCredentials)
	}

	id, ok := parseID(c, "id")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "Invalid webhook ID")
	}

	if err := h.api.Delete(c.Request().Context(), creds, id); err != nil {
		return upstreamFailure(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Scopes handles GET /webhooks/scopes and lists subscribable scopes by resource.
func (h *WebhookHandlers) Scopes(c echo.Context) error {
	out := make(map[string][]string)
	for _, resource := range models.WebhookResources() {
		out[resource] = models.WebhookScopes(resource)
	}
	return c.JSON(http.StatusOK, out)
}

func validateScope(scope string) string {
	if scope == "" {
		return "Scope is required"
	}
	if !models.IsValidWebhookScope(scope) {
		return "Unknown webhook scope"
	}
	return ""
}

func validateDestination(dest string) string {
	if dest == "" {
		return "Destination is required"
	}
	if !isAbsoluteHTTPURL(dest) {
		return "Destination must be an absolute http(s) URL"
	}
	return ""
}

// validatePatch checks the fields the dashboard edits; unknown fields pass through.
func validatePatch(patch map[string]any) string {
	if v, ok := patch["scope"]; ok {
		s, isString := v.(string)
		if !isString {
			return "Scope must be a string"
		}
		if msg := validateScope(s); msg != "" {
			return msg
		}
	}
	if v, ok := patch["destination"]; ok {
		s, isString := v.(string)
		if !isString {
			return "Destination must be a string"
		}
		if msg := validateDestination(s); msg != "" {
			return msg
		}
	}
	if v, ok := patch["is_active"]; ok {
		if _, isBool := v.(bool); !isBool {
			return "is_active must be a boolean"
		}
	}
	if v, ok := patch["headers"]; ok && v != nil {
		headers, isMap := v.(map[string]any)
		if !isMap {
			return "Headers must be an object of strings"
		}
		for _, hv := range headers {
			if _, isString := hv.(string); !isString {
				return "Headers must be an object of strings"
			}
		}
	}
	return ""
}
