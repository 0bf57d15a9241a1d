// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package bigcommerce forwards webhook operations to the store API using
// credentials supplied with each request.
package bigcommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"codeberg.org/oliverandrich/hookpanel/internal/config"
	"codeberg.org/oliverandrich/hookpanel/internal/metrics"
	"codeberg.org/oliverandrich/hookpanel/internal/models"
)

// DefaultBaseURL is the production store API root.
const DefaultBaseURL = "https://api.bigcommerce.com/stores"

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// ErrMissingCredentials is returned before any network call when the store
// hash or access token is empty.
var ErrMissingCredentials = errors.New("store credentials are required")

// Credentials identify a store. They are never persisted.
type Credentials struct {
	StoreHash   string
	AccessToken string
}

// Valid reports whether both parts are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.StoreHash) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// UpstreamError carries a non-2xx response so callers can relay it as-is.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Details returns the upstream body as text for relaying to the caller.
func (e *UpstreamError) Details() string {
	return string(e.Body)
}

// Client talks to the v3 hooks endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	metrics *metrics.Metrics
}

// NewClient builds a Client. A nil httpClient gets a fresh one using cfg.Timeout;
// a zero timeout leaves the client default in place.
func NewClient(cfg config.UpstreamConfig, httpClient *http.Client, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: base, metrics: m}
}

// List returns the store's hooks as the platform sent them. An absent or
// null list comes back as an empty JSON array.
func (c *Client) List(ctx context.Context, creds Credentials) (json.RawMessage, error) {
	data, err := c.do(ctx, "list", creds, http.MethodGet, "", nil, true)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return json.RawMessage("[]"), nil
	}
	return data, nil
}

// createRequest is the exact body the platform expects on create; events
// always mirrors the scope.
type createRequest struct {
	Scope       string   `json:"scope"`
	Destination string   `json:"destination"`
	IsActive    bool     `json:"is_active"`
	Events      []string `json:"events"`
}

// Create registers a hook and returns the platform's representation of it.
func (c *Client) Create(ctx context.Context, creds Credentials, in models.WebhookInput) (json.RawMessage, error) {
	body := createRequest{
		Scope:       in.Scope,
		Destination: in.Destination,
		IsActive:    in.IsActive,
		Events:      []string{in.Scope},
	}
	return c.object(ctx, "create", creds, http.MethodPost, "", body)
}

// Update sends patch unchanged as a partial update of hook id.
func (c *Client) Update(ctx context.Context, creds Credentials, id int64, patch map[string]any) (json.RawMessage, error) {
	return c.object(ctx, "update", creds, http.MethodPut, strconv.FormatInt(id, 10), patch)
}

// Delete removes hook id.
func (c *Client) Delete(ctx context.Context, creds Credentials, id int64) error {
	_, err := c.do(ctx, "delete", creds, http.MethodDelete, strconv.FormatInt(id, 10), nil, false)
	return err
}

// envelope is the platform's success wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

// object is do for calls that answer with a single hook.
func (c *Client) object(ctx context.Context, op string, creds Credentials, method, id string, in any) (json.RawMessage, error) {
	data, err := c.do(ctx, op, creds, method, id, in, true)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, fmt.Errorf("decode %s response: missing data", op)
	}
	return data, nil
}

// do performs one call. With unwrap set, the success body must be a {data}
// envelope and data is returned without being decoded further.
func (c *Client) do(ctx context.Context, op string, creds Credentials, method, id string, in any, unwrap bool) (json.RawMessage, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}

	endpoint := c.baseURL + "/" + url.PathEscape(creds.StoreHash) + "/v3/hooks"
	if id != "" {
		endpoint += "/" + id
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("X-Auth-Token", creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	status := 0
	defer func() { c.metrics.ObserveUpstream(op, status, time.Since(start)) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}
	if !unwrap {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	return env.Data, nil
}
