// Package apiclient talks to the workflow REST API on behalf of the sync layer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

// Client is a thin JSON client for /api/v1.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for baseURL authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches items of one kind.
func (c *Client) List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error) {
	var wire []dto.ItemResponse
	path := "/api/v1/items/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodGet, path, encodeFilter(filter), nil, &wire); err != nil {
		return nil, err
	}
	items := make([]*domain.WorkflowItem, 0, len(wire))
	for _, w := range wire {
		item, err := w.ToDomain()
		if err != nil {
			return nil, apperrors.NewNetworkFailure(fmt.Errorf("decode item: %w", err))
		}
		items = append(items, item)
	}
	return items, nil
}

// Get fetches one item.
func (c *Client) Get(ctx context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error) {
	var wire dto.ItemResponse
	if err := c.do(ctx, http.MethodGet, itemPath(kind, id), nil, nil, &wire); err != nil {
		return nil, err
	}
	return decodeItem(wire)
}

// Create submits a new item.
func (c *Client) Create(ctx context.Context, kind domain.Kind, req dto.CreateItemRequest) (*domain.WorkflowItem, error) {
	var wire dto.ItemResponse
	path := "/api/v1/items/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &wire); err != nil {
		return nil, err
	}
	return decodeItem(wire)
}

// Transition fires an action on the server and returns the authoritative item.
func (c *Client) Transition(ctx context.Context, kind domain.Kind, id string, req dto.TransitionRequest) (*domain.WorkflowItem, error) {
	var wire dto.ItemResponse
	if err := c.do(ctx, http.MethodPost, itemPath(kind, id)+"/transitions", nil, req, &wire); err != nil {
		return nil, err
	}
	return decodeItem(wire)
}

// History fetches the log of one item.
func (c *Client) History(ctx context.Context, kind domain.Kind, id string) ([]history.Entry, error) {
	var wire []dto.HistoryEntryResponse
	if err := c.do(ctx, http.MethodGet, itemPath(kind, id)+"/history", nil, nil, &wire); err != nil {
		return nil, err
	}
	return dto.HistoryToDomain(wire), nil
}

// Summary fetches counts per kind and status.
func (c *Client) Summary(ctx context.Context) (domain.Summary, error) {
	var wire dto.SummaryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/summary", nil, nil, &wire); err != nil {
		return domain.Summary{}, err
	}
	return wire.ToDomain(), nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewValidationError("encode request", map[string]any{"error": err.Error()})
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.NewNetworkFailure(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.NewNetworkFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewNetworkFailure(err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp.StatusCode, env, decodeErr)
	}
	if decodeErr != nil {
		return apperrors.NewNetworkFailure(fmt.Errorf("decode response: %w", decodeErr))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.NewNetworkFailure(fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func responseError(status int, env envelope, decodeErr error) error {
	if decodeErr == nil && env.Error != nil {
		return apperrors.FromResponse(status, env.Error.Code, env.Error.Message, env.Error.Details)
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperrors.FromResponse(status, apperrors.CodeNetworkFailure, "", nil)
	}
	return apperrors.FromResponse(status, "", "", nil)
}

func decodeItem(wire dto.ItemResponse) (*domain.WorkflowItem, error) {
	item, err := wire.ToDomain()
	if err != nil {
		return nil, apperrors.NewNetworkFailure(fmt.Errorf("decode item: %w", err))
	}
	return item, nil
}

func itemPath(kind domain.Kind, id string) string {
	return "/api/v1/items/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
}

func encodeFilter(f domain.ItemFilter) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if f.Priority != nil {
		q.Set("priority", string(*f.Priority))
	}
	if f.Difficulty != nil {
		q.Set("difficulty", string(*f.Difficulty))
	}
	if f.Escalated != nil {
		q.Set("escalated", strconv.FormatBool(*f.Escalated))
	}
	if f.Direction != "" {
		q.Set("direction", f.Direction)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}
