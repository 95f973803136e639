// Package remote is the HTTP client for the waterflow store. Every call
// carries the caller's bearer token, is bounded by a timeout and reports
// failures with the domain error taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each call, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

func (c *Client) ListProducts(ctx context.Context, sess session.Session) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, sess, http.MethodGet, "/products", nil, http.StatusOK, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetCart(ctx context.Context, sess session.Session) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := c.do(ctx, sess, http.MethodGet, "/cart", nil, http.StatusOK, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *Client) AddToCart(ctx context.Context, sess session.Session, productID string, quantity int) ([]domain.CartLine, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	var lines []domain.CartLine
	if err := c.do(ctx, sess, http.MethodPost, "/cart/items", body, http.StatusOK, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, sess session.Session, productID string) error {
	return c.do(ctx, sess, http.MethodDelete, "/cart/items/"+url.PathEscape(productID), nil, http.StatusNoContent, nil)
}

func (c *Client) ClearCart(ctx context.Context, sess session.Session) error {
	return c.do(ctx, sess, http.MethodDelete, "/cart", nil, http.StatusNoContent, nil)
}

func (c *Client) CreateDeliveryRequest(ctx context.Context, sess session.Session, productID string, quantity int, address string) (*domain.DeliveryRequest, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity, "address": address}
	var req domain.DeliveryRequest
	if err := c.do(ctx, sess, http.MethodPost, "/deliveries", body, http.StatusCreated, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) ListDeliveryRequests(ctx context.Context, sess session.Session, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error) {
	q := url.Values{}
	if filter.CustomerID != "" {
		q.Set("customer_id", filter.CustomerID)
	}
	for _, status := range filter.Statuses {
		q.Add("status", string(status))
	}
	path := "/deliveries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var requests []domain.DeliveryRequest
	if err := c.do(ctx, sess, http.MethodGet, path, nil, http.StatusOK, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *Client) GetDeliveryRequest(ctx context.Context, sess session.Session, id string) (*domain.DeliveryRequest, error) {
	var req domain.DeliveryRequest
	if err := c.do(ctx, sess, http.MethodGet, "/deliveries/"+url.PathEscape(id), nil, http.StatusOK, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) SetDeliveryStatus(ctx context.Context, sess session.Session, id string, status domain.Status) (*domain.DeliveryRequest, error) {
	body := map[string]any{"status": status}
	var req domain.DeliveryRequest
	if err := c.do(ctx, sess, http.MethodPatch, "/deliveries/"+url.PathEscape(id)+"/status", body, http.StatusOK, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) AdvanceDeliveryStage(ctx context.Context, sess session.Session, id string) (*domain.DeliveryRequest, error) {
	var req domain.DeliveryRequest
	if err := c.do(ctx, sess, http.MethodPost, "/deliveries/"+url.PathEscape(id)+"/advance", nil, http.StatusOK, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) DeliveryHistory(ctx context.Context, sess session.Session, id string) ([]domain.DeliveryEvent, error) {
	var events []domain.DeliveryEvent
	if err := c.do(ctx, sess, http.MethodGet, "/deliveries/"+url.PathEscape(id)+"/events", nil, http.StatusOK, &events); err != nil {
		return nil, err
	}
	return events, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, sess session.Session, method, path string, body any, want int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := sess.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("store call failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("store call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode != want {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", domain.ErrRemoteUnavailable, method, path, err)
	}
	return nil
}

// decodeError maps a non-success response onto the domain taxonomy. Server
// side failures are always reported as the store being unavailable.
func decodeError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: store returned status %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}

	var e errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e); err != nil && !errors.Is(err, io.EOF) {
		e = errorResponse{}
	}
	if e.Code != "" {
		return domain.ErrorFromCode(e.Code, e.Error)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return domain.ErrorFromCode(domain.CodeValidation, e.Error)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrorFromCode(domain.CodeUnauthorized, e.Error)
	case http.StatusNotFound:
		return domain.ErrorFromCode(domain.CodeNotFound, e.Error)
	case http.StatusConflict:
		return domain.ErrorFromCode(domain.CodeInvalidTransition, e.Error)
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}
}
