// Package gateway implementa ports.OrderPlacer contra un servicio HTTP de
// órdenes que firma y envía al CLOB.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const ordersPath = "/orders"

// ErrRejected se devuelve cuando el gateway responde 4xx.
var ErrRejected = errors.New("order rejected")

// Client coloca órdenes vía HTTP. Cada petición lleva el ID de la señal como
// Idempotency-Key, así un reintento nunca duplica la orden.
type Client struct {
	http *resty.Client
}

// Option configura el Client.
type Option func(*resty.Client)

// WithAPIKey añade la cabecera X-API-Key.
func WithAPIKey(key string) Option {
	return func(c *resty.Client) {
		if key != "" {
			c.SetHeader("X-API-Key", key)
		}
	}
}

// WithTimeout cambia el timeout por petición.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries configura reintentos en errores de red y 5xx.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(n).SetRetryWaitTime(wait).SetRetryMaxWaitTime(wait * 4)
	}
}

// New crea un cliente contra baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(4*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

type orderRequest struct {
	SignalID string `json:"signal_id"`
	MarketID string `json:"market_id"`
	Outcome  string `json:"outcome,omitempty"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	Notional string `json:"notional"`
}

type orderResponse struct {
	OrderID      string          `json:"order_id"`
	Status       string          `json:"status"`
	FilledPrice  decimal.Decimal `json:"filled_price"`
	FilledShares decimal.Decimal `json:"filled_shares"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PlaceOrder implementa ports.OrderPlacer.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderAck, error) {
	body := orderRequest{
		SignalID: intent.SignalID,
		MarketID: intent.MarketID,
		Outcome:  intent.Outcome,
		Side:     string(intent.Side),
		Price:    decimal.NewFromFloat(intent.Price).StringFixed(4),
		Size:     decimal.NewFromFloat(intent.Shares).StringFixed(2),
		Notional: decimal.NewFromFloat(intent.Capital).StringFixed(2),
	}

	var out orderResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", intent.SignalID).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(ordersPath)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("gateway.PlaceOrder: %s: %w", intent.SignalID, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		if resp.StatusCode() < 500 {
			return domain.OrderAck{}, fmt.Errorf("gateway.PlaceOrder: %w: status %d: %s", ErrRejected, resp.StatusCode(), msg)
		}
		return domain.OrderAck{}, fmt.Errorf("gateway.PlaceOrder: status %d: %s", resp.StatusCode(), msg)
	}

	price, _ := out.FilledPrice.Float64()
	shares, _ := out.FilledShares.Float64()
	return domain.OrderAck{
		OrderID:      out.OrderID,
		Status:       out.Status,
		FilledPrice:  price,
		FilledShares: shares,
	}, nil
}
