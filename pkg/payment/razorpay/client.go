// Package razorpay is a small client for the Razorpay orders and payments API.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hire-api/pkg/circuitbreaker"
)

const DefaultBaseURL = "https://api.razorpay.com"

// Payment statuses that mean the money has been collected.
const (
	PaymentCaptured = "captured"
	PaymentSettled  = "settled"
)

var ErrGateway = errors.New("payment gateway error")

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type Client struct {
	http      *resty.Client
	keyID     string
	keySecret string
	breaker   *circuitbreaker.CircuitBreaker
}

// OrderRequest describes a new order. Amount is in major units.
type OrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Captured bool   `json:"captured"`
}

// IsCaptured reports whether the payment collected money for orderID.
func (p *Payment) IsCaptured(orderID string) bool {
	if p.OrderID != orderID {
		return false
	}
	return p.Status == PaymentCaptured || p.Status == PaymentSettled
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewClient(cfg Config, breaker *circuitbreaker.CircuitBreaker) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "razorpay"})
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetError(&apiError{})

	return &Client{
		http:      http,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		breaker:   breaker,
	}
}

// KeyID is the public key the checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// ToMinorUnits converts a major unit amount to paise/cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := map[string]interface{}{
		"amount":   ToMinorUnits(req.Amount),
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}

	var order Order
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&order).
			Post("/v1/orders")
		return check(resp, err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("id", paymentID).
			SetResult(&payment).
			Get("/v1/payments/{id}")
		return check(resp, err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &payment, nil
}

// VerifySignature checks the checkout callback signature, an HMAC-SHA256 of
// "order_id|payment_id" keyed with the API secret.
func (c *Client) VerifySignature(orderID, paymentID, sig string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, sig)
}

func signature(secret, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

// Sign returns the hex signature the gateway sends for a payment.
func Sign(secret, orderID, paymentID string) string {
	return hex.EncodeToString(signature(secret, orderID, paymentID))
}

func VerifySignature(secret, orderID, paymentID, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(signature(secret, orderID, paymentID), got)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Error.Description != "" {
			return fmt.Errorf("%w: %s (%s)", ErrGateway, apiErr.Error.Description, apiErr.Error.Code)
		}
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode())
	}
	return nil
}
