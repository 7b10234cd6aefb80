// Package payment is the thin client for the external payment provider. The
// provider owns the actual charge; this service only creates checkout
// sessions and consumes the status callback.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession registers a pending payment with the provider and returns
// the redirect URL the customer completes the payment on.
func (c *Client) CreateSession(ctx context.Context, orderID uuid.UUID, amount int64, email string) (*Session, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"order_ref":      orderID.String(),
		"amount":         amount,
		"currency":       "jpy",
		"customer_email": email,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout_sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}
