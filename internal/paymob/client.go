// Package paymob creates Paymob unified-checkout sessions for wallet top-ups.
package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://accept.paymob.com"

type Client struct {
	secretKey     string
	publicKey     string
	integrationID string

	// BaseURL can be overridden in tests. Defaults to the Paymob accept host.
	BaseURL    string
	httpClient *http.Client
}

func NewClient(secretKey, publicKey, integrationID string) *Client {
	return &Client{
		secretKey:     secretKey,
		publicKey:     publicKey,
		integrationID: integrationID,
		BaseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

type item struct {
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type intentionRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	PaymentMethods []string          `json:"payment_methods"`
	Items          []item            `json:"items"`
	BillingData    map[string]string `json:"billing_data"`
	Customer       map[string]any    `json:"customer"`
}

type intentionResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreateSession creates a payment intention for amountCents and returns the
// unified-checkout URL the customer completes payment at. The wallet credit
// has already committed by the time this is called; a failure here leaves
// the credit in place.
func (c *Client) CreateSession(ctx context.Context, amountCents int64) (string, error) {
	payload := intentionRequest{
		Amount:         amountCents,
		Currency:       "EGP",
		PaymentMethods: []string{c.integrationID},
		Items: []item{{
			Name:        "Wallet Charge",
			Amount:      amountCents,
			Description: "Charge your wallet",
			Quantity:    1,
		}},
		BillingData: map[string]string{
			"first_name":   "NA",
			"last_name":    "NA",
			"email":        "NA",
			"phone_number": "NA",
			"street":       "NA",
			"building":     "NA",
			"apartment":    "NA",
			"floor":        "NA",
			"city":         "NA",
			"state":        "NA",
			"country":      "NA",
		},
		Customer: map[string]any{
			"first_name": "NA",
			"last_name":  "NA",
			"email":      "NA",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/intention/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paymob request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("paymob intention failed: status %d: %s", resp.StatusCode, detail)
	}

	var out intentionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode paymob response: %w", err)
	}
	if out.ClientSecret == "" {
		return "", fmt.Errorf("paymob intention missing client_secret")
	}

	return fmt.Sprintf("%s/unifiedcheckout/?publicKey=%s&clientSecret=%s",
		c.BaseURL, c.publicKey, out.ClientSecret), nil
}
