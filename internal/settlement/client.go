// Package settlement is the boundary to the external settlement/ledger
// collaborator. The gateway core only tracks intent; actual value
// movement happens behind this interface.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
)

type Request struct {
	PaymentID uuid.UUID
	Sender    string
	Recipient string
	Amount    decimal.Decimal
	Currency  domain.Currency
}

type Result struct {
	Succeeded bool
	Reference string
}

type Client interface {
	Transfer(ctx context.Context, req Request) (Result, error)
}

// HTTPClient submits transfers to a settlement service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type transferPayload struct {
	PaymentID string `json:"payment_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type transferResponse struct {
	Succeeded bool   `json:"succeeded"`
	Reference string `json:"reference,omitempty"`
}

func (c *HTTPClient) Transfer(ctx context.Context, req Request) (Result, error) {
	log := logging.FromContext(ctx)

	payload := transferPayload{
		PaymentID: req.PaymentID.String(),
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount.String(),
		Currency:  string(req.Currency),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("Transfer: marshal: %w", err)
	}

	url := c.baseURL + "/transfers"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("Transfer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("Transfer: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("settlement response received",
		"payment_id", req.PaymentID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("Transfer: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Result{}, fmt.Errorf("Transfer: decode: %w", err)
	}

	return Result{Succeeded: tr.Succeeded, Reference: tr.Reference}, nil
}
