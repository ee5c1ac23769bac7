package firs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"einvoice-bridge/internal/logger"
)

// Client talks to the Nigeria e-invoicing portal. All calls carry the
// participant credentials as headers and time out after 30 seconds.
type Client struct {
	baseURL       string
	participantID string
	apiKey        string
	httpClient    *http.Client
}

func NewClient(baseURL, participantID, apiKey string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		participantID: participantID,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Sage50-EInvoicing-Integration/1.0")
	req.Header.Set("participant-id", c.participantID)
	req.Header.Set("x-api-key", c.apiKey)

	log := logger.WithComponent("firs")
	log.Debug().Str("method", method).Str("url", url).Msg("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	log.Debug().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("api response")
	return resp.StatusCode, respBody, nil
}

// GenerateInvoice submits a document to POST /invoice/generate and classifies
// the response. An error is returned only when the endpoint could not be
// reached or the response could not be read.
func (c *Client) GenerateInvoice(ctx context.Context, payload *InvoicePayload) (*GenerateResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/invoice/generate", payload)
	if err != nil {
		return nil, err
	}
	return classify(status, body), nil
}

// SearchInvoices lists invoices known to the portal.
func (c *Client) SearchInvoices(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/invoice/search")
}

// DownloadInvoice fetches the portal's rendition of a posted invoice.
func (c *Client) DownloadInvoice(ctx context.Context, irn string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/invoice/download/"+irn)
}

// InvoiceDetails fetches the portal record for an IRN, including its QR code.
func (c *Client) InvoiceDetails(ctx context.Context, irn string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/invoice/details/"+irn)
}

// UpdatePaymentStatus patches the payment state of a posted invoice.
func (c *Client) UpdatePaymentStatus(ctx context.Context, irn, paymentStatus, reference string) (json.RawMessage, error) {
	payload := map[string]string{
		"payment_status": paymentStatus,
		"reference":      reference,
	}
	status, body, err := c.do(ctx, http.MethodPatch, "/invoice/"+irn, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("payment status update for %s returned %d: %s", irn, status, truncate(string(body), 300))
	}
	return json.RawMessage(body), nil
}

// ResourceKind names a reference-data collection served by the portal.
type ResourceKind string

const (
	ResourceAll          ResourceKind = "all"
	ResourceHSCodes      ResourceKind = "hs-codes"
	ResourceServiceCodes ResourceKind = "services-codes"
	ResourceCurrencies   ResourceKind = "currencies"
	ResourceCountries    ResourceKind = "countries"
)

// Resources fetches one of the portal's reference-data collections.
func (c *Client) Resources(ctx context.Context, kind ResourceKind) (json.RawMessage, error) {
	return c.getJSON(ctx, "/resources/"+string(kind))
}

func (c *Client) getJSON(ctx context.Context, endpoint string) (json.RawMessage, error) {
	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("GET %s returned %d: %s", endpoint, status, truncate(string(body), 300))
	}
	return json.RawMessage(body), nil
}
