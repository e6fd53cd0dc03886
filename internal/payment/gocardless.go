package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/rohitwebstep/synco-sub000/internal/logger"
)

// RRNClient talks to the GoCardless-style billing request API used for
// direct-debit memberships.
type RRNClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewRRNClient(baseURL, accessToken string) *RRNClient {
	return &RRNClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{},
	}
}

func (c *RRNClient) Method() Method {
	return MethodRRN
}

type billingRequestBody struct {
	BillingRequests struct {
		PaymentRequest struct {
			AmountMinor int64             `json:"amount_minor"`
			Currency    string            `json:"currency"`
			Description string            `json:"description"`
			Metadata    map[string]string `json:"metadata"`
		} `json:"payment_request"`
		MandateRequest struct {
			Currency string            `json:"currency"`
			Scheme   string            `json:"scheme"`
			Metadata map[string]string `json:"metadata"`
		} `json:"mandate_request"`
	} `json:"billing_requests"`
}

type billingRequestResponse struct {
	BillingRequests struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"billing_requests"`
}

func (c *RRNClient) Charge(ctx context.Context, req ChargeRequest) Result {
	var body billingRequestBody
	body.BillingRequests.PaymentRequest.AmountMinor = req.AmountCents
	body.BillingRequests.PaymentRequest.Currency = req.Currency
	body.BillingRequests.PaymentRequest.Description = req.Description
	body.BillingRequests.PaymentRequest.Metadata = map[string]string{"merchant_ref": req.MerchantRef}
	body.BillingRequests.MandateRequest.Currency = req.Currency
	body.BillingRequests.MandateRequest.Scheme = "bacs"
	body.BillingRequests.MandateRequest.Metadata = map[string]string{"merchant_ref": req.MerchantRef}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Status: StatusFailed, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/billing_requests", bytes.NewReader(payload))
	if err != nil {
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("GoCardless-Version", "2015-07-06")
	httpReq.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Errorf("RRN gateway request failed: %v", err)
		return Result{Status: StatusFailed, Message: failureMessage(nil, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: StatusFailed, Message: failureMessage(nil, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Errorf("RRN gateway returned %d: %s", resp.StatusCode, string(raw))
		return Result{Status: StatusFailed, Message: failureMessage(raw, nil), Raw: raw}
	}

	var parsed billingRequestResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{Status: StatusFailed, Message: failureMessage(raw, err), Raw: raw}
	}

	status := normalizeRRNStatus(parsed.BillingRequests.Status)
	result := Result{
		Status:        status,
		Raw:           raw,
		GatewayStatus: parsed.BillingRequests.Status,
	}
	if status == StatusFailed {
		result.Message = failureMessage(raw, nil)
	}
	return result
}
