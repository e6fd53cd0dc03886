package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rohitwebstep/synco-sub000/internal/logger"
)

// CardClient talks to the Pay360-style hosted card API.
type CardClient struct {
	baseURL    string
	instID     string
	apiUser    string
	apiPass    string
	httpClient *http.Client
}

func NewCardClient(baseURL, instID, apiUser, apiPass string) *CardClient {
	return &CardClient{
		baseURL:    baseURL,
		instID:     instID,
		apiUser:    apiUser,
		apiPass:    apiPass,
		httpClient: &http.Client{},
	}
}

func (c *CardClient) Method() Method {
	return MethodCard
}

type cardPaymentBody struct {
	Transaction struct {
		Currency     string `json:"currency"`
		Amount       string `json:"amount"`
		MerchantRef  string `json:"merchantRef"`
		Description  string `json:"description"`
		CommerceType string `json:"commerceType"`
	} `json:"transaction"`
	PaymentMethod struct {
		Card struct {
			Pan            string `json:"pan"`
			ExpiryDate     string `json:"expiryDate"`
			CardHolderName string `json:"cardHolderName"`
			CV2            string `json:"cv2"`
		} `json:"card"`
	} `json:"paymentMethod"`
}

type cardPaymentResponse struct {
	Transaction struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	} `json:"transaction"`
}

func (c *CardClient) Charge(ctx context.Context, req ChargeRequest) Result {
	if req.Card == nil {
		return Result{Status: StatusFailed, Message: "card details required"}
	}

	var body cardPaymentBody
	body.Transaction.Currency = req.Currency
	body.Transaction.Amount = fmt.Sprintf("%.2f", float64(req.AmountCents)/100)
	body.Transaction.MerchantRef = req.MerchantRef
	body.Transaction.Description = req.Description
	body.Transaction.CommerceType = "ECOM"
	body.PaymentMethod.Card.Pan = req.Card.Pan
	body.PaymentMethod.Card.ExpiryDate = req.Card.ExpiryDate
	body.PaymentMethod.Card.CardHolderName = req.Card.CardHolderName
	body.PaymentMethod.Card.CV2 = req.Card.CV2

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Status: StatusFailed, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/transactions/%s/payment", c.baseURL, c.instID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{Status: StatusFailed, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.apiUser, c.apiPass)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Errorf("Card gateway request failed: %v", err)
		return Result{Status: StatusFailed, Message: failureMessage(nil, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: StatusFailed, Message: failureMessage(nil, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Errorf("Card gateway returned %d: %s", resp.StatusCode, string(raw))
		return Result{Status: StatusFailed, Message: failureMessage(raw, nil), Raw: raw}
	}

	var parsed cardPaymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{Status: StatusFailed, Message: failureMessage(raw, err), Raw: raw}
	}

	status := normalizeCardStatus(parsed.Transaction.Status)
	result := Result{
		Status:        status,
		Raw:           raw,
		GatewayStatus: parsed.Transaction.Status,
	}
	if status == StatusFailed {
		result.Message = failureMessage(raw, nil)
	}
	return result
}
