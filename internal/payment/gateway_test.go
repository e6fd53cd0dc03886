package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRRNStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"submitted", StatusPending},
		{"pending_submission", StatusPending},
		{"pending", StatusPending},
		{"confirmed", StatusPaid},
		{"paid", StatusPaid},
		{"failed", StatusFailed},
		{"cancelled", StatusFailed},
		{"fulfilling", StatusFailed},
		{"", StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeRRNStatus(tt.raw))
		})
	}
}

func TestNormalizeCardStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"success", StatusPaid},
		{"already_paid", StatusPaid},
		{"pending", StatusPending},
		{"declined", StatusFailed},
		{"error", StatusFailed},
		{"", StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCardStatus(tt.raw))
		})
	}
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Insufficient funds",
		failureMessage([]byte(`{"reasonMessage":"Insufficient funds"}`), nil))

	assert.Equal(t, "Card expired",
		failureMessage([]byte(`{"error":{"message":"Card expired"}}`), nil))

	assert.Equal(t, `{"weird":true}`,
		failureMessage([]byte(`{"weird":true}`), nil))

	assert.Equal(t, "connection refused",
		failureMessage(nil, errors.New("connection refused")))
}

func TestRRNClientCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/billing_requests", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"billing_requests":{"id":"BRQ123","status":"pending_submission"}}`))
	}))
	defer srv.Close()

	client := NewRRNClient(srv.URL, "token")
	result := client.Charge(context.Background(), ChargeRequest{
		AmountCents: 4500,
		Currency:    "GBP",
		Description: "Monthly membership",
		MerchantRef: "SYN-1",
	})

	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, "pending_submission", result.GatewayStatus)
	assert.NotEmpty(t, result.Raw)
}

func TestRRNClientChargeGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"message":"mandate scheme not supported"}}`))
	}))
	defer srv.Close()

	client := NewRRNClient(srv.URL, "token")
	result := client.Charge(context.Background(), ChargeRequest{AmountCents: 4500, Currency: "GBP"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "mandate scheme not supported", result.Message)
}

func TestCardClientCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/inst42/payment", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "apiuser", user)
		require.Equal(t, "apipass", pass)
		w.Write([]byte(`{"transaction":{"transactionId":"T1","status":"success"}}`))
	}))
	defer srv.Close()

	client := NewCardClient(srv.URL, "inst42", "apiuser", "apipass")
	result := client.Charge(context.Background(), ChargeRequest{
		AmountCents: 9900,
		Currency:    "GBP",
		MerchantRef: "SYN-2",
		Card: &CardDetails{
			Pan:            "4111111111111111",
			ExpiryDate:     "1227",
			CardHolderName: "A PARENT",
			CV2:            "123",
		},
	})

	assert.Equal(t, StatusPaid, result.Status)
	assert.Equal(t, "success", result.GatewayStatus)
}

func TestCardClientChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transaction":{"transactionId":"T2","status":"declined"},"reasonMessage":"Card declined"}`))
	}))
	defer srv.Close()

	client := NewCardClient(srv.URL, "inst42", "apiuser", "apipass")
	result := client.Charge(context.Background(), ChargeRequest{
		AmountCents: 9900,
		Currency:    "GBP",
		Card:        &CardDetails{Pan: "4111111111111111", ExpiryDate: "1227", CardHolderName: "A PARENT", CV2: "123"},
	})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "Card declined", result.Message)
}

func TestCardClientChargeMissingCard(t *testing.T) {
	client := NewCardClient("http://localhost", "inst42", "u", "p")
	result := client.Charge(context.Background(), ChargeRequest{AmountCents: 100, Currency: "GBP"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "card details required", result.Message)
}
