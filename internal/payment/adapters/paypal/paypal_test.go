package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdapter(opts ...Option) *Adapter {
	return New("client-id", "client-secret", "wh-id", "sandbox", 5*time.Second, zap.NewNop(), opts...)
}

// apiServer answers the oauth handshake and delegates everything else.
func apiServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
			return
		}
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		handler(w, r)
	}))
}

func TestDecimalConversion(t *testing.T) {
	assert.Equal(t, "149.00", centsToDecimal(14900))
	assert.Equal(t, "0.05", centsToDecimal(5))
	assert.Equal(t, "0.00", centsToDecimal(0))
	assert.Equal(t, "-1.50", centsToDecimal(-150))

	assert.Equal(t, int64(14900), decimalToCents("149.00"))
	assert.Equal(t, int64(14990), decimalToCents("149.9"))
	assert.Equal(t, int64(14900), decimalToCents("149"))
	assert.Equal(t, int64(5), decimalToCents("0.05"))
}

func TestCreateCheckout(t *testing.T) {
	var gotBody map[string]interface{}
	srv := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "PP-ORDER-1",
			"links": [
				{"href": "https://api.sandbox.paypal.com/v2/checkout/orders/PP-ORDER-1", "rel": "self"},
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=PP-ORDER-1", "rel": "approve"}
			]
		}`)
	})
	defer srv.Close()

	a := newAdapter(WithBaseURL(srv.URL))
	session, err := a.CreateCheckout(context.Background(), domain.CheckoutRequest{
		OrderID:    snowflake.ParseInt64(42),
		Amount:     14900,
		Currency:   "BRL",
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "PP-ORDER-1", session.TransactionID)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=PP-ORDER-1", session.RedirectURL)

	assert.Equal(t, "CAPTURE", gotBody["intent"])
	units := gotBody["purchase_units"].([]interface{})
	unit := units[0].(map[string]interface{})
	assert.Equal(t, "42", unit["reference_id"])
	amount := unit["amount"].(map[string]interface{})
	assert.Equal(t, "149.00", amount["value"])
	assert.Equal(t, "BRL", amount["currency_code"])
}

func TestVerify(t *testing.T) {
	headers := map[string]string{
		"Paypal-Auth-Algo":         "SHA256withRSA",
		"Paypal-Cert-Url":          "https://api.paypal.com/cert",
		"Paypal-Transmission-Id":   "tid-1",
		"Paypal-Transmission-Sig":  "sig-1",
		"Paypal-Transmission-Time": "2025-06-01T12:00:00Z",
	}
	payload := []byte(`{"id":"WH-1"}`)

	t.Run("success", func(t *testing.T) {
		srv := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "wh-id", req["webhook_id"])
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"verification_status":"SUCCESS"}`)
		})
		defer srv.Close()

		a := newAdapter(WithBaseURL(srv.URL))
		assert.NoError(t, a.Verify(context.Background(), payload, headers))
	})

	t.Run("failure", func(t *testing.T) {
		srv := apiServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"verification_status":"FAILURE"}`)
		})
		defer srv.Close()

		a := newAdapter(WithBaseURL(srv.URL))
		assert.ErrorIs(t, a.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
	})

	t.Run("missing transmission headers", func(t *testing.T) {
		a := newAdapter()
		assert.ErrorIs(t, a.Verify(context.Background(), payload, map[string]string{}), domain.ErrInvalidSignature)
	})
}

func TestParse(t *testing.T) {
	a := newAdapter()

	t.Run("capture completed", func(t *testing.T) {
		payload := []byte(`{
			"id": "WH-100",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"create_time": "2025-06-01T12:00:00Z",
			"resource": {
				"id": "CAP-1",
				"custom_id": "42",
				"supplementary_data": {"related_ids": {"order_id": "PP-ORDER-1"}},
				"amount": {"currency_code": "BRL", "value": "149.00"}
			}
		}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, "paypal", event.Provider)
		assert.Equal(t, "WH-100", event.ProviderEventID)
		assert.Equal(t, "PP-ORDER-1", event.ExternalRef)
		assert.Equal(t, "42", event.OrderRef)
		assert.Equal(t, domain.OutcomeSucceeded, event.Outcome)
		assert.Equal(t, int64(14900), event.Amount)
		assert.Equal(t, "BRL", event.Currency)
	})

	t.Run("capture denied", func(t *testing.T) {
		payload := []byte(`{"id":"WH-101","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-2"}}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailed, event.Outcome)
		assert.Equal(t, "CAP-2", event.ExternalRef)
	})

	t.Run("capture refunded", func(t *testing.T) {
		payload := []byte(`{"id":"WH-102","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"CAP-3","amount":{"currency_code":"BRL","value":"149.00"}}}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeRefunded, event.Outcome)
	})

	t.Run("unhandled type", func(t *testing.T) {
		payload := []byte(`{"id":"WH-103","event_type":"CHECKOUT.ORDER.APPROVED"}`)
		_, err := a.Parse(context.Background(), payload, nil)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})
}
