package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "mp_secret"

func newAdapter(opts ...Option) *Adapter {
	return New("APP_USR-token", testSecret, 5*time.Second, zap.NewNop(), opts...)
}

func sign(dataID, requestID, ts string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	a := newAdapter()
	payload := []byte(`{"id":123,"type":"payment","data":{"id":"456"}}`)

	t.Run("valid signature", func(t *testing.T) {
		headers := map[string]string{
			"X-Signature":  "ts=1748779200,v1=" + sign("456", "req-1", "1748779200"),
			"X-Request-Id": "req-1",
		}
		assert.NoError(t, a.Verify(context.Background(), payload, headers))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := hmac.New(sha256.New, []byte("other"))
		other.Write([]byte("id:456;request-id:req-1;ts:1748779200;"))
		headers := map[string]string{
			"X-Signature":  "ts=1748779200,v1=" + hex.EncodeToString(other.Sum(nil)),
			"X-Request-Id": "req-1",
		}
		assert.ErrorIs(t, a.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, a.Verify(context.Background(), payload, map[string]string{}), domain.ErrInvalidSignature)
	})

	t.Run("request id mismatch", func(t *testing.T) {
		headers := map[string]string{
			"X-Signature":  "ts=1748779200,v1=" + sign("456", "req-1", "1748779200"),
			"X-Request-Id": "req-2",
		}
		assert.ErrorIs(t, a.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
	})
}

func paymentServer(t *testing.T, status string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/456", r.URL.Path)
		assert.Equal(t, "Bearer APP_USR-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"id": 456,
			"status": %q,
			"external_reference": "42",
			"transaction_amount": 149.00,
			"currency_id": "BRL",
			"date_created": "2025-06-01T12:00:00Z"
		}`, status)
	}))
}

func TestParse(t *testing.T) {
	payload := []byte(`{"id":123,"action":"payment.updated","type":"payment","data":{"id":"456"}}`)

	t.Run("approved", func(t *testing.T) {
		srv := paymentServer(t, "approved")
		defer srv.Close()
		a := newAdapter(WithBaseURL(srv.URL))

		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, "mercadopago", event.Provider)
		assert.Equal(t, "123", event.ProviderEventID)
		assert.Equal(t, "456", event.ExternalRef)
		assert.Equal(t, "42", event.OrderRef)
		assert.Equal(t, domain.OutcomeSucceeded, event.Outcome)
		assert.Equal(t, int64(14900), event.Amount)
		assert.Equal(t, "BRL", event.Currency)
	})

	t.Run("rejected", func(t *testing.T) {
		srv := paymentServer(t, "rejected")
		defer srv.Close()
		a := newAdapter(WithBaseURL(srv.URL))

		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailed, event.Outcome)
	})

	t.Run("refunded", func(t *testing.T) {
		srv := paymentServer(t, "refunded")
		defer srv.Close()
		a := newAdapter(WithBaseURL(srv.URL))

		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeRefunded, event.Outcome)
	})

	t.Run("pending is ignored", func(t *testing.T) {
		srv := paymentServer(t, "pending")
		defer srv.Close()
		a := newAdapter(WithBaseURL(srv.URL))

		_, err := a.Parse(context.Background(), payload, nil)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("non payment topic is ignored", func(t *testing.T) {
		a := newAdapter()
		_, err := a.Parse(context.Background(), []byte(`{"type":"merchant_order","data":{"id":"9"}}`), nil)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("payment fetch failure bubbles up", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		a := newAdapter(WithBaseURL(srv.URL))

		_, err := a.Parse(context.Background(), payload, nil)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})
}

func TestAmountToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"149", 14900},
		{"149.0", 14900},
		{"149.00", 14900},
		{"149.9", 14990},
		{"149.99", 14999},
		{"0.5", 50},
		{"0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, amountToCents(json.Number(tt.in)), tt.in)
	}

	assert.Equal(t, json.Number("149.00"), centsToDecimal(14900))
	assert.Equal(t, json.Number("0.05"), centsToDecimal(5))
}
