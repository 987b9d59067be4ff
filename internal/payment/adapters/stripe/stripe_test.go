package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

func signedHeader(t *testing.T, payload []byte, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newAdapter(opts ...Option) *Adapter {
	return New("sk_test", testSecret, 5*time.Second, clock.NewFakeClock(testNow), zap.NewNop(), opts...)
}

func TestVerify(t *testing.T) {
	a := newAdapter()
	payload := []byte(`{"id":"evt_1"}`)

	t.Run("valid signature", func(t *testing.T) {
		headers := map[string]string{"Stripe-Signature": signedHeader(t, payload, testNow)}
		assert.NoError(t, a.Verify(context.Background(), payload, headers))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, a.Verify(context.Background(), payload, map[string]string{}), domain.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		headers := map[string]string{"Stripe-Signature": signedHeader(t, payload, testNow)}
		err := a.Verify(context.Background(), []byte(`{"id":"evt_2"}`), headers)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		headers := map[string]string{"Stripe-Signature": "not-a-signature"}
		assert.ErrorIs(t, a.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
	})
}

func TestVerifyToleranceWindow(t *testing.T) {
	a := newAdapter()
	payload := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name   string
		signed time.Time
		ok     bool
	}{
		{"just inside", testNow.Add(-signatureTolerance + time.Second), true},
		{"just expired", testNow.Add(-signatureTolerance - time.Second), false},
		{"an hour stale", testNow.Add(-time.Hour), false},
		{"slightly ahead", testNow.Add(time.Minute), true},
		{"too far ahead", testNow.Add(signatureTolerance + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{"Stripe-Signature": signedHeader(t, payload, tt.signed)}
			err := a.Verify(context.Background(), payload, headers)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
			}
		})
	}
}

func TestVerifyAcceptsRedeliveryWithinTolerance(t *testing.T) {
	clk := clock.NewFakeClock(testNow)
	a := New("sk_test", testSecret, 5*time.Second, clk, zap.NewNop())
	payload := []byte(`{"id":"evt_1"}`)
	headers := map[string]string{"Stripe-Signature": signedHeader(t, payload, testNow)}

	require.NoError(t, a.Verify(context.Background(), payload, headers))

	clk.Advance(4 * time.Minute)
	assert.NoError(t, a.Verify(context.Background(), payload, headers))

	clk.Advance(2 * time.Minute)
	assert.ErrorIs(t, a.Verify(context.Background(), payload, headers), domain.ErrInvalidSignature)
}

func TestParse(t *testing.T) {
	a := newAdapter()

	t.Run("session completed", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_100",
			"type": "checkout.session.completed",
			"created": 1748779200,
			"data": {"object": {
				"id": "cs_abc",
				"amount_total": 14900,
				"currency": "brl",
				"client_reference_id": "42",
				"metadata": {"order_id": "42"}
			}}
		}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, "stripe", event.Provider)
		assert.Equal(t, "evt_100", event.ProviderEventID)
		assert.Equal(t, "cs_abc", event.ExternalRef)
		assert.Equal(t, "42", event.OrderRef)
		assert.Equal(t, domain.OutcomeSucceeded, event.Outcome)
		assert.Equal(t, int64(14900), event.Amount)
		assert.Equal(t, "BRL", event.Currency)
	})

	t.Run("session expired", func(t *testing.T) {
		payload := []byte(`{"id":"evt_101","type":"checkout.session.expired","data":{"object":{"id":"cs_abc"}}}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailed, event.Outcome)
	})

	t.Run("charge refunded", func(t *testing.T) {
		payload := []byte(`{"id":"evt_102","type":"charge.refunded","data":{"object":{"id":"ch_1","amount":14900,"currency":"brl","metadata":{"order_id":"42"}}}}`)
		event, err := a.Parse(context.Background(), payload, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeRefunded, event.Outcome)
		assert.Equal(t, int64(14900), event.Amount)
	})

	t.Run("unhandled type", func(t *testing.T) {
		payload := []byte(`{"id":"evt_103","type":"customer.created"}`)
		_, err := a.Parse(context.Background(), payload, nil)
		assert.ErrorIs(t, err, domain.ErrEventIgnored)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := a.Parse(context.Background(), []byte("{"), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})
}

func TestCreateCheckout(t *testing.T) {
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_new","url":"https://checkout.stripe.com/pay/cs_new"}`)
	}))
	defer srv.Close()

	a := newAdapter(WithBaseURL(srv.URL))
	orderID := snowflake.ParseInt64(42)
	session, err := a.CreateCheckout(context.Background(), domain.CheckoutRequest{
		OrderID:    orderID,
		Amount:     14900,
		Currency:   "BRL",
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
		Items: []domain.CheckoutItem{
			{Title: "Go desde cero", Amount: 14900},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", session.TransactionID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_new", session.RedirectURL)

	assert.Equal(t, []string{"payment"}, gotForm["mode"])
	assert.Equal(t, []string{"42"}, gotForm["metadata[order_id]"])
	assert.Equal(t, []string{"14900"}, gotForm["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, []string{"brl"}, gotForm["line_items[0][price_data][currency]"])
}

func TestCreateCheckoutGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newAdapter(WithBaseURL(srv.URL))
	_, err := a.CreateCheckout(context.Background(), domain.CheckoutRequest{Currency: "BRL"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
