package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	apiBaseURL = "https://api.stripe.com"

	// Signed webhooks older than this are rejected to blunt replay.
	signatureTolerance = 5 * time.Minute
)

type Adapter struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	clock         clock.Clock
	log           *zap.Logger
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

func New(secretKey, webhookSecret string, timeout time.Duration, clk clock.Clock, log *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       apiBaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		clock:         clk,
		log:           log.Named("stripe"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Provider() string { return "stripe" }

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.OrderID.String())
	form.Set("metadata[order_id]", req.OrderID.String())

	currency := strings.ToLower(req.Currency)
	for i, item := range req.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", "1")
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.Amount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Title)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.log.Warn("checkout session request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		a.log.Warn("checkout session rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var session checkoutSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return &domain.CheckoutSession{
		TransactionID: session.ID,
		RedirectURL:   session.URL,
	}, nil
}

// Verify checks the Stripe-Signature header: HMAC-SHA256 of
// "<timestamp>.<payload>" keyed by the endpoint secret.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers map[string]string) error {
	header := headers["Stripe-Signature"]
	if header == "" {
		return domain.ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if d := a.clock.Now().Sub(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID                string `json:"id"`
			PaymentIntent     string `json:"payment_intent"`
			ClientReferenceID string `json:"client_reference_id"`
			AmountTotal       int64  `json:"amount_total"`
			Amount            int64  `json:"amount"`
			Currency          string `json:"currency"`
			Metadata          struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (a *Adapter) Parse(_ context.Context, payload []byte, _ map[string]string) (*domain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, domain.ErrInvalidPayload
	}

	var outcome domain.Outcome
	amount := event.Data.Object.AmountTotal
	switch event.Type {
	case "checkout.session.completed":
		outcome = domain.OutcomeSucceeded
	case "checkout.session.expired":
		outcome = domain.OutcomeFailed
	case "charge.refunded":
		outcome = domain.OutcomeRefunded
		amount = event.Data.Object.Amount
	default:
		return nil, domain.ErrEventIgnored
	}

	orderRef := event.Data.Object.Metadata.OrderID
	if orderRef == "" {
		orderRef = event.Data.Object.ClientReferenceID
	}

	return &domain.PaymentEvent{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		EventType:       event.Type,
		ExternalRef:     event.Data.Object.ID,
		OrderRef:        orderRef,
		Outcome:         outcome,
		Amount:          amount,
		Currency:        strings.ToUpper(event.Data.Object.Currency),
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
		RawPayload:      payload,
	}, nil
}
