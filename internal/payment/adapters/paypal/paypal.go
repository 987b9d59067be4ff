package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edmarket/coursepay/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	liveBaseURL    = "https://api-m.paypal.com"
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
)

type Adapter struct {
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string
	httpClient   *http.Client
	log          *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

func New(clientID, clientSecret, webhookID, mode string, timeout time.Duration, log *zap.Logger, opts ...Option) *Adapter {
	base := sandboxBaseURL
	if mode == "live" {
		base = liveBaseURL
	}
	a := &Adapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		baseURL:      base,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log.Named("paypal"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Provider() string { return "paypal" }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: oauth status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	a.accessToken = tok.AccessToken
	// Refresh a minute early so in-flight calls never carry a stale token.
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return a.accessToken, nil
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Warn("request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		a.log.Warn("request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// centsToDecimal renders minor units as the two-decimal string PayPal's
// order API expects.
func centsToDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

type orderResponse struct {
	ID    string `json:"id"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": req.OrderID.String(),
				"custom_id":    req.OrderID.String(),
				"amount": map[string]string{
					"currency_code": strings.ToUpper(req.Currency),
					"value":         centsToDecimal(req.Amount),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": req.SuccessURL,
			"cancel_url": req.CancelURL,
		},
	}

	var order orderResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}

	var approveURL string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	return &domain.CheckoutSession{
		TransactionID: order.ID,
		RedirectURL:   approveURL,
	}, nil
}

// CaptureOrder finalizes an approved PayPal order. The capture webhook
// that follows drives entitlement, not this call's response.
func (a *Adapter) CaptureOrder(ctx context.Context, paypalOrderID string) error {
	return a.doJSON(ctx, http.MethodPost,
		"/v2/checkout/orders/"+paypalOrderID+"/capture", struct{}{}, nil)
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verify delegates to PayPal's verify-webhook-signature API; the vendor
// does not publish a shared-secret scheme for plain HMAC verification.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers map[string]string) error {
	req := verifyRequest{
		AuthAlgo:         headers["Paypal-Auth-Algo"],
		CertURL:          headers["Paypal-Cert-Url"],
		TransmissionID:   headers["Paypal-Transmission-Id"],
		TransmissionSig:  headers["Paypal-Transmission-Sig"],
		TransmissionTime: headers["Paypal-Transmission-Time"],
		WebhookID:        a.webhookID,
		WebhookEvent:     json.RawMessage(payload),
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return domain.ErrInvalidSignature
	}

	var result verifyResponse
	if err := a.doJSON(ctx, http.MethodPost,
		"/v1/notifications/verify-webhook-signature", req, &result); err != nil {
		return err
	}
	if result.VerificationStatus != "SUCCESS" {
		return domain.ErrInvalidSignature
	}
	return nil
}

type webhookEvent struct {
	ID         string `json:"id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Resource   struct {
		ID                string `json:"id"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"resource"`
}

func decimalToCents(value string) int64 {
	whole, frac, _ := strings.Cut(value, ".")
	cents, _ := strconv.ParseInt(whole, 10, 64)
	cents *= 100
	if len(frac) >= 2 {
		f, _ := strconv.ParseInt(frac[:2], 10, 64)
		cents += f
	} else if len(frac) == 1 {
		f, _ := strconv.ParseInt(frac, 10, 64)
		cents += f * 10
	}
	return cents
}

func (a *Adapter) Parse(_ context.Context, payload []byte, _ map[string]string) (*domain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if event.ID == "" || event.EventType == "" {
		return nil, domain.ErrInvalidPayload
	}

	var outcome domain.Outcome
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		outcome = domain.OutcomeSucceeded
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		outcome = domain.OutcomeFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		outcome = domain.OutcomeRefunded
	default:
		return nil, domain.ErrEventIgnored
	}

	occurredAt, err := time.Parse(time.RFC3339, event.CreateTime)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	// Capture webhooks reference the PayPal order id the checkout stored,
	// not the capture's own resource id.
	externalRef := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if externalRef == "" {
		externalRef = event.Resource.ID
	}

	return &domain.PaymentEvent{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		EventType:       event.EventType,
		ExternalRef:     externalRef,
		OrderRef:        event.Resource.CustomID,
		Outcome:         outcome,
		Amount:          decimalToCents(event.Resource.Amount.Value),
		Currency:        strings.ToUpper(event.Resource.Amount.CurrencyCode),
		OccurredAt:      occurredAt.UTC(),
		RawPayload:      payload,
	}, nil
}
