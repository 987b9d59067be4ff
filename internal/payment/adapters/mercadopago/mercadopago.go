package mercadopago

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edmarket/coursepay/internal/payment/domain"
	"go.uber.org/zap"
)

const apiBaseURL = "https://api.mercadopago.com"

type Adapter struct {
	accessToken   string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	log           *zap.Logger
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

func New(accessToken, webhookSecret string, timeout time.Duration, log *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		accessToken:   accessToken,
		webhookSecret: webhookSecret,
		baseURL:       apiBaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		log:           log.Named("mercadopago"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Provider() string { return "mercadopago" }

type preferenceItem struct {
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

// centsToDecimal renders minor units as the decimal number the preference
// API expects, without going through floating point.
func centsToDecimal(cents int64) json.Number {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return json.Number(fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100))
}

type preferenceRequest struct {
	Items             []preferenceItem  `json:"items"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          map[string]string `json:"back_urls"`
	AutoReturn        string            `json:"auto_return"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	pref := preferenceRequest{
		ExternalReference: req.OrderID.String(),
		BackURLs: map[string]string{
			"success": req.SuccessURL,
			"failure": req.CancelURL,
			"pending": req.SuccessURL,
		},
		AutoReturn: "approved",
	}
	for _, item := range req.Items {
		pref.Items = append(pref.Items, preferenceItem{
			Title:      item.Title,
			Quantity:   1,
			UnitPrice:  centsToDecimal(item.Amount),
			CurrencyID: strings.ToUpper(req.Currency),
		})
	}

	raw, err := json.Marshal(pref)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/checkout/preferences", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.log.Warn("preference request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		a.log.Warn("preference rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var pr preferenceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return &domain.CheckoutSession{
		TransactionID: pr.ID,
		RedirectURL:   pr.InitPoint,
	}, nil
}

type webhookBody struct {
	ID     json.Number `json:"id"`
	Action string      `json:"action"`
	Type   string      `json:"type"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Verify checks the x-signature header against the manifest
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" keyed by the secret.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers map[string]string) error {
	signature := headers["X-Signature"]
	requestID := headers["X-Request-Id"]
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return domain.ErrInvalidSignature
	}

	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;",
		strings.ToLower(body.Data.ID.String()), requestID, ts)
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount json.Number `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
	DateApproved      string      `json:"date_approved"`
	DateCreated       string      `json:"date_created"`
}

func (a *Adapter) fetchPayment(ctx context.Context, id string) (*paymentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: payment fetch status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var payment paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return &payment, nil
}

func amountToCents(value json.Number) int64 {
	whole, frac, _ := strings.Cut(value.String(), ".")
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

// Parse resolves the notification to a payment via the payments API. The
// webhook body only carries the payment id, never its status.
func (a *Adapter) Parse(ctx context.Context, payload []byte, _ map[string]string) (*domain.PaymentEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if body.Type != "payment" {
		return nil, domain.ErrEventIgnored
	}
	paymentID := body.Data.ID.String()
	if paymentID == "" {
		return nil, domain.ErrInvalidPayload
	}

	payment, err := a.fetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var outcome domain.Outcome
	switch payment.Status {
	case "approved":
		outcome = domain.OutcomeSucceeded
	case "rejected", "cancelled":
		outcome = domain.OutcomeFailed
	case "refunded", "charged_back":
		outcome = domain.OutcomeRefunded
	default:
		// pending / in_process resolve through a later notification.
		return nil, domain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, payment.DateApproved); err == nil {
		occurredAt = t.UTC()
	} else if t, err := time.Parse(time.RFC3339, payment.DateCreated); err == nil {
		occurredAt = t.UTC()
	}

	eventID := body.ID.String()
	if eventID == "" {
		eventID = paymentID + ":" + payment.Status
	}

	return &domain.PaymentEvent{
		Provider:        a.Provider(),
		ProviderEventID: eventID,
		EventType:       body.Action,
		ExternalRef:     payment.ID.String(),
		OrderRef:        payment.ExternalReference,
		Outcome:         outcome,
		Amount:          amountToCents(payment.TransactionAmount),
		Currency:        strings.ToUpper(payment.CurrencyID),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}
