package payment

import (
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/config"
	"github.com/edmarket/coursepay/internal/payment/adapters"
	"github.com/edmarket/coursepay/internal/payment/adapters/mercadopago"
	"github.com/edmarket/coursepay/internal/payment/adapters/paypal"
	"github.com/edmarket/coursepay/internal/payment/adapters/stripe"
	"github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/edmarket/coursepay/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// newPayPal is provided concretely as well so the capture endpoint can
// reach CaptureOrder without a type assertion.
func newPayPal(cfg config.Config, log *zap.Logger) *paypal.Adapter {
	if cfg.PayPal.ClientID == "" {
		return nil
	}
	return paypal.New(
		cfg.PayPal.ClientID,
		cfg.PayPal.ClientSecret,
		cfg.PayPal.WebhookID,
		cfg.PayPal.Mode,
		cfg.GatewayTimeout,
		log,
	)
}

func newRegistry(cfg config.Config, pp *paypal.Adapter, clk clock.Clock, log *zap.Logger) *adapters.Registry {
	var list []domain.Adapter
	if cfg.Stripe.SecretKey != "" {
		list = append(list, stripe.New(
			cfg.Stripe.SecretKey,
			cfg.Stripe.WebhookSecret,
			cfg.GatewayTimeout,
			clk,
			log,
		))
	}
	if pp != nil {
		list = append(list, pp)
	}
	if cfg.MercadoPago.AccessToken != "" {
		list = append(list, mercadopago.New(
			cfg.MercadoPago.AccessToken,
			cfg.MercadoPago.WebhookSecret,
			cfg.GatewayTimeout,
			log,
		))
	}
	log.Info("payment providers configured", zap.Int("count", len(list)))
	return adapters.NewRegistry(list)
}

var Module = fx.Module("payment",
	fx.Provide(
		newPayPal,
		newRegistry,
		webhook.NewService,
	),
)
