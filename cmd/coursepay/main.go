package main

import (
	"github.com/edmarket/coursepay/internal/catalog"
	"github.com/edmarket/coursepay/internal/checkout"
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/config"
	"github.com/edmarket/coursepay/internal/coupon"
	"github.com/edmarket/coursepay/internal/enrollment"
	"github.com/edmarket/coursepay/internal/instructor"
	"github.com/edmarket/coursepay/internal/logger"
	"github.com/edmarket/coursepay/internal/migration"
	"github.com/edmarket/coursepay/internal/notification"
	"github.com/edmarket/coursepay/internal/observability/metrics"
	"github.com/edmarket/coursepay/internal/order"
	"github.com/edmarket/coursepay/internal/payment"
	"github.com/edmarket/coursepay/internal/reconcile"
	"github.com/edmarket/coursepay/internal/seed"
	"github.com/edmarket/coursepay/internal/server"
	"github.com/edmarket/coursepay/pkg/db"
	"github.com/edmarket/coursepay/pkg/id"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		id.Module,
		db.Module,
		migration.Module,
		metrics.Module,
		catalog.Module,
		coupon.Module,
		order.Module,
		enrollment.Module,
		instructor.Module,
		notification.Module,
		payment.Module,
		reconcile.Module,
		checkout.Module,
		server.Module,
		seed.Module,
	).Run()
}
