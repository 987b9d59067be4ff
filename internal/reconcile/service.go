package reconcile

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/edmarket/coursepay/internal/catalog/domain"
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/commission"
	"github.com/edmarket/coursepay/internal/config"
	coupondomain "github.com/edmarket/coursepay/internal/coupon/domain"
	enrollmentdomain "github.com/edmarket/coursepay/internal/enrollment/domain"
	instructordomain "github.com/edmarket/coursepay/internal/instructor/domain"
	"github.com/edmarket/coursepay/internal/notification"
	"github.com/edmarket/coursepay/internal/observability/metrics"
	orderdomain "github.com/edmarket/coursepay/internal/order/domain"
	paymentdomain "github.com/edmarket/coursepay/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service turns verified payment events into order state, entitlements and
// instructor credits. Every write path is idempotent so providers can
// redeliver the same event any number of times.
type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	orders      orderdomain.Repository
	enrollments enrollmentdomain.Repository
	instructors instructordomain.Repository
	coupons     coupondomain.Repository
	courses     catalogdomain.Repository
	publisher   notification.Publisher
	metrics     *metrics.Metrics
	clock       clock.Clock
	rateBps     int64
	log         *zap.Logger
}

func NewService(
	db *gorm.DB,
	node *snowflake.Node,
	orders orderdomain.Repository,
	enrollments enrollmentdomain.Repository,
	instructors instructordomain.Repository,
	coupons coupondomain.Repository,
	courses catalogdomain.Repository,
	publisher notification.Publisher,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg config.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		node:        node,
		orders:      orders,
		enrollments: enrollments,
		instructors: instructors,
		coupons:     coupons,
		courses:     courses,
		publisher:   publisher,
		metrics:     m,
		clock:       clk,
		rateBps:     cfg.CommissionRateBps,
		log:         log.Named("reconcile"),
	}
}

// Reconcile applies one normalized payment event. Unknown references and
// already-terminal orders are acknowledged as no-ops; only infrastructure
// failures surface as errors, so the caller can have the provider retry.
func (s *Service) Reconcile(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	order, err := s.orders.FindByGatewayRef(ctx, event.ExternalRef, event.OrderRef)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			s.log.Warn("event references unknown order",
				zap.String("provider", event.Provider),
				zap.String("external_ref", event.ExternalRef),
				zap.String("order_ref", event.OrderRef),
			)
			s.metrics.ReconcileTotal.WithLabelValues(string(event.Outcome), "unknown_order").Inc()
			return nil
		}
		return err
	}

	switch event.Outcome {
	case paymentdomain.OutcomeSucceeded:
		return s.complete(ctx, order, event)
	case paymentdomain.OutcomeFailed:
		return s.fail(ctx, order)
	case paymentdomain.OutcomeRefunded:
		// Refunds are recorded in the event log; access and credits stay.
		s.log.Info("refund recorded",
			zap.Int64("order_id", int64(order.ID)),
			zap.String("provider", event.Provider),
			zap.Int64("amount", event.Amount),
		)
		s.metrics.ReconcileTotal.WithLabelValues(string(event.Outcome), "recorded").Inc()
		return nil
	default:
		return paymentdomain.ErrInvalidPayload
	}
}

func (s *Service) complete(ctx context.Context, order *orderdomain.Order, event *paymentdomain.PaymentEvent) error {
	completed := false
	now := s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orders.Transition(tx, order.ID, orderdomain.StatusPending, orderdomain.StatusCompleted)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Lost the race or already terminal. Another delivery has
			// done (or is doing) the work.
			return nil
		}

		items, err := s.orders.ItemsByOrder(tx, order.ID)
		if err != nil {
			return err
		}
		// Commission splits run on what each item actually collected:
		// list prices less the order's coupon discount, spread pro-rata.
		var subtotal int64
		prices := make([]int64, len(items))
		for i, item := range items {
			prices[i] = item.PriceAtPurchase
			subtotal += item.PriceAtPurchase
		}
		collected := commission.AllocateDiscount(prices, subtotal-order.TotalAmount)
		for i, item := range items {
			fee, share := commission.Split(collected[i], s.rateBps)
			if _, err := s.instructors.CreditOnce(tx, &instructordomain.InstructorCredit{
				ID:           s.node.Generate(),
				InstructorID: item.InstructorID,
				OrderID:      order.ID,
				CourseID:     item.CourseID,
				Amount:       share,
				PlatformFee:  fee,
				Currency:     order.Currency,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			if _, err := s.enrollments.CreateIfAbsent(tx, &enrollmentdomain.Enrollment{
				ID:        s.node.Generate(),
				UserID:    order.UserID,
				CourseID:  item.CourseID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if order.CouponID != nil {
			redeemed, err := s.coupons.Redeem(tx, *order.CouponID)
			if err != nil {
				return err
			}
			if !redeemed {
				// The discount was already granted at checkout; an
				// exhausted counter here is an audit note, not a failure.
				s.log.Warn("coupon redemption exceeded max uses",
					zap.Int64("order_id", int64(order.ID)),
					zap.Int64("coupon_id", int64(*order.CouponID)),
				)
			}
		}

		completed = true
		return nil
	})
	if err != nil {
		s.metrics.ReconcileTotal.WithLabelValues(string(event.Outcome), "error").Inc()
		return err
	}

	if !completed {
		s.metrics.ReconcileTotal.WithLabelValues(string(event.Outcome), "noop").Inc()
		return nil
	}

	s.metrics.ReconcileTotal.WithLabelValues(string(event.Outcome), "completed").Inc()
	s.log.Info("order completed",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("provider", event.Provider),
		zap.Int64("amount", order.TotalAmount),
	)
	s.notify(ctx, order)
	return nil
}

func (s *Service) fail(ctx context.Context, order *orderdomain.Order) error {
	rows, err := s.orders.Transition(s.db.WithContext(ctx), order.ID, orderdomain.StatusPending, orderdomain.StatusFailed)
	if err != nil {
		s.metrics.ReconcileTotal.WithLabelValues(string(paymentdomain.OutcomeFailed), "error").Inc()
		return err
	}
	if rows == 0 {
		s.metrics.ReconcileTotal.WithLabelValues(string(paymentdomain.OutcomeFailed), "noop").Inc()
		return nil
	}
	s.metrics.ReconcileTotal.WithLabelValues(string(paymentdomain.OutcomeFailed), "failed").Inc()
	s.log.Info("order failed", zap.Int64("order_id", int64(order.ID)))
	return nil
}

// notify runs after commit; entitlement never depends on it.
func (s *Service) notify(ctx context.Context, order *orderdomain.Order) {
	items, err := s.orders.ItemsByOrder(s.db.WithContext(ctx), order.ID)
	if err != nil {
		s.log.Warn("notification skipped", zap.Int64("order_id", int64(order.ID)), zap.Error(err))
		return
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		course, err := s.courses.FindByID(ctx, item.CourseID)
		if err != nil {
			continue
		}
		titles = append(titles, course.Title)
	}
	_ = s.publisher.EnrollmentCompleted(ctx, notification.EnrollmentJob{
		UserID:       order.UserID,
		OrderID:      order.ID,
		CourseTitles: titles,
		AmountCents:  order.TotalAmount,
		EnqueuedAt:   s.clock.Now(),
	})
}
