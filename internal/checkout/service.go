package checkout

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/edmarket/coursepay/internal/catalog/domain"
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/config"
	"github.com/edmarket/coursepay/internal/coupon"
	coupondomain "github.com/edmarket/coursepay/internal/coupon/domain"
	enrollmentdomain "github.com/edmarket/coursepay/internal/enrollment/domain"
	"github.com/edmarket/coursepay/internal/observability/metrics"
	orderdomain "github.com/edmarket/coursepay/internal/order/domain"
	"github.com/edmarket/coursepay/internal/payment/adapters"
	paymentdomain "github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrNoCourses         = errors.New("checkout_no_courses")
	ErrCourseNotFound    = errors.New("checkout_course_not_found")
	ErrAlreadyEnrolled   = errors.New("checkout_already_enrolled")
	ErrUnsupportedMethod = errors.New("checkout_unsupported_payment_method")
	ErrCurrencyMismatch  = errors.New("checkout_currency_mismatch")
	ErrInProgress        = errors.New("checkout_in_progress")
)

type Input struct {
	UserID        snowflake.ID
	CourseIDs     []snowflake.ID
	PaymentMethod string
	CouponCode    string
}

type Result struct {
	OrderID     snowflake.ID `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	RedirectURL string       `json:"redirect_url"`
	TotalAmount int64        `json:"total_amount"`
	Currency    string       `json:"currency"`
}

// Service orchestrates cart validation, order creation and the provider
// checkout session.
type Service struct {
	node        *snowflake.Node
	courses     catalogdomain.Repository
	enrollments enrollmentdomain.Repository
	orders      orderdomain.Repository
	coupons     coupondomain.Repository
	registry    *adapters.Registry
	locker      *Locker
	metrics     *metrics.Metrics
	clock       clock.Clock
	cfg         config.Config
	log         *zap.Logger
}

func NewService(
	node *snowflake.Node,
	courses catalogdomain.Repository,
	enrollments enrollmentdomain.Repository,
	orders orderdomain.Repository,
	coupons coupondomain.Repository,
	registry *adapters.Registry,
	locker *Locker,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg config.Config,
	log *zap.Logger,
) *Service {
	return &Service{
		node:        node,
		courses:     courses,
		enrollments: enrollments,
		orders:      orders,
		coupons:     coupons,
		registry:    registry,
		locker:      locker,
		metrics:     m,
		clock:       clk,
		cfg:         cfg,
		log:         log.Named("checkout"),
	}
}

// mapGateway routes a buyer-facing payment method to a provider.
func mapGateway(method string) (orderdomain.Gateway, error) {
	switch method {
	case "card":
		return orderdomain.GatewayStripe, nil
	case "paypal":
		return orderdomain.GatewayPayPal, nil
	case "pix", "boleto":
		return orderdomain.GatewayMercadoPago, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) Checkout(ctx context.Context, in Input) (*Result, error) {
	gateway, err := mapGateway(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	courseIDs := dedupe(in.CourseIDs)
	if len(courseIDs) == 0 {
		return nil, ErrNoCourses
	}

	token, acquired, err := s.locker.Acquire(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrInProgress
	}
	defer s.locker.Release(ctx, in.UserID, token)

	courses, err := s.courses.FindPublishedByIDs(ctx, courseIDs)
	if err != nil {
		return nil, err
	}
	if len(courses) != len(courseIDs) {
		return nil, ErrCourseNotFound
	}

	owned, err := s.enrollments.EnrolledAny(ctx, in.UserID, courseIDs)
	if err != nil {
		return nil, err
	}
	if len(owned) > 0 {
		return nil, ErrAlreadyEnrolled
	}

	currency := courses[0].Currency
	var subtotal int64
	items := make([]orderdomain.OrderItem, 0, len(courses))
	checkoutItems := make([]paymentdomain.CheckoutItem, 0, len(courses))
	for _, course := range courses {
		if course.Currency != currency {
			return nil, ErrCurrencyMismatch
		}
		subtotal += course.PriceAmount
		items = append(items, orderdomain.OrderItem{
			ID:              s.node.Generate(),
			CourseID:        course.ID,
			InstructorID:    course.InstructorID,
			PriceAtPurchase: course.PriceAmount,
			CreatedAt:       s.clock.Now(),
		})
		checkoutItems = append(checkoutItems, paymentdomain.CheckoutItem{
			CourseID: course.ID,
			Title:    course.Title,
			Amount:   course.PriceAmount,
		})
	}

	// A coupon that does not apply (unknown code, inactive, expired or out
	// of uses) never blocks checkout; the order is placed at full price and
	// carries no coupon reference.
	total := subtotal
	var couponID *snowflake.ID
	if in.CouponCode != "" {
		c, err := s.coupons.FindByCode(ctx, in.CouponCode)
		switch {
		case errors.Is(err, coupondomain.ErrNotFound):
			s.log.Info("coupon code not found, ignoring", zap.String("code", in.CouponCode))
		case err != nil:
			return nil, err
		default:
			if discount := coupon.Discount(c, subtotal, s.clock.Now()); discount > 0 {
				total = subtotal - discount
				couponID = &c.ID
			} else {
				s.log.Info("coupon not applicable, ignoring",
					zap.String("code", c.Code),
					zap.Int64("coupon_id", int64(c.ID)),
				)
			}
		}
	}

	now := s.clock.Now()
	order := &orderdomain.Order{
		ID:          s.node.Generate(),
		Number:      ulid.Make().String(),
		UserID:      in.UserID,
		TotalAmount: total,
		Currency:    currency,
		Status:      orderdomain.StatusPending,
		Gateway:     gateway,
		CouponID:    couponID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.CreateWithItems(ctx, order, items); err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(string(gateway))
	if err != nil {
		s.metrics.CheckoutTotal.WithLabelValues(string(gateway), "unavailable").Inc()
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	s.metrics.GatewayRequestsOpen.Inc()
	session, err := adapter.CreateCheckout(gwCtx, paymentdomain.CheckoutRequest{
		OrderID:    order.ID,
		UserID:     in.UserID,
		Amount:     total,
		Currency:   currency,
		Items:      checkoutItems,
		SuccessURL: s.cfg.CheckoutSuccessURL,
		CancelURL:  s.cfg.CheckoutCancelURL,
	})
	s.metrics.GatewayRequestsOpen.Dec()
	if err != nil {
		// The order stays PENDING; nothing was charged and no
		// entitlement can flow from it.
		s.metrics.CheckoutTotal.WithLabelValues(string(gateway), "gateway_error").Inc()
		s.log.Warn("gateway session failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.String("gateway", string(gateway)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.orders.SetGatewayRef(ctx, order.ID, session.TransactionID); err != nil {
		return nil, err
	}

	s.metrics.CheckoutTotal.WithLabelValues(string(gateway), "created").Inc()
	s.log.Info("checkout session created",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("gateway", string(gateway)),
		zap.Int64("total", total),
	)
	return &Result{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		RedirectURL: session.RedirectURL,
		TotalAmount: total,
		Currency:    currency,
	}, nil
}
