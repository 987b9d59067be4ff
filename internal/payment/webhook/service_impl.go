package webhook

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/clock"
	"github.com/edmarket/coursepay/internal/observability/metrics"
	"github.com/edmarket/coursepay/internal/payment/adapters"
	"github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/edmarket/coursepay/internal/reconcile"
	pkgdb "github.com/edmarket/coursepay/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service authenticates raw provider webhooks, normalizes them and hands
// them to reconciliation exactly once per provider event id.
type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	registry   *adapters.Registry
	reconciler *reconcile.Service
	metrics    *metrics.Metrics
	clock      clock.Clock
	log        *zap.Logger
}

func NewService(
	db *gorm.DB,
	node *snowflake.Node,
	registry *adapters.Registry,
	reconciler *reconcile.Service,
	m *metrics.Metrics,
	clk clock.Clock,
	log *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		node:       node,
		registry:   registry,
		reconciler: reconciler,
		metrics:    m,
		clock:      clk,
		log:        log.Named("webhook"),
	}
}

// Ingest processes one webhook delivery. A nil return means the provider
// should be acknowledged; sentinel errors map to the HTTP layer.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers map[string]string) error {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues(provider, "rejected").Inc()
		s.log.Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
		return err
	}

	event, err := adapter.Parse(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.metrics.WebhookEventsTotal.WithLabelValues(provider, "ignored").Inc()
			return nil
		}
		s.metrics.WebhookEventsTotal.WithLabelValues(provider, "invalid").Inc()
		return err
	}

	fresh, err := s.record(ctx, event)
	if err != nil {
		return err
	}
	if !fresh {
		s.metrics.WebhookEventsTotal.WithLabelValues(provider, "duplicate").Inc()
		s.log.Info("duplicate event acknowledged",
			zap.String("provider", provider),
			zap.String("event_id", event.ProviderEventID),
		)
		return nil
	}

	if err := s.reconciler.Reconcile(ctx, event); err != nil {
		// Leave processed_at empty so the provider's retry runs the
		// reconciliation again.
		s.metrics.WebhookEventsTotal.WithLabelValues(provider, "error").Inc()
		return err
	}

	if err := s.markProcessed(ctx, event); err != nil {
		return err
	}
	s.metrics.WebhookEventsTotal.WithLabelValues(provider, "processed").Inc()
	return nil
}

// record inserts the dedup row. Returns false when the event was seen
// before and fully processed; a seen-but-unprocessed event reruns.
func (s *Service) record(ctx context.Context, event *domain.PaymentEvent) (bool, error) {
	rec := domain.EventRecord{
		ID:              s.node.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.EventType,
		ExternalRef:     event.ExternalRef,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clock.Now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		// Some drivers surface the conflict instead of swallowing it.
		if !pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, res.Error
		}
	} else if res.RowsAffected > 0 {
		return true, nil
	}

	var existing domain.EventRecord
	err := s.db.WithContext(ctx).
		First(&existing, "provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).Error
	if err != nil {
		return false, err
	}
	// A row without processed_at means a previous delivery crashed between
	// recording and reconciling. Run it again.
	return existing.ProcessedAt == nil, nil
}

func (s *Service) markProcessed(ctx context.Context, event *domain.PaymentEvent) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Model(&domain.EventRecord{}).
		Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		Update("processed_at", now).Error
}
