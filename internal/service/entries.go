package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/anomaly"
	"github.com/septivank/fuel-mileage-worker/internal/config"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/logging"
	"github.com/septivank/fuel-mileage-worker/internal/mq"
	"github.com/septivank/fuel-mileage-worker/internal/store"
	"go.uber.org/zap"
)

// EventPublisher is the subset of mq.Publisher the service needs
type EventPublisher interface {
	PublishMetricsEvent(ctx context.Context, event mq.MetricsEvent, routingKey string) error
	PublishRejectedEvent(ctx context.Context, event mq.RejectedEvent, routingKey string) error
}

// AnnotatedEfficiency is a per-entry efficiency with its anomaly verdict
type AnnotatedEfficiency struct {
	fuel.EfficiencyRecord
	anomaly.Finding
}

// EntryService applies fill-up changes to the store and announces the resulting metrics
type EntryService struct {
	store     *store.EntryStore
	publisher EventPublisher
	detector  *anomaly.Detector
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewEntryService creates a new entry service
func NewEntryService(
	entries *store.EntryStore,
	publisher EventPublisher,
	detector *anomaly.Detector,
	cfg *config.Config,
	logger *zap.Logger,
) *EntryService {
	return &EntryService{
		store:     entries,
		publisher: publisher,
		detector:  detector,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateEntry stores a new fill-up
func (s *EntryService) CreateEntry(ctx context.Context, requestID string, in fuel.Input) (fuel.Entry, error) {
	entry, err := s.store.Add(ctx, in)
	if err != nil {
		return fuel.Entry{}, err
	}
	s.announce(ctx, requestID, ActionCreate, entry.ID)
	return entry, nil
}

// UpdateEntry changes the present fields of an existing fill-up
func (s *EntryService) UpdateEntry(ctx context.Context, requestID string, id uuid.UUID, patch fuel.Patch) (fuel.Entry, error) {
	entry, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return fuel.Entry{}, err
	}
	s.announce(ctx, requestID, ActionUpdate, entry.ID)
	return entry, nil
}

// DeleteEntry removes a fill-up
func (s *EntryService) DeleteEntry(ctx context.Context, requestID string, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, requestID, ActionDelete, id)
	return nil
}

// Refresh pulls the remote collection and announces the merged metrics
func (s *EntryService) Refresh(ctx context.Context, requestID string) error {
	before := s.store.Version()
	if err := s.store.Refresh(ctx); err != nil {
		return err
	}
	if s.store.Version() != before {
		s.announce(ctx, requestID, ActionRefresh, uuid.Nil)
	}
	return nil
}

// Entries returns the current collection
func (s *EntryService) Entries() []fuel.Entry {
	return s.store.Entries()
}

// TankCapacity is the configured capacity used when a caller supplies none
func (s *EntryService) TankCapacity() float64 {
	return s.cfg.Vehicle.TankCapacity
}

// Metrics returns the derived metrics for the given tank capacity
func (s *EntryService) Metrics(tankCapacity float64) (store.Metrics, error) {
	return s.store.Metrics(tankCapacity)
}

// SyncStatus describes how far the local collection is ahead of the remote store
type SyncStatus struct {
	Version      uint64 `json:"version"`
	Entries      int    `json:"entries"`
	PendingWrite int    `json:"pending_writes"`
}

// Status reports the collection version and unsynchronized writes
func (s *EntryService) Status() SyncStatus {
	return SyncStatus{
		Version:      s.store.Version(),
		Entries:      len(s.store.Entries()),
		PendingWrite: s.store.PendingCount(),
	}
}

// Efficiency returns the per-entry efficiency series with anomaly verdicts
func (s *EntryService) Efficiency() ([]AnnotatedEfficiency, error) {
	metrics, err := s.store.Metrics(s.cfg.Vehicle.TankCapacity)
	if err != nil {
		return nil, err
	}
	return s.annotate(metrics.PerEntry), nil
}

func (s *EntryService) annotate(records []fuel.EfficiencyRecord) []AnnotatedEfficiency {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Efficiency
	}
	findings := s.detector.Annotate(values, s.cfg.Anomaly.Window)

	annotated := make([]AnnotatedEfficiency, len(records))
	for i, r := range records {
		annotated[i] = AnnotatedEfficiency{EfficiencyRecord: r, Finding: findings[i]}
	}
	return annotated
}

// announce publishes the metrics of the current collection. Publishing
// failures are logged; the change itself has already been applied.
func (s *EntryService) announce(ctx context.Context, requestID string, action Action, entryID uuid.UUID) {
	logger := logging.WithRequestID(s.logger, requestID)
	event := s.metricsEvent(requestID, action, entryID)

	if event.MetricsError != "" {
		logger.Warn("metrics unavailable for current entries", zap.String("reason", event.MetricsError))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMetricsEvent(ctx, event, s.cfg.RabbitMQ.WorkerRoutingKey); err != nil {
		logger.Error("failed to publish metrics event",
			zap.Error(err),
			zap.String("action", string(action)),
		)
	}
}

func (s *EntryService) metricsEvent(requestID string, action Action, entryID uuid.UUID) mq.MetricsEvent {
	event := mq.MetricsEvent{
		RequestID:  requestID,
		Action:     string(action),
		OccurredAt: s.now().UTC(),
	}
	if entryID != uuid.Nil {
		event.EntryID = entryID.String()
	}

	metrics, err := s.store.Metrics(s.cfg.Vehicle.TankCapacity)
	event.Version = metrics.Version
	if err != nil {
		event.MetricsError = err.Error()
		return event
	}

	event.EntryCount = metrics.Summary.EntryCount
	event.AverageEfficiency = metrics.Summary.AverageEfficiency
	event.AverageCostPerDistance = metrics.Summary.AverageCostPerDistance
	event.EstimatedRange = metrics.EstimatedRange
	event.EstimatedFullTankCost = metrics.EstimatedFullTankCost

	if annotated := s.annotate(metrics.PerEntry); len(annotated) > 0 {
		last := annotated[len(annotated)-1]
		event.Latest = &mq.EntryEfficiency{
			EntryID:       last.EntryID.String(),
			Efficiency:    last.Efficiency,
			Distance:      last.Distance,
			FuelUsed:      last.FuelUsed,
			Anomalous:     last.Anomalous,
			AnomalyReason: last.Reason,
		}
	}
	return event
}
