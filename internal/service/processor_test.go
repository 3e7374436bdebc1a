package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/anomaly"
	"github.com/septivank/fuel-mileage-worker/internal/config"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/mq"
	"github.com/septivank/fuel-mileage-worker/internal/service"
	"github.com/septivank/fuel-mileage-worker/internal/store"
	"github.com/septivank/fuel-mileage-worker/internal/validator"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu         sync.Mutex
	metrics    []mq.MetricsEvent
	rejected   []mq.RejectedEvent
	routingKey []string
}

func (p *fakePublisher) PublishMetricsEvent(ctx context.Context, event mq.MetricsEvent, routingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = append(p.metrics, event)
	p.routingKey = append(p.routingKey, routingKey)
	return nil
}

func (p *fakePublisher) PublishRejectedEvent(ctx context.Context, event mq.RejectedEvent, routingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, event)
	p.routingKey = append(p.routingKey, routingKey)
	return nil
}

func newTestServices(t *testing.T) (*service.EntryService, *service.ProcessorService, *fakePublisher) {
	t.Helper()
	now := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	cfg := config.Default()
	logger := zap.NewNop()

	entries := store.NewEntryStore(nil, nil, validator.NewValidator(func() time.Time { return now }), logger)
	publisher := &fakePublisher{}
	detector := anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)

	svc := service.NewEntryService(entries, publisher, detector, cfg, logger)
	processor := service.NewProcessorService(svc, publisher, cfg.RabbitMQ.RejectRoutingKey, logger)
	return svc, processor, publisher
}

func command(t *testing.T, msg map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal command: %v", err)
	}
	return body
}

func createCommand(t *testing.T, requestID, date string, odometer, amount, price float64) []byte {
	return command(t, map[string]any{
		"request_id": requestID,
		"action":     "create",
		"payload": map[string]any{
			"date":        date,
			"odometer":    odometer,
			"fuel_amount": amount,
			"fuel_price":  price,
		},
	})
}

func TestProcessMessage_CreatePublishesMetrics(t *testing.T) {
	ctx := context.Background()
	svc, processor, publisher := newTestServices(t)

	if err := processor.ProcessMessage(ctx, createCommand(t, "req-1", "2025-12-01", 10000, 40, 1.5)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := processor.ProcessMessage(ctx, createCommand(t, "req-2", "08/12/2025 09:15:00", 10500, 25, 2)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(svc.Entries()) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(svc.Entries()))
	}
	if len(publisher.metrics) != 2 {
		t.Fatalf("Expected 2 metrics events, got %d", len(publisher.metrics))
	}

	event := publisher.metrics[1]
	if event.RequestID != "req-2" || event.Action != "create" {
		t.Errorf("Expected create event for req-2, got %+v", event)
	}
	if event.AverageEfficiency == nil || *event.AverageEfficiency != 20 {
		t.Errorf("Expected efficiency 20, got %v", event.AverageEfficiency)
	}
	if event.EstimatedRange == nil || *event.EstimatedRange != 1000 {
		t.Errorf("Expected range 1000, got %v", event.EstimatedRange)
	}
	if event.Latest == nil || event.Latest.Distance != 500 {
		t.Errorf("Expected latest stretch of 500, got %+v", event.Latest)
	}
	if publisher.routingKey[1] != config.Default().RabbitMQ.WorkerRoutingKey {
		t.Errorf("Expected worker routing key, got %s", publisher.routingKey[1])
	}
}

func TestProcessMessage_FirstEntryHasNoMetrics(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	if err := processor.ProcessMessage(context.Background(), createCommand(t, "req-1", "2025-12-01", 10000, 40, 1.5)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	event := publisher.metrics[0]
	if event.AverageEfficiency != nil || event.EstimatedRange != nil || event.Latest != nil {
		t.Errorf("Expected undefined metrics for the baseline entry, got %+v", event)
	}
	if event.MetricsError != "" {
		t.Errorf("Expected no metrics error, got %s", event.MetricsError)
	}
}

func TestProcessMessage_InvalidEntryRejected(t *testing.T) {
	svc, processor, publisher := newTestServices(t)

	err := processor.ProcessMessage(context.Background(), createCommand(t, "req-1", "2025-12-01", 10000, 40, -1))
	if err != nil {
		t.Fatalf("Expected rejection to be acknowledged, got %v", err)
	}

	if len(svc.Entries()) != 0 {
		t.Error("Expected invalid entry not to be stored")
	}
	if len(publisher.rejected) != 1 {
		t.Fatalf("Expected 1 rejected event, got %d", len(publisher.rejected))
	}
	if !strings.Contains(publisher.rejected[0].Reason, "fuel price") {
		t.Errorf("Expected fuel price reason, got %s", publisher.rejected[0].Reason)
	}
	if publisher.routingKey[0] != config.Default().RabbitMQ.RejectRoutingKey {
		t.Errorf("Expected reject routing key, got %s", publisher.routingKey[0])
	}
}

func TestProcessMessage_FutureDateRejected(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	if err := processor.ProcessMessage(context.Background(), createCommand(t, "req-1", "2026-01-15", 10000, 40, 1.5)); err != nil {
		t.Fatalf("Expected rejection to be acknowledged, got %v", err)
	}
	if len(publisher.rejected) != 1 || len(publisher.metrics) != 0 {
		t.Errorf("Expected only a rejected event, got %d rejected and %d metrics", len(publisher.rejected), len(publisher.metrics))
	}
}

func TestProcessMessage_MissingDateRejected(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	body := command(t, map[string]any{
		"action":  "create",
		"payload": map[string]any{"odometer": 10000, "fuel_amount": 40, "fuel_price": 1.5},
	})
	if err := processor.ProcessMessage(context.Background(), body); err != nil {
		t.Fatalf("Expected rejection to be acknowledged, got %v", err)
	}
	if len(publisher.rejected) != 1 {
		t.Errorf("Expected 1 rejected event, got %d", len(publisher.rejected))
	}
}

func TestProcessMessage_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, processor, publisher := newTestServices(t)

	if err := processor.ProcessMessage(ctx, createCommand(t, "req-1", "2025-12-01", 10000, 40, 1.5)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	id := svc.Entries()[0].ID.String()

	update := command(t, map[string]any{
		"request_id": "req-2",
		"action":     "update",
		"entry_id":   id,
		"payload":    map[string]any{"station": "Shell Kemang"},
	})
	if err := processor.ProcessMessage(ctx, update); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := svc.Entries()[0]; got.Station != "Shell Kemang" || got.FuelPrice != 1.5 {
		t.Errorf("Expected station update only, got %+v", got)
	}

	remove := command(t, map[string]any{"request_id": "req-3", "action": "delete", "entry_id": id})
	if err := processor.ProcessMessage(ctx, remove); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(svc.Entries()) != 0 {
		t.Errorf("Expected entry to be deleted, got %d entries", len(svc.Entries()))
	}

	if len(publisher.metrics) != 3 || publisher.metrics[2].Action != "delete" || publisher.metrics[2].EntryID != id {
		t.Errorf("Expected delete metrics event for %s, got %+v", id, publisher.metrics)
	}
}

func TestProcessMessage_UnknownEntryRejected(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	body := command(t, map[string]any{
		"action":   "delete",
		"entry_id": "6f1c2a0e-8d4b-4c55-9a43-2f5d0c9e7b11",
	})
	if err := processor.ProcessMessage(context.Background(), body); err != nil {
		t.Fatalf("Expected rejection to be acknowledged, got %v", err)
	}
	if len(publisher.rejected) != 1 {
		t.Errorf("Expected 1 rejected event, got %d", len(publisher.rejected))
	}
}

func TestProcessMessage_EmptyUpdateRejected(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	body := command(t, map[string]any{
		"action":   "update",
		"entry_id": "6f1c2a0e-8d4b-4c55-9a43-2f5d0c9e7b11",
	})
	if err := processor.ProcessMessage(context.Background(), body); err != nil {
		t.Fatalf("Expected rejection to be acknowledged, got %v", err)
	}
	if len(publisher.rejected) != 1 || !strings.Contains(publisher.rejected[0].Reason, "no field") {
		t.Errorf("Expected empty update rejection, got %+v", publisher.rejected)
	}
}

func TestProcessMessage_PermanentFailures(t *testing.T) {
	_, processor, _ := newTestServices(t)

	tests := map[string][]byte{
		"malformed json": []byte(`{"action":`),
		"unknown action": []byte(`{"action":"archive"}`),
	}
	for name, body := range tests {
		err := processor.ProcessMessage(context.Background(), body)
		if !errors.Is(err, mq.ErrPermanent) {
			t.Errorf("%s: expected ErrPermanent, got %v", name, err)
		}
	}
}

func TestProcessMessage_RefreshWithoutChanges(t *testing.T) {
	_, processor, publisher := newTestServices(t)

	if err := processor.ProcessMessage(context.Background(), []byte(`{"action":"refresh"}`)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(publisher.metrics) != 0 {
		t.Errorf("Expected no metrics event when nothing changed, got %d", len(publisher.metrics))
	}
}

func TestProcessMessage_NonMonotonicReportedInEvent(t *testing.T) {
	ctx := context.Background()
	_, processor, publisher := newTestServices(t)

	_ = processor.ProcessMessage(ctx, createCommand(t, "req-1", "2025-12-01", 10000, 40, 1.5))
	if err := processor.ProcessMessage(ctx, createCommand(t, "req-2", "2025-12-08", 9000, 35, 1.6)); err != nil {
		t.Fatalf("Expected entry to be accepted, got %v", err)
	}

	event := publisher.metrics[1]
	if !strings.Contains(event.MetricsError, "not strictly increasing") {
		t.Errorf("Expected non-monotonic metrics error, got %q", event.MetricsError)
	}
	if event.AverageEfficiency != nil {
		t.Errorf("Expected no aggregate on failure, got %v", *event.AverageEfficiency)
	}
}

type memoryRemote struct {
	mu      sync.Mutex
	entries []fuel.Entry
}

func (m *memoryRemote) ListEntries(ctx context.Context) ([]fuel.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fuel.Entry(nil), m.entries...), nil
}

func (m *memoryRemote) UpsertEntry(ctx context.Context, entry fuel.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == entry.ID {
			m.entries[i] = entry
			return nil
		}
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRemote) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	return nil
}

func TestRefresh_UnchangedRemotePublishesNothing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	cfg := config.Default()
	logger := zap.NewNop()
	remote := &memoryRemote{}

	entries := store.NewEntryStore(remote, nil, validator.NewValidator(func() time.Time { return now }), logger)
	publisher := &fakePublisher{}
	detector := anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
	svc := service.NewEntryService(entries, publisher, detector, cfg, logger)
	processor := service.NewProcessorService(svc, publisher, cfg.RabbitMQ.RejectRoutingKey, logger)

	if err := processor.ProcessMessage(ctx, createCommand(t, "req-1", "2025-12-01", 10000, 40, 1.5)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Refresh(ctx, "sync"); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	if len(publisher.metrics) != 1 {
		t.Errorf("Expected only the create event, got %d metrics events", len(publisher.metrics))
	}

	other := fuel.NewEntry(uuid.New(), fuel.Input{
		Date:       now.AddDate(0, 0, -1),
		Odometer:   10500,
		FuelAmount: 25,
		FuelPrice:  2,
	}, now)
	_ = remote.UpsertEntry(ctx, other)

	if err := svc.Refresh(ctx, "sync"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(publisher.metrics) != 2 || publisher.metrics[1].Action != "refresh" {
		t.Fatalf("Expected a refresh event for the remote change, got %+v", publisher.metrics)
	}
	if publisher.metrics[1].EntryCount != 2 {
		t.Errorf("Expected 2 entries in the refresh event, got %d", publisher.metrics[1].EntryCount)
	}
}
