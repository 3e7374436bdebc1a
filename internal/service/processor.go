package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/logging"
	"github.com/septivank/fuel-mileage-worker/internal/mq"
	"github.com/septivank/fuel-mileage-worker/tools/timeparser"
	"go.uber.org/zap"
)

// Action is the kind of change a command requests
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRefresh Action = "refresh"
)

// ErrInvalidPayload is returned for commands whose payload cannot be turned into an entry
var ErrInvalidPayload = errors.New("invalid payload")

// CommandMessage represents the incoming message from RabbitMQ
type CommandMessage struct {
	RequestID string       `json:"request_id"`
	Action    Action       `json:"action"`
	EntryID   string       `json:"entry_id,omitempty"`
	Payload   EntryPayload `json:"payload"`
}

// EntryPayload carries the fill-up fields of a command. All fields are
// optional on update.
type EntryPayload struct {
	Date       *string  `json:"date,omitempty"`
	Odometer   *float64 `json:"odometer,omitempty"`
	FuelAmount *float64 `json:"fuel_amount,omitempty"`
	FuelPrice  *float64 `json:"fuel_price,omitempty"`
	Station    *string  `json:"station,omitempty"`
}

// ToInput converts a create payload. The date is mandatory; missing numbers
// are left at zero for the validator to reject.
func (p EntryPayload) ToInput() (fuel.Input, error) {
	if p.Date == nil {
		return fuel.Input{}, fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	date, err := timeparser.ParseFillUpDate(*p.Date)
	if err != nil {
		return fuel.Input{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	in := fuel.Input{Date: date}
	if p.Odometer != nil {
		in.Odometer = *p.Odometer
	}
	if p.FuelAmount != nil {
		in.FuelAmount = *p.FuelAmount
	}
	if p.FuelPrice != nil {
		in.FuelPrice = *p.FuelPrice
	}
	if p.Station != nil {
		in.Station = *p.Station
	}
	return in, nil
}

// ToPatch converts an update payload
func (p EntryPayload) ToPatch() (fuel.Patch, error) {
	patch := fuel.Patch{
		Odometer:   p.Odometer,
		FuelAmount: p.FuelAmount,
		FuelPrice:  p.FuelPrice,
		Station:    p.Station,
	}
	if p.Date != nil {
		date, err := timeparser.ParseFillUpDate(*p.Date)
		if err != nil {
			return fuel.Patch{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		patch.Date = &date
	}
	if patch.IsEmpty() {
		return fuel.Patch{}, fmt.Errorf("%w: update carries no field", ErrInvalidPayload)
	}
	return patch, nil
}

// ProcessorService turns queued commands into entry changes
type ProcessorService struct {
	entries   *EntryService
	publisher EventPublisher
	reject    string
	logger    *zap.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(entries *EntryService, publisher EventPublisher, rejectRoutingKey string, logger *zap.Logger) *ProcessorService {
	return &ProcessorService{
		entries:   entries,
		publisher: publisher,
		reject:    rejectRoutingKey,
		logger:    logger,
	}
}

// ProcessMessage processes an incoming fill-up command. Commands that fail
// validation are answered with a rejected event and acknowledged; malformed
// messages are reported as permanent failures.
func (s *ProcessorService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg CommandMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: failed to unmarshal message: %v", mq.ErrPermanent, err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing command",
		zap.String("action", string(msg.Action)),
		zap.String("entry_id", msg.EntryID),
	)

	err := s.dispatch(ctx, msg)
	switch {
	case err == nil:
		reqLogger.Info("command processed successfully", zap.String("action", string(msg.Action)))
		return nil
	case isRejection(err):
		reqLogger.Warn("command rejected", zap.Error(err))
		s.publishRejection(ctx, msg, err, reqLogger)
		return nil
	default:
		return err
	}
}

func (s *ProcessorService) dispatch(ctx context.Context, msg CommandMessage) error {
	switch msg.Action {
	case ActionCreate:
		in, err := msg.Payload.ToInput()
		if err != nil {
			return err
		}
		_, err = s.entries.CreateEntry(ctx, msg.RequestID, in)
		return err

	case ActionUpdate:
		id, err := parseEntryID(msg.EntryID)
		if err != nil {
			return err
		}
		patch, err := msg.Payload.ToPatch()
		if err != nil {
			return err
		}
		_, err = s.entries.UpdateEntry(ctx, msg.RequestID, id, patch)
		return err

	case ActionDelete:
		id, err := parseEntryID(msg.EntryID)
		if err != nil {
			return err
		}
		return s.entries.DeleteEntry(ctx, msg.RequestID, id)

	case ActionRefresh:
		if err := s.entries.Refresh(ctx, msg.RequestID); err != nil {
			return fmt.Errorf("failed to refresh entries: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown action %q", mq.ErrPermanent, msg.Action)
	}
}

func (s *ProcessorService) publishRejection(ctx context.Context, msg CommandMessage, cause error, logger *zap.Logger) {
	if s.publisher == nil {
		return
	}
	event := mq.RejectedEvent{
		RequestID:  msg.RequestID,
		Action:     string(msg.Action),
		EntryID:    msg.EntryID,
		Reason:     cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishRejectedEvent(ctx, event, s.reject); err != nil {
		logger.Error("failed to publish rejected event", zap.Error(err))
	}
}

func parseEntryID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: entry_id %q: %v", ErrInvalidPayload, raw, err)
	}
	return id, nil
}

func isRejection(err error) bool {
	return fuel.IsValidationError(err) ||
		errors.Is(err, fuel.ErrEntryNotFound) ||
		errors.Is(err, ErrInvalidPayload)
}
