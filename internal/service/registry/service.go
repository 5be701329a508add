package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/repository"
	"github.com/eventcat/eventcat/internal/util"
)

// TopicRegistrationCreated is the outbox topic announcing new registrations;
// the notification service consumes it downstream.
const TopicRegistrationCreated = "registration.created"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventClosed   = errors.New("event is closed for registration")

	// ErrDuplicateRegistration re-exported for handlers.
	ErrDuplicateRegistration = repository.ErrDuplicateRegistration
)

// Service registers attendees. The registration row and its outbox message
// are written in one transaction, so a downstream reader of the message log
// never observes one without the other.
type Service struct {
	db     *sqlx.DB
	events repository.EventStore
	regs   repository.RegistrationsRepository
	outbox repository.OutboxRepository
}

func New(
	db *sqlx.DB,
	events repository.EventStore,
	regs repository.RegistrationsRepository,
	outbox repository.OutboxRepository,
) *Service {
	return &Service{db: db, events: events, regs: regs, outbox: outbox}
}

// Register creates a registration with a fresh confirmation code and
// enqueues the registration.created announcement atomically.
func (s *Service) Register(ctx context.Context, eventID, fullName, email string) (*model.Registration, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ev, err := s.events.GetEventByID(ctx, tx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	if ev.Status != model.EventStatusOpen {
		return nil, ErrEventClosed
	}

	reg := model.Registration{
		ID:               util.New(),
		EventID:          ev.ID,
		FullName:         fullName,
		Email:            email,
		ConfirmationCode: util.NewCode(8),
	}
	if err := s.regs.Insert(ctx, tx, reg); err != nil {
		return nil, err
	}

	env := model.RegistrationEnvelope{
		ID:               reg.ID,
		EventID:          ev.ID,
		EventName:        ev.Name,
		FullName:         reg.FullName,
		Email:            reg.Email,
		ConfirmationCode: reg.ConfirmationCode,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := s.outbox.Enqueue(ctx, tx, TopicRegistrationCreated, payload); err != nil {
		return nil, fmt.Errorf("enqueue outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &reg, nil
}
