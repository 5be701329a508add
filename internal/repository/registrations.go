package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
)

// ErrDuplicateRegistration signals that the (event, email) pair already
// registered.
var ErrDuplicateRegistration = errors.New("registration already exists for this event and email")

// RegistrationsRepository defines persistence for the registrations table.
type RegistrationsRepository interface {
	// Insert writes a registration. The registry service passes a tx so the
	// row commits together with its outbox message.
	Insert(ctx context.Context, tx *sqlx.Tx, reg model.Registration) error
}

type RegistrationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRegistrationsRepository(db *sqlx.DB) *RegistrationsRepositoryImpl {
	return &RegistrationsRepositoryImpl{db: db}
}

var _ RegistrationsRepository = (*RegistrationsRepositoryImpl)(nil)

func (r *RegistrationsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, reg model.Registration) error {
	const q = `
		INSERT INTO registrations
		    (id, event_id, full_name, email, confirmation_code, confirmed, created_at)
		VALUES
		    (?,  ?,        ?,         ?,     ?,                 FALSE,     NOW(6))
	`
	run := func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			reg.ID, reg.EventID, reg.FullName, reg.Email, reg.ConfirmationCode,
		)
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 { // duplicate key
			return ErrDuplicateRegistration
		}
		return err
	}

	if tx != nil {
		return run(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := run(t); err != nil {
		return err
	}

	return t.Commit()
}
