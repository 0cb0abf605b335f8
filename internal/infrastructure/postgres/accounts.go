package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

// DB is the subset of *pgxpool.Pool the stores need.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx runs fn inside a transaction and commits when it returns nil.
func inTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// claimEmail reserves email in the cross-kind namespace. The primary key on
// account_emails.email rejects a second claim regardless of kind.
func claimEmail(ctx context.Context, tx pgx.Tx, email string, kind entity.Kind, accountID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO account_emails (email, kind, account_id)
		VALUES ($1, $2, $3)
	`, email, string(kind), accountID)
	return err
}

func moveEmail(ctx context.Context, tx pgx.Tx, accountID, email string) error {
	_, err := tx.Exec(ctx, `
		UPDATE account_emails SET email = $1
		WHERE account_id = $2
	`, email, accountID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// classify maps driver errors onto repository sentinels, leaving anything else untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return repository.ErrNotFound
	case isUniqueViolation(err):
		return repository.ErrEmailTaken
	}
	return err
}
