package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"wxsync/internal/wxsync"
)

const accountNamespace = "-acct"

// EnsureAccount inserts the account, keyed by its external id.
//
// A second completed login for the same identity returns the already stored
// row instead of erroring.
func (r Repo) EnsureAccount(ctx context.Context, acct wxsync.Account) (wxsync.Account, error) {
	const q = `INSERT INTO accounts (id, display_name, external_id, token, status)
	VALUES (:id, :display_name, :external_id, :token, :status)
	ON CONFLICT (external_id) DO NOTHING;`

	acct.ID = uuid.NewString() + accountNamespace
	if acct.Status == "" {
		acct.Status = wxsync.AccountStatusActive
	}
	if _, err := r.db.NamedExecContext(ctx, q, acct); err != nil {
		return wxsync.Account{}, fmt.Errorf("error inserting account: %s", err)
	}

	return r.accountByExternalID(ctx, acct.ExternalID)
}

func (r Repo) Account(ctx context.Context, id string) (wxsync.Account, error) {
	const q = `SELECT * FROM accounts WHERE id = ?;`

	var acct wxsync.Account
	err := r.db.GetContext(ctx, &acct, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return wxsync.Account{}, wxsync.ErrNotFound
	}
	if err != nil {
		return wxsync.Account{}, fmt.Errorf("error fetching account: %s", err)
	}

	return acct, nil
}

func (r Repo) accountByExternalID(ctx context.Context, externalID string) (wxsync.Account, error) {
	const q = `SELECT * FROM accounts WHERE external_id = ?;`

	var acct wxsync.Account
	err := r.db.GetContext(ctx, &acct, q, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return wxsync.Account{}, wxsync.ErrNotFound
	}
	if err != nil {
		return wxsync.Account{}, fmt.Errorf("error fetching account: %s", err)
	}

	return acct, nil
}

func (r Repo) AccountsByStatus(ctx context.Context, statuses ...wxsync.AccountStatus) ([]wxsync.Account, error) {
	query, args, err := sq.Select("*").
		From("accounts").
		Where(sq.Eq{"status": statuses}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var accts []wxsync.Account
	if err := r.db.SelectContext(ctx, &accts, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching accounts: %s", err)
	}

	return accts, nil
}

func (r Repo) UpdateAccountStatus(ctx context.Context, id string, status wxsync.AccountStatus, until *time.Time) error {
	query, args, err := sq.Update("accounts").
		Set("status", status).
		Set("blacklisted_until", until).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error updating account status: %s", err)
	}

	return nil
}
