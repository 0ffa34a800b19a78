package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) EnsureAccount(ctx context.Context, holderID string, initial int64) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO accounts (holder_id, balance_cc) VALUES ($1,$2) ON CONFLICT (holder_id) DO NOTHING`, holderID, initial)
	return err
}

func (s *Store) GetAccountBalance(ctx context.Context, holderID string) (int64, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT balance_cc FROM accounts WHERE holder_id = $1`, holderID)
	var bal int64
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return bal, nil
}

// Transfer moves amount between two accounts in one transaction and
// journals both legs. Rows lock in holder order so two opposing transfers
// cannot deadlock. The debit leg fails the whole transaction when the
// source balance is short.
func (s *Store) Transfer(ctx context.Context, from, to string, amount int64, entryType, refType, refID string) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	first, second := from, to
	if second < first {
		first, second = second, first
	}
	balances := map[string]int64{}
	for _, holder := range []string{first, second} {
		row := tx.QueryRowContext(ctx, `SELECT balance_cc FROM accounts WHERE holder_id = $1 FOR UPDATE`, holder)
		var bal int64
		if err := row.Scan(&bal); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		balances[holder] = bal
	}
	if balances[from] < amount {
		return ErrInsufficientBalance
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance_cc = balance_cc - $1, updated_at = now() WHERE holder_id = $2`, amount, from); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance_cc = balance_cc + $1, updated_at = now() WHERE holder_id = $2`, amount, to); err != nil {
		return err
	}
	if err := s.recordEntry(ctx, tx, from, entryType, -amount, refType, refID); err != nil {
		return err
	}
	if err := s.recordEntry(ctx, tx, to, entryType, amount, refType, refID); err != nil {
		return err
	}
	return tx.Commit()
}

// Credit adds funds from outside the engine (deposits, admin grants).
func (s *Store) Credit(ctx context.Context, holderID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	row := tx.QueryRowContext(ctx, `SELECT balance_cc FROM accounts WHERE holder_id = $1 FOR UPDATE`, holderID)
	if err := row.Scan(&bal); err != nil {
		return 0, err
	}
	newBal := bal + amount
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance_cc = $1, updated_at = now() WHERE holder_id = $2`, newBal, holderID); err != nil {
		return 0, err
	}
	if err := s.recordEntry(ctx, tx, holderID, entryType, amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

// Debit removes funds to outside the engine (withdrawals).
func (s *Store) Debit(ctx context.Context, holderID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	row := tx.QueryRowContext(ctx, `SELECT balance_cc FROM accounts WHERE holder_id = $1 FOR UPDATE`, holderID)
	if err := row.Scan(&bal); err != nil {
		return 0, err
	}
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amount
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance_cc = $1, updated_at = now() WHERE holder_id = $2`, newBal, holderID); err != nil {
		return 0, err
	}
	if err := s.recordEntry(ctx, tx, holderID, entryType, -amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *Store) recordEntry(ctx context.Context, tx *sql.Tx, holderID, entryType string, amount int64, refType, refID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries (id, holder_id, type, amount_cc, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), holderID, entryType, amount, refType, refID)
	return err
}

func (s *Store) ListAccounts(ctx context.Context, holderID string, limit, offset int) ([]Account, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if holderID == "" {
		rows, err = s.DB.QueryContext(ctx, `SELECT holder_id, balance_cc, updated_at FROM accounts ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.DB.QueryContext(ctx, `SELECT holder_id, balance_cc, updated_at FROM accounts WHERE holder_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`, holderID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.HolderID, &a.BalanceCC, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type LedgerFilter struct {
	HolderID string
	RefType  string
	RefID    string
	From     *time.Time
	To       *time.Time
}

func (s *Store) ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE 1=1"
	args := []any{}
	if f.HolderID != "" {
		args = append(args, f.HolderID)
		where += fmt.Sprintf(" AND holder_id = $%d", len(args))
	}
	if f.RefType != "" {
		args = append(args, f.RefType)
		where += fmt.Sprintf(" AND ref_type = $%d", len(args))
	}
	if f.RefID != "" {
		args = append(args, f.RefID)
		where += fmt.Sprintf(" AND ref_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	args = append(args, limit, offset)
	q := `SELECT id, holder_id, type, amount_cc, ref_type, ref_id, created_at FROM ledger_entries ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.HolderID, &e.Type, &e.AmountCC, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
