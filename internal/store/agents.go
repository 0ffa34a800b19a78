package store

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) CreateAgent(ctx context.Context, name, apiKey string) (string, error) {
	id := NewID()
	hash := HashAPIKey(apiKey)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO agents (id, name, api_key_hash, verified) VALUES ($1,$2,$3,false)`, id, name, hash)
	return id, err
}

func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	return s.scanAgent(s.DB.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash, verified, wins, losses, wagered_cc, created_at FROM agents WHERE id = $1`, id))
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (*Agent, error) {
	return s.scanAgent(s.DB.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash, verified, wins, losses, wagered_cc, created_at FROM agents WHERE name = $1`, name))
}

func (s *Store) GetAgentByAPIKey(ctx context.Context, apiKey string) (*Agent, error) {
	return s.scanAgent(s.DB.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash, verified, wins, losses, wagered_cc, created_at FROM agents WHERE api_key_hash = $1`, HashAPIKey(apiKey)))
}

// SetAgentVerified flips the gate every staking entry point checks.
func (s *Store) SetAgentVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE agents SET verified = $1 WHERE id = $2`, verified, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResult bumps the agent's cumulative totals after a settlement.
func (s *Store) RecordResult(ctx context.Context, id string, won bool, wagered int64) error {
	q := `UPDATE agents SET losses = losses + 1, wagered_cc = wagered_cc + $1 WHERE id = $2`
	if won {
		q = `UPDATE agents SET wins = wins + 1, wagered_cc = wagered_cc + $1 WHERE id = $2`
	}
	res, err := s.DB.ExecContext(ctx, q, wagered, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context, limit, offset int) ([]Agent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, api_key_hash, verified, wins, losses, wagered_cc, created_at FROM agents ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Agent{}
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.Verified, &a.Wins, &a.Losses, &a.WageredCC, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListLeaderboard ranks agents by their net ledger position.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT a.id, a.name, COALESCE(SUM(l.amount_cc), 0) AS net_cc
		FROM agents a
		LEFT JOIN ledger_entries l ON l.holder_id = a.id
		GROUP BY a.id, a.name
		ORDER BY net_cc DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.AgentID, &e.Name, &e.NetCC); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) scanAgent(row *sql.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.Verified, &a.Wins, &a.Losses, &a.WageredCC, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
