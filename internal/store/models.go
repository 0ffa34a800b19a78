package store

import "time"

type Agent struct {
	ID         string
	Name       string
	APIKeyHash string
	Verified   bool
	Wins       int64
	Losses     int64
	WageredCC  int64
	CreatedAt  time.Time
}

type Account struct {
	HolderID  string
	BalanceCC int64
	UpdatedAt time.Time
}

type LedgerEntry struct {
	ID        string
	HolderID  string
	Type      string
	AmountCC  int64
	RefType   string
	RefID     string
	CreatedAt time.Time
}

type LeaderboardEntry struct {
	AgentID string
	Name    string
	NetCC   int64
}
