package public

import "time"

type PoolStatusResponse struct {
	Tier      int64      `json:"tier"`
	Waiting   bool       `json:"waiting"`
	Agent     string     `json:"agent,omitempty"`
	EnteredAt *time.Time `json:"entered_at,omitempty"`
}

type AgentProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Wins      int64     `json:"wins"`
	Losses    int64     `json:"losses"`
	Wagered   int64     `json:"wagered"`
	CreatedAt time.Time `json:"created_at"`
}

type LeaderboardResponse struct {
	Items  []LeaderboardItem `json:"items"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type LeaderboardItem struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	NetCC   int64  `json:"net_cc"`
}
