package model

import "time"

// SentinelAccessToken short-circuits every adapter into simulated mode: a
// deterministic success after an artificial delay, with a synthetic platform
// id. It lets the whole pipeline run without live platform credentials.
const SentinelAccessToken = "sandbox-access-token"

// Credential stores the OAuth token set for one (user, channel, platform)
// triple, plus the resolved sub-destination metadata (connected page/board)
// cached so publishes do not re-resolve it on every run.
type Credential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	ChannelID    string     `json:"channel_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	PageID       *string    `json:"page_id,omitempty"`
	PageName     *string    `json:"page_name,omitempty"`
	PageToken    *string    `json:"page_token,omitempty"`
	TokenType    *string    `json:"token_type,omitempty"` // user | page
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Expired reports whether the access token is past its expiry. A credential
// without expiry never expires.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
