package models

import "time"

// APIKeyBundle is one provider API key's quota and availability state,
// gated per spec §4.4/§5: a single writer per key, availability enforced
// via AvailableAt and cooldowns applied after each ingestion attempt.
type APIKeyBundle struct {
	ID             string    `json:"id"`
	SecretEnv      string    `json:"secret_env"`
	QuotaTokens    int64     `json:"quota_tokens"`
	QuotaRequests  int64     `json:"quota_requests"`
	TokensInUse    int64     `json:"tokens_in_use"`
	RequestsInUse  int64     `json:"requests_in_use"`
	AvailableAt    time.Time `json:"available_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Available reports whether the key may start new work at now.
func (k APIKeyBundle) Available(now time.Time) bool {
	return !now.Before(k.AvailableAt)
}

// RemainingTokens is the token headroom left under quota before accounting
// for any batch about to be packed.
func (k APIKeyBundle) RemainingTokens() int64 {
	if k.TokensInUse >= k.QuotaTokens {
		return 0
	}
	return k.QuotaTokens - k.TokensInUse
}
