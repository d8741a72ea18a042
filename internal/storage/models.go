package storage

import "time"

// DefaultGroup is the reserved group every detached account falls back to.
const DefaultGroup = "Общая"

// Promo code statuses, both global and per-account.
const (
	PromoActive           = "active"
	PromoExpired          = "expired"
	PromoInvalid          = "invalid"
	PromoSuccess          = "success"
	PromoFailed           = "failed"
	PromoAlreadyActivated = "already_activated"
)

// Group is a named bucket for accounts
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Account is a monitored portal account
type Account struct {
	Username       string
	Alias          string
	GroupID        *int64
	GroupName      string // resolved via join, DefaultGroup when detached
	LastSuccess    *time.Time
	Server         string
	UsePromo       bool
	TransferToGame bool
	MdmCoins       string
}

// DisplayName returns the alias when set, otherwise the username
func (a *Account) DisplayName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Username
}

// TaskProgress is one marathon objective snapshot; rows are append-only
type TaskProgress struct {
	Name      string
	Current   int
	Total     int
	Percent   float64
	Timestamp time.Time
}

// Character is one roster entry, fully replaced on each scrape
type Character struct {
	Server string
	Name   string
	Class  string
	Level  int
}

// Gift is a pending portal gift with an expiry deadline
type Gift struct {
	Name    string
	Expires time.Time
}

// AccountSnapshot is the previous persisted state used for diffing:
// the account row plus the latest (current,total) pair per task name.
type AccountSnapshot struct {
	Account
	Tasks map[string][2]int
}
