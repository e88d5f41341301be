package domain

import "time"

// User is a registered account holder. Cash is held in cents.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Cash         int64
	CreatedAt    time.Time
}

// Position is a user's holding in a single symbol.
// A stored position always has Shares > 0.
type Position struct {
	UserID    string
	Symbol    string
	Name      string
	Shares    int64
	Price     int64 // last transaction price in cents
	Total     int64 // cached position value in cents
	UpdatedAt time.Time
}

// Portfolio is the read-only view of a user's account.
type Portfolio struct {
	Cash      int64
	Positions []*Position // sorted by symbol
	NetWorth  int64
}
