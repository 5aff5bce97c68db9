package domain

import "time"

// SignedInSession is the result of a successful credential exchange.
type SignedInSession struct {
	UserID      string
	Name        string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
	User        *CurrentUser
}
