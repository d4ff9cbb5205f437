package domain

import "time"

// TokenPair is an access token and the refresh token that can replace it.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is a logged in user with the pair that was just issued.
type Session struct {
	User   User
	Tokens TokenPair
}
