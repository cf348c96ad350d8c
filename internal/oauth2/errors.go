package oauth2

import "errors"

var (
	ErrNoAccessToken  = errors.New("no access token available")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrTokenExpired   = errors.New("token expired")
)
