package api

import "errors"

var (
	ErrNotFound    = errors.New("data not found for this ticker/aggregation")
	ErrRateLimited = errors.New("rate limited by API")
	ErrAuthFailed  = errors.New("authentication failed")
)
